package api

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
)

const userKey = "lms.user"

// authenticate resolves the bearer token to the calling user.
func (a *API) authenticate(c *gin.Context) {
	token, ok := bearerToken(c.GetHeader("Authorization"))
	if !ok {
		abort(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("missing bearer token")))
		return
	}

	u, err := a.us.Authenticate(c.Request.Context(), token)
	if err != nil {
		abort(c, err)
		return
	}

	c.Set(userKey, u)
	c.Next()
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}

	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func requireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, currentUser(c).Role) {
			abort(c, errors.New(errors.CodePermissionDenied, errors.WithMessagef("requires role %v", roles)))
			return
		}
		c.Next()
	}
}

// currentUser is only valid behind authenticate.
func currentUser(c *gin.Context) *domain.User {
	return c.MustGet(userKey).(*domain.User)
}
