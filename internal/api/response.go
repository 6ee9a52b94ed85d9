package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
)

type errorResponse struct {
	Error *errors.Error `json:"error"`
}

// abort writes err as a JSON error. Internal errors are recorded on the context for the
// request log and reach the client without details.
func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		_ = c.Error(err)
		e = errors.New(errors.CodeInternal)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), errorResponse{Error: e})
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid request body: %v", err),
			errors.WithCause(err),
		))
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (domain.ID, bool) {
	id, err := domain.ParseID(c.Param(name))
	if err != nil {
		abort(c, errors.InvalidArgument("invalid %s: %q", name, c.Param(name)))
		return domain.NilID, false
	}
	return id, true
}

func paramDay(c *gin.Context) (int, bool) {
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil || day < 1 {
		abort(c, errors.InvalidArgument("invalid day: %q", c.Param("day")))
		return 0, false
	}
	return day, true
}

func ok(c *gin.Context, body any) {
	c.JSON(http.StatusOK, body)
}
