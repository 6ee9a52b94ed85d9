package user_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
	"github.com/victornm/lms/internal/user"
)

func TestTokens_IssueAndParse(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	tokens := user.NewTokens("secret", time.Hour, func() time.Time { return now })

	id, err := domain.NewID()
	require.NoError(t, err)

	s, err := tokens.Issue(&domain.User{ID: id, Role: domain.RoleAdmin})
	require.NoError(t, err)

	claims, err := tokens.Parse(s)
	require.NoError(t, err)

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestTokens_Parse(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	id, err := domain.NewID()
	require.NoError(t, err)

	tests := map[string]struct {
		arrange func(t *testing.T) string
		parser  *user.Tokens
	}{
		"expired": {
			arrange: func(t *testing.T) string {
				s, err := user.NewTokens("secret", time.Hour, func() time.Time { return now.Add(-2 * time.Hour) }).
					Issue(&domain.User{ID: id, Role: domain.RoleStudent})
				require.NoError(t, err)
				return s
			},
			parser: user.NewTokens("secret", time.Hour, func() time.Time { return now }),
		},

		"wrong secret": {
			arrange: func(t *testing.T) string {
				s, err := user.NewTokens("other", time.Hour, func() time.Time { return now }).
					Issue(&domain.User{ID: id, Role: domain.RoleStudent})
				require.NoError(t, err)
				return s
			},
			parser: user.NewTokens("secret", time.Hour, func() time.Time { return now }),
		},

		"unsigned": {
			arrange: func(t *testing.T) string {
				s, err := jwt.NewWithClaims(jwt.SigningMethodNone, user.Claims{
					Role: domain.RoleAdmin,
					RegisteredClaims: jwt.RegisteredClaims{
						Issuer:    "lms",
						Subject:   id.String(),
						ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
					},
				}).SignedString(jwt.UnsafeAllowNoneSignatureType)
				require.NoError(t, err)
				return s
			},
			parser: user.NewTokens("secret", time.Hour, func() time.Time { return now }),
		},

		"subject is not an id": {
			arrange: func(t *testing.T) string {
				s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, user.Claims{
					Role: domain.RoleAdmin,
					RegisteredClaims: jwt.RegisteredClaims{
						Issuer:    "lms",
						Subject:   "admin",
						ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
					},
				}).SignedString([]byte("secret"))
				require.NoError(t, err)
				return s
			},
			parser: user.NewTokens("secret", time.Hour, func() time.Time { return now }),
		},

		"garbage": {
			arrange: func(t *testing.T) string {
				return "not-a-token"
			},
			parser: user.NewTokens("secret", time.Hour, func() time.Time { return now }),
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tt.parser.Parse(tt.arrange(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeUnauthenticated))
		})
	}
}
