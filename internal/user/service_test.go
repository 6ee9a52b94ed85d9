package user_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/lms/internal/user"
)

func TestNewHandle(t *testing.T) {
	tests := map[string]struct {
		name   string
		prefix string
	}{
		"plain name":        {name: "Tina Turner", prefix: "TIN"},
		"short name":        {name: "Al", prefix: "AL"},
		"skips non letters": {name: "J. R. Smith", prefix: "JRS"},
		"non ascii skipped": {name: "Émile", prefix: "MIL"},
		"no usable letters": {name: "123", prefix: ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h, err := user.NewHandle(tt.name)
			require.NoError(t, err)

			assert.Len(t, h, 7)
			assert.Regexp(t, "^"+tt.prefix+"[A-Z0-9]+$", h)
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := user.HashPassword("correct horse")
	require.NoError(t, err)

	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("correct horse")))
	assert.Error(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("battery staple")))
}
