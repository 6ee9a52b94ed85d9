package postgres_test

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/victornm/lms/internal/postgres"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"unique violation":         {err: &pgconn.PgError{Code: "23505"}, want: true},
		"wrapped unique violation": {err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: true},
		"foreign key violation":    {err: &pgconn.PgError{Code: "23503"}, want: false},
		"plain error":              {err: fmt.Errorf("boom"), want: false},
		"nil":                      {err: nil, want: false},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, postgres.IsUniqueViolation(tt.err))
		})
	}
}
