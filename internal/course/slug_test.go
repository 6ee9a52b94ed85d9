package course_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/lms/internal/course"
	"github.com/victornm/lms/internal/domain"
)

func TestSlug(t *testing.T) {
	tests := map[string]struct {
		title string
		want  string
	}{
		"spaces":               {title: "Web Development Bootcamp", want: "web-development-bootcamp"},
		"punctuation":          {title: "Go: Zero to Hero!", want: "go-zero-to-hero"},
		"leading and trailing": {title: "  --Data  Science-- ", want: "data-science"},
		"digits kept":          {title: "SQL 101", want: "sql-101"},
		"non latin dropped":    {title: "Café Basics", want: "caf-basics"},
		"nothing left":         {title: "!!!", want: ""},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, course.Slug(tt.title))
		})
	}
}

func TestURL(t *testing.T) {
	id, err := domain.ParseID("0190f2a4-7c1e-7d2b-9a41-3c8e5f0d5c63")
	require.NoError(t, err)

	assert.Equal(t, "d5c63-web-development-bootcamp-TIN59PR", course.URL(id, "Web Development Bootcamp", "TIN59PR"))
	assert.Equal(t, "d5c63-web-development-bootcamp-unknown", course.URL(id, "Web Development Bootcamp", ""))
}
