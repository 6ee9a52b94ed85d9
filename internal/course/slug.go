package course

import (
	"regexp"
	"strings"

	"github.com/victornm/lms/internal/domain"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases title and joins its alphanumeric runs with hyphens.
func Slug(title string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// URL builds the public course address: the last five characters of the course id, the
// title slug and the instructor handle.
func URL(id domain.ID, title, instructorHandle string) string {
	s := id.String()
	handle := instructorHandle
	if handle == "" {
		handle = "unknown"
	}
	return s[len(s)-5:] + "-" + Slug(title) + "-" + handle
}
