package discussion_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/lms/internal/course"
	"github.com/victornm/lms/internal/discussion"
	"github.com/victornm/lms/internal/domain"
)

func newID(t *testing.T) domain.ID {
	id, err := domain.NewID()
	require.NoError(t, err)
	return id
}

func TestCanDelete(t *testing.T) {
	author := domain.User{ID: newID(t), Role: domain.RoleStudent}
	other := domain.User{ID: newID(t), Role: domain.RoleStudent}
	admin := domain.User{ID: newID(t), Role: domain.RoleAdmin}

	tests := map[string]struct {
		m    course.Membership
		u    domain.User
		want bool
	}{
		"enrolled author":     {m: course.Membership{Enrolled: true}, u: author, want: true},
		"author not enrolled": {m: course.Membership{}, u: author, want: false},
		"other student":       {m: course.Membership{Enrolled: true}, u: other, want: false},
		"instructor":          {m: course.Membership{Instructor: true}, u: other, want: true},
		"admin":               {m: course.Membership{}, u: admin, want: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, discussion.CanDelete(tt.m, tt.u, author.ID))
		})
	}
}

func TestCanView(t *testing.T) {
	tests := map[string]struct {
		m    course.Membership
		role domain.Role
		want bool
	}{
		"outsider":   {m: course.Membership{}, role: domain.RoleStudent, want: false},
		"enrolled":   {m: course.Membership{Enrolled: true}, role: domain.RoleStudent, want: true},
		"instructor": {m: course.Membership{Instructor: true}, role: domain.RoleInstructor, want: true},
		"admin":      {m: course.Membership{}, role: domain.RoleAdmin, want: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, discussion.CanView(tt.m, domain.User{Role: tt.role}))
		})
	}
}

func TestAttachReplies(t *testing.T) {
	d1, d2, gone := newID(t), newID(t), newID(t)
	ds := []domain.Discussion{
		{ID: d1, Replies: []domain.Reply{}},
		{ID: d2, Replies: []domain.Reply{}},
	}
	replies := []domain.Reply{
		{DiscussionID: d2, Content: "first"},
		{DiscussionID: d1, Content: "second"},
		{DiscussionID: gone, Content: "dropped"},
		{DiscussionID: d2, Content: "third"},
	}

	got := discussion.AttachReplies(ds, replies)

	require.Len(t, got, 2)
	require.Len(t, got[0].Replies, 1)
	assert.Equal(t, "second", got[0].Replies[0].Content)
	require.Len(t, got[1].Replies, 2)
	assert.Equal(t, "first", got[1].Replies[0].Content)
	assert.Equal(t, "third", got[1].Replies[1].Content)
}
