// Package discussion runs the per-course discussion board: threads, replies and likes.
package discussion

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/lms/internal/course"
	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
	"github.com/victornm/lms/internal/event"
)

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
}

type Service struct {
	eb       *event.Bus
	db       *pgxpool.Pool
	validate *validator.Validate
}

func NewService(c Config) *Service {
	return &Service{
		eb:       c.EventBus,
		db:       c.DB,
		validate: validator.New(),
	}
}

// CanView reports whether u may read and write on the board of a course.
func CanView(m course.Membership, u domain.User) bool {
	return m.Participant() || u.Role == domain.RoleAdmin
}

// CanDelete reports whether u may delete a discussion started by author. Authors need an
// active enrollment; the instructor and admins moderate.
func CanDelete(m course.Membership, u domain.User, author domain.ID) bool {
	return u.Role == domain.RoleAdmin || m.Instructor || (m.Enrolled && author == u.ID)
}

func (s *Service) membership(ctx context.Context, u domain.User, courseID domain.ID) (course.Membership, error) {
	m, err := course.MembershipOf(ctx, s.db, courseID, u.ID)
	if err != nil {
		return m, err
	}
	if !CanView(m, u) {
		return m, errors.New(errors.CodePermissionDenied,
			errors.WithMessagef("you must be enrolled in this course or be its instructor"),
		)
	}
	return m, nil
}

// List returns the discussions of a course with their replies, pinned first then newest.
func (s *Service) List(ctx context.Context, u domain.User, courseID domain.ID) ([]domain.Discussion, error) {
	if _, err := s.membership(ctx, u, courseID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
SELECT d.id, d.course_id, d.user_id, u.name, d.title, d.content, d.is_pinned, d.created_at,
       (SELECT count(*) FROM discussion_likes l WHERE l.discussion_id = d.id),
       EXISTS (SELECT 1 FROM discussion_likes l WHERE l.discussion_id = d.id AND l.user_id = $2)
FROM discussions d
JOIN users u ON u.id = d.user_id
WHERE d.course_id = $1
ORDER BY d.is_pinned DESC, d.created_at DESC;`, courseID, u.ID)
	if err != nil {
		return nil, fmt.Errorf("list discussions: %w", err)
	}

	ds, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Discussion, error) {
		d := domain.Discussion{Replies: []domain.Reply{}}
		err := r.Scan(&d.ID, &d.CourseID, &d.UserID, &d.Author, &d.Title, &d.Content, &d.IsPinned, &d.CreatedAt, &d.Likes, &d.Liked)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan discussions: %w", err)
	}

	rows, err = s.db.Query(ctx, `
SELECT r.id, r.discussion_id, r.user_id, u.name, r.content, r.created_at
FROM discussion_replies r
JOIN discussions d ON d.id = r.discussion_id
JOIN users u ON u.id = r.user_id
WHERE d.course_id = $1
ORDER BY r.created_at;`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}

	replies, err := pgx.CollectRows(rows, scanReply)
	if err != nil {
		return nil, fmt.Errorf("scan replies: %w", err)
	}

	return AttachReplies(ds, replies), nil
}

// AttachReplies appends each reply to its discussion, keeping the order of replies.
func AttachReplies(ds []domain.Discussion, replies []domain.Reply) []domain.Discussion {
	idx := make(map[domain.ID]int, len(ds))
	for i, d := range ds {
		idx[d.ID] = i
	}

	for _, r := range replies {
		if i, ok := idx[r.DiscussionID]; ok {
			ds[i].Replies = append(ds[i].Replies, r)
		}
	}
	return ds
}

type CreateRequest struct {
	User     domain.User `validate:"-"`
	CourseID domain.ID   `validate:"-"`
	Title    string      `validate:"required,max=200"`
	Content  string      `validate:"required,max=10000"`
	IsPinned bool        `validate:"-"`
}

// Create starts a discussion. Only the course instructor can pin it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Discussion, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid discussion: %v", err),
			errors.WithCause(err),
		)
	}

	m, err := s.membership(ctx, req.User, req.CourseID)
	if err != nil {
		return nil, err
	}

	id, err := domain.NewID()
	if err != nil {
		return nil, err
	}

	d := &domain.Discussion{
		ID:        id,
		CourseID:  req.CourseID,
		UserID:    req.User.ID,
		Author:    req.User.Name,
		Title:     req.Title,
		Content:   req.Content,
		IsPinned:  req.IsPinned && m.Instructor,
		Replies:   []domain.Reply{},
		CreatedAt: time.Now().UTC(),
	}

	if _, err := s.db.Exec(ctx, `
INSERT INTO discussions (id, course_id, user_id, title, content, is_pinned, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		d.ID, d.CourseID, d.UserID, d.Title, d.Content, d.IsPinned, d.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert discussion: %w", err)
	}

	return d, nil
}

// Reply adds a reply and lets the discussion author know about it.
func (s *Service) Reply(ctx context.Context, u domain.User, discussionID domain.ID, content string) (*domain.Reply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.InvalidArgument("reply is empty")
	}

	d, err := s.get(ctx, discussionID)
	if err != nil {
		return nil, err
	}
	if _, err := s.membership(ctx, u, d.CourseID); err != nil {
		return nil, err
	}

	id, err := domain.NewID()
	if err != nil {
		return nil, err
	}

	r := &domain.Reply{
		ID:           id,
		DiscussionID: d.ID,
		UserID:       u.ID,
		Author:       u.Name,
		Content:      content,
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := s.db.Exec(ctx, `
INSERT INTO discussion_replies (id, discussion_id, user_id, content, created_at)
VALUES ($1, $2, $3, $4, $5);`,
		r.ID, r.DiscussionID, r.UserID, r.Content, r.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert reply: %w", err)
	}

	if d.UserID != u.ID {
		s.eb.Publish(ctx, domain.EventDiscussionReplied{
			Discussion: *d,
			Reply:      *r,
		})
	}

	return r, nil
}

// ToggleLike likes the discussion for u, or takes the like back, and returns the like count.
func (s *Service) ToggleLike(ctx context.Context, u domain.User, discussionID domain.ID) (int, error) {
	d, err := s.get(ctx, discussionID)
	if err != nil {
		return 0, err
	}
	if _, err := s.membership(ctx, u, d.CourseID); err != nil {
		return 0, err
	}

	var likes int
	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM discussion_likes WHERE discussion_id = $1 AND user_id = $2;`, d.ID, u.ID)
		if err != nil {
			return fmt.Errorf("unlike discussion: %w", err)
		}
		if tag.RowsAffected() == 0 {
			if _, err := tx.Exec(ctx, `
INSERT INTO discussion_likes (discussion_id, user_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING;`, d.ID, u.ID); err != nil {
				return fmt.Errorf("like discussion: %w", err)
			}
		}

		if err := tx.QueryRow(ctx, `SELECT count(*) FROM discussion_likes WHERE discussion_id = $1;`, d.ID).Scan(&likes); err != nil {
			return fmt.Errorf("count likes: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return likes, nil
}

// Delete removes a discussion with its replies and likes.
func (s *Service) Delete(ctx context.Context, u domain.User, discussionID domain.ID) error {
	d, err := s.get(ctx, discussionID)
	if err != nil {
		return err
	}

	m, err := course.MembershipOf(ctx, s.db, d.CourseID, u.ID)
	if err != nil {
		return err
	}
	if !CanDelete(m, u, d.UserID) {
		return errors.New(errors.CodePermissionDenied, errors.WithMessagef("not allowed to delete this discussion"))
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM discussions WHERE id = $1;`, d.ID); err != nil {
		return fmt.Errorf("delete discussion: %w", err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, id domain.ID) (*domain.Discussion, error) {
	d := &domain.Discussion{}
	err := s.db.QueryRow(ctx, `
SELECT d.id, d.course_id, d.user_id, u.name, d.title, d.content, d.is_pinned, d.created_at
FROM discussions d
JOIN users u ON u.id = d.user_id
WHERE d.id = $1;`, id).Scan(&d.ID, &d.CourseID, &d.UserID, &d.Author, &d.Title, &d.Content, &d.IsPinned, &d.CreatedAt)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("discussion not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get discussion: %w", err)
	}
	return d, nil
}

func scanReply(r pgx.CollectableRow) (domain.Reply, error) {
	var rp domain.Reply
	err := r.Scan(&rp.ID, &rp.DiscussionID, &rp.UserID, &rp.Author, &rp.Content, &rp.CreatedAt)
	return rp, err
}
