package course

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
)

type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Membership is how a user takes part in a course.
type Membership struct {
	Instructor bool
	Enrolled   bool
}

// Participant reports whether the user teaches the course or holds an active enrollment in it.
func (m Membership) Participant() bool {
	return m.Instructor || m.Enrolled
}

// MembershipOf looks up how userID takes part in the course. Pending enrollments do not count.
func MembershipOf(ctx context.Context, q Querier, courseID, userID domain.ID) (Membership, error) {
	var m Membership
	err := q.QueryRow(ctx, `
SELECT c.instructor_id = $2,
       EXISTS (SELECT 1 FROM enrollments e
               WHERE e.course_id = c.id AND e.user_id = $2 AND e.status IN ('enrolled', 'started', 'completed'))
FROM courses c
WHERE c.id = $1;`, courseID, userID).Scan(&m.Instructor, &m.Enrolled)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return Membership{}, errors.NotFound("course not found: %s", courseID)
	}
	if err != nil {
		return Membership{}, fmt.Errorf("get course membership: %w", err)
	}
	return m, nil
}

type SubmitReviewRequest struct {
	Student  domain.User `validate:"-"`
	CourseID domain.ID   `validate:"-"`
	Rating   int         `validate:"min=1,max=5"`
	Comment  string      `validate:"max=2000"`
}

// SubmitReview stores the student's review of a course, replacing their earlier one. Only
// enrolled students can review.
func (s *Service) SubmitReview(ctx context.Context, req SubmitReviewRequest) (*domain.CourseReviews, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("rating must be between 1 and 5"),
			errors.WithCause(err),
		)
	}

	m, err := MembershipOf(ctx, s.db, req.CourseID, req.Student.ID)
	if err != nil {
		return nil, err
	}
	if !m.Enrolled {
		return nil, errors.New(errors.CodePermissionDenied, errors.WithMessagef("only enrolled students can review a course"))
	}

	if _, err := s.db.Exec(ctx, `
INSERT INTO course_reviews (course_id, student_id, student_name, rating, comment, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (course_id, student_id) DO UPDATE
SET student_name = excluded.student_name, rating = excluded.rating, comment = excluded.comment, created_at = excluded.created_at;`,
		req.CourseID, req.Student.ID, req.Student.Name, req.Rating, strings.TrimSpace(req.Comment), time.Now().UTC(),
	); err != nil {
		return nil, fmt.Errorf("upsert review: %w", err)
	}

	return s.ListReviews(ctx, req.CourseID)
}

// ListReviews returns the reviews of a course, newest first.
func (s *Service) ListReviews(ctx context.Context, courseID domain.ID) (*domain.CourseReviews, error) {
	if _, err := s.RoadmapLength(ctx, courseID); err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
SELECT course_id, student_id, student_name, rating, comment, created_at
FROM course_reviews
WHERE course_id = $1
ORDER BY created_at DESC;`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	reviews, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Review, error) {
		var rv domain.Review
		err := r.Scan(&rv.CourseID, &rv.StudentID, &rv.StudentName, &rv.Rating, &rv.Comment, &rv.CreatedAt)
		return rv, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan reviews: %w", err)
	}

	return &domain.CourseReviews{Rating: AverageRating(reviews), Reviews: reviews}, nil
}

// AverageRating is the mean rating rounded to 2 decimals, 0 without reviews.
func AverageRating(reviews []domain.Review) decimal.Decimal {
	if len(reviews) == 0 {
		return decimal.Zero
	}

	var sum int64
	for _, r := range reviews {
		sum += int64(r.Rating)
	}
	return decimal.NewFromInt(sum).DivRound(decimal.NewFromInt(int64(len(reviews))), 2)
}
