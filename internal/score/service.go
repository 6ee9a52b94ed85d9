package score

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
	"github.com/victornm/lms/internal/event"
	"github.com/victornm/lms/internal/postgres"
	"github.com/victornm/lms/internal/telemetry"
)

const maxInsertAttempts = 3

type Courses interface {
	GetByURL(ctx context.Context, url string) (*domain.Course, error)
}

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
	Courses  Courses
}

type Service struct {
	eb       *event.Bus
	db       *pgxpool.Pool
	courses  Courses
	validate *validator.Validate
}

func NewService(c Config) *Service {
	return &Service{
		eb:       c.EventBus,
		db:       c.DB,
		courses:  c.Courses,
		validate: validator.New(),
	}
}

// SubmitQuizRequest is one attempt at a day's quiz. SelectedAnswers holds one option index
// per question; -1 marks a skipped question.
type SubmitQuizRequest struct {
	UserID          domain.ID
	CourseURL       string `validate:"required"`
	DayNumber       int    `validate:"gte=1"`
	SelectedAnswers []int  `validate:"required,min=1,dive,gte=-1"`
}

// SubmitQuiz grades the answers against the day's questions and stores the attempt with the
// next attempt number for (user, course, day).
func (s *Service) SubmitQuiz(ctx context.Context, req SubmitQuizRequest) (*domain.QuizSubmission, error) {
	if req.UserID.IsZero() {
		return nil, errors.InvalidArgument("user is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid quiz submission: %v", err),
			errors.WithCause(err),
		)
	}

	course, err := s.courses.GetByURL(ctx, req.CourseURL)
	if err != nil {
		return nil, err
	}

	day, ok := course.Roadmap.Day(req.DayNumber)
	if !ok {
		return nil, errors.NotFound("day %d not found in course %s", req.DayNumber, req.CourseURL)
	}

	sc, completed, err := Grade(day, req.SelectedAnswers)
	if err != nil {
		return nil, err
	}

	id, err := domain.NewID()
	if err != nil {
		return nil, err
	}

	sub := &domain.QuizSubmission{
		ID:              id,
		UserID:          req.UserID,
		CourseURL:       course.URL,
		DayNumber:       req.DayNumber,
		Title:           fmt.Sprintf("Day %d: %s", day.Day, day.Topics),
		SelectedAnswers: req.SelectedAnswers,
		Score:           sc,
		IsCompleted:     completed,
		SubmittedAt:     time.Now().UTC(),
	}

	if err := s.insertSubmission(ctx, sub); err != nil {
		return nil, err
	}

	telemetry.QuizSubmissions.Inc()
	s.eb.Publish(ctx, domain.EventQuizSubmitted{
		Submission: *sub,
	})

	return sub, nil
}

// Grade scores answers against the questions of a day: the percentage of correct answers,
// rounded to two decimals. The attempt is completed when no question was skipped.
func Grade(day domain.RoadmapDay, answers []int) (decimal.Decimal, bool, error) {
	if len(day.MCQs) == 0 {
		return decimal.Zero, false, errors.InvalidArgument("day %d has no quiz", day.Day)
	}
	if len(answers) != len(day.MCQs) {
		return decimal.Zero, false, errors.InvalidArgument("expected %d answers, got %d", len(day.MCQs), len(answers))
	}

	correct, completed := 0, true
	for i, a := range answers {
		q := day.MCQs[i]
		switch {
		case a == -1:
			completed = false
		case a < 0 || a >= len(q.Options):
			return decimal.Zero, false, errors.InvalidArgument("answer %d of question %d is not an option", a, i+1)
		case q.Options[a].IsCorrect:
			correct++
		}
	}

	sc := decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(len(day.MCQs)))).
		Round(2)

	return sc, completed, nil
}

// insertSubmission assigns the attempt number inside the INSERT. Two concurrent attempts
// can compute the same number; the unique index rejects one of them and it is retried.
func (s *Service) insertSubmission(ctx context.Context, sub *domain.QuizSubmission) error {
	const stmt = `
INSERT INTO quiz_submissions (id, user_id, course_url, day_number, attempt_number, title, selected_answers, score, is_completed, submitted_at)
SELECT $1, $2, $3, $4, COALESCE(MAX(attempt_number), 0) + 1, $5, $6, $7, $8, $9
FROM quiz_submissions
WHERE user_id = $2 AND course_url = $3 AND day_number = $4
RETURNING attempt_number;`

	var err error
	for i := 0; i < maxInsertAttempts; i++ {
		err = s.db.QueryRow(ctx, stmt,
			sub.ID, sub.UserID, sub.CourseURL, sub.DayNumber,
			sub.Title, sub.SelectedAnswers, sub.Score, sub.IsCompleted, sub.SubmittedAt,
		).Scan(&sub.AttemptNumber)

		if postgres.IsUniqueViolation(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("insert quiz submission: %w", err)
		}
		return nil
	}

	return errors.New(errors.CodeAlreadyExists,
		errors.WithMessagef("concurrent attempts for day %d, please retry", sub.DayNumber),
		errors.WithCause(err),
	)
}

const selectSubmissions = `
SELECT id, user_id, course_url, day_number, attempt_number, title, selected_answers, score, is_completed, submitted_at
FROM quiz_submissions`

// ListSubmissions returns every attempt of a user, newest first.
func (s *Service) ListSubmissions(ctx context.Context, userID domain.ID) ([]domain.QuizSubmission, error) {
	rows, err := s.db.Query(ctx, selectSubmissions+`
WHERE user_id = $1
ORDER BY submitted_at DESC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("list quiz submissions: %w", err)
	}

	return collectSubmissions(rows)
}

// ListCompleted returns the completed attempts of the given users, grouped by user.
func (s *Service) ListCompleted(ctx context.Context, userIDs []domain.ID) (map[domain.ID][]domain.QuizSubmission, error) {
	rows, err := s.db.Query(ctx, selectSubmissions+`
WHERE is_completed AND user_id = ANY($1::uuid[])
ORDER BY submitted_at;`, domain.IDStrings(userIDs))
	if err != nil {
		return nil, fmt.Errorf("list completed quiz submissions: %w", err)
	}

	subs, err := collectSubmissions(rows)
	if err != nil {
		return nil, err
	}

	byUser := make(map[domain.ID][]domain.QuizSubmission, len(userIDs))
	for _, sub := range subs {
		byUser[sub.UserID] = append(byUser[sub.UserID], sub)
	}
	return byUser, nil
}

// Stats returns the quiz statistics shown to a student.
func (s *Service) Stats(ctx context.Context, userID domain.ID) (Stats, error) {
	byUser, err := s.ListCompleted(ctx, []domain.ID{userID})
	if err != nil {
		return Stats{}, err
	}
	return Summarize(byUser[userID]), nil
}

func collectSubmissions(rows pgx.Rows) ([]domain.QuizSubmission, error) {
	subs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.QuizSubmission, error) {
		var sub domain.QuizSubmission
		err := r.Scan(&sub.ID, &sub.UserID, &sub.CourseURL, &sub.DayNumber, &sub.AttemptNumber,
			&sub.Title, &sub.SelectedAnswers, &sub.Score, &sub.IsCompleted, &sub.SubmittedAt)
		return sub, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan quiz submissions: %w", err)
	}

	return subs, nil
}
