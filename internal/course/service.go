package course

import (
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
	"github.com/victornm/lms/internal/event"
	"github.com/victornm/lms/internal/postgres"
	"github.com/victornm/lms/internal/progress"
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

type CreateCourseRequest struct {
	Instructor  domain.User    `validate:"-"`
	Title       string         `validate:"required,max=200"`
	Description string         `validate:"max=5000"`
	Image       string         `validate:"omitempty,url"`
	Category    string         `validate:"max=100"`
	Level       domain.Level   `validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	Language    string         `validate:"max=50"`
	Duration    string         `validate:"max=50"`
	Roadmap     domain.Roadmap `validate:"-"`
}

// Create stores a new course owned by the instructor. The roadmap days are renumbered 1..N
// in the given order.
func (s *Service) Create(ctx context.Context, req CreateCourseRequest) (*domain.Course, error) {
	if req.Instructor.Role != domain.RoleInstructor && req.Instructor.Role != domain.RoleAdmin {
		return nil, errors.New(errors.CodePermissionDenied, errors.WithMessagef("only instructors can create courses"))
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid course: %v", err),
			errors.WithCause(err),
		)
	}

	roadmap, err := normalizeRoadmap(req.Roadmap)
	if err != nil {
		return nil, err
	}

	id, err := domain.NewID()
	if err != nil {
		return nil, err
	}

	level := req.Level
	if level == "" {
		level = domain.LevelBeginner
	}
	language := req.Language
	if language == "" {
		language = "English"
	}

	now := time.Now().UTC()
	c := &domain.Course{
		ID:           id,
		URL:          URL(id, req.Title, req.Instructor.Handle),
		Title:        req.Title,
		Description:  req.Description,
		Image:        req.Image,
		Instructor:   req.Instructor.Name,
		InstructorID: req.Instructor.ID,
		Category:     req.Category,
		Level:        level,
		Language:     language,
		Duration:     req.Duration,
		IsActive:     true,
		Roadmap:      roadmap,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if _, err := s.db.Exec(ctx, `
INSERT INTO courses (id, url, title, description, image, instructor, instructor_id, category, level, language, duration, is_active, roadmap, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);`,
		c.ID, c.URL, c.Title, c.Description, c.Image, c.Instructor, c.InstructorID, c.Category,
		c.Level, c.Language, c.Duration, c.IsActive, c.Roadmap, c.CreatedAt, c.UpdatedAt,
	); err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, errors.New(errors.CodeAlreadyExists, errors.WithMessagef("course url already taken: %s", c.URL))
		}
		return nil, fmt.Errorf("insert course: %w", err)
	}

	return c, nil
}

const selectCourses = `
SELECT id, url, title, description, image, instructor, instructor_id, category, level, language, duration, students, is_active, roadmap, created_at, updated_at
FROM courses`

func (s *Service) GetByID(ctx context.Context, id domain.ID) (*domain.Course, error) {
	return s.getOne(ctx, selectCourses+` WHERE id = $1;`, id)
}

func (s *Service) GetByURL(ctx context.Context, url string) (*domain.Course, error) {
	return s.getOne(ctx, selectCourses+` WHERE url = $1;`, url)
}

func (s *Service) getOne(ctx context.Context, query string, arg any) (*domain.Course, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCourse)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("course not found: %v", arg)
	}
	if err != nil {
		return nil, fmt.Errorf("scan course: %w", err)
	}

	return &c, nil
}

type ListCoursesRequest struct {
	Category        string
	Level           domain.Level
	InstructorID    domain.ID
	IncludeInactive bool
}

// List returns courses matching every non-empty filter, newest first.
func (s *Service) List(ctx context.Context, req ListCoursesRequest) ([]domain.Course, error) {
	var instructor *domain.ID
	if !req.InstructorID.IsZero() {
		instructor = &req.InstructorID
	}

	rows, err := s.db.Query(ctx, selectCourses+`
WHERE ($1 OR is_active)
  AND ($2 = '' OR category = $2)
  AND ($3 = '' OR level = $3)
  AND ($4::uuid IS NULL OR instructor_id = $4)
ORDER BY created_at DESC;`, req.IncludeInactive, req.Category, string(req.Level), instructor)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}

	courses, err := pgx.CollectRows(rows, scanCourse)
	if err != nil {
		return nil, fmt.Errorf("scan courses: %w", err)
	}

	return courses, nil
}

// RoadmapLength returns the number of days of a course.
func (s *Service) RoadmapLength(ctx context.Context, id domain.ID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT jsonb_array_length(roadmap) FROM courses WHERE id = $1;`, id).Scan(&n)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return 0, errors.NotFound("course not found: %s", id)
	}
	if err != nil {
		return 0, fmt.Errorf("get roadmap length: %w", err)
	}
	return n, nil
}

// UpdateRoadmap replaces the roadmap of a course. Only its instructor or an admin may edit
// it. Enrollments of the course are brought in line with the new length in the same
// transaction: days past the end are dropped and progress is recomputed.
func (s *Service) UpdateRoadmap(ctx context.Context, editor domain.User, id domain.ID, roadmap domain.Roadmap) (*domain.Course, error) {
	roadmap, err := normalizeRoadmap(roadmap)
	if err != nil {
		return nil, err
	}

	var changed []domain.Enrollment
	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var owner domain.ID
		err := tx.QueryRow(ctx, `SELECT instructor_id FROM courses WHERE id = $1 FOR UPDATE;`, id).Scan(&owner)
		if stderrors.Is(err, pgx.ErrNoRows) {
			return errors.NotFound("course not found: %s", id)
		}
		if err != nil {
			return fmt.Errorf("lock course: %w", err)
		}

		if editor.Role != domain.RoleAdmin && owner != editor.ID {
			return errors.New(errors.CodePermissionDenied, errors.WithMessagef("only the course instructor can edit its roadmap"))
		}

		if _, err := tx.Exec(ctx, `UPDATE courses SET roadmap = $2, updated_at = now() WHERE id = $1;`, id, roadmap); err != nil {
			return fmt.Errorf("update roadmap: %w", err)
		}

		changed, err = ReconcileEnrollments(ctx, tx, id, roadmap.Len())
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, e := range changed {
		s.eb.Publish(ctx, domain.EventProgressUpdated{Enrollment: e})
	}

	return s.GetByID(ctx, id)
}

// ReconcileEnrollments rewrites the enrollments of a course whose days or progress no longer
// match a roadmap of totalDays days.
func ReconcileEnrollments(ctx context.Context, tx pgx.Tx, courseID domain.ID, totalDays int) ([]domain.Enrollment, error) {
	rows, err := tx.Query(ctx, `
SELECT user_id, status, completed_days, progress
FROM enrollments
WHERE course_id = $1 AND status <> 'pending'
FOR UPDATE;`, courseID)
	if err != nil {
		return nil, fmt.Errorf("lock enrollments: %w", err)
	}

	enrollments, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.Enrollment, error) {
		e := domain.Enrollment{CourseID: courseID}
		err := r.Scan(&e.UserID, &e.Status, &e.CompletedDays, &e.Progress)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan enrollments: %w", err)
	}

	var changed []domain.Enrollment
	for _, e := range enrollments {
		before := e
		before.CompletedDays = slices.Clone(e.CompletedDays)

		e.CompletedDays = progress.Prune(e.CompletedDays, totalDays)
		progress.Recalculate(&e, totalDays)
		if e.Progress == before.Progress && e.Status == before.Status && slices.Equal(e.CompletedDays, before.CompletedDays) {
			continue
		}

		if _, err := tx.Exec(ctx, `
UPDATE enrollments
SET completed_days = $3, progress = $4, status = $5, version = version + 1
WHERE user_id = $1 AND course_id = $2;`,
			e.UserID, e.CourseID, e.CompletedDays, e.Progress, e.Status,
		); err != nil {
			return nil, fmt.Errorf("update enrollment: %w", err)
		}
		changed = append(changed, e)
	}

	return changed, nil
}

// Deactivate hides a course from the catalog. Existing enrollments keep working.
func (s *Service) Deactivate(ctx context.Context, id domain.ID) error {
	tag, err := s.db.Exec(ctx, `UPDATE courses SET is_active = false, updated_at = now() WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("deactivate course: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("course not found: %s", id)
	}
	return nil
}

// IncrementStudents is called inside the approval transaction of an enrollment.
func IncrementStudents(ctx context.Context, tx pgx.Tx, id domain.ID) error {
	if _, err := tx.Exec(ctx, `UPDATE courses SET students = students + 1 WHERE id = $1;`, id); err != nil {
		return fmt.Errorf("increment course students: %w", err)
	}
	return nil
}

func normalizeRoadmap(r domain.Roadmap) (domain.Roadmap, error) {
	out := make(domain.Roadmap, 0, len(r))
	for i, d := range r {
		for j, q := range d.MCQs {
			if err := checkMCQ(q); err != nil {
				return nil, errors.InvalidArgument("day %d, question %d: %v", i+1, j+1, err)
			}
		}
		d.Day = i + 1
		out = append(out, d)
	}
	return out, nil
}

func checkMCQ(q domain.MCQ) error {
	if q.Question == "" {
		return fmt.Errorf("question text is empty")
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("at least two options are required")
	}

	correct := 0
	for _, o := range q.Options {
		if o.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return fmt.Errorf("exactly one option must be correct, got %d", correct)
	}
	return nil
}

func scanCourse(r pgx.CollectableRow) (domain.Course, error) {
	var c domain.Course
	err := r.Scan(&c.ID, &c.URL, &c.Title, &c.Description, &c.Image, &c.Instructor, &c.InstructorID,
		&c.Category, &c.Level, &c.Language, &c.Duration, &c.Students, &c.IsActive, &c.Roadmap,
		&c.CreatedAt, &c.UpdatedAt)
	return c, err
}
