package enrollment

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/lms/internal/course"
	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
	"github.com/victornm/lms/internal/event"
	"github.com/victornm/lms/internal/mail"
	"github.com/victornm/lms/internal/postgres"
	"github.com/victornm/lms/internal/progress"
	"github.com/victornm/lms/internal/storage"
	"github.com/victornm/lms/internal/telemetry"
)

type Courses interface {
	GetByID(ctx context.Context, id domain.ID) (*domain.Course, error)
}

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
	Courses  Courses
	Store    storage.ObjectStore
	Mailer   mail.Mailer
	Now      func() time.Time
}

type Service struct {
	eb       *event.Bus
	db       *pgxpool.Pool
	courses  Courses
	store    storage.ObjectStore
	mailer   mail.Mailer
	tracker  *progress.Tracker
	validate *validator.Validate
}

func NewService(c Config) *Service {
	return &Service{
		eb:       c.EventBus,
		db:       c.DB,
		courses:  c.Courses,
		store:    c.Store,
		mailer:   c.Mailer,
		tracker:  progress.NewTracker(c.Now),
		validate: validator.New(),
	}
}

type MarkDayRequest struct {
	UserID    domain.ID
	CourseID  domain.ID
	Day       int
	Completed bool
}

// MarkDay marks a course day complete or incomplete. The enrollment row is locked for the
// whole read-modify-write, so concurrent calls on the same enrollment are applied one after
// the other and none of them is lost.
func (s *Service) MarkDay(ctx context.Context, req MarkDayRequest) (*domain.Enrollment, error) {
	var e *domain.Enrollment
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var totalDays int
		var err error
		e, totalDays, err = lockEnrollment(ctx, tx, req.UserID, req.CourseID)
		if err != nil {
			return err
		}

		if !e.Status.Active() {
			return errors.New(errors.CodeFailedPrecondition,
				errors.WithMessagef("enrollment is %s, payment not verified yet", e.Status),
			)
		}

		if req.Completed {
			err = s.tracker.MarkDayComplete(e, req.Day, totalDays)
		} else {
			err = s.tracker.MarkDayIncomplete(e, req.Day, totalDays)
		}
		if err != nil {
			return trackerError(err)
		}

		if _, err := tx.Exec(ctx, `
UPDATE enrollments
SET status = $3, completed_days = $4, progress = $5, last_accessed_at = $6, version = version + 1
WHERE user_id = $1 AND course_id = $2;`,
			e.UserID, e.CourseID, e.Status, e.CompletedDays, e.Progress, e.LastAccessedAt,
		); err != nil {
			return fmt.Errorf("update enrollment: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	action := "complete"
	if !req.Completed {
		action = "incomplete"
	}
	telemetry.DayCompletions.WithLabelValues(action).Inc()

	s.eb.Publish(ctx, domain.EventProgressUpdated{
		Enrollment: *e,
	})

	return e, nil
}

func lockEnrollment(ctx context.Context, tx pgx.Tx, userID, courseID domain.ID) (*domain.Enrollment, int, error) {
	e := &domain.Enrollment{UserID: userID, CourseID: courseID}

	var totalDays int
	err := tx.QueryRow(ctx, `
SELECT e.status, e.completed_days, e.progress, e.enrolled_at, e.last_accessed_at, jsonb_array_length(c.roadmap)
FROM enrollments e
JOIN courses c ON c.id = e.course_id
WHERE e.user_id = $1 AND e.course_id = $2
FOR UPDATE OF e;`, userID, courseID,
	).Scan(&e.Status, &e.CompletedDays, &e.Progress, &e.EnrolledAt, &e.LastAccessedAt, &totalDays)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, 0, errors.NotFound("not enrolled in course %s", courseID)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("lock enrollment: %w", err)
	}

	return e, totalDays, nil
}

// trackerError maps completion rule violations to API errors, keeping the original as cause.
func trackerError(err error) error {
	var re *progress.DayOutOfRangeError
	if stderrors.As(err, &re) {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("%s", err), errors.WithCause(err))
	}

	var (
		oe *progress.OutOfOrderError
		se *progress.SequenceViolationError
	)
	if stderrors.As(err, &oe) || stderrors.As(err, &se) {
		return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("%s", err), errors.WithCause(err))
	}

	return err
}

// Enroll enrolls a user directly, without a payment request.
func (s *Service) Enroll(ctx context.Context, userID, courseID domain.ID) (*domain.Enrollment, error) {
	c, err := s.courses.GetByID(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("course %s is not open for enrollment", c.Title))
	}

	now := time.Now().UTC()
	e := &domain.Enrollment{
		UserID:         userID,
		CourseID:       courseID,
		Status:         domain.EnrollmentEnrolled,
		CompletedDays:  []int{},
		EnrolledAt:     now,
		LastAccessedAt: now,
	}

	err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO enrollments (user_id, course_id, status, completed_days, progress, enrolled_at, last_accessed_at)
VALUES ($1, $2, $3, $4, 0, $5, $6);`,
			e.UserID, e.CourseID, e.Status, e.CompletedDays, e.EnrolledAt, e.LastAccessedAt,
		); err != nil {
			if postgres.IsUniqueViolation(err) {
				return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("already enrolled in %s", c.Title))
			}
			return fmt.Errorf("insert enrollment: %w", err)
		}

		return course.IncrementStudents(ctx, tx, courseID)
	})
	if err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventProgressUpdated{
		Enrollment: *e,
	})

	return e, nil
}

type RequestEnrollmentRequest struct {
	User                domain.User `validate:"-"`
	CourseID            domain.ID   `validate:"-"`
	Mobile              string      `validate:"required,min=7,max=15,numeric"`
	UTRNumber           string      `validate:"required,alphanum,min=6,max=30"`
	Screenshot          io.Reader   `validate:"required"`
	ScreenshotName      string      `validate:"required"`
	ScreenshotMediaType string      `validate:"required,startswith=image/"`
}

// RequestEnrollment records a paid enrollment awaiting payment verification. The payment
// screenshot goes to the object store and the user gets a pending enrollment.
func (s *Service) RequestEnrollment(ctx context.Context, req RequestEnrollmentRequest) (*domain.EnrollmentRequest, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid enrollment request: %v", err),
			errors.WithCause(err),
		)
	}

	c, err := s.courses.GetByID(ctx, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("course %s is not open for enrollment", c.Title))
	}

	id, err := domain.NewID()
	if err != nil {
		return nil, err
	}

	object := ScreenshotObject(id, req.ScreenshotName)
	r := &domain.EnrollmentRequest{
		ID:         id,
		UserID:     req.User.ID,
		CourseID:   c.ID,
		CourseName: c.Title,
		Email:      req.User.Email,
		Mobile:     req.Mobile,
		UTRNumber:  strings.ToUpper(req.UTRNumber),
		Screenshot: object,
		Status:     domain.RequestPending,
		CreatedAt:  time.Now().UTC(),
	}

	err = s.withUpload(ctx, object, req.Screenshot, req.ScreenshotMediaType, func() error {
		return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			var status domain.EnrollmentStatus
			err := tx.QueryRow(ctx, `
INSERT INTO enrollments (user_id, course_id, status, enrolled_at, last_accessed_at)
VALUES ($1, $2, 'pending', $3, $3)
ON CONFLICT (user_id, course_id) DO UPDATE SET status = enrollments.status
RETURNING status;`, r.UserID, r.CourseID, r.CreatedAt).Scan(&status)
			if err != nil {
				return fmt.Errorf("upsert pending enrollment: %w", err)
			}
			if status.Active() {
				return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("already enrolled in %s", c.Title))
			}

			if _, err := tx.Exec(ctx, `
INSERT INTO enrollment_requests (id, user_id, course_id, course_name, email, mobile, utr_number, screenshot, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`,
				r.ID, r.UserID, r.CourseID, r.CourseName, r.Email, r.Mobile, r.UTRNumber, r.Screenshot, r.Status, r.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert enrollment request: %w", err)
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return r, nil
}

// withUpload stores the object and runs fn. The object is removed again when fn fails.
func (s *Service) withUpload(ctx context.Context, object string, r io.Reader, contentType string, fn func() error) error {
	if err := s.store.Put(ctx, object, r, contentType); err != nil {
		return fmt.Errorf("upload payment screenshot: %w", err)
	}

	if err := fn(); err != nil {
		if derr := s.store.Delete(context.WithoutCancel(ctx), object); derr != nil {
			slog.ErrorContext(ctx, "enrollment: delete orphaned payment screenshot failed", "object", object, "error", derr)
		}
		return err
	}
	return nil
}

// ScreenshotObject names the stored payment screenshot of a request.
func ScreenshotObject(requestID domain.ID, filename string) string {
	return "payments/" + requestID.String() + strings.ToLower(path.Ext(filename))
}

// ApproveRequest accepts a verified payment: the request is approved, the pending enrollment
// becomes enrolled and the course gains a student.
func (s *Service) ApproveRequest(ctx context.Context, requestID domain.ID) (*domain.EnrollmentRequest, error) {
	var (
		r    *domain.EnrollmentRequest
		name string
	)

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		r, name, err = lockPendingRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE enrollment_requests SET status = 'approved' WHERE id = $1;`, r.ID); err != nil {
			return fmt.Errorf("approve request: %w", err)
		}

		return activateEnrollment(ctx, tx, r.UserID, r.CourseID)
	})
	if err != nil {
		return nil, err
	}

	r.Status = domain.RequestApproved

	s.sendMail(ctx, mail.EnrollmentApproved(r.Email, name, r.CourseName, s.courseURL(ctx, r.CourseID)))
	s.eb.Publish(ctx, domain.EventEnrollmentApproved{
		Request: *r,
	})

	return r, nil
}

// RejectRequest declines a payment. The pending enrollment created with the request is
// removed; an active enrollment is left alone.
func (s *Service) RejectRequest(ctx context.Context, requestID domain.ID) (*domain.EnrollmentRequest, error) {
	var (
		r    *domain.EnrollmentRequest
		name string
	)

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		r, name, err = lockPendingRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE enrollment_requests SET status = 'rejected' WHERE id = $1;`, r.ID); err != nil {
			return fmt.Errorf("reject request: %w", err)
		}

		if _, err := tx.Exec(ctx, `
DELETE FROM enrollments
WHERE user_id = $1 AND course_id = $2 AND status = 'pending'
  AND NOT EXISTS (
    SELECT 1 FROM enrollment_requests
    WHERE user_id = $1 AND course_id = $2 AND status = 'pending' AND id <> $3
  );`, r.UserID, r.CourseID, r.ID); err != nil {
			return fmt.Errorf("delete pending enrollment: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	r.Status = domain.RequestRejected

	s.sendMail(ctx, mail.EnrollmentRejected(r.Email, name, r.CourseName, r.UTRNumber))
	s.eb.Publish(ctx, domain.EventEnrollmentRejected{
		Request: *r,
	})

	return r, nil
}

// activateEnrollment turns the pending enrollment of an approved request into an active one.
// An already active enrollment is left untouched and does not count as a new student.
func activateEnrollment(ctx context.Context, tx pgx.Tx, userID, courseID domain.ID) error {
	var status domain.EnrollmentStatus
	err := tx.QueryRow(ctx, `
SELECT status FROM enrollments WHERE user_id = $1 AND course_id = $2 FOR UPDATE;`, userID, courseID,
	).Scan(&status)

	switch {
	case stderrors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, `
INSERT INTO enrollments (user_id, course_id, status, enrolled_at, last_accessed_at)
VALUES ($1, $2, 'enrolled', now(), now());`, userID, courseID); err != nil {
			return fmt.Errorf("insert enrollment: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lock enrollment: %w", err)
	case status == domain.EnrollmentPending:
		if _, err := tx.Exec(ctx, `
UPDATE enrollments
SET status = 'enrolled', enrolled_at = now(), last_accessed_at = now(), version = version + 1
WHERE user_id = $1 AND course_id = $2;`, userID, courseID); err != nil {
			return fmt.Errorf("activate enrollment: %w", err)
		}
	default:
		return nil
	}

	return course.IncrementStudents(ctx, tx, courseID)
}

const selectRequests = `
SELECT r.id, r.user_id, r.course_id, r.course_name, r.email, r.mobile, r.utr_number, r.screenshot, r.status, r.created_at
FROM enrollment_requests r`

func lockPendingRequest(ctx context.Context, tx pgx.Tx, id domain.ID) (*domain.EnrollmentRequest, string, error) {
	rows, err := tx.Query(ctx, `
SELECT r.id, r.user_id, r.course_id, r.course_name, r.email, r.mobile, r.utr_number, r.screenshot, r.status, r.created_at, u.name
FROM enrollment_requests r
JOIN users u ON u.id = r.user_id
WHERE r.id = $1
FOR UPDATE OF r;`, id)
	if err != nil {
		return nil, "", fmt.Errorf("lock request: %w", err)
	}

	var name string
	r, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (domain.EnrollmentRequest, error) {
		var r domain.EnrollmentRequest
		err := row.Scan(&r.ID, &r.UserID, &r.CourseID, &r.CourseName, &r.Email, &r.Mobile, &r.UTRNumber,
			&r.Screenshot, &r.Status, &r.CreatedAt, &name)
		return r, err
	})
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, "", errors.NotFound("enrollment request not found: %s", id)
	}
	if err != nil {
		return nil, "", fmt.Errorf("scan request: %w", err)
	}

	if r.Status != domain.RequestPending {
		return nil, "", errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("request already %s", r.Status))
	}

	return &r, name, nil
}

// ListRequests returns enrollment requests, newest first. An empty status lists all of them.
func (s *Service) ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.EnrollmentRequest, error) {
	rows, err := s.db.Query(ctx, selectRequests+`
WHERE $1 = '' OR r.status = $1
ORDER BY r.created_at DESC;`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	reqs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.EnrollmentRequest, error) {
		var r domain.EnrollmentRequest
		err := row.Scan(&r.ID, &r.UserID, &r.CourseID, &r.CourseName, &r.Email, &r.Mobile, &r.UTRNumber,
			&r.Screenshot, &r.Status, &r.CreatedAt)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan requests: %w", err)
	}

	return reqs, nil
}

// MyCourse is an enrollment with the course details a student sees on their dashboard.
type MyCourse struct {
	domain.Enrollment
	CourseURL   string `json:"course_url"`
	CourseTitle string `json:"course_title"`
	Image       string `json:"image,omitempty"`
	Instructor  string `json:"instructor"`
	TotalDays   int    `json:"total_days"`
}

// ListMyCourses returns the enrollments of a user, most recently accessed first.
func (s *Service) ListMyCourses(ctx context.Context, userID domain.ID) ([]MyCourse, error) {
	rows, err := s.db.Query(ctx, `
SELECT e.user_id, e.course_id, e.status, e.completed_days, e.progress, e.enrolled_at, e.last_accessed_at,
       c.url, c.title, c.image, c.instructor, jsonb_array_length(c.roadmap)
FROM enrollments e
JOIN courses c ON c.id = e.course_id
WHERE e.user_id = $1
ORDER BY e.last_accessed_at DESC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("list my courses: %w", err)
	}

	courses, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (MyCourse, error) {
		var m MyCourse
		err := r.Scan(&m.UserID, &m.CourseID, &m.Status, &m.CompletedDays, &m.Progress, &m.EnrolledAt, &m.LastAccessedAt,
			&m.CourseURL, &m.CourseTitle, &m.Image, &m.Instructor, &m.TotalDays)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan my courses: %w", err)
	}

	return courses, nil
}

func (s *Service) Get(ctx context.Context, userID, courseID domain.ID) (*domain.Enrollment, error) {
	rows, err := s.db.Query(ctx, selectEnrollments+`
WHERE user_id = $1 AND course_id = $2;`, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}

	e, err := pgx.CollectExactlyOneRow(rows, scanEnrollment)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("not enrolled in course %s", courseID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan enrollment: %w", err)
	}

	return &e, nil
}

// ListActiveByUsers returns the non-pending enrollments of the given users, grouped by user.
func (s *Service) ListActiveByUsers(ctx context.Context, userIDs []domain.ID) (map[domain.ID][]domain.Enrollment, error) {
	rows, err := s.db.Query(ctx, selectEnrollments+`
WHERE user_id = ANY($1::uuid[]) AND status <> 'pending'
ORDER BY enrolled_at;`, domain.IDStrings(userIDs))
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}

	enrollments, err := pgx.CollectRows(rows, scanEnrollment)
	if err != nil {
		return nil, fmt.Errorf("scan enrollments: %w", err)
	}

	byUser := make(map[domain.ID][]domain.Enrollment, len(userIDs))
	for _, e := range enrollments {
		byUser[e.UserID] = append(byUser[e.UserID], e)
	}
	return byUser, nil
}

const selectEnrollments = `
SELECT user_id, course_id, status, completed_days, progress, enrolled_at, last_accessed_at
FROM enrollments`

func scanEnrollment(r pgx.CollectableRow) (domain.Enrollment, error) {
	var e domain.Enrollment
	err := r.Scan(&e.UserID, &e.CourseID, &e.Status, &e.CompletedDays, &e.Progress, &e.EnrolledAt, &e.LastAccessedAt)
	if err == nil {
		e.CompletedDays = progress.Normalize(e.CompletedDays)
	}
	return e, err
}

func (s *Service) sendMail(ctx context.Context, m mail.Message) {
	if err := s.mailer.Send(ctx, m); err != nil {
		slog.ErrorContext(ctx, "enrollment: send mail failed", "to", m.To, "subject", m.Subject, "error", err)
	}
}

func (s *Service) courseURL(ctx context.Context, id domain.ID) string {
	c, err := s.courses.GetByID(ctx, id)
	if err != nil {
		slog.WarnContext(ctx, "enrollment: get course for mail failed", "course", id, "error", err)
		return ""
	}
	return c.URL
}
