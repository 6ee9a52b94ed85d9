package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/lms/internal/course"
	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/errors"
	"github.com/victornm/lms/internal/postgres"
	"github.com/victornm/lms/internal/telemetry"
)

const (
	defaultInterval  = time.Hour
	defaultRetention = 90 * 24 * time.Hour
)

type Job string

const (
	JobReconcileProgress Job = "reconcile-progress"
	JobCleanupOrphans    Job = "cleanup-orphans"
	JobEnsureIndexes     Job = "ensure-indexes"
)

func ParseJob(s string) (Job, error) {
	switch j := Job(s); j {
	case JobReconcileProgress, JobCleanupOrphans, JobEnsureIndexes:
		return j, nil
	default:
		return "", errors.InvalidArgument("unknown maintenance job %q", s)
	}
}

// Leaderboard is invalidated after a job changed data it ranks on.
type Leaderboard interface {
	Refresh(ctx context.Context) error
}

type Config struct {
	DB          *pgxpool.Pool
	Leaderboard Leaderboard
	// Interval between scheduled runs of the reconcile and cleanup jobs.
	Interval time.Duration
	// Retention of read notifications.
	Retention time.Duration
	Now       func() time.Time
}

type jobFunc func(ctx context.Context) (int64, error)

// Service runs idempotent repair jobs, on a schedule and on demand.
type Service struct {
	db          *pgxpool.Pool
	leaderboard Leaderboard
	interval    time.Duration
	retention   time.Duration
	now         func() time.Time

	jobs      map[Job]jobFunc
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
}

func NewService(c Config) *Service {
	s := &Service{
		db:          c.DB,
		leaderboard: c.Leaderboard,
		interval:    c.Interval,
		retention:   c.Retention,
		now:         c.Now,
		scheduler:   gocron.NewScheduler(time.UTC),
	}

	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.retention <= 0 {
		s.retention = defaultRetention
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.jobs = map[Job]jobFunc{
		JobReconcileProgress: s.ReconcileProgress,
		JobCleanupOrphans:    s.CleanupOrphans,
		JobEnsureIndexes:     s.EnsureIndexes,
	}

	return s
}

type Result struct {
	Job      Job           `json:"job"`
	Affected int64         `json:"affected"`
	Duration time.Duration `json:"duration"`
}

// Run executes one job now.
func (s *Service) Run(ctx context.Context, job Job) (*Result, error) {
	fn, ok := s.jobs[job]
	if !ok {
		return nil, errors.InvalidArgument("unknown maintenance job %q", job)
	}

	start := time.Now()
	n, err := fn(ctx)
	if err != nil {
		telemetry.MaintenanceRuns.WithLabelValues(string(job), "error").Inc()
		return nil, fmt.Errorf("run %s: %w", job, err)
	}
	telemetry.MaintenanceRuns.WithLabelValues(string(job), "ok").Inc()

	r := &Result{Job: job, Affected: n, Duration: time.Since(start)}
	slog.InfoContext(ctx, "maintenance: job finished",
		"job", job,
		"affected", n,
		"duration", r.Duration,
	)

	return r, nil
}

// Start schedules the reconcile and cleanup jobs, running each once right away. A run is
// skipped while the previous run of the same job is still going.
func (s *Service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.scheduler.SingletonModeAll()
	for _, job := range []Job{JobReconcileProgress, JobCleanupOrphans} {
		if _, err := s.scheduler.Every(s.interval).Do(s.scheduled, ctx, job); err != nil {
			s.cancel()
			return fmt.Errorf("schedule %s: %w", job, err)
		}
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Service) scheduled(ctx context.Context, job Job) {
	if _, err := s.Run(ctx, job); err != nil {
		slog.ErrorContext(ctx, "maintenance: scheduled job failed", "job", job, "error", err)
	}
}

// Stop cancels the running job and stops the scheduler.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.scheduler.Stop()
}

type courseDays struct {
	id   domain.ID
	days int
}

// reconcileCourses runs reconcile per course and counts the enrollments of committed courses only.
func reconcileCourses(courses []courseDays, reconcile func(courseDays) (int, error)) (int64, error) {
	var changed int64
	for _, c := range courses {
		n, err := reconcile(c)
		if err != nil {
			return changed, fmt.Errorf("reconcile course %s: %w", c.id, err)
		}
		changed += int64(n)
	}
	return changed, nil
}

// ReconcileProgress brings the completed days, progress and status of every enrollment in line
// with the current roadmap length of its course.
func (s *Service) ReconcileProgress(ctx context.Context) (int64, error) {
	rows, err := s.db.Query(ctx, `SELECT id, jsonb_array_length(roadmap) FROM courses ORDER BY id;`)
	if err != nil {
		return 0, fmt.Errorf("list courses: %w", err)
	}

	courses, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (courseDays, error) {
		var c courseDays
		err := r.Scan(&c.id, &c.days)
		return c, err
	})
	if err != nil {
		return 0, fmt.Errorf("scan courses: %w", err)
	}

	changed, err := reconcileCourses(courses, func(c courseDays) (n int, err error) {
		err = pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
			es, err := course.ReconcileEnrollments(ctx, tx, c.id, c.days)
			n = len(es)
			return err
		})
		return n, err
	})
	if err != nil {
		return changed, err
	}

	if changed > 0 {
		s.refreshLeaderboard(ctx)
	}
	return changed, nil
}

// CleanupOrphans deletes rows nothing refers to any more: quiz submissions of courses that no
// longer exist, pending enrollments without a pending request, and old read notifications.
func (s *Service) CleanupOrphans(ctx context.Context) (int64, error) {
	var submissions, total int64
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
DELETE FROM quiz_submissions q
WHERE NOT EXISTS (SELECT 1 FROM courses c WHERE c.url = q.course_url);`)
		if err != nil {
			return fmt.Errorf("delete orphan submissions: %w", err)
		}
		submissions = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `
DELETE FROM enrollments e
WHERE e.status = 'pending'
  AND NOT EXISTS (
    SELECT 1 FROM enrollment_requests r
    WHERE r.user_id = e.user_id AND r.course_id = e.course_id AND r.status = 'pending'
  );`)
		if err != nil {
			return fmt.Errorf("delete orphan enrollments: %w", err)
		}
		total = submissions + tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM notifications WHERE read AND created_at < $1;`,
			s.now().Add(-s.retention))
		if err != nil {
			return fmt.Errorf("delete read notifications: %w", err)
		}
		total += tag.RowsAffected()

		return nil
	})
	if err != nil {
		return 0, err
	}

	if submissions > 0 {
		s.refreshLeaderboard(ctx)
	}
	return total, nil
}

var indexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS quiz_submissions_attempt_key
		ON quiz_submissions (user_id, course_url, day_number, attempt_number);`,
	`CREATE INDEX IF NOT EXISTS quiz_submissions_user_idx ON quiz_submissions (user_id, submitted_at DESC);`,
	`CREATE INDEX IF NOT EXISTS enrollments_course_idx ON enrollments (course_id);`,
	`CREATE INDEX IF NOT EXISTS enrollment_requests_status_idx ON enrollment_requests (status, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS courses_instructor_idx ON courses (instructor_id);`,
	`CREATE INDEX IF NOT EXISTS discussions_course_idx ON discussions (course_id, created_at DESC);`,
	`CREATE INDEX IF NOT EXISTS messages_receiver_idx ON messages (receiver_id, read);`,
	`CREATE INDEX IF NOT EXISTS messages_sender_idx ON messages (sender_id, created_at DESC);`,
}

// EnsureIndexes creates the indexes the services rely on. Duplicate attempt numbers written
// before the unique attempt index existed are renumbered in submission order first.
func (s *Service) EnsureIndexes(ctx context.Context) (int64, error) {
	for _, stmt := range indexes {
		_, err := s.db.Exec(ctx, stmt)
		if postgres.IsUniqueViolation(err) {
			if err = s.renumberAttempts(ctx); err == nil {
				_, err = s.db.Exec(ctx, stmt)
			}
		}
		if err != nil {
			return 0, fmt.Errorf("create index: %w", err)
		}
	}
	return int64(len(indexes)), nil
}

func (s *Service) renumberAttempts(ctx context.Context) error {
	tag, err := s.db.Exec(ctx, `
WITH ranked AS (
  SELECT id, row_number() OVER (PARTITION BY user_id, course_url, day_number ORDER BY submitted_at, id) AS n
  FROM quiz_submissions
)
UPDATE quiz_submissions q
SET attempt_number = r.n
FROM ranked r
WHERE q.id = r.id AND q.attempt_number <> r.n;`)
	if err != nil {
		return fmt.Errorf("renumber attempts: %w", err)
	}

	slog.WarnContext(ctx, "maintenance: renumbered duplicate quiz attempts", "rows", tag.RowsAffected())
	return nil
}

func (s *Service) refreshLeaderboard(ctx context.Context) {
	if s.leaderboard == nil {
		return
	}
	if err := s.leaderboard.Refresh(ctx); err != nil {
		slog.WarnContext(ctx, "maintenance: refresh leaderboard failed", "error", err)
	}
}
