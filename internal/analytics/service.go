package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/score"
)

const trendMonths = 6

type Config struct {
	DB  *pgxpool.Pool
	Now func() time.Time
}

type Service struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		db:  c.DB,
		now: c.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

type Dashboard struct {
	Users              UserStats       `json:"users"`
	Courses            CourseStats     `json:"courses"`
	Enrollments        EnrollmentStats `json:"enrollments"`
	Completion         CompletionStats `json:"completion"`
	Quizzes            QuizStats       `json:"quizzes"`
	Registrations      []MonthlyCount  `json:"registrations"`
	MonthlyEnrollments []MonthlyCount  `json:"monthly_enrollments"`
	KPIs               KPIs            `json:"kpis"`
	GeneratedAt        time.Time       `json:"generated_at"`
}

type UserStats struct {
	Total       int `json:"total"`
	Students    int `json:"students"`
	Instructors int `json:"instructors"`
	Admins      int `json:"admins"`
	Active      int `json:"active"`
	Inactive    int `json:"inactive"`
}

type CourseStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

type EnrollmentStats struct {
	Total              int `json:"total"`
	PendingRequests    int `json:"pending_requests"`
	PendingInstructors int `json:"pending_instructor_applications"`
	LastDay            int `json:"last_day"`
	LastWeek           int `json:"last_week"`
	LastMonth          int `json:"last_month"`
}

type CompletionStats struct {
	Completed       int             `json:"completed"`
	AverageProgress decimal.Decimal `json:"average_progress"`
	CompletionRate  decimal.Decimal `json:"completion_rate"`
}

type QuizStats struct {
	Submissions     int             `json:"submissions"`
	Completed       int             `json:"completed"`
	Students        int             `json:"students"`
	AverageScore    decimal.Decimal `json:"average_score"`
	TotalQuizPoints decimal.Decimal `json:"total_quiz_points"`
}

type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// Dashboard gathers the admin statistics. Quiz points use the same aggregation as the
// leaderboard.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now().UTC()
	d := &Dashboard{GeneratedAt: now}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return s.userStats(egCtx, &d.Users) })
	eg.Go(func() error { return s.courseStats(egCtx, &d.Courses) })
	eg.Go(func() error { return s.enrollmentStats(egCtx, now, &d.Enrollments, &d.Completion) })
	eg.Go(func() error { return s.quizStats(egCtx, &d.Quizzes) })
	eg.Go(func() (err error) {
		d.Registrations, err = s.monthly(egCtx, monthlyRegistrations, now)
		return err
	})
	eg.Go(func() (err error) {
		d.MonthlyEnrollments, err = s.monthly(egCtx, monthlyEnrollments, now)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	in := KPIInput{
		TotalUsers:       d.Users.Total,
		ActiveUsers:      d.Users.Active,
		TotalStudents:    d.Users.Students,
		TotalEnrollments: d.Enrollments.Total,
		CompletionRate:   d.Completion.CompletionRate,
	}
	if n := len(d.Registrations); n >= 2 {
		in.RegistrationsThisMonth = d.Registrations[n-1].Count
		in.RegistrationsLastMonth = d.Registrations[n-2].Count
	}
	d.KPIs = ComputeKPIs(in)

	return d, nil
}

func (s *Service) userStats(ctx context.Context, st *UserStats) error {
	err := s.db.QueryRow(ctx, `
SELECT count(*),
       count(*) FILTER (WHERE role = 'student'),
       count(*) FILTER (WHERE role = 'instructor'),
       count(*) FILTER (WHERE role = 'admin'),
       count(*) FILTER (WHERE status = 'active'),
       count(*) FILTER (WHERE status = 'inactive')
FROM users;`).Scan(&st.Total, &st.Students, &st.Instructors, &st.Admins, &st.Active, &st.Inactive)
	if err != nil {
		return fmt.Errorf("user stats: %w", err)
	}
	return nil
}

func (s *Service) courseStats(ctx context.Context, st *CourseStats) error {
	err := s.db.QueryRow(ctx, `SELECT count(*), count(*) FILTER (WHERE is_active) FROM courses;`).
		Scan(&st.Total, &st.Active)
	if err != nil {
		return fmt.Errorf("course stats: %w", err)
	}
	return nil
}

func (s *Service) enrollmentStats(ctx context.Context, now time.Time, st *EnrollmentStats, cs *CompletionStats) error {
	var avg decimal.NullDecimal
	err := s.db.QueryRow(ctx, `
SELECT count(*),
       (SELECT count(*) FROM enrollment_requests WHERE status = 'pending'),
       (SELECT count(*) FROM users WHERE role = 'instructor' AND status = 'pending'),
       count(*) FILTER (WHERE enrolled_at >= $1::timestamptz - interval '1 day'),
       count(*) FILTER (WHERE enrolled_at >= $1::timestamptz - interval '7 days'),
       count(*) FILTER (WHERE enrolled_at >= $1::timestamptz - interval '30 days'),
       count(*) FILTER (WHERE status = 'completed'),
       avg(progress)
FROM enrollments
WHERE status <> 'pending';`, now).Scan(
		&st.Total, &st.PendingRequests, &st.PendingInstructors,
		&st.LastDay, &st.LastWeek, &st.LastMonth,
		&cs.Completed, &avg,
	)
	if err != nil {
		return fmt.Errorf("enrollment stats: %w", err)
	}

	cs.AverageProgress = decimal.Zero
	if avg.Valid {
		cs.AverageProgress = avg.Decimal.Round(2)
	}
	cs.CompletionRate = percent(cs.Completed, st.Total)
	return nil
}

func (s *Service) quizStats(ctx context.Context, st *QuizStats) error {
	var avg decimal.NullDecimal
	err := s.db.QueryRow(ctx, `
SELECT count(*),
       count(*) FILTER (WHERE is_completed),
       count(DISTINCT user_id) FILTER (WHERE is_completed),
       avg(score) FILTER (WHERE is_completed)
FROM quiz_submissions;`).Scan(&st.Submissions, &st.Completed, &st.Students, &avg)
	if err != nil {
		return fmt.Errorf("quiz stats: %w", err)
	}

	st.AverageScore = decimal.Zero
	if avg.Valid {
		st.AverageScore = avg.Decimal.Round(2)
	}

	rows, err := s.db.Query(ctx, `
SELECT user_id, course_url, day_number, score, is_completed
FROM quiz_submissions
WHERE is_completed;`)
	if err != nil {
		return fmt.Errorf("list quiz submissions: %w", err)
	}

	subs, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.QuizSubmission, error) {
		var q domain.QuizSubmission
		err := r.Scan(&q.UserID, &q.CourseURL, &q.DayNumber, &q.Score, &q.IsCompleted)
		return q, err
	})
	if err != nil {
		return fmt.Errorf("scan quiz submissions: %w", err)
	}

	st.TotalQuizPoints = TotalQuizPoints(subs)
	return nil
}

// TotalQuizPoints sums the quiz score of every student, each rounded to one decimal the
// way the leaderboard shows it.
func TotalQuizPoints(subs []domain.QuizSubmission) decimal.Decimal {
	byUser := make(map[domain.ID][]domain.QuizSubmission)
	for _, q := range subs {
		byUser[q.UserID] = append(byUser[q.UserID], q)
	}

	total := decimal.Zero
	for _, us := range byUser {
		total = total.Add(score.Aggregate(us).Round(1))
	}
	return total
}

const (
	monthlyRegistrations = `
SELECT to_char(m, 'YYYY-MM'), count(u.id)
FROM generate_series(date_trunc('month', $1::timestamptz) - ($2 - 1) * interval '1 month',
                     date_trunc('month', $1::timestamptz), interval '1 month') AS m
LEFT JOIN users u ON u.created_at >= m AND u.created_at < m + interval '1 month'
GROUP BY m
ORDER BY m;`

	monthlyEnrollments = `
SELECT to_char(m, 'YYYY-MM'), count(e.user_id)
FROM generate_series(date_trunc('month', $1::timestamptz) - ($2 - 1) * interval '1 month',
                     date_trunc('month', $1::timestamptz), interval '1 month') AS m
LEFT JOIN enrollments e ON e.status <> 'pending' AND e.enrolled_at >= m AND e.enrolled_at < m + interval '1 month'
GROUP BY m
ORDER BY m;`
)

func (s *Service) monthly(ctx context.Context, query string, now time.Time) ([]MonthlyCount, error) {
	rows, err := s.db.Query(ctx, query, now, trendMonths)
	if err != nil {
		return nil, fmt.Errorf("monthly counts: %w", err)
	}

	counts, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (MonthlyCount, error) {
		var c MonthlyCount
		err := r.Scan(&c.Month, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan monthly counts: %w", err)
	}

	return counts, nil
}
