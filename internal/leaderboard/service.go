package leaderboard

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/lms/internal/domain"
	"github.com/victornm/lms/internal/event"
	"github.com/victornm/lms/internal/telemetry"
)

const (
	publishInterval = 200 * time.Millisecond
	defaultCacheTTL = 5 * time.Minute
)

type Students interface {
	ListStudents(ctx context.Context) ([]domain.Student, error)
}

type Enrollments interface {
	ListActiveByUsers(ctx context.Context, userIDs []domain.ID) (map[domain.ID][]domain.Enrollment, error)
}

type Submissions interface {
	ListCompleted(ctx context.Context, userIDs []domain.ID) (map[domain.ID][]domain.QuizSubmission, error)
}

type Config struct {
	EventBus    *event.Bus
	Redis       redis.UniversalClient
	Prefix      string
	CacheTTL    time.Duration
	Students    Students
	Enrollments Enrollments
	Submissions Submissions
	Now         func() time.Time
}

type Service struct {
	eb          *event.Bus
	redis       redis.UniversalClient
	prefix      string
	ttl         time.Duration
	students    Students
	enrollments Enrollments
	submissions Submissions
	now         func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		eb:          c.EventBus,
		redis:       c.Redis,
		prefix:      c.Prefix,
		ttl:         c.CacheTTL,
		students:    c.Students,
		enrollments: c.Enrollments,
		submissions: c.Submissions,
		now:         c.Now,
	}

	if s.ttl <= 0 {
		s.ttl = defaultCacheTTL
	}
	if s.now == nil {
		s.now = time.Now
	}

	for _, name := range []string{
		domain.EventNameProgressUpdated,
		domain.EventNameQuizSubmitted,
		domain.EventNameEnrollmentApproved,
	} {
		s.eb.Subscribe(name, func(ctx context.Context, e event.Event) error {
			return s.Refresh(ctx)
		})
	}

	return s
}

// GetLeaderboard returns the ranking of all students. The result is cached until a progress
// or quiz change invalidates it, or the cache TTL runs out.
//
// Invalidation bumps a generation counter instead of deleting the cached value, so a
// ranking computed from data read before the change can never be stored as current.
func (s *Service) GetLeaderboard(ctx context.Context) (*domain.Leaderboard, error) {
	gen, err := s.generation(ctx)
	if err != nil {
		return nil, err
	}

	l, err := s.cached(ctx, gen)
	if err != nil {
		return nil, err
	}
	if l != nil {
		telemetry.LeaderboardBuilds.WithLabelValues("hit").Inc()
		return l, nil
	}

	telemetry.LeaderboardBuilds.WithLabelValues("miss").Inc()
	l, err = s.build(ctx)
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal leaderboard: %w", err)
	}

	if err := s.redis.Set(ctx, s.getLeaderboardKey(gen), b, s.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "leaderboard: cache leaderboard failed", "error", err)
	}

	return l, nil
}

// Refresh invalidates the cached leaderboard and schedules a leaderboard.updated event.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.redis.Incr(ctx, s.getGenerationKey()).Err(); err != nil {
		return fmt.Errorf("invalidate leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx)
}

func (s *Service) build(ctx context.Context) (*domain.Leaderboard, error) {
	students, err := s.students.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	ids := make([]domain.ID, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}

	var (
		enrollments map[domain.ID][]domain.Enrollment
		submissions map[domain.ID][]domain.QuizSubmission
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		enrollments, err = s.enrollments.ListActiveByUsers(egCtx, ids)
		if err != nil {
			return fmt.Errorf("list enrollments: %w", err)
		}
		return nil
	})
	eg.Go(func() (err error) {
		submissions, err = s.submissions.ListCompleted(egCtx, ids)
		if err != nil {
			return fmt.Errorf("list quiz submissions: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &domain.Leaderboard{
		Entries:     Rank(students, enrollments, submissions),
		GeneratedAt: s.now().UTC(),
	}, nil
}

func (s *Service) generation(ctx context.Context) (int64, error) {
	gen, err := s.redis.Get(ctx, s.getGenerationKey()).Int64()
	if stderrors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get leaderboard generation: %w", err)
	}
	return gen, nil
}

func (s *Service) cached(ctx context.Context, gen int64) (*domain.Leaderboard, error) {
	b, err := s.redis.Get(ctx, s.getLeaderboardKey(gen)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached leaderboard: %w", err)
	}

	var l domain.Leaderboard
	if err := json.Unmarshal(b, &l); err != nil {
		// A value written by an older release; rebuild it.
		slog.WarnContext(ctx, "leaderboard: decode cached leaderboard failed", "error", err)
		return nil, nil
	}
	return &l, nil
}

// schedulePublishLeaderboard publishes at most one leaderboard.updated per publish interval.
// Progress changes arrive in bursts; subscribers only need the latest ranking.
func (s *Service) schedulePublishLeaderboard(ctx context.Context) error {
	ok, err := s.redis.SetNX(ctx, s.getPublishKey(), s.now().UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx)
}

func (s *Service) publishLeaderboard(ctx context.Context) error {
	l, err := s.GetLeaderboard(ctx)
	if err != nil {
		return fmt.Errorf("get leaderboard failed: %w", err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) getGenerationKey() string {
	return fmt.Sprintf("%s:leaderboard:gen", s.prefix)
}

func (s *Service) getLeaderboardKey(gen int64) string {
	return fmt.Sprintf("%s:leaderboard:%d", s.prefix, gen)
}

func (s *Service) getPublishKey() string {
	return fmt.Sprintf("%s:leaderboard:publish", s.prefix)
}
