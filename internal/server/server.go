package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/lms/internal/analytics"
	"github.com/victornm/lms/internal/api"
	"github.com/victornm/lms/internal/course"
	"github.com/victornm/lms/internal/discussion"
	"github.com/victornm/lms/internal/enrollment"
	"github.com/victornm/lms/internal/event"
	"github.com/victornm/lms/internal/leaderboard"
	"github.com/victornm/lms/internal/mail"
	"github.com/victornm/lms/internal/maintenance"
	"github.com/victornm/lms/internal/message"
	"github.com/victornm/lms/internal/notification"
	"github.com/victornm/lms/internal/postgres"
	"github.com/victornm/lms/internal/score"
	"github.com/victornm/lms/internal/storage"
	"github.com/victornm/lms/internal/telemetry"
	"github.com/victornm/lms/internal/user"
)

const maxMultipartMemory = 8 << 20

type Config struct {
	HTTP struct {
		Port           int32
		AllowedOrigins []string
	}

	GRPC struct {
		Port int32
	}

	Redis struct {
		Leaderboard struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Addr     string
		User     string
		Pass     string
		Name     string
		MaxConns int32
	}

	Auth struct {
		Secret string
		TTL    time.Duration
	}

	Storage struct {
		Bucket          string
		CredentialsFile string
		SignedURLTTL    time.Duration
	}

	Mail struct {
		SendgridKey string
		FromName    string
		FromEmail   string
	}

	EventBus struct {
		PoolSize int
		Timeout  time.Duration
	}

	Leaderboard struct {
		CacheTTL time.Duration
	}

	Maintenance struct {
		Interval  time.Duration
		Retention time.Duration
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}

		postgres *pgxpool.Pool
		store    storage.ObjectStore
		mailer   mail.Mailer
	}

	service struct {
		user         *user.Service
		course       *course.Service
		score        *score.Service
		enrollment   *enrollment.Service
		leaderboard  *leaderboard.Service
		notification *notification.Service
		discussion   *discussion.Service
		message      *message.Service
		analytics    *analytics.Service
		maintenance  *maintenance.Service
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus(
		event.WithPoolSize(c.EventBus.PoolSize),
		event.WithTimeout(c.EventBus.Timeout),
	)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	if err := s.initStorage(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	s.initMail()
	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.leaderboard, err = connect("leaderboard", s.c.Redis.Leaderboard.Addrs, s.c.Redis.Leaderboard.Pass)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() (err error) {
	ctx := context.Background()

	s.infra.postgres, err = postgres.Connect(ctx, postgres.Config{
		Addr:     s.c.Postgres.Addr,
		User:     s.c.Postgres.User,
		Pass:     s.c.Postgres.Pass,
		Name:     s.c.Postgres.Name,
		MaxConns: s.c.Postgres.MaxConns,
	})
	if err != nil {
		return err
	}

	return postgres.Migrate(ctx, s.infra.postgres)
}

func (s *Server) initStorage() error {
	if s.c.Storage.Bucket == "" {
		slog.Warn("server: no storage bucket configured, uploads are kept in memory")
		s.infra.store = storage.NewMemory()
		return nil
	}

	gcs, err := storage.NewGCS(context.Background(), storage.GCSConfig{
		Bucket:          s.c.Storage.Bucket,
		CredentialsFile: s.c.Storage.CredentialsFile,
	})
	if err != nil {
		return err
	}

	s.infra.store = gcs
	return nil
}

func (s *Server) initMail() {
	if s.c.Mail.SendgridKey == "" {
		slog.Warn("server: no sendgrid key configured, emails are only logged")
		s.infra.mailer = mail.Log{}
		return
	}

	s.infra.mailer = mail.NewSendGrid(mail.SendGridConfig{
		Key:       s.c.Mail.SendgridKey,
		FromName:  s.c.Mail.FromName,
		FromEmail: s.c.Mail.FromEmail,
	})
}

func (s *Server) initService() error {
	if s.c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is not set")
	}

	s.service.user = user.NewService(user.Config{
		DB:     s.infra.postgres,
		Tokens: user.NewTokens(s.c.Auth.Secret, s.c.Auth.TTL, nil),
	})

	s.service.course = course.NewService(course.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres,
	})

	s.service.score = score.NewService(score.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres,
		Courses:  s.service.course,
	})

	s.service.enrollment = enrollment.NewService(enrollment.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres,
		Courses:  s.service.course,
		Store:    s.infra.store,
		Mailer:   s.infra.mailer,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus:    s.eb,
		Redis:       s.infra.redis.leaderboard,
		Prefix:      s.c.Redis.Leaderboard.Prefix,
		CacheTTL:    s.c.Leaderboard.CacheTTL,
		Students:    s.service.user,
		Enrollments: s.service.enrollment,
		Submissions: s.service.score,
	})

	s.service.notification = notification.NewService(notification.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres,
	})

	s.service.discussion = discussion.NewService(discussion.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres,
	})

	s.service.message = message.NewService(message.Config{
		EventBus: s.eb,
		DB:       s.infra.postgres,
	})

	s.service.analytics = analytics.NewService(analytics.Config{
		DB: s.infra.postgres,
	})

	s.service.maintenance = maintenance.NewService(maintenance.Config{
		DB:          s.infra.postgres,
		Leaderboard: s.service.leaderboard,
		Interval:    s.c.Maintenance.Interval,
		Retention:   s.c.Maintenance.Retention,
	})

	if _, err := s.service.maintenance.Run(context.Background(), maintenance.JobEnsureIndexes); err != nil {
		return err
	}

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.MaxMultipartMemory = maxMultipartMemory
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.GinMiddleware(), s.cors())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	api.New(api.Config{
		Router:        e,
		EventBus:      s.eb,
		Users:         s.service.user,
		Courses:       s.service.course,
		Enrollments:   s.service.enrollment,
		Scores:        s.service.score,
		Leaderboard:   s.service.leaderboard,
		Notifications: s.service.notification,
		Discussions:   s.service.discussion,
		Messages:      s.service.message,
		Analytics:     s.service.analytics,
		Maintenance:   s.service.maintenance,
		Files:         s.infra.store,
		SignedURLTTL:  s.c.Storage.SignedURLTTL,
		Redis:         s.infra.redis.pubsub,
		PubsubPrefix:  s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) cors() gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if len(s.c.HTTP.AllowedOrigins) == 0 {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = s.c.HTTP.AllowedOrigins
	}

	return cors.New(c)
}

func (s *Server) Start() {
	ctx := context.TODO()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	if err := s.service.maintenance.Start(ctx); err != nil {
		slog.ErrorContext(ctx, "server: start maintenance failed", "error", err)
		panic(err)
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.service.maintenance.Stop()
	s.eb.Stop()

	if gcs, ok := s.infra.store.(*storage.GCS); ok {
		if err := gcs.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close storage failed", "error", err)
		}
	}
	_ = s.infra.redis.leaderboard.Close()
	_ = s.infra.redis.pubsub.Close()
	s.infra.postgres.Close()

	slog.InfoContext(ctx, "server: shutdown completed")
}
