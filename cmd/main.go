package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/victornm/lms/internal/config"
	"github.com/victornm/lms/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Load .env failed: %v", err)
	}

	c, err := loadConfig()
	if err != nil {
		log.Fatalf("Load config failed: %v", err)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

	s, err := server.Init(c)
	if err != nil {
		log.Fatalf("Init server failed: %v", err)
	}

	go s.Start()

	<-shutdown
	s.Shutdown()
}

// loadConfig reads CONFIG_PATH when set. Without it the configuration comes from the
// environment alone.
func loadConfig() (server.Config, error) {
	c := defaultConfig()

	if err := config.Load(os.Getenv("CONFIG_PATH"), &c); err != nil {
		return c, err
	}

	return c, nil
}

func defaultConfig() server.Config {
	var c server.Config

	c.HTTP.Port = 8080
	c.GRPC.Port = 8081

	c.Redis.Leaderboard.Addrs = []string{"localhost:6379"}
	c.Redis.Leaderboard.Prefix = "lms"
	c.Redis.Pubsub.Addrs = []string{"localhost:6379"}
	c.Redis.Pubsub.Prefix = "lms:pubsub"

	c.Postgres.Addr = "localhost:5432"
	c.Postgres.User = "postgres"
	c.Postgres.Name = "lms"
	c.Postgres.MaxConns = 20

	c.Auth.TTL = 7 * 24 * time.Hour
	c.Storage.SignedURLTTL = 15 * time.Minute
	c.Mail.FromName = "LMS"

	c.EventBus.PoolSize = 1000
	c.EventBus.Timeout = 30 * time.Second

	c.Leaderboard.CacheTTL = 5 * time.Minute
	c.Maintenance.Interval = time.Hour
	c.Maintenance.Retention = 90 * 24 * time.Hour

	return c
}
