package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"tubefeed/internal/config"
	"tubefeed/internal/scheduler"
	"tubefeed/internal/store"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	st, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("could not connect to database: %v", err)
	}
	defer st.Close()

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sched := scheduler.New(
		st,
		client,
		scheduler.RealClock(),
		cfg.RefreshCheckInterval,
		cfg.RefreshInterval,
		cfg.JobMaxRetry,
	)

	log.Printf("Scheduler starting, checking every %v (commit: %s)", cfg.RefreshCheckInterval, CommitSHA)
	if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("scheduler stopped: %v", err)
	}
}
