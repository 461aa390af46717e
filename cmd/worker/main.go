package main

import (
	"log"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"tubefeed/internal/config"
	"tubefeed/internal/media"
	"tubefeed/internal/storage"
	"tubefeed/internal/store"
	"tubefeed/internal/worker"
	"tubefeed/pkg/tasks"
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

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"default": 1,
			},
			// Exponential backoff for retryable failures: 5min, 10min,
			// 20min, ... capped at 24 hours.
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				delay := 5 * time.Minute
				maxDelay := 24 * time.Hour
				for i := 0; i < n; i++ {
					delay *= 2
					if delay > maxDelay {
						delay = maxDelay
						break
					}
				}
				log.Printf("Task %s failed %d times, retrying in %v", task.Type(), n+1, delay)
				return delay
			},
		},
	)

	files := storage.NewLocal(cfg.AudioDir, cfg.ThumbnailDir, cfg.UploadDir)
	taskHandler := worker.NewTaskHandler(
		st,
		client,
		media.NewResolver(cfg.ResolveTimeout),
		media.NewFetcher(cfg.FetchTimeout),
		media.NewNormalizer(cfg.ConvertTimeout),
		files,
		filepath.Join(cfg.DataDir, "tmp"),
		cfg.JobMaxRetry,
		cfg.MaxNewEpisodesPerRefresh,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeIngestItem, taskHandler.HandleIngestItemTask)
	mux.HandleFunc(tasks.TypeIngestCollection, taskHandler.HandleIngestCollectionTask)
	mux.HandleFunc(tasks.TypeConvertUpload, taskHandler.HandleConvertUploadTask)
	mux.HandleFunc(tasks.TypeRefreshCollection, taskHandler.HandleRefreshCollectionTask)

	log.Printf("Worker starting (commit: %s)", CommitSHA)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
