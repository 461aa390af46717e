package main

import (
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"tubefeed/internal/config"
	"tubefeed/internal/handlers"
	"tubefeed/internal/ingest"
	"tubefeed/internal/media"
	"tubefeed/internal/middleware"
	"tubefeed/internal/storage"
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

	files := storage.NewLocal(cfg.AudioDir, cfg.ThumbnailDir, cfg.UploadDir)
	normalizer := media.NewNormalizer(cfg.ConvertTimeout)
	svc := ingest.New(st, client, normalizer, files, cfg.JobMaxRetry, cfg.InlineConvertMaxBytes)

	h := handlers.New(svc, st, cfg)
	rl := middleware.NewRateLimiterMiddleware(rate.Limit(5), 10)

	log.Printf("Server starting on :%s (commit: %s)", cfg.Port, CommitSHA)
	if err := http.ListenAndServe(":"+cfg.Port, h.Router(rl)); err != nil {
		log.Fatal(err)
	}
}
