package main

import (
	"database/sql"

	"github.com/hibiken/asynq"

	"circularscan/internal/config"
	"circularscan/internal/extract"
	"circularscan/internal/infrastructure/queue"
	"circularscan/internal/infrastructure/storage"
	"circularscan/internal/worker"
	"circularscan/pkg/logger"
)

func main() {
	cfg := config.Load()
	logg := logger.New("ocrworker")

	if cfg.Queue.RedisAddr == "" {
		logg.Fatal("REDIS_ADDR is required to run the worker")
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		logg.Fatalf("open database: %v", err)
	}
	defer db.Close()

	handler := worker.NewHandler(storage.NewPostgresRepository(db), extract.NewEngine(), logg)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Queue.RedisAddr},
		asynq.Config{
			Concurrency: 4,
			Queues:      map[string]int{queue.OCRQueue: 1},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskTypeOCR, handler.ProcessTask)

	if err := srv.Run(mux); err != nil {
		logg.Fatalf("worker stopped: %v", err)
	}
}
