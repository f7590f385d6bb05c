package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Janhavi187/event-attendance-system/internal/archive"
	"github.com/Janhavi187/event-attendance-system/internal/attendance"
	"github.com/Janhavi187/event-attendance-system/internal/config"
	"github.com/Janhavi187/event-attendance-system/internal/logger"
	"github.com/Janhavi187/event-attendance-system/internal/qr"
	"github.com/Janhavi187/event-attendance-system/internal/queue"
	"github.com/Janhavi187/event-attendance-system/internal/store"
)

// Worker consumes QR archive jobs from the redis queue and stores the images.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").Fatal("load config", "error", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format).With("component", "worker")

	if cfg.Queue.Backend != "redis" {
		log.Fatal("worker needs QUEUE_BACKEND=redis; the memory queue is consumed inside the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal("db connect failed", "error", err)
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer func() { _ = redisClient.Close() }()

	sink, err := archive.NewSink(ctx, cfg)
	if err != nil {
		log.Fatal("archive sink init failed", "error", err)
	}
	if sink == nil {
		log.Fatal("ARCHIVE_SINK is none, nothing to do")
	}

	messages, err := queue.NewRedisQueue(redisClient.Client, cfg.Queue.Key).Consume(ctx)
	if err != nil {
		log.Fatal("queue consume init failed", "error", err)
	}

	w := archive.NewWorker(attendance.NewRepository(db), qr.New(cfg.QR.Size), sink, log, nil)
	w.Run(ctx, messages)
}
