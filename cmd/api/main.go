package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/Janhavi187/event-attendance-system/internal/archive"
	"github.com/Janhavi187/event-attendance-system/internal/attendance"
	"github.com/Janhavi187/event-attendance-system/internal/config"
	"github.com/Janhavi187/event-attendance-system/internal/handler"
	"github.com/Janhavi187/event-attendance-system/internal/httpmiddleware"
	"github.com/Janhavi187/event-attendance-system/internal/logger"
	"github.com/Janhavi187/event-attendance-system/internal/metrics"
	"github.com/Janhavi187/event-attendance-system/internal/qr"
	"github.com/Janhavi187/event-attendance-system/internal/queue"
	"github.com/Janhavi187/event-attendance-system/internal/report"
	"github.com/Janhavi187/event-attendance-system/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").Fatal("load config", "error", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("http server failed", "error", err)
	}
}

func runHTTP(cfg *config.App, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	log.Info("database ready", "dialect", db.Dialect.Name)

	redisClient := store.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer func() { _ = redisClient.Close() }()

	m := metrics.New()
	issuer := qr.New(cfg.QR.Size)
	repo := attendance.NewRepository(db)
	svc := attendance.NewService(repo, nil, issuer)

	archiver, err := startArchive(ctx, cfg, log, redisClient, repo, issuer, m)
	if err != nil {
		return err
	}

	h, err := handler.New(handler.Deps{
		Attendance:     svc,
		Exporter:       report.NewExporter(svc),
		Archive:        archiver,
		DB:             db,
		Redis:          redisClient,
		Metrics:        m,
		Log:            log,
		BaseURL:        cfg.BaseURL,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		return err
	}
	r := handler.NewRouter(h, newLimiter(cfg, redisClient))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced shutdown", "error", err)
	}
	log.Info("server exited")
	return nil
}

func newLimiter(cfg *config.App, redisClient *store.Redis) httpmiddleware.Limiter {
	if cfg.RateLimit.PerMin <= 0 {
		return nil
	}
	if cfg.RateLimit.Backend == "redis" {
		return httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimit.PerMin)
	}
	return httpmiddleware.NewTokenBucket(cfg.RateLimit.PerMin, cfg.RateLimit.PerMin)
}

// startArchive returns nil when archiving is off. With the memory queue the
// worker runs in this process until ctx is done; with redis it is left to
// cmd/worker.
func startArchive(ctx context.Context, cfg *config.App, log *logger.Logger, redisClient *store.Redis,
	repo *attendance.Repository, issuer *qr.Issuer, m *metrics.Metrics) (handler.Archiver, error) {
	if cfg.Archive.Sink == "none" {
		return nil, nil
	}
	if cfg.Queue.Backend == "redis" {
		log.Info("qr archive enabled", "queue", "redis", "key", cfg.Queue.Key)
		return archive.NewPublisher(queue.NewRedisQueue(redisClient.Client, cfg.Queue.Key)), nil
	}

	sink, err := archive.NewSink(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("archive sink: %w", err)
	}
	q := queue.NewInMemory(64)
	messages, err := q.Consume(ctx)
	if err != nil {
		return nil, err
	}
	w := archive.NewWorker(repo, issuer, sink, log.With("component", "archive"), m)
	go w.Run(ctx, messages)
	log.Info("qr archive enabled", "queue", "memory", "sink", cfg.Archive.Sink)
	return archive.NewPublisher(q), nil
}
