package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"airoi.app/assessor/common/id"
	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/common/otel"
	"airoi.app/assessor/core/config"
	"airoi.app/assessor/core/db"
	"airoi.app/assessor/internal/capability"
	"airoi.app/assessor/internal/orchestrator"
	"airoi.app/assessor/internal/queue"
	"airoi.app/assessor/internal/store"
	"airoi.app/assessor/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "assessor worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Queue.RedisGroup,
		"consumer_name", cfg.Queue.RedisConsumer)

	// Distinct node ID from the API server
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	client, err := llm.NewFromSettings(cfg.LLM.Provider, cfg.LLM.Settings())
	if err != nil {
		slog.ErrorContext(ctx, "failed to configure llm provider", "error", err, "provider", cfg.LLM.Provider)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "llm provider configured", "provider", client.Provider(), "model", client.Model())

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Queue.RedisStream)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Queue.RedisStream,
		Group:        cfg.Queue.RedisGroup,
		Consumer:     cfg.Queue.RedisConsumer,
		DLQStream:    cfg.Queue.RedisDLQStream,
		BatchSize:    1, // one assessment at a time
		Block:        5 * time.Second,
		MaxAttempts:  cfg.Queue.MaxAttempts,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	pipeline := orchestrator.NewFromClient(client, capability.Default(), orchestrator.Config{
		MaxAttempts:        cfg.Pipeline.MaxAttempts,
		ExtractionAttempts: cfg.Pipeline.ExtractionAttempts,
		BaseBackoff:        cfg.Pipeline.BaseBackoff,
		MaxGuides:          cfg.Pipeline.MaxGuides,
	})

	stores := store.NewStores(database.Conn())
	w := worker.New(consumer, stores, pipeline, worker.Config{
		MaxAttempts: cfg.Queue.MaxAttempts,
		RunTimeout:  cfg.Pipeline.RunTimeout,
	})

	// Stale entries must sit longer than a full run before another worker takes them.
	minIdle := 5 * time.Minute
	if cfg.Pipeline.RunTimeout+time.Minute > minIdle {
		minIdle = cfg.Pipeline.RunTimeout + time.Minute
	}
	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:        cfg.Queue.RedisStream,
		Group:         cfg.Queue.RedisGroup,
		Consumer:      cfg.Queue.RedisConsumer + "-reclaimer",
		MinIdle:       minIdle,
		Interval:      1 * time.Minute,
		BatchSize:     10,
		MaxDeliveries: int64(cfg.Queue.MaxAttempts),
	}, consumer, stores.Assessments(), w.ProcessMessage)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "metrics server error", "error", err)
		}
	}()

	// Cancelled only when graceful shutdown overruns; in-flight runs then end as cancelled
	// and their entries stay pending for the reclaimer.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(runCtx)
	}()
	go func() {
		reclaimer.Run(runCtx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running", "metrics_port", cfg.MetricsPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		// Reclaimer first (quick), then the worker, which may be mid-assessment.
		reclaimer.Stop()
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded, cancelling in-flight assessment")
		cancelRun()
		<-stopped
	}

	for range 2 {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	shutdownCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "metrics server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
 █████╗ ██╗██████╗  ██████╗ ██╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██╔══██╗██║██╔══██╗██╔═══██╗██║    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
███████║██║██████╔╝██║   ██║██║    ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██╔══██║██║██╔══██╗██║   ██║██║    ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
██║  ██║██║██║  ██║╚██████╔╝██║    ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
╚═╝  ╚═╝╚═╝╚═╝  ╚═╝ ╚═════╝ ╚═╝     ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
