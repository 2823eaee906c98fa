package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"airoi.app/assessor/common/id"
	"airoi.app/assessor/common/llm"
	"airoi.app/assessor/common/logger"
	"airoi.app/assessor/common/otel"
	"airoi.app/assessor/core/config"
	"airoi.app/assessor/core/db"
	"airoi.app/assessor/internal/agent"
	"airoi.app/assessor/internal/capability"
	"airoi.app/assessor/internal/http/middleware"
	httprouter "airoi.app/assessor/internal/http/router"
	"airoi.app/assessor/internal/queue"
	"airoi.app/assessor/internal/service"
	"airoi.app/assessor/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// slog is not configured yet
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "assessor api starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
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

	if err := database.Migrate(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to apply migrations", "error", err)
		os.Exit(1)
	}

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

	jobProducer := queue.NewRedisProducer(redisClient, cfg.Queue.RedisStream, slog.Default())
	defer jobProducer.Close()

	services := service.NewServices(
		store.NewStores(database.Conn()),
		service.NewTxRunner(database),
		agent.NewDiscovery(client),
		jobProducer,
		capability.Default(),
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Chat turns wait on a provider call bounded by llm.MaxTimeout.
		WriteTimeout: llm.MaxTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.TraceHeader(cfg.Queue.TraceHeaderName))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	httprouter.SetupRoutes(router, services, httprouter.RouterConfig{
		ServiceName: cfg.OTel.ServiceName,
		Version:     cfg.OTel.ServiceVersion,
	})

	return router
}

const banner = `
 █████╗ ██╗██████╗  ██████╗ ██╗     █████╗ ██████╗ ██╗
██╔══██╗██║██╔══██╗██╔═══██╗██║    ██╔══██╗██╔══██╗██║
███████║██║██████╔╝██║   ██║██║    ███████║██████╔╝██║
██╔══██║██║██╔══██╗██║   ██║██║    ██╔══██║██╔═══╝ ██║
██║  ██║██║██║  ██║╚██████╔╝██║    ██║  ██║██║     ██║
╚═╝  ╚═╝╚═╝╚═╝  ╚═╝ ╚═════╝ ╚═╝    ╚═╝  ╚═╝╚═╝     ╚═╝
`
