package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/intake-api/internal/app"
	"github.com/jwalitptl/intake-api/internal/config"
	"github.com/jwalitptl/intake-api/internal/handler/health"
	"github.com/jwalitptl/intake-api/internal/repository/postgres"
	"github.com/jwalitptl/intake-api/internal/service/notification"
	cleanup "github.com/jwalitptl/intake-api/internal/worker"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/messaging/redis"
	"github.com/jwalitptl/intake-api/pkg/push"
	"github.com/jwalitptl/intake-api/pkg/worker"
)

func setupHealthCheck(port int, checks map[string]health.Check, registry *prom.Registry, log *logger.Logger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	health.NewHandler(checks).RegisterRoutes(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: engine}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "Health check server failed")
		}
	}()
	return srv
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger(&logger.Config{Level: logger.InfoLevel, JSON: true}).Fatal(err, "Failed to load config")
	}

	log := logger.NewLogger(&logger.Config{Level: logger.ParseLevel(cfg.Log.Level), JSON: cfg.Log.JSON}).With("worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	// Initialize Redis broker
	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		log.Fatal(err, "Failed to create Redis broker")
	}
	defer broker.Close()

	registry := prom.NewRegistry()
	m := app.NewMetrics(registry)
	repos := postgres.NewRepositories(db)

	notifications := notification.NewService(repos.Users, repos.Notifications,
		push.NewBrokerPusher(broker, cfg.Push.Channel), cfg.Push.Timeout, log, m)

	processor := worker.NewPushRetryProcessor(
		repos.Notifications,
		notifications,
		worker.PushRetryConfig{
			BatchSize:    cfg.Push.BatchSize,
			PollInterval: cfg.Push.RetryInterval,
			RetryAfter:   cfg.Push.RetryAfter,
			MaxAttempts:  cfg.Push.MaxAttempts,
		},
		log,
		m,
	)

	// Setup health check endpoints
	healthSrv := setupHealthCheck(cfg.Worker.HealthPort, map[string]health.Check{
		"postgres": db.PingContext,
		"redis":    broker.Ping,
	}, registry, log)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down...")
		cancel()
	}()

	go cleanup.NewNotificationCleanupWorker(repos.Notifications,
		cfg.Worker.NotificationRetention, cfg.Worker.CleanupInterval, log).Start(ctx)

	processor.Start(ctx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	_ = healthSrv.Shutdown(shutdownCtx)
	notifications.Wait()
}
