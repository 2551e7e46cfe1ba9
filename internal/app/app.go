// Package app wires repositories, services, event subscribers and HTTP handlers
// into one runnable API. cmd/api supplies Postgres, Redis and MinIO; tests supply
// the in-memory store and fakes.
package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/intake-api/internal/config"
	"github.com/jwalitptl/intake-api/internal/handler/health"
	"github.com/jwalitptl/intake-api/internal/handler/patient"
	"github.com/jwalitptl/intake-api/internal/handler/prometheus"
	"github.com/jwalitptl/intake-api/internal/repository"
	"github.com/jwalitptl/intake-api/internal/router"
	"github.com/jwalitptl/intake-api/internal/service/achievement"
	"github.com/jwalitptl/intake-api/internal/service/catalog"
	"github.com/jwalitptl/intake-api/internal/service/intake"
	"github.com/jwalitptl/intake-api/internal/service/marked"
	"github.com/jwalitptl/intake-api/internal/service/notification"
	"github.com/jwalitptl/intake-api/internal/service/projection"
	"github.com/jwalitptl/intake-api/internal/service/scoring"
	"github.com/jwalitptl/intake-api/internal/service/stats"
	"github.com/jwalitptl/intake-api/pkg/auth"
	"github.com/jwalitptl/intake-api/pkg/event"
	"github.com/jwalitptl/intake-api/pkg/logger"
	"github.com/jwalitptl/intake-api/pkg/messaging"
	"github.com/jwalitptl/intake-api/pkg/metrics"
	"github.com/jwalitptl/intake-api/pkg/push"
	"github.com/jwalitptl/intake-api/pkg/storage"
	"github.com/jwalitptl/intake-api/pkg/validator"
)

const metricsNamespace = "intake"

type Options struct {
	Config   *config.Config
	Repos    *repository.Repositories
	Uploader storage.Uploader
	Pusher   push.Pusher
	// Broker, when set, receives every committed event on Config.Redis.EventChannel.
	Broker   messaging.Broker
	Tracker  achievement.Tracker
	Logger   *logger.Logger
	Registry *prom.Registry
	// Metrics must be registered on Registry; nil creates them.
	Metrics *metrics.Metrics
	Checks   map[string]health.Check
}

type App struct {
	Bus           *event.Bus
	Metrics       *metrics.Metrics
	Tokens        *auth.JWTService
	Intake        *intake.Service
	Listing       *projection.Service
	Marked        *marked.Service
	Stats         *stats.Service
	Scores        *scoring.Dispatcher
	Notifications notification.Service
	Engine        *gin.Engine
}

// NewMetrics registers the application metrics on reg.
func NewMetrics(reg prom.Registerer) *metrics.Metrics {
	return metrics.New(metricsNamespace, reg)
}

func New(opts Options) (*App, error) {
	cfg := opts.Config
	if opts.Registry == nil {
		opts.Registry = prom.NewRegistry()
	}
	if opts.Tracker == nil {
		opts.Tracker = achievement.NewLogTracker(opts.Logger)
	}

	strategy, err := projection.ParseStrategy(cfg.Listing.Strategy)
	if err != nil {
		return nil, fmt.Errorf("invalid listing config: %w", err)
	}

	m := opts.Metrics
	if m == nil {
		m = NewMetrics(opts.Registry)
	}
	bus := event.NewBus(opts.Logger.With("events"), m)
	repos := opts.Repos

	scores := scoring.NewDispatcher(repos, scoring.Config{
		PointsPerOutcome:   cfg.Scoring.PointsPerOutcome,
		MilestoneThreshold: cfg.Scoring.MilestoneThreshold,
		HistoryLimit:       cfg.Scoring.HistoryLimit,
	}, opts.Logger)

	intakeSvc := intake.NewService(repos, catalog.NewLoader(repos.Questions), scores, opts.Uploader, bus,
		intake.Config{OutcomeSectionID: cfg.Questionnaire.OutcomeSectionID}, opts.Logger, m)

	batch := projection.NewBatchLister(repos)
	listing := projection.NewService(batch, projection.NewJoinLister(repos.Projection), projection.Config{
		Strategy:        strategy,
		DefaultPageSize: cfg.Listing.DefaultPageSize,
		MaxPageSize:     cfg.Listing.MaxPageSize,
	}, m)
	markedSvc := marked.NewService(repos, batch, cfg.Listing.DefaultPageSize, cfg.Listing.MaxPageSize, opts.Logger)
	statsSvc := stats.NewService(repos.Stats, cfg.Stats.TTL, cfg.Stats.CleanupInterval, opts.Logger, m)
	notifications := notification.NewService(repos.Users, repos.Notifications, opts.Pusher, cfg.Push.Timeout, opts.Logger, m)

	statsSvc.Subscribe(bus)
	notification.Subscribe(bus, notifications)
	achievement.Subscribe(bus, opts.Tracker)
	if opts.Broker != nil && cfg.Redis.EventChannel != "" {
		bus.Subscribe("redis-forward", event.Forward(opts.Broker, cfg.Redis.EventChannel))
	}

	tokens := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
	patients := patient.NewHandler(intakeSvc, listing, markedSvc, statsSvc, scores, validator.New(), cfg.Questionnaire.AgeQuestionID)

	r := router.NewRouter(tokens, patients, health.NewHandler(opts.Checks), prometheus.New(opts.Registry), router.RouterConfig{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		RequestTimeout:   cfg.Server.RequestTimeout,
		MaxBodyBytes:     cfg.Server.MaxBodyBytes,
	})

	return &App{
		Bus:           bus,
		Metrics:       m,
		Tokens:        tokens,
		Intake:        intakeSvc,
		Listing:       listing,
		Marked:        markedSvc,
		Stats:         statsSvc,
		Scores:        scores,
		Notifications: notifications,
		Engine:        r.Setup(),
	}, nil
}
