package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/feedfuse/feedfuse/internal/auth"
	"github.com/feedfuse/feedfuse/internal/coldstart"
	"github.com/feedfuse/feedfuse/internal/collaborative"
	"github.com/feedfuse/feedfuse/internal/config"
	"github.com/feedfuse/feedfuse/internal/database"
	"github.com/feedfuse/feedfuse/internal/handlers"
	"github.com/feedfuse/feedfuse/internal/interests"
	"github.com/feedfuse/feedfuse/internal/messaging"
	"github.com/feedfuse/feedfuse/internal/metrics"
	"github.com/feedfuse/feedfuse/internal/middleware"
	"github.com/feedfuse/feedfuse/internal/ranking"
	"github.com/feedfuse/feedfuse/internal/signals"
	"github.com/feedfuse/feedfuse/internal/store"
	"github.com/feedfuse/feedfuse/internal/validation"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	handlers *handlers.Handlers
	router   *gin.Engine

	collector    *metrics.Collector
	ingestor     *signals.Ingestor
	aggregator   *signals.Aggregator
	interactions *collaborative.InteractionLog
	repo         *database.InteractionRepository
	ensemble     *collaborative.Ensemble
	publisher    *messaging.SignalPublisher

	retentionStop chan struct{}
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config:        cfg,
		logger:        setupLogger(cfg),
		retentionStop: make(chan struct{}),
	}

	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	featureStore := store.NewRedisStore(db.Redis, app.logger)
	app.collector = metrics.NewCollector(app.logger)

	validator, err := validation.NewSignalValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signal validator: %w", err)
	}

	var publisher signals.SignalPublisher
	if cfg.Kafka.Enabled {
		app.publisher = messaging.NewSignalPublisher(&cfg.Kafka, app.logger)
		publisher = app.publisher
	}

	app.ingestor = signals.NewIngestor(&cfg.Signals, app.collector, app.logger)
	app.aggregator = signals.NewAggregator(&cfg.Signals, app.ingestor, featureStore, publisher, app.collector, app.logger)

	app.interactions = collaborative.NewInteractionLog(&cfg.Ensemble)
	app.repo = database.NewInteractionRepository(db.PG, app.logger)
	app.ensemble = collaborative.NewEnsemble(app.interactions, &cfg.Ensemble, app.collector, app.logger)

	coldStartRanker := coldstart.NewRanker(&cfg.ColdStart, featureStore, app.interactions, app.logger)
	interestClient := interests.NewClient(&cfg.Interests, app.logger)
	orchestrator := ranking.NewOrchestrator(
		&cfg.Ranking,
		app.aggregator,
		app.ensemble,
		coldStartRanker,
		interestClient,
		app.collector,
		app.logger,
	)

	authService := auth.NewService(&cfg.Auth, featureStore, app.logger)
	rateLimiter := auth.NewRateLimiter(&cfg.Auth.RateLimit, db.Redis, app.logger)

	app.handlers = handlers.New(
		app.logger,
		validator,
		app.ingestor,
		app.aggregator,
		app.interactions,
		app.repo,
		orchestrator,
		featureStore,
		app.collector,
	)

	app.setupRouter(authService, rateLimiter)

	return app, nil
}

// Start replays the durable interaction log and launches the background
// pipelines.
func (a *App) Start(ctx context.Context) error {
	a.replayInteractions(ctx)

	if err := a.aggregator.Start(); err != nil {
		return fmt.Errorf("failed to start aggregator: %w", err)
	}
	if err := a.ensemble.Start(); err != nil {
		return fmt.Errorf("failed to start ensemble: %w", err)
	}

	go a.retentionLoop()

	a.logger.Info("Application started")
	return nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	close(a.retentionStop)
	a.ingestor.Close()
	a.aggregator.Stop()
	a.ensemble.Stop()
	a.collector.Stop()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.WithError(err).Error("Error closing signal publisher")
		}
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

// replayInteractions loads retained interactions from Postgres so the
// ensemble does not restart from an empty matrix.
func (a *App) replayInteractions(ctx context.Context) {
	cutoff := time.Now().Add(-a.config.Retention.InteractionMaxAge)
	loaded, err := a.repo.LoadSince(ctx, cutoff)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to replay interaction log")
		return
	}

	for _, in := range loaded {
		a.interactions.Add(in)
	}
	if len(loaded) > 0 {
		a.logger.WithField("interactions", len(loaded)).Info("Replayed interaction log")
	}
}

func (a *App) retentionLoop() {
	ticker := time.NewTicker(a.config.Retention.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			cutoff := time.Now().Add(-a.config.Retention.InteractionMaxAge)
			if _, err := a.repo.DeleteOlderThan(ctx, cutoff); err != nil {
				a.logger.WithError(err).Warn("Interaction retention cleanup failed")
			}
			cancel()

			pruned := a.interactions.Prune(a.config.Retention.InteractionMaxAge)
			if pruned > 0 {
				a.logger.WithField("pruned", pruned).Info("Pruned in-memory interaction log")
			}
		case <-a.retentionStop:
			return
		}
	}
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter(authService *auth.Service, rateLimiter *auth.RateLimiter) {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(&a.config.Server))

	// Health and Prometheus endpoints are unauthenticated
	router.GET("/health", a.handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.Use(middleware.Auth(authService, a.logger))
		api.Use(middleware.RateLimit(rateLimiter, a.logger))

		signalRoutes := api.Group("/signals")
		{
			signalRoutes.POST("", a.handlers.Signals.Submit)
			signalRoutes.POST("/batch", a.handlers.Signals.SubmitBatch)
		}

		api.POST("/rank", a.handlers.Ranking.Rank)

		users := api.Group("/users")
		{
			users.GET("/:userId/insights", a.handlers.Ranking.Insights)
		}
	}

	a.router = router
}
