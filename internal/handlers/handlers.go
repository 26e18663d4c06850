package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/feedfuse/feedfuse/internal/collaborative"
	"github.com/feedfuse/feedfuse/internal/database"
	"github.com/feedfuse/feedfuse/internal/metrics"
	"github.com/feedfuse/feedfuse/internal/ranking"
	"github.com/feedfuse/feedfuse/internal/signals"
	"github.com/feedfuse/feedfuse/internal/store"
	"github.com/feedfuse/feedfuse/internal/validation"
)

type Handlers struct {
	Health  *HealthHandler
	Signals *SignalHandler
	Ranking *RankingHandler
}

func New(
	logger *logrus.Logger,
	validator *validation.SignalValidator,
	ingestor *signals.Ingestor,
	aggregator *signals.Aggregator,
	interactions *collaborative.InteractionLog,
	repo *database.InteractionRepository,
	orchestrator *ranking.Orchestrator,
	featureStore store.FeatureStore,
	collector *metrics.Collector,
) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(logger, featureStore, aggregator, collector),
		Signals: NewSignalHandler(logger, validator, ingestor, interactions, repo),
		Ranking: NewRankingHandler(logger, orchestrator),
	}
}
