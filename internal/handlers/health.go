package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/feedfuse/feedfuse/internal/metrics"
	"github.com/feedfuse/feedfuse/internal/store"
)

// PipelineStatus is the aggregator's view of its own state.
type PipelineStatus interface {
	Health(ctx context.Context) map[string]interface{}
}

type HealthHandler struct {
	logger    *logrus.Logger
	store     store.FeatureStore
	pipeline  PipelineStatus
	collector *metrics.Collector
}

func NewHealthHandler(logger *logrus.Logger, featureStore store.FeatureStore, pipeline PipelineStatus, collector *metrics.Collector) *HealthHandler {
	return &HealthHandler{
		logger:    logger,
		store:     featureStore,
		pipeline:  pipeline,
		collector: collector,
	}
}

// Check reports overall service health. An unreachable feature store is
// degraded, not down: ranking still works from in-memory state.
func (h *HealthHandler) Check(c *gin.Context) {
	status := "healthy"
	checks := gin.H{}

	ctx := c.Request.Context()
	if err := h.store.Ping(ctx); err != nil {
		status = "degraded"
		checks["feature_store"] = gin.H{"status": "unhealthy", "error": err.Error()}
	} else {
		checks["feature_store"] = gin.H{"status": "healthy"}
	}

	if h.pipeline != nil {
		checks["pipeline"] = h.pipeline.Health(ctx)
	}

	if h.collector != nil {
		snapshot := h.collector.Snapshot()
		checks["counters"] = gin.H{
			"signals_processed": snapshot.SignalsProcessed,
			"signals_dropped":   snapshot.SignalsDropped,
			"queue_depth":       snapshot.QueueDepth,
			"rank_requests":     snapshot.RankRequests,
		}
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
