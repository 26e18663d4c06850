package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/feedfuse/feedfuse/internal/collaborative"
	"github.com/feedfuse/feedfuse/internal/database"
	"github.com/feedfuse/feedfuse/internal/signals"
	"github.com/feedfuse/feedfuse/internal/validation"
	"github.com/feedfuse/feedfuse/pkg/models"
)

type SignalHandler struct {
	logger       *logrus.Logger
	validator    *validation.SignalValidator
	ingestor     *signals.Ingestor
	interactions *collaborative.InteractionLog
	repo         *database.InteractionRepository
}

func NewSignalHandler(
	logger *logrus.Logger,
	validator *validation.SignalValidator,
	ingestor *signals.Ingestor,
	interactions *collaborative.InteractionLog,
	repo *database.InteractionRepository,
) *SignalHandler {
	return &SignalHandler{
		logger:       logger,
		validator:    validator,
		ingestor:     ingestor,
		interactions: interactions,
		repo:         repo,
	}
}

// Submit validates one signal and hands it to the ingestion queue. A full
// queue answers 202 with accepted=false; the drop is deliberate backpressure,
// not a failure.
func (h *SignalHandler) Submit(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Failed to read request body",
			},
		})
		return
	}

	signal, result := h.validator.ParseSignal(body)
	if !result.Valid {
		c.JSON(http.StatusBadRequest, result.ToAPIError())
		return
	}

	priority := signals.PriorityNormal
	if c.Query("priority") == string(signals.PriorityHigh) {
		priority = signals.PriorityHigh
	}

	accepted := h.ingestor.Submit(signal, priority)
	if accepted {
		h.recordInteraction(c, signal)
	}

	c.JSON(http.StatusAccepted, gin.H{
		"data": gin.H{
			"signal_id": signal.SignalID,
			"accepted":  accepted,
		},
	})
}

// SubmitBatch ingests an array of signals and reports per-signal outcomes.
func (h *SignalHandler) SubmitBatch(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Failed to read request body",
			},
		})
		return
	}

	var rawSignals []json.RawMessage
	if err := json.Unmarshal(body, &rawSignals); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Request body must be a JSON array of signals",
			},
		})
		return
	}
	if len(rawSignals) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":    "EMPTY_BATCH",
				"message": "Batch must contain at least one signal",
			},
		})
		return
	}

	priority := signals.PriorityNormal
	if c.Query("priority") == string(signals.PriorityHigh) {
		priority = signals.PriorityHigh
	}

	type outcome struct {
		Index    int         `json:"index"`
		SignalID uuid.UUID   `json:"signal_id,omitempty"`
		Accepted bool        `json:"accepted"`
		Errors   interface{} `json:"errors,omitempty"`
	}

	outcomes := make([]outcome, 0, len(rawSignals))
	acceptedCount := 0
	for i, raw := range rawSignals {
		signal, result := h.validator.ParseSignal(raw)
		if !result.Valid {
			outcomes = append(outcomes, outcome{Index: i, Errors: result.Errors})
			continue
		}

		accepted := h.ingestor.Submit(signal, priority)
		if accepted {
			acceptedCount++
			h.recordInteraction(c, signal)
		}
		outcomes = append(outcomes, outcome{Index: i, SignalID: signal.SignalID, Accepted: accepted})
	}

	c.JSON(http.StatusAccepted, gin.H{
		"data": gin.H{
			"results":  outcomes,
			"accepted": acceptedCount,
			"total":    len(rawSignals),
		},
	})
}

// recordInteraction feeds content-bearing signals into the collaborative
// interaction log and the durable store.
func (h *SignalHandler) recordInteraction(c *gin.Context, signal models.Signal) {
	if signal.ContentID == "" {
		return
	}

	interaction := models.Interaction{
		ID:        signal.SignalID,
		UserID:    signal.UserID,
		ItemID:    signal.ContentID,
		Type:      signal.Type,
		Timestamp: signal.Timestamp,
		Duration:  signal.Duration,
		Intensity: signal.Intensity,
	}
	h.interactions.Add(interaction)

	if h.repo != nil {
		if err := h.repo.Save(c.Request.Context(), interaction); err != nil {
			h.logger.WithError(err).WithField("signal_id", signal.SignalID).
				Warn("Failed to persist interaction")
		}
	}
}
