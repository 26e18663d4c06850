package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedfuse/feedfuse/internal/collaborative"
	"github.com/feedfuse/feedfuse/internal/config"
	"github.com/feedfuse/feedfuse/internal/signals"
	"github.com/feedfuse/feedfuse/internal/validation"
)

func newSignalHandler(t *testing.T) (*SignalHandler, *signals.Ingestor, *collaborative.InteractionLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	validator, err := validation.NewSignalValidator()
	require.NoError(t, err)

	cfg := &config.SignalsConfig{
		QueueCapacity:        100,
		HighPriorityCapacity: 10,
		PollTimeout:          10 * time.Millisecond,
	}
	ingestor := signals.NewIngestor(cfg, nil, logger)
	interactions := collaborative.NewInteractionLog(&config.EnsembleConfig{
		RecencyHalfLife:  168 * time.Hour,
		MaxDurationBoost: 3.0,
	})

	return NewSignalHandler(logger, validator, ingestor, interactions, nil), ingestor, interactions
}

func performJSON(handler gin.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)
	return w
}

func TestSignalHandler_Submit(t *testing.T) {
	t.Run("valid signal is accepted", func(t *testing.T) {
		h, ingestor, interactions := newSignalHandler(t)

		w := performJSON(h.Submit, http.MethodPost, "/api/v1/signals",
			`{"user_id": "user-1", "signal_type": "like", "content_id": "post-1"}`)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), `"accepted":true`)
		assert.Equal(t, 1, ingestor.QueueDepth())
		assert.Equal(t, 1, interactions.Len())
	})

	t.Run("invalid signal is rejected with details", func(t *testing.T) {
		h, ingestor, _ := newSignalHandler(t)

		w := performJSON(h.Submit, http.MethodPost, "/api/v1/signals",
			`{"user_id": "user-1", "signal_type": "teleport"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
		assert.Equal(t, 0, ingestor.QueueDepth())
	})

	t.Run("signal without content id skips the interaction log", func(t *testing.T) {
		h, _, interactions := newSignalHandler(t)

		w := performJSON(h.Submit, http.MethodPost, "/api/v1/signals",
			`{"user_id": "user-1", "signal_type": "scroll"}`)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, 0, interactions.Len())
	})

	t.Run("high priority goes to the priority queue", func(t *testing.T) {
		h, ingestor, _ := newSignalHandler(t)

		w := performJSON(h.Submit, http.MethodPost, "/api/v1/signals?priority=high",
			`{"user_id": "user-1", "signal_type": "like"}`)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, 1, ingestor.QueueDepth())
	})
}

func TestSignalHandler_SubmitBatch(t *testing.T) {
	t.Run("mixed batch reports per-signal outcomes", func(t *testing.T) {
		h, _, _ := newSignalHandler(t)

		w := performJSON(h.SubmitBatch, http.MethodPost, "/api/v1/signals/batch", `[
			{"user_id": "user-1", "signal_type": "like", "content_id": "post-1"},
			{"user_id": "user-1", "signal_type": "teleport"},
			{"user_id": "user-2", "signal_type": "view"}
		]`)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), `"accepted":2`)
		assert.Contains(t, w.Body.String(), `"total":3`)
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		h, _, _ := newSignalHandler(t)

		w := performJSON(h.SubmitBatch, http.MethodPost, "/api/v1/signals/batch", `[]`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "EMPTY_BATCH")
	})

	t.Run("non-array body is rejected", func(t *testing.T) {
		h, _, _ := newSignalHandler(t)

		w := performJSON(h.SubmitBatch, http.MethodPost, "/api/v1/signals/batch",
			`{"user_id": "user-1"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
	})
}
