package signals

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/feedfuse/feedfuse/internal/config"
	"github.com/feedfuse/feedfuse/internal/store"
	"github.com/feedfuse/feedfuse/pkg/models"
)

func testAggregatorConfig() *config.SignalsConfig {
	return &config.SignalsConfig{
		QueueCapacity:        100,
		HighPriorityCapacity: 10,
		Workers:              2,
		RingBufferCapacity:   50,
		PollTimeout:          10 * time.Millisecond,
		AggregationInterval:  time.Minute,
		MonitoringInterval:   time.Minute,
		EmbeddingDim:         16,
		EmbeddingAlpha:       0.1,
		EngagementHalfLife:   24 * time.Hour,
		EngagementCeiling:    10.0,
		SignalTTL:            time.Hour,
		AggregateTTL:         time.Hour,
	}
}

func newTestAggregator(t *testing.T) *Aggregator {
	t.Helper()
	cfg := testAggregatorConfig()
	ingestor := NewIngestor(cfg, nil, quietLogger())
	return NewAggregator(cfg, ingestor, store.NewMemoryStore(), nil, nil, quietLogger())
}

func timedSignal(userID, contentID string, signalType models.SignalType, ts time.Time) models.Signal {
	return models.Signal{
		SignalID:  uuid.New(),
		UserID:    userID,
		Type:      signalType,
		ContentID: contentID,
		Timestamp: ts,
		Intensity: 1.0,
	}
}

func TestAggregator_ProcessMarksProcessedAndBuffers(t *testing.T) {
	agg := newTestAggregator(t)
	now := time.Now()

	agg.process(timedSignal("user-1", "item-1", models.SignalLike, now))

	buffered := agg.UserSignals("user-1", time.Hour)
	require.Len(t, buffered, 1)
	assert.True(t, buffered[0].Processed)
	assert.Equal(t, 1, agg.ActiveUsers())
}

func TestAggregator_EmbeddingIsUnitNormalized(t *testing.T) {
	agg := newTestAggregator(t)
	now := time.Now()

	for i := 0; i < 5; i++ {
		agg.process(timedSignal("user-1", "item-1", models.SignalView, now))
		embedding := agg.Embedding("user-1")
		require.Len(t, embedding, 16)
		assert.InDelta(t, 1.0, floats.Norm(embedding, 2), 1e-9)
	}
}

func TestAggregator_EmbeddingCopyIsIsolated(t *testing.T) {
	agg := newTestAggregator(t)

	agg.process(timedSignal("user-1", "item-1", models.SignalView, time.Now()))

	embedding := agg.Embedding("user-1")
	embedding[0] = 42.0

	fresh := agg.Embedding("user-1")
	assert.NotEqual(t, 42.0, fresh[0])
}

func TestAggregator_EngagementScoreBounds(t *testing.T) {
	agg := newTestAggregator(t)
	now := time.Now()
	agg.now = func() time.Time { return now }

	var batch []models.Signal
	for i := 0; i < 200; i++ {
		batch = append(batch, timedSignal("user-1", "item-1", models.SignalFollow, now))
	}

	score := agg.engagementScore(batch, now)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 10.0)

	// Old signals decay toward zero but never go negative.
	old := []models.Signal{timedSignal("user-1", "item-1", models.SignalView, now.Add(-96*time.Hour))}
	oldScore := agg.engagementScore(old, now)
	assert.GreaterOrEqual(t, oldScore, 0.0)
	assert.Less(t, oldScore, score)
}

func TestAggregator_WindowMembershipByTimestamp(t *testing.T) {
	agg := newTestAggregator(t)
	now := time.Now()
	agg.now = func() time.Time { return now }

	// One signal 2 minutes old: outside 1m, inside 5m and larger windows.
	agg.process(timedSignal("user-1", "item-1", models.SignalLike, now.Add(-2*time.Minute)))
	agg.RunAggregationCycle()

	assert.Nil(t, agg.Aggregate("user-1", models.Window1m))

	for _, window := range []models.TimeWindow{models.Window5m, models.Window15m, models.Window1h, models.Window24h} {
		result := agg.Aggregate("user-1", window)
		require.NotNil(t, result, "window %s", window)
		assert.Equal(t, 1, result.SignalCounts[models.SignalLike])
		assert.Equal(t, 1, result.ContentInteractions["item-1"][models.SignalLike])
	}
}

func TestAggregator_AggregationIsIdempotent(t *testing.T) {
	agg := newTestAggregator(t)
	now := time.Now()
	agg.now = func() time.Time { return now }

	for i := 0; i < 10; i++ {
		agg.process(timedSignal("user-1", "item-1", models.SignalComment, now.Add(-time.Duration(i)*time.Minute)))
	}

	agg.RunAggregationCycle()
	first := agg.Aggregate("user-1", models.Window24h)
	require.NotNil(t, first)

	// Unchanged buffer and frozen clock recompute to identical output.
	agg.RunAggregationCycle()
	second := agg.Aggregate("user-1", models.Window24h)
	require.NotNil(t, second)

	assert.Equal(t, first.SignalCounts, second.SignalCounts)
	assert.Equal(t, first.ContentInteractions, second.ContentInteractions)
	assert.Equal(t, first.EngagementScore, second.EngagementScore)
	assert.Equal(t, first.TemporalPatterns, second.TemporalPatterns)
}

func TestAggregator_WorkersDrainQueues(t *testing.T) {
	cfg := testAggregatorConfig()
	ingestor := NewIngestor(cfg, nil, quietLogger())
	agg := NewAggregator(cfg, ingestor, store.NewMemoryStore(), nil, nil, quietLogger())

	require.NoError(t, agg.Start())
	defer agg.Stop()

	for i := 0; i < 20; i++ {
		require.True(t, ingestor.Submit(timedSignal("user-1", "item-1", models.SignalView, time.Now()), PriorityNormal))
	}

	assert.Eventually(t, func() bool {
		return len(agg.UserSignals("user-1", time.Hour)) == 20
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTemporalPatterns_PeakHour(t *testing.T) {
	base := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	batch := []models.Signal{
		timedSignal("u", "a", models.SignalView, base),
		timedSignal("u", "b", models.SignalView, base.Add(5*time.Minute)),
		timedSignal("u", "c", models.SignalView, base.Add(-3*time.Hour)),
	}

	patterns := temporalPatterns(batch)
	assert.Equal(t, 14.0, patterns["peak_activity_hour"])
	assert.Greater(t, patterns["avg_time_between_signals"], 0.0)
}
