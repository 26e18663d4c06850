package collaborative

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedfuse/feedfuse/pkg/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTrainedEnsemble(t *testing.T) (*Ensemble, *InteractionLog) {
	t.Helper()

	cfg := testEnsembleConfig()
	log := NewInteractionLog(cfg)
	now := time.Now()

	// Three users with overlapping tastes across five items.
	for _, in := range []struct {
		user, item string
		signal     models.SignalType
	}{
		{"alice", "item-a", models.SignalLike},
		{"alice", "item-b", models.SignalShare},
		{"alice", "item-c", models.SignalView},
		{"bob", "item-a", models.SignalLike},
		{"bob", "item-b", models.SignalComment},
		{"bob", "item-d", models.SignalLike},
		{"carol", "item-c", models.SignalView},
		{"carol", "item-d", models.SignalBookmark},
		{"carol", "item-e", models.SignalLike},
	} {
		log.Add(interaction(in.user, in.item, in.signal, now))
	}

	ensemble := NewEnsemble(log, cfg, nil, quietLogger())
	ensemble.Train()
	return ensemble, log
}

func TestEnsemble_TrainPopulatesModels(t *testing.T) {
	ensemble, _ := newTrainedEnsemble(t)
	assert.False(t, ensemble.TrainedAt().IsZero())
}

func TestEnsemble_TrainSkipsEmptyLog(t *testing.T) {
	cfg := testEnsembleConfig()
	ensemble := NewEnsemble(NewInteractionLog(cfg), cfg, nil, quietLogger())

	ensemble.Train()
	assert.True(t, ensemble.TrainedAt().IsZero())
	assert.Nil(t, ensemble.Recommend("alice", 10))
}

func TestEnsemble_RecommendUnknownUser(t *testing.T) {
	ensemble, _ := newTrainedEnsemble(t)
	assert.Nil(t, ensemble.Recommend("stranger", 10))
}

func TestEnsemble_RecommendSortedAndBounded(t *testing.T) {
	ensemble, _ := newTrainedEnsemble(t)

	results := ensemble.Recommend("alice", 3)
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), 3)

	seen := make(map[string]bool)
	for i, r := range results {
		assert.Equal(t, "alice", r.UserID)
		assert.Equal(t, "ensemble", r.Method)
		assert.False(t, seen[r.ItemID], "duplicate item %s", r.ItemID)
		seen[r.ItemID] = true

		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}
}

func TestEnsemble_ConfidenceWithinBounds(t *testing.T) {
	ensemble, _ := newTrainedEnsemble(t)

	for _, r := range ensemble.Recommend("alice", 10) {
		assert.GreaterOrEqual(t, r.Confidence, 0.0)
		assert.LessOrEqual(t, r.Confidence, 1.0)
	}
}

func TestAggregate_MethodAgreementBoostsConfidence(t *testing.T) {
	single := []models.CFResult{
		{UserID: "u", ItemID: "item-a", Score: 5.0, Method: MethodNMF, Confidence: 0.5},
	}
	agreeing := []models.CFResult{
		{UserID: "u", ItemID: "item-a", Score: 5.0, Method: MethodNMF, Confidence: 0.5},
		{UserID: "u", ItemID: "item-a", Score: 5.0, Method: MethodALS, Confidence: 0.5},
		{UserID: "u", ItemID: "item-a", Score: 5.0, Method: MethodBPR, Confidence: 0.5},
	}

	singleOut := aggregate(single, 10)
	agreeingOut := aggregate(agreeing, 10)
	require.Len(t, singleOut, 1)
	require.Len(t, agreeingOut, 1)

	assert.Greater(t, agreeingOut[0].Confidence, singleOut[0].Confidence)
	assert.InDelta(t, 5.0, agreeingOut[0].Score, 1e-9)
	assert.Contains(t, agreeingOut[0].Explanation, "3 method(s)")
}

func TestAggregate_TieBreaksByItemID(t *testing.T) {
	candidates := []models.CFResult{
		{UserID: "u", ItemID: "item-b", Score: 2.0, Method: MethodNMF, Confidence: 0.2},
		{UserID: "u", ItemID: "item-a", Score: 2.0, Method: MethodNMF, Confidence: 0.2},
	}

	out := aggregate(candidates, 10)
	require.Len(t, out, 2)
	assert.Equal(t, "item-a", out[0].ItemID)
	assert.Equal(t, "item-b", out[1].ItemID)
}
