package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Mode)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)

	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Auth.RateLimit.Enabled)
	assert.Equal(t, 1000, cfg.Auth.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.Auth.RateLimit.Window)

	assert.Equal(t, 10000, cfg.Signals.QueueCapacity)
	assert.Equal(t, 8, cfg.Signals.Workers)
	assert.Equal(t, 128, cfg.Signals.EmbeddingDim)
	assert.Equal(t, 0.1, cfg.Signals.EmbeddingAlpha)
	assert.Equal(t, 24*time.Hour, cfg.Signals.EngagementHalfLife)
	assert.Equal(t, 10.0, cfg.Signals.EngagementCeiling)

	assert.Equal(t, 100, cfg.Ensemble.Factors)
	assert.Equal(t, 168*time.Hour, cfg.Ensemble.RecencyHalfLife)
	assert.Equal(t, 3.0, cfg.Ensemble.MaxDurationBoost)

	assert.Equal(t, 50, cfg.ColdStart.InteractionThreshold)
	assert.Equal(t, 0.95, cfg.ColdStart.BoostDecayBase)
	assert.Equal(t, 30, cfg.ColdStart.BoostCutoffDays)
	assert.Equal(t, 0.1, cfg.ColdStart.BoostThreshold)

	assert.Equal(t, 30*24*time.Hour, cfg.Retention.InteractionMaxAge)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoad_FusionWeightsSumToOne(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 1.0, cfg.Ranking.WeightSum(), 1e-9)
	assert.Equal(t, 0.30, cfg.Ranking.ContentWeight)
	assert.Equal(t, 0.25, cfg.Ranking.CollaborativeWeight)
	assert.Equal(t, 0.25, cfg.Ranking.RealTimeWeight)
	assert.Equal(t, 0.10, cfg.Ranking.InterestsWeight)
	assert.Equal(t, 0.10, cfg.Ranking.FreshnessWeight)
}

func TestLoad_DecayParameters(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.Ranking.RealTimeHalfLife)
	assert.Equal(t, 5.0, cfg.Ranking.RealTimeCeiling)
	assert.Equal(t, 24*time.Hour, cfg.Ranking.FreshnessHalfLife)
	assert.Equal(t, 0.1, cfg.Ranking.FreshnessFloor)
}
