package coldstart

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedfuse/feedfuse/internal/config"
	"github.com/feedfuse/feedfuse/internal/store"
	"github.com/feedfuse/feedfuse/pkg/models"
)

type fakeCounter struct {
	counts map[string]int
}

func (f *fakeCounter) UserInteractionCount(userID string) int {
	return f.counts[userID]
}

func testColdStartConfig() *config.ColdStartConfig {
	return &config.ColdStartConfig{
		InteractionThreshold: 5,
		BoostDecayBase:       0.95,
		BoostCutoffDays:      30,
		BoostThreshold:       0.1,
		MaxHashtagMatches:    3,
	}
}

func newTestRanker(counts map[string]int) *Ranker {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewRanker(testColdStartConfig(), store.NewMemoryStore(), &fakeCounter{counts: counts}, logger)
}

func TestRanker_BoostDecay(t *testing.T) {
	ctx := context.Background()
	ranker := newTestRanker(nil)
	start := time.Now()
	ranker.now = func() time.Time { return start }

	ranker.RecordFirstUse(ctx, "user-1")

	t.Run("full boost on day zero", func(t *testing.T) {
		assert.InDelta(t, 1.0, ranker.Boost(ctx, "user-1"), 1e-9)
	})

	t.Run("monotonically non-increasing", func(t *testing.T) {
		prev := 1.1
		for day := 0; day <= 35; day++ {
			ranker.now = func() time.Time { return start.Add(time.Duration(day) * 24 * time.Hour) }
			boost := ranker.Boost(ctx, "user-1")
			assert.LessOrEqual(t, boost, prev, "day %d", day)
			prev = boost
		}
	})

	t.Run("exactly zero from the cutoff day", func(t *testing.T) {
		ranker.now = func() time.Time { return start.Add(30 * 24 * time.Hour) }
		assert.Equal(t, 0.0, ranker.Boost(ctx, "user-1"))

		ranker.now = func() time.Time { return start.Add(300 * 24 * time.Hour) }
		assert.Equal(t, 0.0, ranker.Boost(ctx, "user-1"))
	})

	t.Run("unknown user gets full boost", func(t *testing.T) {
		assert.Equal(t, 1.0, ranker.Boost(ctx, "nobody"))
	})
}

func TestRanker_FirstSeenNeverMoves(t *testing.T) {
	ctx := context.Background()
	ranker := newTestRanker(nil)
	start := time.Now()

	ranker.now = func() time.Time { return start }
	ranker.RecordFirstUse(ctx, "user-1")

	// A later record attempt must not reset the decay anchor.
	ranker.now = func() time.Time { return start.Add(10 * 24 * time.Hour) }
	ranker.RecordFirstUse(ctx, "user-1")

	boost := ranker.Boost(ctx, "user-1")
	assert.InDelta(t, 0.95*0.95*0.95*0.95*0.95*0.95*0.95*0.95*0.95*0.95, boost, 1e-9)
}

func TestRanker_ShouldUseColdStart(t *testing.T) {
	ctx := context.Background()
	start := time.Now()

	t.Run("sparse history stays cold regardless of age", func(t *testing.T) {
		ranker := newTestRanker(map[string]int{"user-1": 2})
		ranker.now = func() time.Time { return start }
		ranker.RecordFirstUse(ctx, "user-1")

		ranker.now = func() time.Time { return start.Add(100 * 24 * time.Hour) }
		assert.True(t, ranker.ShouldUseColdStart(ctx, "user-1"))
	})

	t.Run("enough history but fresh account stays cold", func(t *testing.T) {
		ranker := newTestRanker(map[string]int{"user-1": 50})
		ranker.now = func() time.Time { return start }
		ranker.RecordFirstUse(ctx, "user-1")

		assert.True(t, ranker.ShouldUseColdStart(ctx, "user-1"))
	})

	t.Run("warm when history and decay both cross", func(t *testing.T) {
		ranker := newTestRanker(map[string]int{"user-1": 50})
		ranker.now = func() time.Time { return start }
		ranker.RecordFirstUse(ctx, "user-1")

		// 0.95^45 ~ 0.099, below the 0.1 threshold.
		ranker.now = func() time.Time { return start.Add(45 * 24 * time.Hour) }
		assert.False(t, ranker.ShouldUseColdStart(ctx, "user-1"))
	})
}

func TestRanker_RankPrefersInterestMatches(t *testing.T) {
	ctx := context.Background()
	ranker := newTestRanker(nil)
	now := time.Now()
	ranker.now = func() time.Time { return now }

	candidates := []models.CandidateItem{
		{
			ContentID:    "cooking-post",
			Hashtags:     []string{"food", "recipe"},
			MediaTypes:   []string{"text"},
			QualityScore: 0.5,
			CreatedAt:    now.Add(-48 * time.Hour),
		},
		{
			ContentID:    "gaming-clip",
			Hashtags:     []string{"gaming", "esports", "streamer"},
			MediaTypes:   []string{"video"},
			QualityScore: 0.9,
			CreatedAt:    now.Add(-48 * time.Hour),
		},
	}

	ranked := ranker.Rank(ctx, "user-1", []string{"gaming"}, candidates, 10)
	require.Len(t, ranked, 2)
	assert.Equal(t, "gaming-clip", ranked[0].ContentID)
	assert.Greater(t, ranked[0].FinalScore, ranked[1].FinalScore)

	for _, item := range ranked {
		assert.Equal(t, "cold_start", item.RankingMethod)
		assert.Equal(t, 0.3, item.Confidence)
		assert.Contains(t, item.Explanation, "gaming")
		assert.GreaterOrEqual(t, item.FinalScore, 0.0)
		assert.LessOrEqual(t, item.FinalScore, 1.0)
	}
}

func TestRanker_RankCaseInsensitiveTags(t *testing.T) {
	ctx := context.Background()
	ranker := newTestRanker(nil)
	now := time.Now()
	ranker.now = func() time.Time { return now }

	candidates := []models.CandidateItem{
		{ContentID: "a", Hashtags: []string{"GAMING", "Esports"}, MediaTypes: []string{"video"}, CreatedAt: now.Add(-48 * time.Hour)},
		{ContentID: "b", Hashtags: []string{"knitting"}, MediaTypes: []string{"text"}, CreatedAt: now.Add(-48 * time.Hour)},
	}

	ranked := ranker.Rank(ctx, "user-1", []string{" Gaming "}, candidates, 10)
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].ContentID)
}

func TestRanker_RankDefaultsWhenNoInterests(t *testing.T) {
	ctx := context.Background()
	ranker := newTestRanker(nil)
	now := time.Now()
	ranker.now = func() time.Time { return now }

	candidates := []models.CandidateItem{
		{ContentID: "tech-post", Hashtags: []string{"tech", "ai"}, MediaTypes: []string{"text"}, QualityScore: 0.9, CreatedAt: now.Add(-48 * time.Hour)},
		{ContentID: "plain", Hashtags: []string{"misc"}, MediaTypes: []string{"text"}, CreatedAt: now.Add(-48 * time.Hour)},
	}

	ranked := ranker.Rank(ctx, "user-1", nil, candidates, 10)
	require.Len(t, ranked, 2)
	assert.Equal(t, "tech-post", ranked[0].ContentID)
	assert.Contains(t, ranked[0].Explanation, "news, technology, culture")
}

func TestRanker_RankOutputSortedAndBounded(t *testing.T) {
	ctx := context.Background()
	ranker := newTestRanker(nil)
	now := time.Now()
	ranker.now = func() time.Time { return now }

	var candidates []models.CandidateItem
	tags := [][]string{
		{"gaming", "esports"}, {"food", "recipe"}, {"music", "concert"},
		{"gaming"}, {"food"}, {"music"}, {"misc"}, {"misc2"},
	}
	for i, tagSet := range tags {
		candidates = append(candidates, models.CandidateItem{
			ContentID:  string(rune('a' + i)),
			Hashtags:   tagSet,
			MediaTypes: []string{"video"},
			CreatedAt:  now.Add(-48 * time.Hour),
		})
	}

	ranked := ranker.Rank(ctx, "user-1", []string{"gaming", "food", "music"}, candidates, 5)
	require.Len(t, ranked, 5)

	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].FinalScore, ranked[i].FinalScore)
	}
}

func TestRoundRobin_SpreadsAcrossInterests(t *testing.T) {
	interests := []string{"gaming", "food"}
	scored := []scoredCandidate{
		{item: models.CandidateItem{ContentID: "g1"}, score: 0.9, primaryInterest: "gaming"},
		{item: models.CandidateItem{ContentID: "g2"}, score: 0.8, primaryInterest: "gaming"},
		{item: models.CandidateItem{ContentID: "g3"}, score: 0.7, primaryInterest: "gaming"},
		{item: models.CandidateItem{ContentID: "f1"}, score: 0.3, primaryInterest: "food"},
	}

	out := roundRobin(scored, interests, 2)
	require.Len(t, out, 2)

	ids := map[string]bool{}
	for _, sc := range out {
		ids[sc.item.ContentID] = true
	}
	// One slot per interest even though gaming dominates by score.
	assert.True(t, ids["g1"])
	assert.True(t, ids["f1"])
}

func TestRoundRobin_FillsRemainderByScore(t *testing.T) {
	interests := []string{"gaming", "food"}
	scored := []scoredCandidate{
		{item: models.CandidateItem{ContentID: "g1"}, score: 0.9, primaryInterest: "gaming"},
		{item: models.CandidateItem{ContentID: "g2"}, score: 0.8, primaryInterest: "gaming"},
		{item: models.CandidateItem{ContentID: "x1"}, score: 0.5, primaryInterest: "other"},
		{item: models.CandidateItem{ContentID: "x2"}, score: 0.4, primaryInterest: "other"},
	}

	out := roundRobin(scored, interests, 3)
	require.Len(t, out, 3)

	ids := map[string]bool{}
	for _, sc := range out {
		ids[sc.item.ContentID] = true
	}
	assert.True(t, ids["g1"])
	assert.True(t, ids["g2"])
	assert.True(t, ids["x1"])
}
