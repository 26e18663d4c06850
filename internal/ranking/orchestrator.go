package ranking

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/feedfuse/feedfuse/internal/config"
	"github.com/feedfuse/feedfuse/internal/interests"
	"github.com/feedfuse/feedfuse/internal/metrics"
	"github.com/feedfuse/feedfuse/pkg/models"
)

const (
	MethodColdStart     = "cold_start"
	MethodMultiApproach = "multi_approach"
)

// ensembleScoreCeiling normalizes raw ensemble scores into [0, 1].
const ensembleScoreCeiling = 10.0

// SignalSource exposes the aggregator state the orchestrator reads.
type SignalSource interface {
	UserSignals(userID string, lookback time.Duration) []models.Signal
	Embedding(userID string) []float64
}

// Recommender is the collaborative ensemble lookup.
type Recommender interface {
	Recommend(userID string, n int) []models.CFResult
}

// ColdStart is the interest-only ranking fallback.
type ColdStart interface {
	ShouldUseColdStart(ctx context.Context, userID string) bool
	Boost(ctx context.Context, userID string) float64
	InteractionCount(userID string) int
	Rank(ctx context.Context, userID string, tags []string, candidates []models.CandidateItem, limit int) []models.RankedItem
}

// InterestSource fetches declared interests for a user.
type InterestSource interface {
	GetInterests(ctx context.Context, userID, authToken string) []string
}

// Orchestrator fuses per-item component scores into one ordered feed, or
// delegates to the cold-start ranker when the user's history is too thin.
// Ranking is a synchronous, stateless read over already-aggregated state.
type Orchestrator struct {
	cfg       *config.RankingConfig
	signals   SignalSource
	ensemble  Recommender
	coldStart ColdStart
	interests InterestSource
	collector *metrics.Collector
	logger    *logrus.Logger

	now func() time.Time
}

func NewOrchestrator(
	cfg *config.RankingConfig,
	signals SignalSource,
	ensemble Recommender,
	coldStart ColdStart,
	interestSource InterestSource,
	collector *metrics.Collector,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		signals:   signals,
		ensemble:  ensemble,
		coldStart: coldStart,
		interests: interestSource,
		collector: collector,
		logger:    logger,
		now:       time.Now,
	}
}

// Rank orders candidates for a user. A cold user is handed entirely to the
// cold-start ranker. Component failures degrade to a zero score, never to a
// request failure.
func (o *Orchestrator) Rank(ctx context.Context, userID string, candidates []models.CandidateItem, limit int, authToken string) *models.RankResponse {
	started := o.now()
	if limit <= 0 {
		limit = 20
	}

	tags := o.interests.GetInterests(ctx, userID, authToken)

	method := MethodMultiApproach
	var items []models.RankedItem
	if o.coldStart.ShouldUseColdStart(ctx, userID) {
		method = MethodColdStart
		items = o.coldStart.Rank(ctx, userID, tags, candidates, limit)
	} else {
		items = o.fuse(userID, tags, candidates, limit)
		if len(items) == 0 && len(candidates) > 0 {
			// Zero trained algorithms and no behavioral state still has
			// to produce a feed.
			method = MethodColdStart
			items = o.coldStart.Rank(ctx, userID, tags, candidates, limit)
		}
	}

	o.collector.Report(metrics.Event{
		Kind:    metrics.RankRequest,
		Method:  method,
		Latency: o.now().Sub(started),
	})
	o.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"candidates": len(candidates),
		"returned":   len(items),
		"method":     method,
	}).Debug("Ranked candidate set")

	return &models.RankResponse{
		UserID:      userID,
		Items:       items,
		Method:      method,
		GeneratedAt: started,
	}
}

func (o *Orchestrator) fuse(userID string, tags []string, candidates []models.CandidateItem, limit int) []models.RankedItem {
	now := o.now()
	userVector := o.signals.Embedding(userID)
	recent := o.signals.UserSignals(userID, time.Hour)
	cfScores := o.collaborativeScores(userID, len(candidates))
	weighted := interests.Weighted(tags)

	ranked := make([]models.RankedItem, 0, len(candidates))
	for _, item := range candidates {
		scores := models.ComponentScores{
			ContentBased:  contentScore(item.Features, userVector),
			Collaborative: cfScores[item.ContentID],
			RealTime:      o.realTimeScore(item.ContentID, recent, now),
			UserInterests: interestScore(item, weighted),
			Freshness:     o.freshnessScore(item.CreatedAt, now),
		}

		ranked = append(ranked, models.RankedItem{
			ContentID:       item.ContentID,
			FinalScore:      o.combine(scores),
			Confidence:      confidence(scores),
			RankingMethod:   MethodMultiApproach,
			Explanation:     explain(scores),
			ComponentScores: scores,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		return ranked[i].ContentID < ranked[j].ContentID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Insights reports the engine's current view of a user.
func (o *Orchestrator) Insights(ctx context.Context, userID, authToken string) *models.UserInsights {
	tags := o.interests.GetInterests(ctx, userID, authToken)
	cold := o.coldStart.ShouldUseColdStart(ctx, userID)

	method := MethodMultiApproach
	if cold {
		method = MethodColdStart
	}

	return &models.UserInsights{
		UserID:            userID,
		ColdStartActive:   cold,
		ColdStartBoost:    o.coldStart.Boost(ctx, userID),
		Interests:         tags,
		InterestDiversity: interests.DiversityScore(tags),
		InteractionCount:  o.coldStart.InteractionCount(userID),
		RankingMethod:     method,
	}
}

// collaborativeScores maps content id to the normalized ensemble score.
func (o *Orchestrator) collaborativeScores(userID string, n int) map[string]float64 {
	recs := o.ensemble.Recommend(userID, n)
	out := make(map[string]float64, len(recs))
	for _, rec := range recs {
		score := rec.Score / ensembleScoreCeiling
		if score > 1.0 {
			score = 1.0
		}
		if score < 0.0 {
			score = 0.0
		}
		out[rec.ItemID] = score
	}
	return out
}

// contentScore is the cosine similarity between the item's perceptual
// feature vector and the user's behavioral embedding, rescaled to [0, 1].
func contentScore(itemVector, userVector []float64) float64 {
	n := len(itemVector)
	if len(userVector) < n {
		n = len(userVector)
	}
	if n == 0 {
		return 0.0
	}

	iv := itemVector[:n]
	uv := userVector[:n]
	itemNorm := floats.Norm(iv, 2)
	userNorm := floats.Norm(uv, 2)
	if itemNorm == 0 || userNorm == 0 {
		return 0.0
	}

	similarity := floats.Dot(iv, uv) / (itemNorm * userNorm)
	rescaled := (similarity + 1.0) / 2.0
	return math.Max(0.0, math.Min(1.0, rescaled))
}

// realTimeScore decays each of the item's recent signals with a 2 hour
// half-life, so only momentary momentum counts.
func (o *Orchestrator) realTimeScore(contentID string, recent []models.Signal, now time.Time) float64 {
	if len(recent) == 0 {
		return 0.0
	}

	halfLife := o.cfg.RealTimeHalfLife.Hours()
	if halfLife <= 0 {
		halfLife = 2.0
	}
	ceiling := o.cfg.RealTimeCeiling
	if ceiling <= 0 {
		ceiling = 5.0
	}

	total := 0.0
	for _, s := range recent {
		if s.ContentID != contentID {
			continue
		}
		hours := now.Sub(s.Timestamp).Hours()
		if hours < 0 {
			hours = 0
		}
		total += models.SignalWeight(s.Type) * s.Intensity * math.Exp(-hours/halfLife)
	}

	return math.Min(ceiling, total) / ceiling
}

// interestScore measures declared-interest overlap with the item text and
// category, normalized by the maximum attainable score.
func interestScore(item models.CandidateItem, weighted map[string]float64) float64 {
	if len(weighted) == 0 {
		return 0.0
	}

	text := strings.ToLower(item.Text)
	category := strings.ToLower(item.Category)

	score := 0.0
	maxScore := 0.0
	for tag, weight := range weighted {
		maxScore += weight * 2.0
		if strings.Contains(text, tag) {
			score += weight
		}
		if strings.Contains(category, tag) {
			score += weight * 0.5
		}
	}
	if maxScore == 0 {
		return 0.0
	}
	return math.Min(1.0, score/maxScore)
}

func (o *Orchestrator) freshnessScore(createdAt time.Time, now time.Time) float64 {
	if createdAt.IsZero() {
		return 0.5
	}

	halfLife := o.cfg.FreshnessHalfLife.Hours()
	if halfLife <= 0 {
		halfLife = 24.0
	}
	floor := o.cfg.FreshnessFloor

	age := now.Sub(createdAt).Hours()
	if age < 0 {
		age = 0
	}
	return math.Max(floor, math.Exp(-age/halfLife))
}

// combine is the weighted average over the five components, renormalized
// by the weight sum so miscalibrated configuration still yields [0, 1].
func (o *Orchestrator) combine(s models.ComponentScores) float64 {
	total := s.ContentBased*o.cfg.ContentWeight +
		s.Collaborative*o.cfg.CollaborativeWeight +
		s.RealTime*o.cfg.RealTimeWeight +
		s.UserInterests*o.cfg.InterestsWeight +
		s.Freshness*o.cfg.FreshnessWeight

	weightSum := o.cfg.WeightSum()
	if weightSum <= 0 {
		return 0.0
	}
	return total / weightSum
}

// confidence grows when multiple independent components agree: low variance
// among the non-zero scores, boosted by the fraction that fired at all.
func confidence(s models.ComponentScores) float64 {
	all := []float64{s.ContentBased, s.Collaborative, s.RealTime, s.UserInterests, s.Freshness}

	nonZero := make([]float64, 0, len(all))
	for _, v := range all {
		if v > 0 {
			nonZero = append(nonZero, v)
		}
	}
	if len(nonZero) == 0 {
		return 0.0
	}

	variance := stat.PopVariance(nonZero, nil)
	c := 1.0 / (1.0 + variance)
	c *= 0.5 + 0.5*float64(len(nonZero))/float64(len(all))
	return math.Min(1.0, c)
}

func explain(s models.ComponentScores) string {
	var clauses []string

	switch {
	case s.ContentBased > 0.7:
		clauses = append(clauses, "high content similarity")
	case s.ContentBased > 0.4:
		clauses = append(clauses, "moderate content similarity")
	}
	switch {
	case s.Collaborative > 0.7:
		clauses = append(clauses, "strong collaborative filtering score")
	case s.Collaborative > 0.4:
		clauses = append(clauses, "moderate collaborative filtering score")
	}
	if s.RealTime > 0.5 {
		clauses = append(clauses, "recent positive engagement")
	}
	if s.UserInterests > 0.5 {
		clauses = append(clauses, "matches declared interests")
	}
	if s.Freshness > 0.8 {
		clauses = append(clauses, "recently published")
	}

	if len(clauses) == 0 {
		return "baseline recommendation"
	}
	return strings.Join(clauses, "; ")
}
