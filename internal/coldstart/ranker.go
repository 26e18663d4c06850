package coldstart

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/feedfuse/feedfuse/internal/config"
	"github.com/feedfuse/feedfuse/internal/store"
	"github.com/feedfuse/feedfuse/pkg/models"
)

// coldStartConfidence is the fixed confidence attached to cold-start
// results, signaling low information.
const coldStartConfidence = 0.3

var foldCaser = cases.Fold()

func normalizeTag(s string) string {
	return foldCaser.String(norm.NFC.String(strings.TrimSpace(s)))
}

// InteractionCounter reports how much history a user has accumulated.
type InteractionCounter interface {
	UserInteractionCount(userID string) int
}

// Ranker scores candidates from declared interests alone. Each user moves
// through a two-state machine: cold until both enough history exists and
// the cold-start boost has decayed below threshold, then warm forever.
type Ranker struct {
	cfg     *config.ColdStartConfig
	store   store.FeatureStore
	counter InteractionCounter
	logger  *logrus.Logger

	now func() time.Time
}

func NewRanker(cfg *config.ColdStartConfig, featureStore store.FeatureStore, counter InteractionCounter, logger *logrus.Logger) *Ranker {
	return &Ranker{
		cfg:     cfg,
		store:   featureStore,
		counter: counter,
		logger:  logger,
		now:     time.Now,
	}
}

// RecordFirstUse stores the user's first-seen timestamp if absent. The
// timestamp anchors the boost decay and never moves afterwards.
func (r *Ranker) RecordFirstUse(ctx context.Context, userID string) {
	features, err := r.store.Get(ctx, store.NamespaceUserFeatures, userID)
	if err != nil {
		r.logger.WithError(err).WithField("user_id", userID).Warn("Failed to read user features")
		return
	}
	if features != nil {
		if _, ok := features["first_seen"]; ok {
			return
		}
	} else {
		features = make(map[string]interface{})
	}

	features["first_seen"] = r.now().Format(time.RFC3339Nano)
	if err := r.store.Set(ctx, store.NamespaceUserFeatures, userID, features, 0); err != nil {
		r.logger.WithError(err).WithField("user_id", userID).Warn("Failed to store first-use timestamp")
	}
}

// Boost returns the cold-start decay factor 0.95^days, exactly zero from
// day 30 on. Monotonically non-increasing in account age; once zero it
// never reactivates.
func (r *Ranker) Boost(ctx context.Context, userID string) float64 {
	features, err := r.store.Get(ctx, store.NamespaceUserFeatures, userID)
	if err != nil || features == nil {
		return 1.0 // no record yet: brand-new user, full boost
	}

	raw, ok := features["first_seen"].(string)
	if !ok {
		return 1.0
	}
	firstSeen, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return 1.0
	}

	days := int(r.now().Sub(firstSeen).Hours() / 24)
	if days < 0 {
		days = 0
	}
	if days >= r.cfg.BoostCutoffDays {
		return 0.0
	}
	return math.Pow(r.cfg.BoostDecayBase, float64(days))
}

// InteractionCount reports how many interactions the user has logged.
func (r *Ranker) InteractionCount(userID string) int {
	return r.counter.UserInteractionCount(userID)
}

// ShouldUseColdStart reports whether the user is still in the cold state.
// Transition to warm requires both enough interaction history and a
// decayed boost; a state-not-found condition means cold, never an error.
func (r *Ranker) ShouldUseColdStart(ctx context.Context, userID string) bool {
	if r.counter.UserInteractionCount(userID) < r.cfg.InteractionThreshold {
		return true
	}
	return r.Boost(ctx, userID) >= r.cfg.BoostThreshold
}

type scoredCandidate struct {
	item            models.CandidateItem
	score           float64
	primaryInterest string
}

// Rank orders candidates by interest-tag overlap, then round-robins slots
// across the declared interests for diversity before filling the rest by
// raw score.
func (r *Ranker) Rank(ctx context.Context, userID string, interests []string, candidates []models.CandidateItem, limit int) []models.RankedItem {
	if len(interests) == 0 {
		interests = defaultInterests
	}
	normalized := make([]string, len(interests))
	for i, interest := range interests {
		normalized[i] = normalizeTag(interest)
	}

	r.RecordFirstUse(ctx, userID)

	scored := make([]scoredCandidate, 0, len(candidates))
	for _, item := range candidates {
		scored = append(scored, scoredCandidate{
			item:            item,
			score:           r.interestScore(item, normalized),
			primaryInterest: primaryInterest(item, normalized),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].item.ContentID < scored[j].item.ContentID
	})

	// Diversity constrains membership; the final order is still by score.
	diverse := roundRobin(scored, normalized, limit)
	sort.SliceStable(diverse, func(i, j int) bool {
		if diverse[i].score != diverse[j].score {
			return diverse[i].score > diverse[j].score
		}
		return diverse[i].item.ContentID < diverse[j].item.ContentID
	})

	explanation := fmt.Sprintf("cold start based on interests: %s", strings.Join(interests, ", "))
	out := make([]models.RankedItem, 0, len(diverse))
	for _, sc := range diverse {
		out = append(out, models.RankedItem{
			ContentID:     sc.item.ContentID,
			FinalScore:    sc.score,
			Confidence:    coldStartConfidence,
			RankingMethod: "cold_start",
			Explanation:   explanation,
		})
	}
	return out
}

// interestScore sums, per matching interest: content-type match, hashtag
// overlap (capped), and a quality-threshold bonus, plus engagement and
// freshness nudges. Clamped to [0, 1].
func (r *Ranker) interestScore(item models.CandidateItem, interests []string) float64 {
	var score float64

	itemTags := make(map[string]bool, len(item.Hashtags))
	for _, tag := range item.Hashtags {
		itemTags[normalizeTag(tag)] = true
	}

	for _, interest := range interests {
		profile, ok := interestProfiles[interest]
		if !ok {
			// Unknown interest: fall back on direct tag overlap.
			if itemTags[interest] {
				score += 0.2
			}
			continue
		}

		for _, mediaType := range item.MediaTypes {
			if contains(profile.ContentTypes, mediaType) {
				score += 0.3
				break
			}
		}

		matches := 0
		for _, tag := range profile.Hashtags {
			if itemTags[tag] {
				matches++
			}
		}
		if matches > r.cfg.MaxHashtagMatches {
			matches = r.cfg.MaxHashtagMatches
		}
		score += 0.2 * float64(matches)

		if item.QualityScore >= profile.QualityThreshold {
			score += 0.2
		}
	}

	if item.EngagementRate > 0.1 {
		score += 0.1
	}
	if age := r.now().Sub(item.CreatedAt); age < 8*time.Hour {
		score += 0.1
	}

	return math.Min(1.0, math.Max(0.0, score))
}

func primaryInterest(item models.CandidateItem, interests []string) string {
	itemText := normalizeTag(item.Text)
	itemTags := make(map[string]bool, len(item.Hashtags))
	for _, tag := range item.Hashtags {
		itemTags[normalizeTag(tag)] = true
	}

	best := interests[0]
	bestMatches := 0
	for _, interest := range interests {
		profile, ok := interestProfiles[interest]
		if !ok {
			continue
		}
		matches := 0
		for _, tag := range profile.Hashtags {
			if itemTags[tag] || strings.Contains(itemText, tag) {
				matches++
			}
		}
		if matches > bestMatches {
			bestMatches = matches
			best = interest
		}
	}
	return best
}

// roundRobin allocates result slots cycling across interests, taking each
// group's next-best candidate, then fills any remainder by raw score.
func roundRobin(scored []scoredCandidate, interests []string, limit int) []scoredCandidate {
	if limit <= 0 || len(scored) == 0 {
		return nil
	}
	if len(scored) <= limit {
		return scored
	}

	groups := make(map[string][]scoredCandidate)
	for _, sc := range scored {
		groups[sc.primaryInterest] = append(groups[sc.primaryInterest], sc)
	}

	taken := make(map[string]bool, limit)
	var out []scoredCandidate

	for len(out) < limit {
		progressed := false
		for _, interest := range interests {
			if len(out) >= limit {
				break
			}
			group := groups[interest]
			for len(group) > 0 && taken[group[0].item.ContentID] {
				group = group[1:]
			}
			if len(group) == 0 {
				groups[interest] = nil
				continue
			}
			out = append(out, group[0])
			taken[group[0].item.ContentID] = true
			groups[interest] = group[1:]
			progressed = true
		}
		if !progressed {
			break
		}
	}

	for _, sc := range scored {
		if len(out) >= limit {
			break
		}
		if !taken[sc.item.ContentID] {
			out = append(out, sc)
			taken[sc.item.ContentID] = true
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
