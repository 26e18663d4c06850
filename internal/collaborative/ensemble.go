package collaborative

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/feedfuse/feedfuse/internal/config"
	"github.com/feedfuse/feedfuse/internal/metrics"
	"github.com/feedfuse/feedfuse/pkg/models"
)

const (
	MethodNMF          = "nmf"
	MethodNeighborhood = "neighborhood"
	MethodBPR          = "bpr"
	MethodALS          = "als"
)

// Ensemble trains several independent recommendation algorithms against
// one sparse interaction matrix and reconciles their disagreement. An
// algorithm that fails to train is skipped for that cycle; if none
// succeed, recommendations are empty and callers fall back to cold start.
type Ensemble struct {
	log       *InteractionLog
	cfg       *config.EnsembleConfig
	logger    *logrus.Logger
	collector *metrics.Collector

	mu           sync.RWMutex
	matrix       *Matrix
	nmf          *nmfModel
	neighborhood *neighborhoodModel
	bpr          *bprModel
	als          *alsModel
	trainedAt    time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
	startMu sync.Mutex
}

func NewEnsemble(log *InteractionLog, cfg *config.EnsembleConfig, collector *metrics.Collector, logger *logrus.Logger) *Ensemble {
	return &Ensemble{
		log:       log,
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the periodic retraining loop.
func (e *Ensemble) Start() error {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	if e.started {
		return fmt.Errorf("ensemble already running")
	}

	e.wg.Add(1)
	go e.retrainLoop()
	e.started = true
	return nil
}

func (e *Ensemble) Stop() {
	e.startMu.Lock()
	defer e.startMu.Unlock()

	if !e.started {
		return
	}
	close(e.stopCh)
	e.wg.Wait()
	e.started = false
}

func (e *Ensemble) retrainLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.RetrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Train()
		case <-e.stopCh:
			return
		}
	}
}

// Train rebuilds the matrix and fits each algorithm independently.
func (e *Ensemble) Train() {
	matrix := e.log.Build()
	if matrix.NNZ() == 0 {
		e.logger.Debug("Skipping ensemble training: empty interaction matrix")
		return
	}

	dense := matrix.Dense()
	rng := rand.New(rand.NewSource(42))

	nmf, err := trainNMF(dense, e.cfg.Factors, e.cfg.NMFIterations, rng)
	if err != nil {
		e.logger.WithError(err).Warn("NMF training failed, skipping for this cycle")
	}

	neighborhood, err := trainNeighborhood(matrix)
	if err != nil {
		e.logger.WithError(err).Warn("Neighborhood training failed, skipping for this cycle")
	}

	bpr, err := trainBPR(matrix, e.cfg.Factors, e.cfg.BPRIterations, e.cfg.LearningRate, e.cfg.Regularization, rng)
	if err != nil {
		e.logger.WithError(err).Warn("BPR training failed, skipping for this cycle")
	}

	als, err := trainALS(matrix, e.cfg.Factors, e.cfg.ALSIterations, e.cfg.Regularization, rng)
	if err != nil {
		e.logger.WithError(err).Warn("ALS training failed, skipping for this cycle")
	}

	e.mu.Lock()
	e.matrix = matrix
	e.nmf = nmf
	e.neighborhood = neighborhood
	e.bpr = bpr
	e.als = als
	e.trainedAt = time.Now()
	e.mu.Unlock()

	e.collector.Report(metrics.Event{Kind: metrics.EnsembleTrained})
	e.logger.WithFields(logrus.Fields{
		"users":        len(matrix.Users),
		"items":        len(matrix.Items),
		"interactions": matrix.NNZ(),
	}).Info("Collaborative ensemble trained")
}

// Recommend returns the ensemble's top-n items for a user. Per-algorithm
// candidates are grouped by item, scores averaged, and confidence boosted
// by the number of distinct agreeing methods.
func (e *Ensemble) Recommend(userID string, n int) []models.CFResult {
	e.mu.RLock()
	matrix := e.matrix
	nmf, neighborhood, bpr, als := e.nmf, e.neighborhood, e.bpr, e.als
	e.mu.RUnlock()

	if matrix == nil {
		return nil
	}

	userIdx := -1
	for idx, id := range matrix.Users {
		if id == userID {
			userIdx = idx
			break
		}
	}
	if userIdx < 0 {
		return nil
	}

	var candidates []models.CFResult
	if nmf != nil {
		candidates = append(candidates, e.topK(userID, matrix, nmf.scores(userIdx), MethodNMF, n)...)
	}
	if neighborhood != nil {
		candidates = append(candidates, e.topK(userID, matrix, neighborhood.scores(userIdx, e.cfg.Neighbors), MethodNeighborhood, n)...)
	}
	if bpr != nil {
		candidates = append(candidates, e.topK(userID, matrix, bpr.scores(userIdx), MethodBPR, n)...)
	}
	if als != nil {
		candidates = append(candidates, e.topK(userID, matrix, als.scores(userIdx, matrix), MethodALS, n)...)
	}

	return aggregate(candidates, n)
}

func (e *Ensemble) topK(userID string, matrix *Matrix, scores []float64, method string, k int) []models.CFResult {
	type scored struct {
		idx   int
		score float64
	}

	ranked := make([]scored, 0, len(scores))
	for idx, s := range scores {
		if s > 0 {
			ranked = append(ranked, scored{idx: idx, score: s})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return matrix.Items[ranked[i].idx] < matrix.Items[ranked[j].idx]
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	out := make([]models.CFResult, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, models.CFResult{
			UserID:      userID,
			ItemID:      matrix.Items[r.idx],
			Score:       r.score,
			Method:      method,
			Confidence:  math.Min(math.Abs(r.score)/10.0, 1.0),
			Explanation: fmt.Sprintf("%s score: %.3f", method, r.score),
		})
	}
	return out
}

// aggregate groups per-algorithm candidates by item, averages their raw
// scores, and boosts confidence with the count of distinct contributing
// methods (capped at a 2x multiplier).
func aggregate(candidates []models.CFResult, n int) []models.CFResult {
	if len(candidates) == 0 {
		return nil
	}

	type group struct {
		scoreSum   float64
		confSum    float64
		count      int
		methods    map[string]bool
		methodList []string
	}

	groups := make(map[string]*group)
	userID := candidates[0].UserID

	for _, c := range candidates {
		g, ok := groups[c.ItemID]
		if !ok {
			g = &group{methods: make(map[string]bool)}
			groups[c.ItemID] = g
		}
		g.scoreSum += c.Score
		g.confSum += c.Confidence
		g.count++
		if !g.methods[c.Method] {
			g.methods[c.Method] = true
			g.methodList = append(g.methodList, c.Method)
		}
	}

	out := make([]models.CFResult, 0, len(groups))
	for itemID, g := range groups {
		avgScore := g.scoreSum / float64(g.count)
		baseConf := g.confSum / float64(g.count)

		multiplier := math.Min(1.0+0.25*float64(len(g.methods)-1), 2.0)
		confidence := math.Min(baseConf*multiplier, 1.0)

		sort.Strings(g.methodList)
		out = append(out, models.CFResult{
			UserID:      userID,
			ItemID:      itemID,
			Score:       avgScore,
			Method:      "ensemble",
			Confidence:  confidence,
			Explanation: fmt.Sprintf("combined from %d method(s): %s", len(g.methods), strings.Join(g.methodList, ", ")),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ItemID < out[j].ItemID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// TrainedAt reports when the ensemble last trained successfully.
func (e *Ensemble) TrainedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trainedAt
}
