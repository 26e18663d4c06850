package signals

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/feedfuse/feedfuse/internal/config"
	"github.com/feedfuse/feedfuse/internal/metrics"
	"github.com/feedfuse/feedfuse/internal/store"
	"github.com/feedfuse/feedfuse/pkg/models"
)

// SignalPublisher republishes processed signals for downstream consumers.
// Publish failures are non-fatal.
type SignalPublisher interface {
	Publish(ctx context.Context, signal models.Signal) error
}

// Aggregator drains the ingestor queues with a pool of workers, maintains
// per-user ring buffers and EMA embeddings, and recomputes time-windowed
// aggregates on a fixed cadence. It is the exclusive owner of the buffers
// and embeddings; other components read through accessor methods.
type Aggregator struct {
	cfg       *config.SignalsConfig
	ingestor  *Ingestor
	store     store.FeatureStore
	publisher SignalPublisher
	collector *metrics.Collector
	logger    *logrus.Logger

	buffersMu sync.RWMutex
	buffers   map[string]*ringBuffer

	embedMu     sync.RWMutex
	embeddings  map[string][]float64
	signalCount map[string]int64

	aggMu      sync.RWMutex
	aggregates map[string]*models.SignalAggregate

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex

	now func() time.Time
}

func NewAggregator(
	cfg *config.SignalsConfig,
	ingestor *Ingestor,
	featureStore store.FeatureStore,
	publisher SignalPublisher,
	collector *metrics.Collector,
	logger *logrus.Logger,
) *Aggregator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		cfg:         cfg,
		ingestor:    ingestor,
		store:       featureStore,
		publisher:   publisher,
		collector:   collector,
		logger:      logger,
		buffers:     make(map[string]*ringBuffer),
		embeddings:  make(map[string][]float64),
		signalCount: make(map[string]int64),
		aggregates:  make(map[string]*models.SignalAggregate),
		ctx:         ctx,
		cancel:      cancel,
		now:         time.Now,
	}
}

// Start launches the worker pool and the periodic aggregation and
// monitoring loops.
func (a *Aggregator) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("aggregator already running")
	}

	for i := 0; i < a.cfg.Workers; i++ {
		a.wg.Add(1)
		go a.worker(i)
	}

	a.wg.Add(1)
	go a.aggregationLoop()

	a.wg.Add(1)
	go a.monitoringLoop()

	a.started = true
	a.logger.WithField("workers", a.cfg.Workers).Info("Signal aggregator started")
	return nil
}

// Stop signals all loops to exit at their next poll boundary and waits for
// in-flight signals to finish.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return
	}

	a.ingestor.Close()
	a.cancel()
	a.wg.Wait()
	a.started = false
	a.logger.Info("Signal aggregator stopped")
}

// worker drains the high-priority queue before the normal queue. Strict
// priority: starvation of normal-priority traffic is an accepted trade-off
// favoring latency-sensitive signals.
func (a *Aggregator) worker(id int) {
	defer a.wg.Done()

	timer := time.NewTimer(a.cfg.PollTimeout)
	defer timer.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		default:
		}

		select {
		case s := <-a.ingestor.high:
			a.process(s)
			continue
		default:
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(a.cfg.PollTimeout)

		select {
		case s := <-a.ingestor.high:
			a.process(s)
		case s := <-a.ingestor.normal:
			a.process(s)
		case <-timer.C:
			// Idle poll so shutdown is observed promptly.
		case <-a.ctx.Done():
			return
		}
	}
}

func (a *Aggregator) process(s models.Signal) {
	s.Processed = true

	a.buffer(s.UserID).Append(s)
	a.updateEmbedding(s)

	if err := a.persistSignal(s); err != nil {
		// External-store gap only; self-heals on the next signal.
		a.logger.WithError(err).WithField("signal_id", s.SignalID).Warn("Failed to persist signal")
	}

	if a.publisher != nil {
		ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
		if err := a.publisher.Publish(ctx, s); err != nil {
			a.logger.WithError(err).WithField("signal_id", s.SignalID).Warn("Failed to republish signal")
		}
		cancel()
	}

	a.collector.Report(metrics.Event{Kind: metrics.SignalProcessed})
	a.collector.Report(metrics.Event{Kind: metrics.QueueDepth, Value: float64(a.ingestor.QueueDepth())})
}

func (a *Aggregator) buffer(userID string) *ringBuffer {
	a.buffersMu.RLock()
	rb, ok := a.buffers[userID]
	a.buffersMu.RUnlock()
	if ok {
		return rb
	}

	a.buffersMu.Lock()
	defer a.buffersMu.Unlock()
	if rb, ok = a.buffers[userID]; ok {
		return rb
	}
	rb = newRingBuffer(a.cfg.RingBufferCapacity)
	a.buffers[userID] = rb
	return rb
}

// updateEmbedding applies the EMA rule new = normalize((1-α)·old + α·v).
// Embeddings stay unit-normalized after every update.
func (a *Aggregator) updateEmbedding(s models.Signal) {
	v := signalVector(s, a.cfg.EmbeddingDim)

	a.embedMu.Lock()
	defer a.embedMu.Unlock()

	current, ok := a.embeddings[s.UserID]
	if !ok {
		current = make([]float64, a.cfg.EmbeddingDim)
	}

	alpha := a.cfg.EmbeddingAlpha
	updated := make([]float64, a.cfg.EmbeddingDim)
	floats.AddScaled(updated, 1-alpha, current)
	floats.AddScaled(updated, alpha, v)

	if norm := floats.Norm(updated, 2); norm > 0 {
		floats.Scale(1/norm, updated)
	}

	a.embeddings[s.UserID] = updated
	a.signalCount[s.UserID]++
}

func (a *Aggregator) persistSignal(s models.Signal) error {
	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()

	return a.store.Set(ctx, store.NamespaceSignals, s.SignalID.String(), map[string]interface{}{
		"signal_id":   s.SignalID.String(),
		"user_id":     s.UserID,
		"signal_type": string(s.Type),
		"content_id":  s.ContentID,
		"session_id":  s.SessionID,
		"timestamp":   s.Timestamp.Format(time.RFC3339Nano),
		"duration":    s.Duration,
		"intensity":   s.Intensity,
		"processed":   s.Processed,
	}, a.cfg.SignalTTL)
}

func (a *Aggregator) aggregationLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.AggregationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.RunAggregationCycle()
		case <-a.ctx.Done():
			return
		}
	}
}

// RunAggregationCycle recomputes aggregates for every user with a
// non-empty buffer, for every time window, from the current buffer
// contents. The result is a pure function of (buffer, now).
func (a *Aggregator) RunAggregationCycle() {
	started := a.now()

	a.buffersMu.RLock()
	userIDs := make([]string, 0, len(a.buffers))
	for userID := range a.buffers {
		userIDs = append(userIDs, userID)
	}
	a.buffersMu.RUnlock()

	for _, userID := range userIDs {
		a.aggregateUser(userID, started)
	}

	a.collector.Report(metrics.Event{
		Kind:    metrics.AggregationCycle,
		Latency: a.now().Sub(started),
	})
}

func (a *Aggregator) aggregateUser(userID string, now time.Time) {
	signals := a.buffer(userID).Snapshot()
	if len(signals) == 0 {
		return
	}

	for _, window := range models.TimeWindows {
		cutoff := now.Add(-window.Lookback())

		var windowed []models.Signal
		for _, s := range signals {
			if !s.Timestamp.Before(cutoff) {
				windowed = append(windowed, s)
			}
		}
		if len(windowed) == 0 {
			continue
		}

		agg := a.computeAggregate(userID, window, windowed, now)

		a.aggMu.Lock()
		a.aggregates[userID+":"+string(window)] = agg
		a.aggMu.Unlock()

		if err := a.persistAggregate(agg); err != nil {
			a.logger.WithError(err).WithFields(logrus.Fields{
				"user_id": userID,
				"window":  window,
			}).Warn("Failed to persist aggregate")
		}
	}
}

func (a *Aggregator) computeAggregate(userID string, window models.TimeWindow, signals []models.Signal, now time.Time) *models.SignalAggregate {
	counts := make(map[models.SignalType]int)
	contentInteractions := make(map[string]map[models.SignalType]int)

	for _, s := range signals {
		counts[s.Type]++
		if s.ContentID != "" {
			if contentInteractions[s.ContentID] == nil {
				contentInteractions[s.ContentID] = make(map[models.SignalType]int)
			}
			contentInteractions[s.ContentID][s.Type]++
		}
	}

	return &models.SignalAggregate{
		UserID:              userID,
		TimeWindow:          window,
		SignalCounts:        counts,
		ContentInteractions: contentInteractions,
		TemporalPatterns:    temporalPatterns(signals),
		EngagementScore:     a.engagementScore(signals, now),
		LastUpdated:         now,
	}
}

// engagementScore is the intensity- and recency-weighted mean of per-signal
// scores, capped at the configured ceiling.
func (a *Aggregator) engagementScore(signals []models.Signal, now time.Time) float64 {
	if len(signals) == 0 {
		return 0
	}

	halfLifeHours := a.cfg.EngagementHalfLife.Hours()
	var totalScore, totalWeight float64

	for _, s := range signals {
		weight := models.SignalWeight(s.Type)
		ageHours := now.Sub(s.Timestamp).Hours()
		if ageHours < 0 {
			ageHours = 0
		}
		totalScore += weight * s.Intensity * math.Exp(-ageHours/halfLifeHours)
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0
	}
	return math.Min(totalScore/totalWeight, a.cfg.EngagementCeiling)
}

func temporalPatterns(signals []models.Signal) map[string]float64 {
	patterns := make(map[string]float64)
	if len(signals) == 0 {
		return patterns
	}

	// Buffer entries are not position-ordered across workers; sort by
	// timestamp before computing gaps.
	ordered := make([]models.Signal, len(signals))
	copy(ordered, signals)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Timestamp.Before(ordered[j-1].Timestamp); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	if len(ordered) > 1 {
		gaps := make([]float64, 0, len(ordered)-1)
		for i := 1; i < len(ordered); i++ {
			gaps = append(gaps, ordered[i].Timestamp.Sub(ordered[i-1].Timestamp).Seconds())
		}
		patterns["avg_time_between_signals"] = stat.Mean(gaps, nil)
		if len(gaps) > 1 {
			patterns["std_time_between_signals"] = stat.StdDev(gaps, nil)
		}

		span := ordered[len(ordered)-1].Timestamp.Sub(ordered[0].Timestamp).Seconds()
		if span > 0 {
			patterns["signals_per_second"] = float64(len(ordered)) / span
		}
	}

	hourCounts := make(map[int]int)
	for _, s := range ordered {
		hourCounts[s.Timestamp.Hour()]++
	}
	peakHour, peakCount := 0, 0
	for hour, count := range hourCounts {
		if count > peakCount || (count == peakCount && hour < peakHour) {
			peakHour, peakCount = hour, count
		}
	}
	patterns["peak_activity_hour"] = float64(peakHour)

	return patterns
}

func (a *Aggregator) persistAggregate(agg *models.SignalAggregate) error {
	ctx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
	defer cancel()

	counts := make(map[string]interface{}, len(agg.SignalCounts))
	for t, c := range agg.SignalCounts {
		counts[string(t)] = c
	}

	return a.store.Set(ctx, store.NamespaceAggregates, agg.UserID+":"+string(agg.TimeWindow), map[string]interface{}{
		"user_id":          agg.UserID,
		"time_window":      string(agg.TimeWindow),
		"signal_counts":    counts,
		"engagement_score": agg.EngagementScore,
		"last_updated":     agg.LastUpdated.Format(time.RFC3339Nano),
	}, a.cfg.AggregateTTL)
}

func (a *Aggregator) monitoringLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.MonitoringInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			snap := a.collector.Snapshot()
			a.logger.WithFields(logrus.Fields{
				"queue_depth":  a.ingestor.QueueDepth(),
				"processed":    snap.SignalsProcessed,
				"dropped":      snap.SignalsDropped,
				"active_users": a.ActiveUsers(),
			}).Info("Signal pipeline status")
		case <-a.ctx.Done():
			return
		}
	}
}

// UserSignals returns the user's buffered signals whose timestamps fall
// within the lookback from now.
func (a *Aggregator) UserSignals(userID string, lookback time.Duration) []models.Signal {
	a.buffersMu.RLock()
	rb, ok := a.buffers[userID]
	a.buffersMu.RUnlock()
	if !ok {
		return nil
	}

	cutoff := a.now().Add(-lookback)
	var out []models.Signal
	for _, s := range rb.Snapshot() {
		if !s.Timestamp.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// Aggregate returns the most recently computed aggregate for a user and
// window, or nil when none exists yet.
func (a *Aggregator) Aggregate(userID string, window models.TimeWindow) *models.SignalAggregate {
	a.aggMu.RLock()
	defer a.aggMu.RUnlock()
	return a.aggregates[userID+":"+string(window)]
}

// Embedding returns a copy of the user's current embedding, or nil for an
// unseen user. The aggregator retains exclusive ownership of the original.
func (a *Aggregator) Embedding(userID string) []float64 {
	a.embedMu.RLock()
	defer a.embedMu.RUnlock()

	current, ok := a.embeddings[userID]
	if !ok {
		return nil
	}
	out := make([]float64, len(current))
	copy(out, current)
	return out
}

// ActiveUsers returns the number of users with a live signal buffer.
func (a *Aggregator) ActiveUsers() int {
	a.buffersMu.RLock()
	defer a.buffersMu.RUnlock()
	return len(a.buffers)
}

// Health reports a snapshot of pipeline state for the health endpoint.
func (a *Aggregator) Health(ctx context.Context) map[string]interface{} {
	snap := a.collector.Snapshot()

	storeConnected := a.store.Ping(ctx) == nil

	a.mu.Lock()
	running := a.started
	a.mu.Unlock()

	status := "stopped"
	if running {
		status = "healthy"
	}

	return map[string]interface{}{
		"status":          status,
		"queue_depth":     a.ingestor.QueueDepth(),
		"processed":       snap.SignalsProcessed,
		"dropped":         snap.SignalsDropped,
		"active_users":    a.ActiveUsers(),
		"store_connected": storeConnected,
	}
}
