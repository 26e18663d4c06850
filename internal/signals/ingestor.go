package signals

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/feedfuse/feedfuse/internal/config"
	"github.com/feedfuse/feedfuse/internal/metrics"
	"github.com/feedfuse/feedfuse/pkg/models"
)

// Priority selects which bounded queue a submitted signal is routed to.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Ingestor routes signals to one of two bounded queues. Submission never
// blocks the caller: when the target queue is full the signal is dropped
// and counted. Under overload, freshness of service matters more than
// completeness of history.
type Ingestor struct {
	normal  chan models.Signal
	high    chan models.Signal
	dropped atomic.Int64
	closed  atomic.Bool

	collector *metrics.Collector
	logger    *logrus.Logger
}

func NewIngestor(cfg *config.SignalsConfig, collector *metrics.Collector, logger *logrus.Logger) *Ingestor {
	return &Ingestor{
		normal:    make(chan models.Signal, cfg.QueueCapacity),
		high:      make(chan models.Signal, cfg.HighPriorityCapacity),
		collector: collector,
		logger:    logger,
	}
}

// Submit enqueues a signal. It returns true when the signal was accepted
// and false when it was dropped (queue full or ingestor stopped).
func (in *Ingestor) Submit(signal models.Signal, priority Priority) bool {
	if in.closed.Load() {
		in.recordDrop(priority)
		return false
	}

	target := in.normal
	if priority == PriorityHigh {
		target = in.high
	}

	select {
	case target <- signal:
		in.collector.Report(metrics.Event{
			Kind:  metrics.QueueDepth,
			Value: float64(len(in.normal) + len(in.high)),
		})
		return true
	default:
		in.logger.WithFields(logrus.Fields{
			"user_id":  signal.UserID,
			"priority": priority,
		}).Warn("Signal queue full, dropping signal")
		in.recordDrop(priority)
		return false
	}
}

func (in *Ingestor) recordDrop(priority Priority) {
	in.dropped.Add(1)
	in.collector.Report(metrics.Event{Kind: metrics.SignalDropped, Priority: string(priority)})
}

// Dropped returns the number of signals dropped since startup.
func (in *Ingestor) Dropped() int64 {
	return in.dropped.Load()
}

// QueueDepth returns the combined length of both queues.
func (in *Ingestor) QueueDepth() int {
	return len(in.normal) + len(in.high)
}

// Close makes subsequent submissions drop immediately. Already-queued
// signals remain drainable by the aggregator.
func (in *Ingestor) Close() {
	in.closed.Store(true)
}
