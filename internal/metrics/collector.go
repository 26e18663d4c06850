package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// EventKind identifies a pipeline event reported to the collector.
type EventKind int

const (
	SignalProcessed EventKind = iota
	SignalDropped
	QueueDepth
	AggregationCycle
	RankRequest
	EnsembleTrained
)

// Event is a single observation sent from a worker to the collector.
// Workers communicate only through the channel; the collector goroutine is
// the sole owner of the counters, so there are no shared-counter races.
type Event struct {
	Kind     EventKind
	Priority string
	Method   string
	Value    float64
	Latency  time.Duration
}

// Snapshot is a point-in-time copy of the collector's counters.
type Snapshot struct {
	SignalsProcessed int64
	SignalsDropped   int64
	QueueDepth       int64
	Cycles           int64
	RankRequests     int64
}

// Collector aggregates pipeline events and exposes them as Prometheus
// metrics.
type Collector struct {
	events chan Event
	logger *logrus.Logger

	mu       sync.RWMutex
	snapshot Snapshot

	done chan struct{}
	once sync.Once

	signalsProcessed prometheus.Counter
	signalsDropped   *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	cycleDuration    prometheus.Histogram
	rankLatency      *prometheus.HistogramVec
	ensembleTrained  prometheus.Counter
}

func NewCollector(logger *logrus.Logger) *Collector {
	c := &Collector{
		events: make(chan Event, 4096),
		logger: logger,
		done:   make(chan struct{}),

		signalsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feedfuse_signals_processed_total",
			Help: "Total number of signals processed by aggregation workers",
		}),
		signalsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "feedfuse_signals_dropped_total",
			Help: "Total number of signals dropped because a queue was full",
		}, []string{"priority"}),
		queueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "feedfuse_signal_queue_depth",
			Help: "Combined depth of the signal queues",
		}),
		cycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedfuse_aggregation_cycle_seconds",
			Help:    "Duration of one aggregation cycle",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}),
		rankLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feedfuse_rank_latency_seconds",
			Help:    "Ranking request latency",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}, []string{"method"}),
		ensembleTrained: promauto.NewCounter(prometheus.CounterOpts{
			Name: "feedfuse_ensemble_training_total",
			Help: "Total number of ensemble training cycles",
		}),
	}

	go c.run()
	return c
}

// Report sends an event to the collector. It never blocks: if the channel
// is full the event is discarded, which only costs metric precision. A nil
// collector discards everything, so components can run without metrics.
func (c *Collector) Report(e Event) {
	if c == nil {
		return
	}
	select {
	case c.events <- e:
	default:
	}
}

func (c *Collector) run() {
	for {
		select {
		case e := <-c.events:
			c.apply(e)
		case <-c.done:
			return
		}
	}
}

func (c *Collector) apply(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Kind {
	case SignalProcessed:
		c.snapshot.SignalsProcessed++
		c.signalsProcessed.Inc()
	case SignalDropped:
		c.snapshot.SignalsDropped++
		c.signalsDropped.WithLabelValues(e.Priority).Inc()
	case QueueDepth:
		c.snapshot.QueueDepth = int64(e.Value)
		c.queueDepth.Set(e.Value)
	case AggregationCycle:
		c.snapshot.Cycles++
		c.cycleDuration.Observe(e.Latency.Seconds())
	case RankRequest:
		c.snapshot.RankRequests++
		c.rankLatency.WithLabelValues(e.Method).Observe(e.Latency.Seconds())
	case EnsembleTrained:
		c.ensembleTrained.Inc()
	}
}

// Snapshot returns a copy of the current counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

func (c *Collector) Stop() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.done) })
}
