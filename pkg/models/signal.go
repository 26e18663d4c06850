package models

import (
	"time"

	"github.com/google/uuid"
)

// SignalType identifies the kind of user-content interaction an event
// describes. Unknown types are accepted but scored with DefaultSignalWeight.
type SignalType string

const (
	SignalView       SignalType = "view"
	SignalLike       SignalType = "like"
	SignalComment    SignalType = "comment"
	SignalShare      SignalType = "share"
	SignalFollow     SignalType = "follow"
	SignalBookmark   SignalType = "bookmark"
	SignalClick      SignalType = "click"
	SignalScroll     SignalType = "scroll"
	SignalDwell      SignalType = "dwell"
	SignalCompletion SignalType = "completion"
)

// SignalWeights maps each signal type to its base engagement weight.
var SignalWeights = map[SignalType]float64{
	SignalView:       1.0,
	SignalLike:       2.0,
	SignalComment:    3.0,
	SignalShare:      4.0,
	SignalFollow:     5.0,
	SignalBookmark:   2.5,
	SignalClick:      1.5,
	SignalScroll:     0.5,
	SignalDwell:      1.2,
	SignalCompletion: 2.8,
}

const DefaultSignalWeight = 1.0

// SignalWeight returns the base weight for a signal type.
func SignalWeight(t SignalType) float64 {
	if w, ok := SignalWeights[t]; ok {
		return w
	}
	return DefaultSignalWeight
}

// Signal is a single timestamped user-content interaction event. It is
// immutable once created; only the Processed flag is set by the aggregator.
type Signal struct {
	SignalID  uuid.UUID              `json:"signal_id"`
	UserID    string                 `json:"user_id"`
	Type      SignalType             `json:"signal_type"`
	Timestamp time.Time              `json:"timestamp"`
	ContentID string                 `json:"content_id,omitempty"`
	SessionID string                 `json:"session_id,omitempty"`
	Duration  float64                `json:"duration"`
	Intensity float64                `json:"intensity"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Processed bool                   `json:"processed"`
}

// TimeWindow names one of the fixed aggregation lookback windows.
type TimeWindow string

const (
	Window1m  TimeWindow = "1m"
	Window5m  TimeWindow = "5m"
	Window15m TimeWindow = "15m"
	Window1h  TimeWindow = "1h"
	Window24h TimeWindow = "24h"
)

// TimeWindows lists all aggregation windows in ascending lookback order.
var TimeWindows = []TimeWindow{Window1m, Window5m, Window15m, Window1h, Window24h}

// Lookback returns the duration covered by a window.
func (w TimeWindow) Lookback() time.Duration {
	switch w {
	case Window1m:
		return time.Minute
	case Window5m:
		return 5 * time.Minute
	case Window15m:
		return 15 * time.Minute
	case Window1h:
		return time.Hour
	case Window24h:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// SignalAggregate is a time-windowed summary of a user's recent signals.
// It is recomputed from the live buffer on every aggregation cycle and is
// a pure function of the buffer contents at computation time.
type SignalAggregate struct {
	UserID              string                        `json:"user_id"`
	TimeWindow          TimeWindow                    `json:"time_window"`
	SignalCounts        map[SignalType]int            `json:"signal_counts"`
	ContentInteractions map[string]map[SignalType]int `json:"content_interactions"`
	TemporalPatterns    map[string]float64            `json:"temporal_patterns"`
	EngagementScore     float64                       `json:"engagement_score"`
	LastUpdated         time.Time                     `json:"last_updated"`
}
