package client

import (
	"math"
	"time"
)

type Tier int

const (
	TierGood Tier = iota
	TierDegraded
	TierPoor
)

func (t Tier) String() string {
	switch t {
	case TierGood:
		return "good"
	case TierDegraded:
		return "degraded"
	default:
		return "poor"
	}
}

// Thresholds are exclusive upper bounds: below Good is good, below Degraded
// is degraded, anything else is poor.
type Thresholds struct {
	Good     time.Duration
	Degraded time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{Good: 50 * time.Millisecond, Degraded: 150 * time.Millisecond}
}

func (t Thresholds) Classify(meanMs int) Tier {
	switch {
	case int64(meanMs) < t.Good.Milliseconds():
		return TierGood
	case int64(meanMs) < t.Degraded.Milliseconds():
		return TierDegraded
	default:
		return TierPoor
	}
}

// LatencyWindow collects latency samples (milliseconds) between aggregation
// ticks. It has no cap; Flush empties it.
type LatencyWindow struct {
	samples []float64
}

func (w *LatencyWindow) Add(latency time.Duration) {
	w.samples = append(w.samples, float64(latency)/float64(time.Millisecond))
}

func (w *LatencyWindow) AddMs(ms float64) {
	w.samples = append(w.samples, ms)
}

func (w *LatencyWindow) Len() int {
	return len(w.samples)
}

// Flush returns the mean rounded to the nearest millisecond and the sample
// count, then clears the window. ok is false when the window was empty.
func (w *LatencyWindow) Flush() (meanMs int, n int, ok bool) {
	if len(w.samples) == 0 {
		return 0, 0, false
	}
	sum := 0.0
	for _, s := range w.samples {
		sum += s
	}
	n = len(w.samples)
	meanMs = int(math.Round(sum / float64(n)))
	w.samples = w.samples[:0]
	return meanMs, n, true
}

// Report is one aggregation tick.
type Report struct {
	At      time.Time
	MeanMs  int
	Tier    Tier
	Samples int
}
