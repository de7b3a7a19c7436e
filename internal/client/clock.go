package client

import (
	"math"
	"time"
)

// Clock provides the local wall clock. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func DefaultClock() Clock {
	return realClock{}
}

// EstimateOffset returns serverClock - clientClock from a single round trip:
// the request left at sent, the reply carrying serverTime (unix seconds)
// arrived at received. Both legs are assumed to take the same time, so the
// error is at most half the difference between them.
func EstimateOffset(sent, received time.Time, serverTime float64) time.Duration {
	delay := received.Sub(sent) / 2
	serverNow := fromSeconds(serverTime).Add(delay)
	return serverNow.Sub(received)
}

// FrameLatency is the age of a frame stamped frameTime (server unix seconds)
// as seen at local time now, clamped at zero.
func FrameLatency(now time.Time, offset time.Duration, frameTime float64) time.Duration {
	latency := now.Add(offset).Sub(fromSeconds(frameTime))
	if latency < 0 {
		return 0
	}
	return latency
}

func fromSeconds(s float64) time.Time {
	return time.Unix(0, int64(math.Round(s*1e9)))
}
