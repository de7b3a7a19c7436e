package client

import (
	"testing"
	"time"
)

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func TestEstimateOffsetSymmetricDelay(t *testing.T) {
	cases := []struct {
		skew  time.Duration
		delay time.Duration
	}{
		{2500 * time.Millisecond, 20 * time.Millisecond},
		{-750 * time.Millisecond, 3 * time.Millisecond},
		{0, 120 * time.Millisecond},
	}
	for _, tc := range cases {
		sent := time.Unix(1000, 0)
		// Server stamps the reply when the request arrives.
		serverAt := sent.Add(tc.delay).Add(tc.skew)
		received := sent.Add(2 * tc.delay)
		serverTime := float64(serverAt.UnixNano()) / 1e9

		got := EstimateOffset(sent, received, serverTime)
		if abs(got-tc.skew) > time.Microsecond {
			t.Fatalf("skew %s delay %s: offset %s", tc.skew, tc.delay, got)
		}
	}
}

func TestEstimateOffsetAsymmetricErrorBound(t *testing.T) {
	skew := time.Second
	up, down := 40*time.Millisecond, 10*time.Millisecond
	sent := time.Unix(2000, 0)
	serverTime := float64(sent.Add(up).Add(skew).UnixNano()) / 1e9
	received := sent.Add(up + down)

	got := EstimateOffset(sent, received, serverTime)
	bound := abs(up-down) / 2
	if abs(got-skew) > bound+time.Microsecond {
		t.Fatalf("offset %s outside bound %s of skew %s", got, bound, skew)
	}
}

func TestFrameLatency(t *testing.T) {
	now := time.Unix(100, 30_000_000)
	offset := 5 * time.Millisecond
	if got := FrameLatency(now, offset, 100.000); abs(got-35*time.Millisecond) > time.Microsecond {
		t.Fatalf("unexpected latency %s", got)
	}
	if got := FrameLatency(now, offset, 101.0); got != 0 {
		t.Fatalf("latency must clamp at zero, got %s", got)
	}
}
