package client

import (
	"testing"
	"time"
)

func TestLatencyWindowFlush(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		samples []float64
		mean    int
		tier    Tier
	}{
		{[]float64{10, 20, 30}, 20, TierGood},
		{[]float64{60, 80}, 70, TierDegraded},
		{[]float64{150, 151}, 151, TierPoor},
		{[]float64{49.4}, 49, TierGood},
		{[]float64{49.5}, 50, TierDegraded},
	}
	for _, tc := range cases {
		var w LatencyWindow
		for _, s := range tc.samples {
			w.AddMs(s)
		}
		mean, n, ok := w.Flush()
		if !ok || n != len(tc.samples) {
			t.Fatalf("%v: flush ok=%v n=%d", tc.samples, ok, n)
		}
		if mean != tc.mean {
			t.Fatalf("%v: mean %d, want %d", tc.samples, mean, tc.mean)
		}
		if got := th.Classify(mean); got != tc.tier {
			t.Fatalf("%v: tier %s, want %s", tc.samples, got, tc.tier)
		}
		if w.Len() != 0 {
			t.Fatalf("window not cleared")
		}
	}
}

func TestLatencyWindowEmpty(t *testing.T) {
	var w LatencyWindow
	if _, _, ok := w.Flush(); ok {
		t.Fatalf("empty window must not produce a value")
	}
}

func TestAddConvertsToMilliseconds(t *testing.T) {
	var w LatencyWindow
	w.Add(1500 * time.Microsecond)
	w.Add(2500 * time.Microsecond)
	mean, _, _ := w.Flush()
	if mean != 2 {
		t.Fatalf("unexpected mean %d", mean)
	}
}

func TestClassifyBoundaries(t *testing.T) {
	th := DefaultThresholds()
	if th.Classify(49) != TierGood || th.Classify(50) != TierDegraded ||
		th.Classify(149) != TierDegraded || th.Classify(150) != TierPoor {
		t.Fatalf("unexpected tier boundaries")
	}
	if TierPoor.String() != "poor" || TierDegraded.String() != "degraded" {
		t.Fatalf("unexpected tier names")
	}
}
