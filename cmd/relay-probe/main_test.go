package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"frame-relay-go/internal/config"
	"frame-relay-go/internal/server"
	"frame-relay-go/internal/store"
	"frame-relay-go/internal/types"
)

// openHandles counts descriptors of this process that point at path.
func openHandles(t *testing.T, path string) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("fd listing unavailable: %v", err)
	}
	n := 0
	for _, e := range entries {
		target, err := os.Readlink(filepath.Join("/proc/self/fd", e.Name()))
		if err == nil && target == path {
			n++
		}
	}
	return n
}

func TestRunClosesCSVWhenSyncFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "latency.csv")
	var stderr bytes.Buffer
	code := run(context.Background(), []string{"-url", ts.URL, "-csv", path}, &stderr)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d: %s", code, stderr.String())
	}
	if !strings.Contains(stderr.String(), "probe failed") {
		t.Fatalf("missing failure log: %s", stderr.String())
	}
	if n := openHandles(t, path); n != 0 {
		t.Fatalf("csv left open (%d handles)", n)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if string(data) != "timestamp, mean_ms, tier, samples\n" {
		t.Fatalf("unexpected csv: %q", data)
	}
}

func TestRunWritesReportsAgainstRelay(t *testing.T) {
	frames := store.New()
	frames.Write(types.EncodedFrame{Seq: 1, Data: []byte{0xff, 0xd8, 0xff, 0xd9}, Timestamp: 1})
	srv, err := server.New(config.Default(), frames, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "latency.csv")
	var stderr bytes.Buffer
	args := []string{"-url", ts.URL, "-csv", path, "-duration", "300ms", "-aggregation", "50ms", "-cadence", "5ms"}
	if code := run(context.Background(), args, &stderr); code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, stderr.String())
	}
	if n := openHandles(t, path); n != 0 {
		t.Fatalf("csv left open (%d handles)", n)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected at least one report row, got %q", data)
	}
	fields := strings.Split(lines[1], ", ")
	if len(fields) != 4 || fields[2] != "poor" {
		t.Fatalf("a frame stamped 1970 should classify poor: %q", lines[1])
	}
}

func TestRunRejectsInvertedThresholds(t *testing.T) {
	var stderr bytes.Buffer
	if code := run(context.Background(), []string{"-good", "200ms", "-degraded", "100ms"}, &stderr); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}
