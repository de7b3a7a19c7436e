package output

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LatencyCSV records one row per aggregation tick. An existing file is
// appended to; the header is written only to an empty file.
type LatencyCSV struct {
	f *os.File
}

func NewLatencyCSV(path string) (*LatencyCSV, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		if _, err := fmt.Fprintln(f, "timestamp, mean_ms, tier, samples"); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return &LatencyCSV{f: f}, nil
}

func (c *LatencyCSV) Write(at time.Time, meanMs int, tier string, samples int) error {
	_, err := fmt.Fprintf(c.f, "%.6f, %d, %s, %d\n", float64(at.UnixNano())/1e9, meanMs, tier, samples)
	return err
}

func (c *LatencyCSV) Close() error {
	return c.f.Close()
}
