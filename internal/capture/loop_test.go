package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"frame-relay-go/internal/encoder"
	"frame-relay-go/internal/source"
	"frame-relay-go/internal/store"
	"frame-relay-go/internal/types"
)

type flakySource struct {
	failures atomic.Int32
	reads    atomic.Int32
	closed   atomic.Bool
}

func (f *flakySource) Read() (image.Image, error) {
	f.reads.Add(1)
	if f.failures.Add(-1) >= 0 {
		return nil, source.ErrNoFrame
	}
	return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
}

func (f *flakySource) Close() error {
	f.closed.Store(true)
	return nil
}

func newEncoder(t *testing.T) *encoder.Encoder {
	t.Helper()
	enc, err := encoder.New(32, 60, "nearest")
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	return enc
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoopRetriesThenPublishes(t *testing.T) {
	src := &flakySource{}
	src.failures.Store(3)
	st := store.New()

	loop := New(func(context.Context) (source.Source, error) { return src, nil },
		newEncoder(t), st, Options{RetryInterval: time.Millisecond, FrameInterval: time.Millisecond}, nil)
	loop.now = func() time.Time { return time.Unix(100, 0) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	waitFor(t, func() bool { _, ok := st.Read(); return ok })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	frame, _ := st.Read()
	if frame.Timestamp != 100 {
		t.Fatalf("unexpected timestamp %v", frame.Timestamp)
	}
	if frame.Width != 32 || frame.Height != 24 {
		t.Fatalf("unexpected size %dx%d", frame.Width, frame.Height)
	}
	img, err := jpeg.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		t.Fatalf("payload is not jpeg: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 24 {
		t.Fatalf("unexpected decoded bounds %v", b)
	}

	snap := loop.Snapshot()
	if snap["read_failures_total"].(uint64) < 3 {
		t.Fatalf("expected read failures to be counted: %v", snap)
	}
	if loop.State() != StateStopped {
		t.Fatalf("unexpected state %q", loop.State())
	}
	if !src.closed.Load() {
		t.Fatalf("source not closed")
	}
}

func TestLoopOpenFailureLeavesStoreEmpty(t *testing.T) {
	st := store.New()
	openErr := errors.New("no device")
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	loop := New(func(context.Context) (source.Source, error) { return nil, openErr },
		newEncoder(t), st, Options{RetryInterval: time.Millisecond}, logger)

	err := loop.Run(context.Background())
	if !errors.Is(err, openErr) {
		t.Fatalf("expected open error, got %v", err)
	}
	if _, ok := st.Read(); ok {
		t.Fatalf("store must stay empty")
	}
	if loop.State() != StateFailed {
		t.Fatalf("unexpected state %q", loop.State())
	}
	if n := strings.Count(logs.String(), "no device"); n != 1 {
		t.Fatalf("open failure should be reported once, got %d:\n%s", n, logs.String())
	}
}

func TestLoopSinksSeeStoredFrame(t *testing.T) {
	src := &flakySource{}
	st := store.New()
	loop := New(func(context.Context) (source.Source, error) { return src, nil },
		newEncoder(t), st, Options{RetryInterval: time.Millisecond, FrameInterval: time.Millisecond}, nil)

	var mu sync.Mutex
	var seen []types.EncodedFrame
	loop.AddSink(func(f types.EncodedFrame) {
		mu.Lock()
		seen = append(seen, f)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 3
	})
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		if seen[i].Seq != seen[i-1].Seq+1 {
			t.Fatalf("sequence gap: %d then %d", seen[i-1].Seq, seen[i].Seq)
		}
	}
	stored, _ := st.Read()
	if stored.Seq != seen[len(seen)-1].Seq {
		t.Fatalf("store seq %d, last sink seq %d", stored.Seq, seen[len(seen)-1].Seq)
	}
}
