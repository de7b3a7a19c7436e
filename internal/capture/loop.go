package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"frame-relay-go/internal/encoder"
	"frame-relay-go/internal/source"
	"frame-relay-go/internal/types"
)

// FrameWriter receives every encoded frame. The store is the primary writer
// target; Write must return quickly.
type FrameWriter interface {
	Write(types.EncodedFrame)
}

// Sink observes published frames (recorder, MJPEG mirror). Sinks run on the
// capture goroutine and must not block.
type Sink func(types.EncodedFrame)

type Options struct {
	RetryInterval time.Duration
	FrameInterval time.Duration
	LogEvery      int
}

const (
	StateIdle    = "idle"
	StateOpening = "opening"
	StateRunning = "running"
	StateFailed  = "failed"
	StateStopped = "stopped"
)

// Loop drives source -> encoder -> store on its own goroutine until the
// context is cancelled. It never queues: each frame replaces the last.
type Loop struct {
	open    source.Opener
	enc     *encoder.Encoder
	out     FrameWriter
	opts    Options
	logger  *slog.Logger
	now     func() time.Time
	sinks   []Sink
	session string

	state          atomic.Value
	seq            atomic.Uint64
	readFailures   atomic.Uint64
	encodeFailures atomic.Uint64
	encodeCount    atomic.Uint64
	encodeNanos    atomic.Uint64
	lastSize       atomic.Int64
	lastWidth      atomic.Int64
	lastHeight     atomic.Int64
}

func New(open source.Opener, enc *encoder.Encoder, out FrameWriter, opts Options, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LogEvery < 1 {
		opts.LogEvery = 1
	}
	l := &Loop{
		open:    open,
		enc:     enc,
		out:     out,
		opts:    opts,
		now:     time.Now,
		session: uuid.NewString(),
	}
	l.logger = logger.With("session", l.session)
	l.state.Store(StateIdle)
	return l
}

// AddSink registers an observer. Call before Run.
func (l *Loop) AddSink(s Sink) {
	l.sinks = append(l.sinks, s)
}

func (l *Loop) Session() string {
	return l.session
}

func (l *Loop) State() string {
	return l.state.Load().(string)
}

// Run blocks until ctx is cancelled. If the source cannot be opened the
// failure is logged once and returned; nothing is ever written.
func (l *Loop) Run(ctx context.Context) error {
	l.state.Store(StateOpening)
	src, err := l.open(ctx)
	if err != nil {
		l.state.Store(StateFailed)
		l.logger.Error("could not open camera source; capture stopped", "err", err)
		return fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	l.state.Store(StateRunning)
	l.logger.Info("capture started", "frame_width", l.enc.Width, "quality", l.enc.Quality)
	defer l.state.Store(StateStopped)

	for {
		if ctx.Err() != nil {
			return nil
		}

		img, err := src.Read()
		if err != nil {
			if n := l.readFailures.Add(1); n%uint64(l.opts.LogEvery) == 1 || l.opts.LogEvery == 1 {
				l.logger.Debug("frame read failed; retrying", "err", err, "failures", n)
			}
			if !sleep(ctx, l.opts.RetryInterval) {
				return nil
			}
			continue
		}

		start := time.Now()
		data, width, height, err := l.enc.Encode(img)
		l.encodeCount.Add(1)
		l.encodeNanos.Add(uint64(time.Since(start).Nanoseconds()))
		if err != nil {
			if n := l.encodeFailures.Add(1); n%uint64(l.opts.LogEvery) == 1 || l.opts.LogEvery == 1 {
				l.logger.Warn("frame encode failed", "err", err, "failures", n)
			}
			if !sleep(ctx, l.opts.RetryInterval) {
				return nil
			}
			continue
		}

		frame := types.EncodedFrame{
			Seq:       l.seq.Add(1),
			Data:      data,
			Timestamp: unixSeconds(l.now()),
			Width:     width,
			Height:    height,
		}
		l.out.Write(frame)
		l.lastSize.Store(int64(len(data)))
		l.lastWidth.Store(int64(width))
		l.lastHeight.Store(int64(height))
		for _, sink := range l.sinks {
			sink(frame)
		}

		if !sleep(ctx, l.opts.FrameInterval) {
			return nil
		}
	}
}

// Snapshot returns the loop counters for /status and the websocket feed.
func (l *Loop) Snapshot() map[string]any {
	count := l.encodeCount.Load()
	meanMs := 0.0
	if count > 0 {
		meanMs = float64(l.encodeNanos.Load()) / float64(count) / 1e6
	}
	return map[string]any{
		"state":                 l.State(),
		"frames_captured_total": l.seq.Load(),
		"read_failures_total":   l.readFailures.Load(),
		"encode_failures_total": l.encodeFailures.Load(),
		"encode_mean_ms":        meanMs,
		"last_frame_bytes":      l.lastSize.Load(),
		"last_frame_width":      l.lastWidth.Load(),
		"last_frame_height":     l.lastHeight.Load(),
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
