package output

import (
	"context"
	"log/slog"
	"sync/atomic"

	"frame-relay-go/internal/types"
)

// Recorder moves frames from the capture goroutine to disk through a small
// queue. A full queue drops the frame so the capture loop never waits on I/O.
type Recorder struct {
	w       *FrameLogWriter
	queue   chan types.EncodedFrame
	logger  *slog.Logger
	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func NewRecorder(w *FrameLogWriter, depth int, logger *slog.Logger) *Recorder {
	if depth < 1 {
		depth = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{w: w, queue: make(chan types.EncodedFrame, depth), logger: logger}
}

func (r *Recorder) Enqueue(frame types.EncodedFrame) {
	select {
	case r.queue <- frame:
	default:
		r.dropped.Add(1)
	}
}

// Run writes queued frames until ctx is cancelled. Frames already accepted
// are flushed before the log is closed.
func (r *Recorder) Run(ctx context.Context) {
	defer func() {
		if err := r.w.Close(); err != nil {
			r.logger.Error("frame log close failed", "err", err)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case frame := <-r.queue:
			r.record(frame)
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case frame := <-r.queue:
			r.record(frame)
		default:
			return
		}
	}
}

func (r *Recorder) record(frame types.EncodedFrame) {
	if err := r.w.Record(frame); err != nil {
		if r.failed.Add(1) == 1 {
			r.logger.Error("frame log write failed", "err", err, "path", r.w.Path())
		}
		return
	}
	r.written.Add(1)
}

func (r *Recorder) Snapshot() map[string]any {
	return map[string]any{
		"record_written_total": r.written.Load(),
		"record_dropped_total": r.dropped.Load(),
		"record_failed_total":  r.failed.Load(),
	}
}
