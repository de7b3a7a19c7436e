package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"frame-relay-go/internal/types"
)

// Frame is a decoded get_frame result handed to the display callback.
type Frame struct {
	Image     []byte
	Timestamp float64
	Latency   time.Duration
}

type Options struct {
	// AggregationInterval is the latency report period.
	AggregationInterval time.Duration
	Thresholds          Thresholds
	// Cadence delays each poll after a delivered frame, standing in for a
	// display refresh. Zero polls as fast as round trips allow.
	Cadence time.Duration
	// ErrorBackoff delays the next poll after a transport error.
	ErrorBackoff time.Duration
	LogEvery     int
}

// Player syncs clocks once, then polls frames and aggregates latency. The
// clock offset and latency window are owned by the Run goroutine; network
// calls happen on a helper goroutine and report back over a channel.
type Player struct {
	client *Client
	clock  Clock
	opts   Options
	logger *slog.Logger

	OnFrame  func(Frame)
	OnReport func(Report)

	offset   time.Duration
	window   LatencyWindow
	last     Report
	hasLast  bool
	failures int
}

type pollResult struct {
	reply types.FrameReply
	err   error
}

func NewPlayer(c *Client, opts Options, logger *slog.Logger) *Player {
	if opts.AggregationInterval <= 0 {
		opts.AggregationInterval = time.Second
	}
	if opts.Thresholds == (Thresholds{}) {
		opts.Thresholds = DefaultThresholds()
	}
	if opts.LogEvery < 1 {
		opts.LogEvery = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{client: c, clock: DefaultClock(), opts: opts, logger: logger}
}

// Sync performs the one-shot clock handshake against /time.
func (p *Player) Sync(ctx context.Context) (time.Duration, error) {
	sent := p.clock.Now()
	serverTime, err := p.client.ServerTime(ctx)
	if err != nil {
		return 0, err
	}
	received := p.clock.Now()
	p.offset = EstimateOffset(sent, received, serverTime)
	return p.offset, nil
}

func (p *Player) Offset() time.Duration {
	return p.offset
}

// Last returns the most recent report. Empty ticks leave it unchanged.
func (p *Player) Last() (Report, bool) {
	return p.last, p.hasLast
}

// Run blocks until ctx is cancelled. Playback starts only after a successful
// clock sync; a failed sync is returned without polling.
func (p *Player) Run(ctx context.Context) error {
	offset, err := p.Sync(ctx)
	if err != nil {
		return fmt.Errorf("clock sync: %w", err)
	}
	p.logger.Info("clock synced", "offset", offset)

	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := make(chan pollResult, 1)
	go p.fetch(pollCtx, 0, results)

	ticker := time.NewTicker(p.opts.AggregationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r := <-results:
			wait := p.handle(r)
			go p.fetch(pollCtx, wait, results)
		case <-ticker.C:
			p.aggregate(p.clock.Now())
		}
	}
}

func (p *Player) fetch(ctx context.Context, wait time.Duration, results chan<- pollResult) {
	if wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
	reply, err := p.client.Frame(ctx)
	results <- pollResult{reply: reply, err: err}
}

// handle processes one poll and returns how long to wait before the next.
func (p *Player) handle(r pollResult) time.Duration {
	if r.err != nil {
		p.failures++
		if p.failures%p.opts.LogEvery == 1 || p.opts.LogEvery == 1 {
			p.logger.Warn("frame poll failed", "err", r.err, "failures", p.failures)
		}
		return p.opts.ErrorBackoff
	}
	if r.reply.Absent {
		return 0
	}
	latency := FrameLatency(p.clock.Now(), p.offset, r.reply.Time)
	if p.OnFrame != nil {
		p.OnFrame(Frame{Image: r.reply.Image, Timestamp: r.reply.Time, Latency: latency})
	}
	p.window.Add(latency)
	return p.opts.Cadence
}

func (p *Player) aggregate(now time.Time) {
	mean, n, ok := p.window.Flush()
	if !ok {
		return
	}
	p.last = Report{At: now, MeanMs: mean, Tier: p.opts.Thresholds.Classify(mean), Samples: n}
	p.hasLast = true
	if p.OnReport != nil {
		p.OnReport(p.last)
	}
}
