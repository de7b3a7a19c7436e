package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hybridgroup/mjpeg"

	"frame-relay-go/internal/capture"
	"frame-relay-go/internal/config"
	"frame-relay-go/internal/encoder"
	"frame-relay-go/internal/logging"
	"frame-relay-go/internal/output"
	"frame-relay-go/internal/server"
	"frame-relay-go/internal/source"
	"frame-relay-go/internal/store"
	"frame-relay-go/internal/types"
)

func main() {
	def := config.Default()
	var (
		configPath    = flag.String("config", "", "YAML config file; explicit flags override it")
		port          = flag.Int("port", def.Port, "HTTP port")
		sourceKind    = flag.String("source", def.Source, "Camera source: synthetic, camera, mjpeg or zmq")
		device        = flag.Int("device", def.Device, "Camera device index (source=camera)")
		sourceURL     = flag.String("source-url", def.SourceURL, "MJPEG URL or ZMQ endpoint")
		sourceWidth   = flag.Int("source-width", def.SourceWidth, "Synthetic source width")
		sourceHeight  = flag.Int("source-height", def.SourceHeight, "Synthetic source height")
		frameWidth    = flag.Int("frame-width", def.FrameWidth, "Encoded frame width (0 keeps native size)")
		quality       = flag.Int("jpeg-quality", def.JPEGQuality, "JPEG quality 1-100")
		scaler        = flag.String("scaler", def.Scaler, "Resize scaler: nearest, approx-bilinear, bilinear, catmull-rom")
		retry         = flag.Duration("retry-interval", def.RetryInterval, "Wait after a failed frame read")
		frameInterval = flag.Duration("frame-interval", def.FrameInterval, "Wait after each published frame")
		aggregation   = flag.Duration("aggregation-interval", def.AggregationInterval, "Browser latency report period")
		good          = flag.Duration("good-latency", def.GoodLatency, "Upper bound of the good latency tier")
		degraded      = flag.Duration("degraded-latency", def.DegradedLatency, "Upper bound of the degraded latency tier")
		uiRate        = flag.Duration("ui-rate", def.UIRate, "Status push interval for websocket clients")
		record        = flag.Bool("record", def.RecordEnabled, "Record encoded frames to disk")
		recordDir     = flag.String("record-dir", def.RecordDir, "Directory for frame recordings")
		mjpegOn       = flag.Bool("mjpeg", def.MJPEGEnabled, "Serve /stream.mjpeg")
		logEvery      = flag.Int("source-log-every", def.SourceLogEvery, "Log every Nth repeated source failure")
		logLevel      = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		logFormat     = flag.String("log-format", "text", "Log format: text or json")
	)
	flag.Parse()

	logger, err := logging.New(os.Stderr, *logLevel, *logFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := def
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Error("config load failed", "err", err)
			os.Exit(2)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "source":
			cfg.Source = *sourceKind
		case "device":
			cfg.Device = *device
		case "source-url":
			cfg.SourceURL = *sourceURL
		case "source-width":
			cfg.SourceWidth = *sourceWidth
		case "source-height":
			cfg.SourceHeight = *sourceHeight
		case "frame-width":
			cfg.FrameWidth = *frameWidth
		case "jpeg-quality":
			cfg.JPEGQuality = *quality
		case "scaler":
			cfg.Scaler = *scaler
		case "retry-interval":
			cfg.RetryInterval = *retry
		case "frame-interval":
			cfg.FrameInterval = *frameInterval
		case "aggregation-interval":
			cfg.AggregationInterval = *aggregation
		case "good-latency":
			cfg.GoodLatency = *good
		case "degraded-latency":
			cfg.DegradedLatency = *degraded
		case "ui-rate":
			cfg.UIRate = *uiRate
		case "record":
			cfg.RecordEnabled = *record
		case "record-dir":
			cfg.RecordDir = *recordDir
		case "mjpeg":
			cfg.MJPEGEnabled = *mjpegOn
		case "source-log-every":
			cfg.SourceLogEvery = *logEvery
		}
	})
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enc, err := encoder.New(cfg.FrameWidth, cfg.JPEGQuality, cfg.Scaler)
	if err != nil {
		logger.Error("encoder setup failed", "err", err)
		os.Exit(2)
	}
	opener, err := source.NewOpener(cfg, logger)
	if err != nil {
		logger.Error("source setup failed", "err", err)
		os.Exit(2)
	}

	frames := store.New()
	loop := capture.New(opener, enc, frames, capture.Options{
		RetryInterval: cfg.RetryInterval,
		FrameInterval: cfg.FrameInterval,
		LogEvery:      cfg.SourceLogEvery,
	}, logger)
	logger = logger.With("session", loop.Session())

	var recorder *output.Recorder
	if cfg.RecordEnabled {
		writer, err := output.NewFrameLogWriter(cfg.RecordDir, loop.Session())
		if err != nil {
			logger.Error("failed to start recording", "err", err)
			os.Exit(1)
		}
		logger.Info("recording frames", "path", writer.Path())
		recorder = output.NewRecorder(writer, 8, logger)
		loop.AddSink(recorder.Enqueue)
		go recorder.Run(ctx)
	}

	statusFn := func() map[string]any {
		status := map[string]any{
			"session": loop.Session(),
			"source":  cfg.Source,
			"capture": loop.Snapshot(),
		}
		if frame, ok := frames.Read(); ok {
			status["last_frame_seq"] = frame.Seq
			status["last_frame_timestamp"] = frame.Timestamp
			status["last_frame_age_ms"] = float64(time.Now().UnixNano())/1e6 - frame.Timestamp*1000
		}
		if recorder != nil {
			status["recording"] = recorder.Snapshot()
		}
		return status
	}

	srv, err := server.New(cfg, frames, statusFn)
	if err != nil {
		logger.Error("server setup failed", "err", err)
		os.Exit(1)
	}
	if cfg.MJPEGEnabled {
		stream := mjpeg.NewStream()
		loop.AddSink(func(f types.EncodedFrame) { stream.UpdateJPEG(f.Data) })
		srv.SetMJPEG(stream)
	}

	srv.SetSession(loop.Session())

	// An open failure is reported by the loop; the relay keeps serving
	// "No frame available".
	go func() { _ = loop.Run(ctx) }()

	messages := make(chan types.StatusMessage, 4)
	go pushStatus(ctx, cfg.UIRate, loop.Session(), statusFn, messages)
	go logStats(ctx, logger, loop)

	logger.Info("starting frame relay", "url", fmt.Sprintf("http://localhost:%d", cfg.Port), "source", cfg.Source)
	if err := srv.Run(ctx, messages); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("frame relay stopped")
}

func pushStatus(ctx context.Context, every time.Duration, session string, statusFn func() map[string]any, out chan<- types.StatusMessage) {
	defer close(out)
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case out <- types.StatusMessage{Type: "status", Session: session, Metrics: statusFn()}:
			default:
			}
		}
	}
}

func logStats(ctx context.Context, logger *slog.Logger, loop *capture.Loop) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := loop.Snapshot()
			logger.Info("capture stats",
				"state", snap["state"],
				"frames", snap["frames_captured_total"],
				"read_failures", snap["read_failures_total"],
				"encode_failures", snap["encode_failures_total"],
				"encode_mean_ms", snap["encode_mean_ms"],
			)
		}
	}
}
