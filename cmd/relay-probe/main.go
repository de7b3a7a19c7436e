package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"frame-relay-go/internal/client"
	"frame-relay-go/internal/logging"
	"frame-relay-go/internal/output"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code so deferred cleanup always happens.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("relay-probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		baseURL      = fs.String("url", "http://localhost:5000", "Relay base URL")
		duration     = fs.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
		aggregation  = fs.Duration("aggregation", time.Second, "Latency report period")
		good         = fs.Duration("good", 50*time.Millisecond, "Upper bound of the good latency tier")
		degraded     = fs.Duration("degraded", 150*time.Millisecond, "Upper bound of the degraded latency tier")
		cadence      = fs.Duration("cadence", 0, "Delay between delivered frames (0 polls back to back)")
		errorBackoff = fs.Duration("error-backoff", 100*time.Millisecond, "Delay after a failed poll")
		csvPath      = fs.String("csv", "", "Append latency reports to this CSV file (header written when new)")
		logEvery     = fs.Int("log-every", 50, "Log every Nth repeated poll failure")
		logLevel     = fs.String("log-level", "info", "Log level: debug, info, warn, error")
		logFormat    = fs.String("log-format", "text", "Log format: text or json")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger, err := logging.New(stderr, *logLevel, *logFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	thresholds := client.Thresholds{Good: *good, Degraded: *degraded}
	if thresholds.Good <= 0 || thresholds.Degraded <= thresholds.Good {
		logger.Error("latency thresholds must satisfy 0 < good < degraded")
		return 2
	}

	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	var csv *output.LatencyCSV
	if *csvPath != "" {
		csv, err = output.NewLatencyCSV(*csvPath)
		if err != nil {
			logger.Error("failed to open latency csv", "err", err)
			return 1
		}
		defer func() {
			if err := csv.Close(); err != nil {
				logger.Warn("latency csv close failed", "err", err)
			}
		}()
	}

	player := client.NewPlayer(client.NewClient(*baseURL, nil), client.Options{
		AggregationInterval: *aggregation,
		Thresholds:          thresholds,
		Cadence:             *cadence,
		ErrorBackoff:        *errorBackoff,
		LogEvery:            *logEvery,
	}, logger)

	frames := 0
	player.OnFrame = func(client.Frame) { frames++ }
	player.OnReport = func(r client.Report) {
		logger.Info("latency", "mean_ms", r.MeanMs, "tier", r.Tier.String(), "samples", r.Samples)
		if csv != nil {
			if err := csv.Write(r.At, r.MeanMs, r.Tier.String(), r.Samples); err != nil {
				logger.Warn("latency csv write failed", "err", err)
			}
		}
	}

	logger.Info("probing relay", "url", *baseURL)
	err = player.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("probe failed", "err", err)
		return 1
	}
	if last, ok := player.Last(); ok {
		logger.Info("probe finished", "frames", frames, "last_mean_ms", last.MeanMs, "last_tier", last.Tier.String())
	} else {
		logger.Info("probe finished", "frames", frames)
	}
	return 0
}
