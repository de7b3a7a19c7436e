package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"frame-relay-go/internal/config"
)

var (
	// ErrNoFrame reports a transient miss: the source is healthy but had no
	// frame to deliver on this read.
	ErrNoFrame = errors.New("no frame available from source")
	// ErrUnsupported is returned when a source kind was not compiled in.
	ErrUnsupported = errors.New("source not supported by this build")
)

// Source produces raw frames on demand. Read errors are treated as transient
// by the capture loop; only Open failures are terminal.
type Source interface {
	Read() (image.Image, error)
	Close() error
}

// Opener opens a Source. The context bounds the lifetime of any network
// connection the source holds.
type Opener func(ctx context.Context) (Source, error)

// NewOpener returns an Opener for the source kind named in cfg.
func NewOpener(cfg config.AppConfig, logger *slog.Logger) (Opener, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Source {
	case "synthetic":
		return func(context.Context) (Source, error) {
			return NewSynthetic(cfg.SourceWidth, cfg.SourceHeight), nil
		}, nil
	case "camera":
		return func(context.Context) (Source, error) {
			return OpenCamera(cfg.Device)
		}, nil
	case "mjpeg":
		return func(ctx context.Context) (Source, error) {
			return OpenMJPEG(ctx, cfg.SourceURL)
		}, nil
	case "zmq":
		return func(context.Context) (Source, error) {
			return OpenZMQ(cfg.SourceURL, cfg.SourceLogEvery, logger)
		}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}
