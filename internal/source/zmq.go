package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
)

const zmqReceiveTimeout = 250 * time.Millisecond

// zmqSource pulls frames pushed by an external grabber. Messages are CBOR maps:
//
//	{ "type": "image", "format": "jpeg"|"png", "data": <bytes> }
//	{ "type": "image", "data": tag40([rows, cols], tag64|tag69(<bytes>)) }
type zmqSource struct {
	socket   *zmq4.Socket
	logger   *slog.Logger
	logEvery uint64
	misses   atomic.Uint64
}

func OpenZMQ(endpoint string, logEvery int, logger *slog.Logger) (Source, error) {
	if logEvery < 1 {
		logEvery = 1
	}
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, fmt.Errorf("zmq socket: %w", err)
	}
	if err := socket.SetRcvtimeo(zmqReceiveTimeout); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("zmq rcvtimeo: %w", err)
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("zmq connect %s: %w", endpoint, err)
	}
	return &zmqSource{socket: socket, logger: logger, logEvery: uint64(logEvery)}, nil
}

func (z *zmqSource) Read() (image.Image, error) {
	msg, err := z.socket.RecvBytes(0)
	if err != nil {
		if errors.Is(err, zmq4.Errno(syscall.EAGAIN)) {
			return nil, ErrNoFrame
		}
		z.logEveryN("zmq receive failed", "err", err)
		return nil, fmt.Errorf("zmq receive: %w", err)
	}
	img, err := decodeMessage(msg)
	if err != nil && !errors.Is(err, ErrNoFrame) {
		z.logEveryN("zmq message skipped", "err", err, "size", len(msg))
	}
	return img, err
}

func (z *zmqSource) logEveryN(msg string, args ...any) {
	if n := z.misses.Add(1); n%z.logEvery == 1 || z.logEvery == 1 {
		z.logger.Warn(msg, append(args, "count", n)...)
	}
}

func (z *zmqSource) Close() error {
	return z.socket.Close()
}

func decodeMessage(msg []byte) (image.Image, error) {
	var payload map[string]any
	if err := cbor.Unmarshal(msg, &payload); err != nil {
		return nil, fmt.Errorf("cbor decode: %w", err)
	}
	if kind, _ := payload["type"].(string); kind != "image" {
		return nil, ErrNoFrame
	}

	switch data := payload["data"].(type) {
	case []byte:
		format, _ := payload["format"].(string)
		img, decoded, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", format, err)
		}
		if format != "" && format != decoded {
			return nil, fmt.Errorf("format %q does not match payload %q", format, decoded)
		}
		return img, nil
	case cbor.Tag:
		return decodeMonoFrame(data)
	default:
		return nil, fmt.Errorf("unsupported data field %T", data)
	}
}
