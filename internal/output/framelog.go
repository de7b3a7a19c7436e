package output

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"frame-relay-go/internal/types"
)

// FrameLogMagic opens every recording. Records follow as
// [u64 unix-nanos LE][u32 length LE][CBOR frameRecord].
const FrameLogMagic = "RELAYLG1"

const maxRecordSize = 64 << 20

type frameRecord struct {
	Session   string  `cbor:"session"`
	Seq       uint64  `cbor:"seq"`
	Timestamp float64 `cbor:"timestamp"`
	Width     int     `cbor:"width"`
	Height    int     `cbor:"height"`
	Data      []byte  `cbor:"data"`
}

type FrameLogWriter struct {
	mu      sync.Mutex
	f       *os.File
	w       *bufio.Writer
	session string
	path    string
}

// NewFrameLogWriter creates <dir>/<timestamp>_<session>.bin.
func NewFrameLogWriter(dir string, session string) (*FrameLogWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := filepath.Join(dir, fmt.Sprintf("%s_%s.bin", time.Now().Format("20060102_150405"), session))
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 1<<20)
	if _, err := w.WriteString(FrameLogMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &FrameLogWriter{f: f, w: w, session: session, path: name}, nil
}

func (l *FrameLogWriter) Path() string {
	return l.path
}

func (l *FrameLogWriter) Record(frame types.EncodedFrame) error {
	payload, err := cbor.Marshal(frameRecord{
		Session:   l.session,
		Seq:       frame.Seq,
		Timestamp: frame.Timestamp,
		Width:     frame.Width,
		Height:    frame.Height,
		Data:      frame.Data,
	})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return errors.New("frame log writer is closed")
	}
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := l.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := l.w.Write(payload); err != nil {
		return err
	}
	return l.w.Flush()
}

func (l *FrameLogWriter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	err := l.w.Flush()
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.w = nil
	return err
}

// Record is one decoded entry of a recording.
type Record struct {
	Written time.Time
	Session string
	Frame   types.EncodedFrame
}

type FrameLogReader struct {
	r *bufio.Reader
}

func NewFrameLogReader(r io.Reader) (*FrameLogReader, error) {
	br := bufio.NewReader(r)
	magic := make([]byte, len(FrameLogMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != FrameLogMagic {
		return nil, fmt.Errorf("unexpected frame log magic %q", string(magic))
	}
	return &FrameLogReader{r: br}, nil
}

// Next returns io.EOF after the last complete record.
func (fr *FrameLogReader) Next() (Record, error) {
	var header [12]byte
	if _, err := io.ReadFull(fr.r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, io.EOF
		}
		return Record{}, err
	}
	written := int64(binary.LittleEndian.Uint64(header[:8]))
	size := binary.LittleEndian.Uint32(header[8:12])
	if size > maxRecordSize {
		return Record{}, fmt.Errorf("record size %d exceeds limit", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		return Record{}, fmt.Errorf("read payload: %w", err)
	}
	var rec frameRecord
	if err := cbor.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return Record{
		Written: time.Unix(0, written),
		Session: rec.Session,
		Frame: types.EncodedFrame{
			Seq:       rec.Seq,
			Data:      rec.Data,
			Timestamp: rec.Timestamp,
			Width:     rec.Width,
			Height:    rec.Height,
		},
	}, nil
}
