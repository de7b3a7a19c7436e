package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"github.com/fxamacker/cbor/v2"
)

// RFC 8746 tags used by grabbers that ship raw mono frames.
const (
	tagMultiDimArray = 40
	tagUint8         = 64
	tagUint16LE      = 69
)

// decodeMonoFrame turns a tag-40 [rows, cols] array of uint8 or little-endian
// uint16 samples into a grayscale image.
func decodeMonoFrame(value any) (image.Image, error) {
	tag, ok := value.(cbor.Tag)
	if !ok || tag.Number != tagMultiDimArray {
		return nil, errors.New("expected multidim tag 40")
	}
	items, ok := tag.Content.([]any)
	if !ok || len(items) != 2 {
		return nil, errors.New("invalid multidim array content")
	}
	dims, ok := items[0].([]any)
	if !ok || len(dims) != 2 {
		return nil, errors.New("invalid multidim dimensions")
	}
	rows, err := toInt(dims[0])
	if err != nil {
		return nil, err
	}
	cols, err := toInt(dims[1])
	if err != nil {
		return nil, err
	}
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("invalid frame shape %dx%d", rows, cols)
	}

	typed, ok := items[1].(cbor.Tag)
	if !ok {
		return nil, errors.New("expected typed array tag")
	}
	data, ok := typed.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("unsupported typed array content %T", typed.Content)
	}

	rect := image.Rect(0, 0, cols, rows)
	switch typed.Number {
	case tagUint8:
		if len(data) != rows*cols {
			return nil, errors.New("dimension mismatch")
		}
		img := image.NewGray(rect)
		copy(img.Pix, data)
		return img, nil
	case tagUint16LE:
		if len(data) != rows*cols*2 {
			return nil, errors.New("dimension mismatch")
		}
		img := image.NewGray16(rect)
		// Gray16 stores samples big-endian.
		for i := 0; i < rows*cols; i++ {
			binary.BigEndian.PutUint16(img.Pix[i*2:], binary.LittleEndian.Uint16(data[i*2:]))
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported typed array tag %d", typed.Number)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}
