package encoder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Encoder resizes frames to a fixed width and compresses them to JPEG.
// A zero Width disables resizing.
type Encoder struct {
	Width   int
	Quality int
	scaler  draw.Interpolator
}

func New(width, quality int, scaler string) (*Encoder, error) {
	interp, err := ParseScaler(scaler)
	if err != nil {
		return nil, err
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality %d out of range", quality)
	}
	return &Encoder{Width: width, Quality: quality, scaler: interp}, nil
}

func ParseScaler(name string) (draw.Interpolator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nearest":
		return draw.NearestNeighbor, nil
	case "", "approx-bilinear":
		return draw.ApproxBiLinear, nil
	case "bilinear":
		return draw.BiLinear, nil
	case "catmull-rom":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("unsupported scaler %q", name)
	}
}

// TargetSize returns the output dimensions for a w x h frame scaled to
// targetWidth, keeping the aspect ratio: height = round(targetWidth*h/w).
func TargetSize(w, h, targetWidth int) (int, int) {
	if targetWidth <= 0 || w <= 0 || h <= 0 {
		return w, h
	}
	aspect := float64(w) / float64(h)
	height := int(math.Round(float64(targetWidth) / aspect))
	if height < 1 {
		height = 1
	}
	return targetWidth, height
}

// Resize scales img to the encoder width. The aspect ratio is taken from
// each frame, so sources may change resolution between frames.
func (e *Encoder) Resize(img image.Image) image.Image {
	b := img.Bounds()
	w, h := TargetSize(b.Dx(), b.Dy(), e.Width)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	e.scaler.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Encode resizes and compresses img, returning the JPEG payload and the
// encoded dimensions.
func (e *Encoder) Encode(img image.Image) ([]byte, int, int, error) {
	if img == nil {
		return nil, 0, 0, errors.New("nil image")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, 0, 0, errors.New("empty image")
	}
	resized := e.Resize(img)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(e.Quality)); err != nil {
		return nil, 0, 0, fmt.Errorf("jpeg encode: %w", err)
	}
	rb := resized.Bounds()
	return buf.Bytes(), rb.Dx(), rb.Dy(), nil
}
