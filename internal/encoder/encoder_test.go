package encoder

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"testing"
)

func TestTargetSizePreservesAspectRatio(t *testing.T) {
	cases := []struct {
		w, h, target int
		wantH        int
	}{
		{640, 480, 640, 480},
		{1280, 720, 640, 360},
		{1920, 1080, 640, 360},
		{1000, 333, 640, 213},
		{333, 1000, 640, 1922},
		{1366, 768, 640, 360},
		{700, 300, 640, 274},
	}
	for _, tc := range cases {
		w, h := TargetSize(tc.w, tc.h, tc.target)
		if w != tc.target {
			t.Fatalf("%dx%d: width %d, want %d", tc.w, tc.h, w, tc.target)
		}
		want := int(math.Round(float64(tc.target) * float64(tc.h) / float64(tc.w)))
		if h != want || h != tc.wantH {
			t.Fatalf("%dx%d: height %d, want %d", tc.w, tc.h, h, tc.wantH)
		}
	}
}

func TestTargetSizeDisabled(t *testing.T) {
	w, h := TargetSize(800, 600, 0)
	if w != 800 || h != 600 {
		t.Fatalf("expected passthrough, got %dx%d", w, h)
	}
}

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	return img
}

func TestEncodeProducesResizedJPEG(t *testing.T) {
	enc, err := New(64, 60, "approx-bilinear")
	if err != nil {
		t.Fatalf("new encoder: %v", err)
	}
	data, w, h, err := enc.Encode(testImage(160, 90))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if w != 64 || h != 36 {
		t.Fatalf("unexpected size %dx%d", w, h)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 64 || b.Dy() != 36 {
		t.Fatalf("decoded size %dx%d", b.Dx(), b.Dy())
	}
}

func TestEncodeRejectsEmpty(t *testing.T) {
	enc, _ := New(64, 60, "")
	if _, _, _, err := enc.Encode(image.NewRGBA(image.Rect(0, 0, 0, 0))); err == nil {
		t.Fatalf("expected error for empty image")
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New(64, 0, ""); err == nil {
		t.Fatalf("expected quality error")
	}
	if _, err := New(64, 60, "lanczos9"); err == nil {
		t.Fatalf("expected scaler error")
	}
}
