package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMultipartBoundary(t *testing.T) {
	got, err := multipartBoundary("multipart/x-mixed-replace; boundary=--frame")
	if err != nil {
		t.Fatalf("boundary: %v", err)
	}
	if got != "frame" {
		t.Fatalf("unexpected boundary %q", got)
	}
	if _, err := multipartBoundary("image/jpeg"); err == nil {
		t.Fatalf("expected error for non-multipart type")
	}
}

func TestMJPEGSourceDecodesParts(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 24, 16))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetRGBA(0, 0, color.RGBA{A: 255})
	var part bytes.Buffer
	if err := jpeg.Encode(&part, img, nil); err != nil {
		t.Fatalf("encode: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		for i := 0; i < 2; i++ {
			fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", part.Len())
			_, _ = w.Write(part.Bytes())
			_, _ = w.Write([]byte("\r\n"))
		}
		_, _ = w.Write([]byte("--frame--\r\n"))
	}))
	defer srv.Close()

	src, err := OpenMJPEG(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer src.Close()

	frame, err := src.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if b := frame.Bounds(); b.Dx() != 24 || b.Dy() != 16 {
		t.Fatalf("unexpected bounds %v", b)
	}
}

func TestOpenMJPEGRejectsNonMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("nope"))
	}))
	defer srv.Close()

	if _, err := OpenMJPEG(context.Background(), srv.URL); err == nil {
		t.Fatalf("expected open failure")
	}
}
