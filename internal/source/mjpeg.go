package source

import (
	"context"
	"fmt"
	"image"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/mattn/go-mjpeg"
)

// mjpegSource decodes a multipart MJPEG stream served over HTTP. A broken
// stream is reconnected on the next Read.
type mjpegSource struct {
	ctx    context.Context
	url    string
	client *http.Client

	mu   sync.Mutex
	body io.ReadCloser
	dec  *mjpeg.Decoder
}

// OpenMJPEG connects to url and fails if the first response is not a
// multipart stream.
func OpenMJPEG(ctx context.Context, url string) (Source, error) {
	s := &mjpegSource{ctx: ctx, url: url, client: &http.Client{}}
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *mjpegSource) connect() error {
	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("mjpeg request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mjpeg connect %s: %w", s.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return fmt.Errorf("mjpeg connect %s: http_%d", s.url, resp.StatusCode)
	}
	boundary, err := multipartBoundary(resp.Header.Get("Content-Type"))
	if err != nil {
		_ = resp.Body.Close()
		return err
	}
	s.body = resp.Body
	s.dec = mjpeg.NewDecoder(resp.Body, boundary)
	return nil
}

func multipartBoundary(contentType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("mjpeg content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return "", fmt.Errorf("mjpeg content type %q is not multipart", mediaType)
	}
	boundary := strings.Trim(params["boundary"], "-")
	if boundary == "" {
		return "", fmt.Errorf("mjpeg content type %q has no boundary", contentType)
	}
	return boundary, nil
}

func (s *mjpegSource) Read() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dec == nil {
		if err := s.connect(); err != nil {
			return nil, err
		}
	}
	img, err := s.dec.Decode()
	if err != nil {
		s.reset()
		return nil, fmt.Errorf("mjpeg decode: %w", err)
	}
	return img, nil
}

func (s *mjpegSource) reset() {
	if s.body != nil {
		_ = s.body.Close()
	}
	s.body = nil
	s.dec = nil
}

func (s *mjpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
