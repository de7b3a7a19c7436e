package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"frame-relay-go/internal/config"
	"frame-relay-go/internal/types"
)

//go:embed web/*
var webFS embed.FS

// FrameReader is the read side of the shared frame store.
type FrameReader interface {
	Read() (types.EncodedFrame, bool)
}

type Server struct {
	upgrader websocket.Upgrader
	clients  map[*wsClient]struct{}
	mu       sync.Mutex
	session  string
	cfg      config.AppConfig
	frames   FrameReader
	statusFn func() map[string]any
	mjpeg    http.Handler
	page     []byte
	now      func() time.Time
}

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	pingEvery = (pongWait * 9) / 10
)

type pageData struct {
	FrameWidth    int
	AggregationMs int64
	GoodMs        int64
	DegradedMs    int64
}

func New(cfg config.AppConfig, frames FrameReader, statusFn func() map[string]any) (*Server, error) {
	tmpl, err := template.ParseFS(webFS, "web/index.html")
	if err != nil {
		return nil, err
	}
	var page bytes.Buffer
	err = tmpl.Execute(&page, pageData{
		FrameWidth:    cfg.FrameWidth,
		AggregationMs: cfg.AggregationInterval.Milliseconds(),
		GoodMs:        cfg.GoodLatency.Milliseconds(),
		DegradedMs:    cfg.DegradedLatency.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:  make(map[*wsClient]struct{}),
		cfg:      cfg,
		frames:   frames,
		statusFn: statusFn,
		page:     page.Bytes(),
		now:      time.Now,
	}, nil
}

// SetSession tags websocket status messages with the capture session id.
func (s *Server) SetSession(id string) {
	s.session = id
}

// SetMJPEG mounts a push stream at /stream.mjpeg.
func (s *Server) SetMJPEG(h http.Handler) {
	s.mjpeg = h
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/get_frame", s.handleFrame)
	mux.HandleFunc("/time", s.handleTime)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWS)
	if s.mjpeg != nil {
		mux.Handle("/stream.mjpeg", s.mjpeg)
	}
	return mux
}

// Run serves until ctx is cancelled. Status messages received on messages
// are pushed to every websocket client.
func (s *Server) Run(ctx context.Context, messages <-chan types.StatusMessage) error {
	httpServer := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(s.cfg.Port)),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	go s.broadcast(ctx, messages)

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(s.page)
}

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	reply := types.NewFrameReply(s.frames.Read())
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, reply)
}

func (s *Server) handleTime(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, types.TimeReply{ServerTime: float64(s.now().UnixNano()) / 1e9})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"source":                  s.cfg.Source,
		"frame_width":             s.cfg.FrameWidth,
		"jpeg_quality":            s.cfg.JPEGQuality,
		"aggregation_interval_ms": s.cfg.AggregationInterval.Milliseconds(),
		"good_latency_ms":         s.cfg.GoodLatency.Milliseconds(),
		"degraded_latency_ms":     s.cfg.DegradedLatency.Milliseconds(),
		"mjpeg":                   s.mjpeg != nil,
		"port":                    s.cfg.Port,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := s.status()
	writeJSON(w, payload)
}

func (s *Server) status() map[string]any {
	payload := map[string]any{}
	if s.statusFn != nil {
		payload = s.statusFn()
	}
	if metrics, ok := payload["metrics"].(map[string]any); ok {
		metrics["ws_clients"] = s.clientCount()
	} else {
		payload["ws_clients"] = s.clientCount()
	}
	return payload
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
