// Package stream serves composited frames as an MJPEG stream over HTTP,
// for checkpoints that run headless or are watched from another screen.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const (
	boundary    = "frame"
	jpegQuality = 80
)

// Server represents the stream server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	listener   net.Listener
	log        logrus.FieldLogger

	mu       sync.RWMutex
	frame    []byte
	frameAt  time.Time
	frames   uint64
	updated  chan struct{} // closed and replaced on every new frame
	quit     atomic.Bool
	started  time.Time
	shutdown chan struct{}
}

// NewServer creates a new stream server listening on addr
func NewServer(addr string, log logrus.FieldLogger) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:   r,
		log:      log,
		updated:  make(chan struct{}),
		started:  time.Now(),
		shutdown: make(chan struct{}),
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	s.setupRoutes()

	// No write timeout: the MJPEG response never ends on its own.
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/stream.mjpg", s.handleStream)
	s.router.Get("/frame.jpg", s.handleFrame)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handleHealth)
		r.Get("/status", s.handleStatus)
		r.Post("/quit", s.handleQuit)
	})
}

// Listen binds the listen address. A taken port fails here, before any
// frame is shown.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln
	s.log.WithField("addr", ln.Addr().String()).Info("Starting stream server")
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// Serve serves on the listener bound by Listen and blocks until the server stops.
func (s *Server) Serve() error {
	if s.listener == nil {
		return errors.New("stream server is not listening")
	}
	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve stream: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down stream server")
	select {
	case <-s.shutdown:
	default:
		close(s.shutdown)
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	// Shutdown only closes listeners that reached Serve.
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("close listener: %w", err)
		}
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Show encodes img and publishes it to all stream clients.
func (s *Server) Show(img image.Image) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	s.mu.Lock()
	s.frame = buf.Bytes()
	s.frameAt = time.Now()
	s.frames++
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()
	return nil
}

// QuitRequested reports whether a client called the quit endpoint.
func (s *Server) QuitRequested() bool {
	return s.quit.Load()
}

// Close shuts the server down with a short grace period.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}

// latest returns the current frame and the channel closed by the next Show.
func (s *Server) latest() ([]byte, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.updated
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for {
		frame, next := s.latest()
		if frame != nil {
			if err := writePart(w, frame); err != nil {
				return
			}
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-s.shutdown:
			return
		case <-next:
		}
	}
}

func writePart(w http.ResponseWriter, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame, _ := s.latest()
	if frame == nil {
		respondError(w, http.StatusServiceUnavailable, "no frame yet")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(frame)
}

// StatusResponse is returned by the status endpoint
type StatusResponse struct {
	Frames        uint64    `json:"frames"`
	LastFrameAt   time.Time `json:"last_frame_at,omitzero"`
	Uptime        string    `json:"uptime"`
	QuitRequested bool      `json:"quit_requested"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := StatusResponse{
		Frames:        s.frames,
		LastFrameAt:   s.frameAt,
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		QuitRequested: s.quit.Load(),
	}
	s.mu.RUnlock()
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuit(w http.ResponseWriter, r *http.Request) {
	s.quit.Store(true)
	s.log.Info("Quit requested over HTTP")
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!doctype html><title>Face Attendance</title>`+
		`<body style="margin:0;background:#000"><img src="/stream.mjpg" style="width:100%">`)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
