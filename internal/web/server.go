// Package web serves the sandbox dispatch backend: the REST board API, the
// websocket push channel and a Datastar summary stream.
package web

import (
	"bufio"
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"dispatch-cli/internal/events"
	"dispatch-cli/internal/store"
)

type ServerConfig struct {
	Addr  string
	Store *store.Store
	// Token, when set, is required as a Bearer token on API and websocket
	// requests.
	Token    string
	Location *time.Location
	Logger   *slog.Logger
	Now      func() time.Time
}

type Server struct {
	cfg    ServerConfig
	logger *slog.Logger

	bus    *events.Bus
	hub    *wsHub
	stream *resourceHub
	unsubs []func()
}

func NewServer(cfg ServerConfig) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Store == nil {
		return nil, errors.New("web: store is nil")
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		bus:    events.NewBus(64, logger),
		hub:    newWSHub(logger),
		stream: newResourceHub(),
	}
	for _, t := range []events.EventType{events.WorkOrderAssigned, events.WorkOrderUpdated} {
		s.unsubs = append(s.unsubs, s.bus.Subscribe(t, func(ev events.Event) {
			s.hub.broadcast(ev)
			s.stream.broadcast()
		}))
	}
	return s, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

// Events is the bus every mutation publishes to.
func (s *Server) Events() *events.Bus { return s.bus }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /{$}", s.requireToken(http.HandlerFunc(s.handlePage)))
	mux.Handle("GET /ws", s.requireToken(http.HandlerFunc(s.handleWS)))
	mux.Handle("GET /api/dispatch-board/board", s.requireToken(http.HandlerFunc(s.handleBoard)))
	mux.Handle("GET /api/dispatch-board/stream", s.requireToken(http.HandlerFunc(s.handleStream)))
	mux.Handle("POST /api/dispatch-board/assign-crew", s.requireToken(http.HandlerFunc(s.handleAssign)))
	mux.Handle("POST /api/dispatch-board/unassign-crew/{workOrderId}", s.requireToken(http.HandlerFunc(s.handleUnassign)))
	mux.Handle("POST /api/dispatch-board/optimize", s.requireToken(http.HandlerFunc(s.handleOptimize)))
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.cfg.Addr == "" {
		return errors.New("web: addr is empty")
	}
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("sandbox backend listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Close disconnects websocket clients and stops event fan-out.
func (s *Server) Close() {
	for _, u := range s.unsubs {
		u()
	}
	s.unsubs = nil
	s.hub.closeAll()
	s.bus.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	if s.cfg.Token == "" {
		return next
	}
	want := []byte("Bearer " + s.cfg.Token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
		// Browsers cannot set headers on EventSource requests.
		if q := strings.TrimSpace(r.URL.Query().Get("access_token")); len(got) == 0 && q != "" {
			got = []byte("Bearer " + q)
		}
		if subtle.ConstantTimeCompare(got, want) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the websocket upgrader reach the
// underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("web: response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_id", r.Header.Get("X-Request-Id"),
			"duration", time.Since(start),
		)
	})
}
