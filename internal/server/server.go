package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/jpalmerr/publink/internal/pipeline"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// requestTimeout bounds the plain request/response API routes.
	requestTimeout = 30 * time.Second

	// maxBodyBytes caps request bodies carrying editor text.
	maxBodyBytes = 1 << 20

	// DefaultIdleTimeout closes REST sessions without edits for this long.
	DefaultIdleTimeout = 30 * time.Minute

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "publink"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// CheckRequest is the body of POST /api/check.
type CheckRequest struct {
	Text string `json:"text"`
	HTML bool   `json:"html"`
}

// CheckResult is the response of POST /api/check.
type CheckResult struct {
	URLs     []string            `json:"urls"`
	Warnings pipeline.WarningSet `json:"warnings"`
}

// CheckFunc runs one complete extract, probe and reconcile pass.
type CheckFunc func(ctx context.Context, req CheckRequest) (CheckResult, error)

// SessionFactory creates a new editing session.
type SessionFactory func() (*pipeline.Session, error)

// Config configures a [Server].
type Config struct {
	// Port is the TCP port to listen on.
	Port int

	// Title is shown by the demo editor. "publink" if empty.
	Title string

	// Assets holds assets/index.html. The "/" route is omitted if nil.
	Assets fs.FS

	// IdleTimeout for REST sessions. [DefaultIdleTimeout] if zero.
	IdleTimeout time.Duration

	// Metrics is mounted at /metrics if non-nil.
	Metrics http.Handler

	// Check and NewSession are required.
	Check      CheckFunc
	NewSession SessionFactory

	Logger *slog.Logger
}

// Server handles HTTP and WebSocket requests for publink.
//
// The server is designed for graceful shutdown via context cancellation.
// On shutdown every session it created is closed.
type Server struct {
	cfg        Config
	logger     *slog.Logger
	sessions   *registry
	upgrader   websocket.Upgrader
	httpServer *http.Server

	// wsSessions tracks sessions owned by open WebSocket connections.
	wsMu       sync.Mutex
	wsSessions map[string]*pipeline.Session
}

// New creates a [Server]. The server is not started until [Server.Start] is called.
func New(cfg Config) *Server {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: newRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		wsSessions: make(map[string]*pipeline.Session),
	}
}

// Handler returns the router serving every route.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	if s.cfg.Assets != nil {
		r.Get("/", s.handleDashboard)
	}
	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Post("/check", s.handleCheck)
			r.Post("/sessions", s.handleCreateSession)
			r.Put("/sessions/{id}/text", s.handleSetText)
			r.Post("/sessions/{id}/flush", s.handleFlush)
			r.Get("/sessions/{id}/warnings", s.handleWarnings)
			r.Delete("/sessions/{id}", s.handleDeleteSession)
		})

		r.Get("/sessions/{id}/events", s.handleSSE)
	})

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout and closes all sessions.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go s.reapLoop(ctx)

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
		s.Close()
	}()

	return nil
}

// Close closes every session the server created.
func (s *Server) Close() {
	s.sessions.closeAll()

	s.wsMu.Lock()
	ws := s.wsSessions
	s.wsSessions = make(map[string]*pipeline.Session)
	s.wsMu.Unlock()

	for _, sess := range ws {
		sess.Close()
	}
}

// reapLoop periodically closes idle REST sessions until ctx is cancelled.
func (s *Server) reapLoop(ctx context.Context) {
	every := s.cfg.IdleTimeout / 4
	if every < time.Second {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.reap(now)
		}
	}
}

func (s *Server) reap(now time.Time) {
	for _, id := range s.sessions.reap(now, s.cfg.IdleTimeout) {
		s.logger.Info("closed idle session", "session", id)
	}
}

// requestLogger logs each request at debug level with its status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// handleDashboard serves the demo editor page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	content, err := fs.ReadFile(s.cfg.Assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.cfg.Title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.wsMu.Lock()
	ws := len(s.wsSessions)
	s.wsMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"sessions":    s.sessions.len(),
		"ws_sessions": ws,
	})
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
