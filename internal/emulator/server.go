package emulator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

// Server hosts both scripted backends.
type Server struct {
	config   *Config
	logger   *slog.Logger
	metrics  *Metrics
	scrape   http.Handler
	now      func() time.Time
	upgrader websocket.Upgrader
	router   chi.Router

	// ctx is cancelled on Shutdown to stop in-flight responses.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	conns      map[*conn]struct{}
	wg         sync.WaitGroup
	httpServer *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records emulator activity on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.scrape = h
	}
}

// WithClock sets the time source for frame timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New creates a Server. A nil config uses DefaultConfig().
func New(config *Config, opts ...Option) *Server {
	config = config.withDefaults()
	s := &Server{
		config: config,
		logger: slog.Default(),
		now:    time.Now,
		conns:  make(map[*conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)

	r.Get("/healthz", s.handleHealth)
	r.Get("/health", s.handleHealth)
	if s.scrape != nil {
		r.Handle("/metrics", s.scrape)
	}
	r.Get(narrativeScript{}.schema().Path(), s.websocketHandler(narrativeScript{}))
	r.Get(agentScript{}.schema().Path(), s.websocketHandler(agentScript{}))
	return r
}

// accessLog logs each request as it arrives. It does not wrap the
// ResponseWriter so WebSocket upgrades can hijack it.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) websocketHandler(sc script) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Error("websocket upgrade failed", "error", err)
			return
		}
		ws.SetReadLimit(s.config.MaxMessageSize)

		c := &conn{
			srv:    s,
			ws:     ws,
			id:     ulid.Make().String(),
			script: sc,
		}
		c.logger = s.logger.With("conn_id", c.id, "schema", sc.schema().Name())

		if !s.track(c) {
			c.close(websocket.CloseGoingAway, "shutting down")
			return
		}
		defer s.untrack(c)

		s.metrics.connOpened(sc.schema().Name())
		defer s.metrics.connClosed()
		c.logger.Info("connection opened")
		c.serve(s.ctx)
		c.logger.Info("connection closed")
	}
}

func (s *Server) track(c *conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.wg.Done()
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on Config.Addr until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("emulator listening", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops accepting requests, closes open connections with
// "going away", and waits for their handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	srv := s.httpServer
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	for _, c := range conns {
		c.close(websocket.CloseGoingAway, "shutting down")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("emulator shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
