package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/getmockd/statemock/pkg/logging"
	"github.com/getmockd/statemock/pkg/metrics"
	"github.com/getmockd/statemock/pkg/stateful"
)

// Config configures a Server.
type Config struct {
	// Addr is the mock listener address.
	Addr string
	// AdminAddr is the admin listener address. Empty disables the admin API.
	AdminAddr string
	// ConfigPath is a file, directory or glob of config documents.
	ConfigPath string
	// Watch reloads ConfigPath when its files change.
	Watch bool

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodySize     int64
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":4280",
		AdminAddr:       ":4290",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		MaxBodySize:     MaxBodySize,
	}
}

// Server runs the mock listener, the admin listener and the config watcher.
type Server struct {
	cfg      Config
	log      *slog.Logger
	handler  *stateful.Handler
	metrics  *Metrics
	registry *metrics.Registry
	watcher  *Watcher
	next     http.Handler

	mu        sync.Mutex
	running   bool
	addr      net.Addr
	adminAddr net.Addr
	ready     chan struct{}
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger for the server.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithFallback sets the handler for requests no stateful config handles.
func WithFallback(h http.Handler) ServerOption {
	return func(s *Server) { s.next = h }
}

// NewServer creates a Server and loads cfg.ConfigPath when set.
func NewServer(cfg Config, opts ...ServerOption) (*Server, error) {
	def := DefaultConfig()
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = def.MaxBodySize
	}

	s := &Server{
		cfg:      cfg,
		log:      logging.Nop(),
		registry: metrics.NewRegistry(),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.metrics = NewMetrics(s.registry)
	metrics.RegisterRuntime(s.registry)
	s.handler = stateful.NewHandler(
		stateful.WithLogger(logging.Component(s.log, "stateful")),
		stateful.WithObserver(s.metrics),
	)
	s.registry.NewGaugeFunc("statemock_tracked_resources",
		"Resources with a stored state.",
		func() float64 { return float64(s.handler.Overview().TotalResources) })

	if cfg.ConfigPath != "" {
		s.watcher = NewWatcher(cfg.ConfigPath, s.handler,
			WithWatcherLogger(logging.Component(s.log, "watcher")))
		if err := s.watcher.Reload(context.Background()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Stateful returns the server's stateful handler.
func (s *Server) Stateful() *stateful.Handler { return s.handler }

// Registry returns the server's metrics registry.
func (s *Server) Registry() *metrics.Registry { return s.registry }

// Ready is closed once both listeners are bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound mock listener address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// AdminAddr returns the bound admin listener address, or nil when the admin
// API is disabled or before Ready.
func (s *Server) AdminAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adminAddr
}

// MockHandler returns the HTTP handler served on the mock listener.
func (s *Server) MockHandler() http.Handler {
	opts := []HandlerOption{
		WithHandlerLogger(logging.Component(s.log, "http")),
		WithMaxBodySize(s.cfg.MaxBodySize),
	}
	if s.next != nil {
		opts = append(opts, WithNext(s.next))
	}
	return s.metrics.Middleware(NewHandler(s.handler, opts...))
}

// AdminHandler returns the HTTP handler served on the admin listener.
func (s *Server) AdminHandler() http.Handler {
	opts := []AdminOption{
		WithAdminLogger(logging.Component(s.log, "admin")),
		WithMetricsHandler(s.registry.Handler()),
	}
	if s.watcher != nil {
		opts = append(opts, WithReloader(s.watcher.Reload))
	}
	return NewAdmin(s.handler, opts...).Routes()
}

// Run serves until ctx is done or a listener fails, then shuts everything
// down.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	mockLn, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr, err)
	}
	servers := []*http.Server{s.newHTTPServer(s.MockHandler())}
	listeners := []net.Listener{mockLn}

	var adminLn net.Listener
	if s.cfg.AdminAddr != "" {
		adminLn, err = net.Listen("tcp", s.cfg.AdminAddr)
		if err != nil {
			_ = mockLn.Close()
			return fmt.Errorf("listening on %s: %w", s.cfg.AdminAddr, err)
		}
		servers = append(servers, s.newHTTPServer(s.AdminHandler()))
		listeners = append(listeners, adminLn)
	}

	s.mu.Lock()
	s.addr = mockLn.Addr()
	if adminLn != nil {
		s.adminAddr = adminLn.Addr()
	}
	s.mu.Unlock()
	close(s.ready)

	s.log.Info("statemock started",
		"addr", mockLn.Addr().String(),
		"admin", s.cfg.AdminAddr,
		"configs", len(s.handler.Configs()))

	g, gctx := errgroup.WithContext(ctx)
	for i, srv := range servers {
		ln := listeners[i]
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving %s: %w", ln.Addr(), err)
			}
			return nil
		})
	}
	if s.watcher != nil && s.cfg.Watch {
		g.Go(func() error { return s.watcher.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown: %w", err))
			}
		}
		s.log.Info("statemock stopped")
		return errors.Join(errs...)
	})
	return g.Wait()
}

func (s *Server) newHTTPServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
	}
}
