// Package http serves the web pages, the JSON API and the live prediction
// websocket.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"parbi/monitoring"
	"parbi/pages"
	"parbi/resources"
)

type ServerConfig struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8501,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		RequestTimeout: 20 * time.Second,
		MaxBodyBytes:   1 << 20,
	}
}

// Deps are the components the handlers need. History and Metrics may be nil.
type Deps struct {
	Pages     *pages.Router
	Predictor pages.Predictor
	Resources *resources.Context
	History   pages.History
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

type Server struct {
	server   *http.Server
	config   ServerConfig
	handlers *handlers
	logger   *zap.Logger
}

func NewServer(config ServerConfig, deps Deps) (*Server, error) {
	if deps.Pages == nil || deps.Predictor == nil || deps.Resources == nil {
		return nil, errors.New("http: pages, predictor and resources are required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	defaults := DefaultServerConfig()
	if config.Port == 0 {
		config.Port = defaults.Port
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}

	h := newHandlers(deps, config)
	mux := http.NewServeMux()
	h.register(mux)

	chain := Chain(
		RequestIDMiddleware,
		RecoveryMiddleware(deps.Logger),
		LoggerMiddleware(deps.Logger),
		SecurityHeadersMiddleware,
		TimeoutMiddleware(config.RequestTimeout),
		RequestSizeMiddleware(config.MaxBodyBytes),
	)

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           chain(mux),
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		config:   config,
		handlers: h,
		logger:   deps.Logger,
	}, nil
}

// Handler exposes the full middleware-wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks until the server stops. It returns nil after Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and closes open websocket sessions.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	s.handlers.closeSessions()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}
