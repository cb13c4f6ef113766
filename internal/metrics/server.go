package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/systmms/s3xfer/internal/logging"
)

// ServerConfig holds configuration for the metrics HTTP server.
type ServerConfig struct {
	// Listen is the address to bind, e.g. ":9090".
	Listen string

	// Path is the path to serve metrics on.
	Path string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns the default metrics server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Listen:       ":9090",
		Path:         "/metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server serves the Prometheus endpoint and a /health check.
type Server struct {
	config   ServerConfig
	logger   *logging.Logger
	server   *http.Server
	listener net.Listener
}

// NewServer creates a metrics server. A nil logger discards output.
func NewServer(config ServerConfig, logger *logging.Logger) *Server {
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{config: config, logger: logger}
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	Init()

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// metrics are non-critical
			s.logger.Warn("metrics server error: %v", err)
		}
	}()

	s.logger.Debug("metrics server listening on %s%s", ln.Addr(), s.config.Path)
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
