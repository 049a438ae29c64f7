package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/darshanreddy186/rift-money-muling-detection/internal/config"
)

const (
	readHeaderTimeout = 5 * time.Second
	// Time left after an analysis deadline to encode and flush its response.
	responseMargin = 5 * time.Second
)

// Server owns the HTTP listener of the analysis API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New constructs a Server for handler. The write deadline is raised to the
// analyze timeout plus a margin when cfg sets it lower, so a slow analysis
// answers with 504 instead of a dropped connection.
func New(logger *slog.Logger, cfg config.HTTPConfig, analyze config.AnalyzeConfig, handler http.Handler) *Server {
	writeTimeout := cfg.WriteTimeout
	if floor := analyze.Timeout + responseMargin; analyze.Timeout > 0 && writeTimeout < floor {
		logger.Warn("raising http write timeout to cover analysis",
			"configured", cfg.WriteTimeout, "effective", floor)
		writeTimeout = floor
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		logger: logger,
	}
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns nil after a Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("serving analysis api", "addr", ln.Addr().String(),
		"write_timeout", s.httpServer.WriteTimeout)
	if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown waits for in-flight analyses until ctx expires, then drops the
// remaining connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	err := s.httpServer.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("shutdown deadline reached, closing connections")
		if cerr := s.httpServer.Close(); cerr != nil {
			return errors.Join(err, cerr)
		}
	}
	return err
}
