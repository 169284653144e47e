package infra

import (
	"context"
	"errors"
	"fmt"
	stdlog "log"
	"net"
	"net/http"
	"time"
)

const shutdownGrace = 15 * time.Second

// Server runs the studio API. Request contexts derive from a base context
// that is cancelled as soon as shutdown starts, so open event streams end.
type Server struct {
	srv    *http.Server
	grace  time.Duration
	logger *Logger
}

// NewHTTPServer creates the API server. Handlers that stream for longer than
// the configured write timeout call ReleaseWriteDeadline first.
func NewHTTPServer(cfg *Config, handler http.Handler, logger *Logger) *Server {
	logger = OrDiscard(logger)
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ErrorLog:          stdlog.New(logger.With().Str("component", "http").Logger(), "", 0),
		BaseContext:       func(net.Listener) context.Context { return logger.WithContext(base) },
	}
	srv.RegisterOnShutdown(cancel)
	return &Server{srv: srv, grace: shutdownGrace, logger: logger}
}

// Run listens on the configured port and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// requests for up to the grace period.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(ln) }()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("API listening")

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ReleaseWriteDeadline lifts the server write timeout for the current
// response. Every wrapper between the server and w must implement Unwrap.
func ReleaseWriteDeadline(w http.ResponseWriter) error {
	return http.NewResponseController(w).SetWriteDeadline(time.Time{})
}
