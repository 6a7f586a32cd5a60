package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/fatih/color"
	"golang.org/x/net/netutil"

	"github.com/f4ah6o/corsserve-go/internal/config"
)

const shutdownTimeout = 5 * time.Second

var (
	infoColor = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
)

// Server owns the listener, the optional TLS config and the HTTP server for
// one process.
type Server struct {
	cfg       *config.Config
	out       io.Writer
	handler   http.Handler
	tlsConfig *tls.Config
}

// New returns a Server for cfg. Startup messages are written to out.
func New(cfg *config.Config, out io.Writer) *Server {
	opts := []HandlerOption{WithCORS(cfg.CORS)}
	if !cfg.Quiet {
		opts = append(opts, WithRequestLog(log.Default()))
	}

	return &Server{
		cfg:     cfg,
		out:     out,
		handler: NewHandler(cfg.Dir, opts...),
	}
}

// TLSEnabled reports whether Listen wrapped the listener in TLS.
func (s *Server) TLSEnabled() bool {
	return s.tlsConfig != nil
}

// Listen binds the configured address and, when both the certificate and key
// files exist, wraps the listener in TLS. Otherwise the listener stays
// plaintext and a warning is printed.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", s.cfg.Addr, err)
	}

	tlsConfig, err := LoadTLS(s.cfg.CertFile, s.cfg.KeyFile)
	if err != nil {
		ln.Close()
		return nil, err
	}

	port := s.cfg.Port()
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = strconv.Itoa(addr.Port)
	}

	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	if tlsConfig == nil {
		warnColor.Fprintln(s.out, "Warning: SSL certificates not found. Running without HTTPS.")
		warnColor.Fprintln(s.out, "Please run setup.sh first to generate certificates.")
		return ln, nil
	}

	s.tlsConfig = tlsConfig
	infoColor.Fprintf(s.out, "Serving HTTPS on %s port %s...\n", s.cfg.Host(), port)
	return tls.NewListener(ln, tlsConfig), nil
}

// Serve accepts connections on ln until ctx is cancelled, then shuts the
// server down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.cfg.MaxConnections == 1 {
		srv.SetKeepAlivesEnabled(false)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe combines Listen and Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
