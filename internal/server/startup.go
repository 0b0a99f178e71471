package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

const shutdownTimeout = 30 * time.Second

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         net.JoinHostPort(s.Host, s.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		IdleTimeout:  s.IdleTimeout,
	}

	tlsConfig, err := s.configureTLS()
	if err != nil {
		return fmt.Errorf("failed to configure TLS: %w", err)
	}
	httpServer.TLSConfig = tlsConfig

	s.displayServerInfo(os.Stdout)

	return s.serveWithGracefulShutdown(ctx, httpServer)
}

func (s *Server) serveWithGracefulShutdown(ctx context.Context, server *http.Server) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", server.Addr,
			"tls_enabled", server.TLSConfig != nil)

		var err error
		if server.TLSConfig != nil {
			// Certificates come from GetCertificate.
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err, ok := <-serverErrors:
		s.releaseResources()
		if ok {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.Logger.Info("Received shutdown signal, starting graceful shutdown")
		return s.performGracefulShutdown(server)
	}
}

func (s *Server) performGracefulShutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.Logger.Info("Shutting down HTTP server...")
	err := server.Shutdown(shutdownCtx)
	s.releaseResources()
	if err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return server.Close()
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

// releaseResources stops background work owned by the server.
func (s *Server) releaseResources() {
	if s.certReloader != nil {
		if err := s.certReloader.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop certificate watcher")
		}
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
	if s.sessions != nil {
		s.sessions.Close()
	}
}

func (s *Server) displayServerInfo(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Available endpoints:")
	_, _ = fmt.Fprintln(w, "  GET    /health                        - Health check")
	_, _ = fmt.Fprintln(w, "  GET    /stats                         - Server statistics")
	_, _ = fmt.Fprintln(w, "  POST   /analyze                       - ATS analysis of a resume")
	_, _ = fmt.Fprintln(w, "  POST   /feedback                      - Feedback on a finished analysis")
	_, _ = fmt.Fprintln(w, "  POST   /revise                        - Rewrite a professional summary")
	_, _ = fmt.Fprintln(w, "  POST   /extract                       - Extract text from PDF, DOCX or text")
	_, _ = fmt.Fprintln(w, "  POST   /chat/sessions                 - Start a chat session")
	_, _ = fmt.Fprintln(w, "  GET    /chat/sessions/{id}            - Session history")
	_, _ = fmt.Fprintln(w, "  DELETE /chat/sessions/{id}            - End a session")
	_, _ = fmt.Fprintln(w, "  POST   /chat/sessions/{id}/messages   - Ask a follow-up question")

	if len(s.APIKeys) > 0 {
		_, _ = fmt.Fprintf(w, "API authentication: ENABLED (%d keys configured)\n", len(s.APIKeys))
	} else {
		_, _ = fmt.Fprintln(w, "API authentication: DISABLED (no API keys configured)")
		_, _ = fmt.Fprintln(w, "WARNING: API endpoints are publicly accessible!")
	}

	if s.MaxRequestSize > 0 {
		_, _ = fmt.Fprintf(w, "Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		_, _ = fmt.Fprintln(w, "Request size limit: DISABLED")
	}

	if s.RateLimit != nil && s.RateLimit.Enabled {
		_, _ = fmt.Fprintf(w, "Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
	} else {
		_, _ = fmt.Fprintln(w, "Rate limiting: DISABLED")
	}

	switch s.TLSConfig.Mode {
	case "server", "mutual":
		_, _ = fmt.Fprintf(w, "TLS: ENABLED (mode: %s, auto-reload: %t)\n", s.TLSConfig.Mode, s.TLSConfig.AutoReload.Enabled)
	default:
		_, _ = fmt.Fprintln(w, "TLS: DISABLED")
	}
}
