package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"artyats/internal/config"
	"artyats/internal/errors"
	"artyats/internal/observability"

	"github.com/fsnotify/fsnotify"
)

const (
	certCriticalThreshold = 24 * time.Hour
	certWarningThreshold  = 7 * 24 * time.Hour
)

// configureTLS builds the listener TLS config for the configured mode. It
// returns nil when TLS is disabled.
func (s *Server) configureTLS() (*tls.Config, error) {
	switch s.TLSConfig.Mode {
	case "", "disabled":
		return nil, nil
	case "server", "mutual":
	default:
		return nil, fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", s.TLSConfig.Mode)
	}

	reloader, err := newCertReloader(s.TLSConfig, s.metrics, s.Logger)
	if err != nil {
		return nil, err
	}
	if s.TLSConfig.AutoReload.Enabled {
		if err := reloader.Watch(s.TLSConfig.AutoReload.DebounceDelay); err != nil {
			return nil, err
		}
	}
	s.certReloader = reloader

	tlsConfig := &tls.Config{
		MinVersion:     tlsVersion(s.TLSConfig.MinVersion),
		GetCertificate: reloader.GetCertificate,
		ClientAuth:     tls.NoClientCert,
	}

	if s.TLSConfig.Mode == "mutual" {
		tlsConfig.ClientAuth = clientAuthPolicy(s.TLSConfig.ClientAuthPolicy)
		tlsConfig.ClientCAs = reloader.CAPool()
		// Pick up a reloaded CA bundle on each handshake.
		tlsConfig.GetConfigForClient = func(*tls.ClientHelloInfo) (*tls.Config, error) {
			cfg := tlsConfig.Clone()
			cfg.GetConfigForClient = nil
			cfg.ClientCAs = reloader.CAPool()
			return cfg, nil
		}
	}

	return tlsConfig, nil
}

func tlsVersion(v string) uint16 {
	if v == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

func clientAuthPolicy(policy string) tls.ClientAuthType {
	switch policy {
	case "request":
		return tls.RequestClientCert
	case "verify":
		return tls.VerifyClientCertIfGiven
	default:
		return tls.RequireAndVerifyClientCert
	}
}

// certReloader serves the current key pair and CA pool, reloading them from
// disk when the files change.
type certReloader struct {
	certFile, keyFile, caFile string

	mu             sync.RWMutex
	cert           *tls.Certificate
	caPool         *x509.CertPool
	notAfter       time.Time
	lastReload     time.Time
	lastReloadErr  error
	reloadCount    int
	reloadFailures int

	watcher *fsnotify.Watcher
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once

	metrics *observability.Metrics
	logger  *errors.Logger
}

func newCertReloader(cfg config.TLSConfig, metrics *observability.Metrics, logger *errors.Logger) (*certReloader, error) {
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	r := &certReloader{
		certFile: cfg.CertFile,
		keyFile:  cfg.KeyFile,
		metrics:  metrics,
		logger:   logger,
	}
	if cfg.Mode == "mutual" {
		r.caFile = cfg.CAFile
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload reads the key pair and CA bundle. On failure the previous material
// stays in use.
func (r *certReloader) Reload() error {
	err := r.load()

	r.mu.Lock()
	r.lastReload = time.Now()
	r.lastReloadErr = err
	if err != nil {
		r.reloadFailures++
	} else {
		r.reloadCount++
	}
	r.mu.Unlock()

	r.metrics.RecordCertReload(context.Background(), err == nil)
	return err
}

func (r *certReloader) load() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load server cert/key from files: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("failed to parse server certificate: %w", err)
	}
	cert.Leaf = leaf

	var pool *x509.CertPool
	if r.caFile != "" {
		caPEM, err := os.ReadFile(r.caFile)
		if err != nil {
			return fmt.Errorf("failed to read CA file: %w", err)
		}
		pool = x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return fmt.Errorf("failed to append CA cert")
		}
	}

	r.mu.Lock()
	r.cert = &cert
	r.notAfter = leaf.NotAfter
	if pool != nil {
		r.caPool = pool
	}
	r.mu.Unlock()
	return nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *certReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

// CAPool returns the current client CA pool, or nil outside mutual mode.
func (r *certReloader) CAPool() *x509.CertPool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.caPool
}

// Watch reloads on changes to the watched files, coalescing bursts of events
// within debounce. Directories are watched so atomic renames are seen.
func (r *certReloader) Watch(debounce time.Duration) error {
	if debounce <= 0 {
		debounce = time.Second
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	dirs := make(map[string]bool)
	for _, f := range r.files() {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}

	r.watcher = watcher
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.watchLoop(debounce)

	r.logger.Info("Certificate file watcher started", "files", r.files(), "debounce_delay", debounce.String())
	return nil
}

func (r *certReloader) watchLoop(debounce time.Duration) {
	defer close(r.done)

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if r.isWatched(event) {
				timer.Reset(debounce)
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.LogError(err, "File watcher error")
		case <-timer.C:
			if err := r.Reload(); err != nil {
				r.logger.LogError(err, "Failed to reload TLS certificates")
			} else {
				r.logger.Info("TLS certificates reloaded successfully")
			}
		case <-r.stop:
			return
		}
	}
}

func (r *certReloader) isWatched(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	for _, f := range r.files() {
		if filepath.Clean(event.Name) == filepath.Clean(f) {
			return true
		}
	}
	return false
}

func (r *certReloader) files() []string {
	files := []string{r.certFile, r.keyFile}
	if r.caFile != "" {
		files = append(files, r.caFile)
	}
	return files
}

// Stop ends file watching.
func (r *certReloader) Stop() error {
	if r.watcher == nil {
		return nil
	}
	var err error
	r.once.Do(func() {
		close(r.stop)
		err = r.watcher.Close()
		<-r.done
	})
	return err
}

// Status summarises certificate expiry and reload history for /health.
func (r *certReloader) Status(now time.Time) map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ttl := r.notAfter.Sub(now)
	status := map[string]any{
		"time_to_expiry_hours": int(ttl.Hours()),
		"not_after":            r.notAfter,
		"auto_reload":          r.watcher != nil,
		"reload_count":         r.reloadCount,
		"reload_failure_count": r.reloadFailures,
		"last_reload_time":     r.lastReload,
	}
	if r.lastReloadErr != nil {
		status["last_reload_error"] = r.lastReloadErr.Error()
	}

	switch {
	case ttl <= 0:
		status["healthy"], status["status"] = false, "expired"
	case ttl <= certCriticalThreshold:
		status["healthy"], status["status"] = false, "critical"
	case ttl <= certWarningThreshold:
		status["healthy"], status["status"] = true, "warning"
	default:
		status["healthy"], status["status"] = true, "ok"
	}
	return status
}
