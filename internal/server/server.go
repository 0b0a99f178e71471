package server

import (
	"context"
	"time"

	"artyats/internal/ai"
	"artyats/internal/analysis"
	"artyats/internal/chat"
	"artyats/internal/config"
	"artyats/internal/errors"
	"artyats/internal/extract"
	"artyats/internal/observability"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// BackendStatus reports generation backend health for /health and /stats.
type BackendStatus interface {
	GetModelInfo(ctx context.Context) []*ai.ModelInfo
	GetCircuitBreakerStats() map[string]any
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Orchestrator *analysis.Orchestrator
	Sessions     *chat.Manager
	Extractor    *extract.Extractor
	Backends     BackendStatus
	Telemetry    *observability.Manager
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	AppConfig *config.Config
	TLSConfig config.TLSConfig

	orchestrator *analysis.Orchestrator
	sessions     *chat.Manager
	extractor    *extract.Extractor
	backends     BackendStatus
	telemetry    *observability.Manager
	metrics      *observability.Metrics

	// API Authentication
	APIKeys map[string]bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxRequestSize int64

	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	certReloader *certReloader

	Logger *errors.Logger
}

// NewServer creates a Server from the application config and its collaborators.
func NewServer(appCfg *config.Config, deps Deps, version string, logger *errors.Logger) *Server {
	if logger == nil {
		logger = errors.Nop()
	}

	apiKeyMap := make(map[string]bool)
	for _, key := range appCfg.Server.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	telemetry := deps.Telemetry
	if telemetry == nil {
		telemetry, _ = observability.NewManager(observability.Settings{})
	}

	rateLimit := appCfg.Server.RateLimit
	var rateLimiter *RateLimiter
	if rateLimit.Enabled {
		rateLimiter = NewRateLimiter(rateLimit.RequestsPerMin, rateLimit.BurstCapacity, logger)
	}

	return &Server{
		Host:           appCfg.Server.Host,
		Port:           appCfg.Server.Port,
		Version:        version,
		AppConfig:      appCfg,
		TLSConfig:      appCfg.Server.TLS,
		orchestrator:   deps.Orchestrator,
		sessions:       deps.Sessions,
		extractor:      deps.Extractor,
		backends:       deps.Backends,
		telemetry:      telemetry,
		metrics:        telemetry.Metrics(),
		APIKeys:        apiKeyMap,
		ReadTimeout:    appCfg.Server.ReadTimeout,
		WriteTimeout:   appCfg.Server.WriteTimeout,
		IdleTimeout:    appCfg.Server.IdleTimeout,
		MaxRequestSize: appCfg.Server.MaxBodySize,
		RateLimit:      &rateLimit,
		RateLimiter:    rateLimiter,
		Logger:         logger,
	}
}
