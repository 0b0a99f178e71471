package cli

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

// app wires the generation backends, orchestrator, chat sessions and
// telemetry for one command run.
type app struct {
	cfg          *config.Config
	logger       *errors.Logger
	telemetry    *observability.Manager
	service      *ai.Service
	orchestrator *analysis.Orchestrator
	sessions     *chat.Manager
	extractor    *extract.Extractor
}

func newApp(ctx context.Context, cfg *config.Config, logger *errors.Logger) (*app, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeMissingAPIKey, err.Error(), nil)
	}

	telemetry, err := observability.NewManager(observability.SettingsFromConfig(cfg, Version))
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to initialize observability", err)
	}
	metrics := telemetry.Metrics()

	service, err := ai.NewService(ctx, cfg, logger, ai.WithObserver(metrics.AIObserver()))
	if err != nil {
		shutdownTelemetry(telemetry, logger)
		return nil, err
	}
	gen := service.Invoker()

	return &app{
		cfg:          cfg,
		logger:       logger,
		telemetry:    telemetry,
		service:      service,
		orchestrator: analysis.NewOrchestrator(gen, cfg.Analysis, logger, analysis.WithRecorder(metrics)),
		sessions:     chat.NewManager(gen, cfg.Chat, logger, chat.WithSessionCount(metrics.RecordChatSessions)),
		extractor:    extract.New(cfg.Extract, logger),
	}, nil
}

// Close stops session eviction and flushes telemetry.
func (a *app) Close() {
	a.sessions.Close()
	shutdownTelemetry(a.telemetry, a.logger)
}

func shutdownTelemetry(m *observability.Manager, logger *errors.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		logger.LogError(err, "Failed to shutdown observability")
	}
}
