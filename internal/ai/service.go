package ai

import (
	"context"
	"fmt"

	"artyats/internal/config"
	"artyats/internal/errors"
	"artyats/internal/prompts"
)

// Service wires the prompt registry, one Gemini backend per operation and
// the Invoker from configuration.
type Service struct {
	invoker  *Invoker
	backends map[string]*GeminiBackend
	logger   *errors.Logger
}

// NewService builds the generation stack described by cfg. Extra options are
// applied after the configured ones, so callers can add an observer or swap
// a backend.
func NewService(ctx context.Context, cfg *config.Config, logger *errors.Logger, opts ...InvokerOption) (*Service, error) {
	registry, err := NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	backends := make(map[string]*GeminiBackend, len(config.Operations))
	invokerOpts := []InvokerOption{WithLogger(logger)}

	for _, op := range config.Operations {
		opCfg := cfg.GetOperationConfig(op)

		logger.Debug("Initializing AI backend",
			"operation", op,
			"provider", opCfg.Provider,
			"model", opCfg.Model,
			"timeout", *opCfg.Timeout,
			"max_retries", *opCfg.MaxRetries)

		switch opCfg.Provider {
		case "gemini", "":
			backend, err := NewGeminiBackend(ctx, &opCfg, op, logger)
			if err != nil {
				return nil, err
			}
			backends[op] = backend
			invokerOpts = append(invokerOpts, WithBackend(op, backend))
		default:
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("Unsupported AI provider: %s", opCfg.Provider), nil)
		}

		if opCfg.Timeout != nil {
			invokerOpts = append(invokerOpts, WithTimeout(op, *opCfg.Timeout))
		}
		if opCfg.Temperature != nil {
			invokerOpts = append(invokerOpts, WithTemperature(op, *opCfg.Temperature))
		}
	}

	return &Service{
		invoker:  NewInvoker(registry, append(invokerOpts, opts...)...),
		backends: backends,
		logger:   logger,
	}, nil
}

// NewRegistryFromConfig builds the prompt registry with any configured
// instruction or system prompt overrides.
func NewRegistryFromConfig(cfg *config.Config) (*prompts.Registry, error) {
	var overrides []prompts.Override
	for _, op := range config.Operations {
		instructions, system := cfg.PromptFor(op)
		if instructions == "" && system == "" {
			continue
		}
		overrides = append(overrides, prompts.Override{
			Name:         op,
			Instructions: instructions,
			SystemPrompt: system,
		})
	}
	return prompts.NewRegistry(overrides...)
}

// Invoker returns the configured Invoker.
func (s *Service) Invoker() *Invoker {
	return s.invoker
}

// GetModelInfo checks each distinct configured model once.
func (s *Service) GetModelInfo(ctx context.Context) []*ModelInfo {
	seen := make(map[string]bool)
	var infos []*ModelInfo
	for _, op := range config.Operations {
		backend, ok := s.backends[op]
		if !ok || seen[backend.config.Model] {
			continue
		}
		seen[backend.config.Model] = true
		infos = append(infos, backend.GetModelInfo(ctx))
	}
	return infos
}

// GetCircuitBreakerStats returns breaker statistics keyed by operation.
func (s *Service) GetCircuitBreakerStats() map[string]any {
	stats := make(map[string]any, len(s.backends))
	for op, backend := range s.backends {
		stats[op] = backend.GetCircuitBreakerStats()
	}
	return stats
}

// Healthy reports whether every breaker is closed.
func (s *Service) Healthy() bool {
	for _, backend := range s.backends {
		if !backend.circuitBreaker.IsHealthy() || !backend.modelBreaker.IsModelHealthy() {
			return false
		}
	}
	return true
}
