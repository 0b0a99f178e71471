package ai

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"artyats/internal/config"
	artyErrors "artyats/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

const modelCheckTimeout = 10 * time.Second

// GeminiBackend implements Backend for Google Gemini, one instance per operation.
type GeminiBackend struct {
	client         *genai.Client
	operation      string
	config         *config.OperationAIConfig
	circuitBreaker *AICircuitBreaker
	modelBreaker   *ModelCircuitBreaker
	logger         *artyErrors.Logger
}

var _ Backend = (*GeminiBackend)(nil)

// NewGeminiBackend creates a Gemini backend for a specific operation
func NewGeminiBackend(ctx context.Context, cfg *config.OperationAIConfig, operation string, logger *artyErrors.Logger) (*GeminiBackend, error) {
	if cfg.APIKey == "" {
		return nil, artyErrors.NewConfigError(artyErrors.ErrCodeMissingAPIKey,
			fmt.Sprintf("no Gemini API key configured for %s", operation), nil)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, artyErrors.NewConfigError(artyErrors.ErrCodeInvalidConfig,
			"failed to create Gemini client", err)
	}

	return &GeminiBackend{
		client:         client,
		operation:      operation,
		config:         cfg,
		circuitBreaker: NewAICircuitBreaker(operation, cfg, logger),
		modelBreaker:   NewModelCircuitBreaker(operation, cfg, logger),
		logger:         logger,
	}, nil
}

// Generate sends one prompt to Gemini under the circuit breaker and the
// configured retry budget.
func (g *GeminiBackend) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	tracer := otel.Tracer("artyats.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+g.operation)
	defer span.End()

	genaiConfig := req.Config
	if genaiConfig == nil {
		genaiConfig = &genai.GenerateContentConfig{}
	}
	if genaiConfig.Temperature == nil && g.config.Temperature != nil && *g.config.Temperature > 0 {
		genaiConfig.Temperature = g.config.Temperature
	}
	if g.useSystemPrompts() && req.SystemPrompt != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.String("ai.operation", g.operation),
		attribute.Int("input.prompt_length", len(req.UserPrompt)),
	)
	if genaiConfig.Temperature != nil {
		span.SetAttributes(attribute.Float64("ai.temperature", float64(*genaiConfig.Temperature)))
	}

	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(ctx, g.operation, func() (*genai.GenerateContentResponse, error) {
			return g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(req.UserPrompt), genaiConfig)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, err
	}

	if reason := blockedReason(result); reason != "" {
		span.SetAttributes(attribute.Bool("success", false), attribute.String("ai.block_reason", reason))
		return nil, artyErrors.NewContentPolicyError(artyErrors.ErrCodeContentBlocked,
			fmt.Sprintf("the model declined to answer (%s)", reason), nil)
	}

	usage := extractTokenUsage(result)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	span.SetAttributes(attribute.Bool("success", true))

	return &GenerateResponse{Text: result.Text(), Usage: usage}, nil
}

func (g *GeminiBackend) useSystemPrompts() bool {
	return g.config.UseSystemPrompts == nil || *g.config.UseSystemPrompts
}

func (g *GeminiBackend) maxRetries() int {
	if g.config.MaxRetries == nil || *g.config.MaxRetries < 0 {
		return 0
	}
	return *g.config.MaxRetries
}

// executeWithRetry executes an AI operation with retry logic and exponential backoff
func (g *GeminiBackend) executeWithRetry(ctx context.Context, operation string, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	var lastErr error
	retries := g.maxRetries()

	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying AI operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", retries,
				"error", lastErr.Error())

			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("AI operation succeeded after retry",
					"operation", operation,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	if retries == 0 {
		return nil, lastErr
	}
	g.logger.LogError(lastErr, "AI operation failed after all retry attempts",
		"operation", operation,
		"total_attempts", retries+1)
	return nil, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, retries, lastErr)
}

// backoffDelay is 2^(attempt-1) seconds plus up to 10% jitter, capped at 30s.
func backoffDelay(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(0)
	if jitterMax := int64(float64(baseDelay) * 0.1); jitterMax > 0 {
		if jitterBig, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			jitter = time.Duration(jitterBig.Int64())
		}
	}
	return min(baseDelay+jitter, 30*time.Second)
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Operation   string `json:"operation"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiBackend) GetModelInfo(ctx context.Context) *ModelInfo {
	info := &ModelInfo{Operation: g.operation, Name: g.config.Model}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.ExecuteModel(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		info.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"operation", g.operation,
			"model", g.config.Model,
			"error", err.Error())
		return info
	}

	info.Available = true
	info.DisplayName = model.DisplayName
	info.Version = model.Version
	return info
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiBackend) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"ai_operations":    g.circuitBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetModelStats(),
		"overall_healthy":  g.circuitBreaker.IsHealthy() && g.modelBreaker.IsModelHealthy(),
	}
}

// blockedReason reports why Gemini refused to generate, or "" when it did not.
func blockedReason(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return "prompt " + string(result.PromptFeedback.BlockReason)
	}
	if len(result.Candidates) > 0 && result.Candidates[0] != nil {
		switch reason := result.Candidates[0].FinishReason; reason {
		case genai.FinishReasonSafety, genai.FinishReasonBlocklist,
			genai.FinishReasonProhibitedContent, genai.FinishReasonSPII:
			return "response " + string(reason)
		}
	}
	return ""
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
