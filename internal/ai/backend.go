package ai

import (
	"context"

	"google.golang.org/genai"
)

// Backend performs one text generation call. Implementations report content
// policy blocks as *errors.AppError values of type content_policy and return
// transport failures unclassified; the Invoker classifies them.
type Backend interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is a fully rendered generation call.
type GenerateRequest struct {
	Operation    string
	SystemPrompt string
	UserPrompt   string
	Config       *genai.GenerateContentConfig
}

// GenerateResponse carries the raw model text.
type GenerateResponse struct {
	Text  string
	Usage *TokenUsage
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
	TotalTokens  int64 `json:"totalTokens"`
}

// BackendFunc adapts a function to the Backend interface.
type BackendFunc func(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

// Generate calls f.
func (f BackendFunc) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	return f(ctx, req)
}
