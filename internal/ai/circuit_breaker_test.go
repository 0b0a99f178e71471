package ai

import (
	"errors"
	"testing"
	"time"

	"artyats/internal/config"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func breakerConfig(maxRequests, minRequests uint32, threshold float64) *config.OperationAIConfig {
	return &config.OperationAIConfig{
		Provider: "gemini",
		Model:    "gemini-2.0-flash",
		CircuitBreaker: config.CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      maxRequests,
			Interval:         60 * time.Second,
			Timeout:          60 * time.Second,
			MinRequests:      minRequests,
			FailureThreshold: threshold,
		},
	}
}

func TestIndependentCircuitBreakerConfigurations(t *testing.T) {
	scoreCB := NewAICircuitBreaker(config.OperationScore, breakerConfig(3, 3, 0.6), nil)
	chatCB := NewAICircuitBreaker(config.OperationChat, breakerConfig(5, 2, 0.7), nil)
	require.NotNil(t, scoreCB)
	require.NotNil(t, chatCB)

	stats := scoreCB.GetStats()
	assert.Equal(t, "AI-score", stats["name"])
	assert.Equal(t, "closed", stats["state"])
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, "AI-chat", chatCB.GetStats()["name"])

	assert.NotSame(t, scoreCB, chatCB)
	assert.True(t, scoreCB.IsHealthy())
	assert.True(t, chatCB.IsHealthy())
}

func TestCircuitBreakerTrips(t *testing.T) {
	cb := NewAICircuitBreaker(config.OperationSuggest, breakerConfig(1, 2, 0.5), nil)
	require.NotNil(t, cb)

	failing := func() (*genai.GenerateContentResponse, error) {
		return nil, errors.New("boom")
	}
	_, _ = cb.Execute(failing)
	_, _ = cb.Execute(failing)

	assert.False(t, cb.IsHealthy())
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		t.Fatal("open breaker must not run the call")
		return nil, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	classified := classifyBackendError(config.OperationSuggest, err)
	assert.Contains(t, classified.Error(), "CIRCUIT_OPEN")
}

func TestCircuitBreakerDisabled(t *testing.T) {
	disabled := &config.OperationAIConfig{Model: "test-model"}

	cb := NewAICircuitBreaker("disabled", disabled, nil)
	assert.Nil(t, cb)
	assert.Nil(t, NewModelCircuitBreaker("disabled", disabled, nil))

	// A nil breaker still runs calls and reports healthy.
	called := false
	_, err := cb.Execute(func() (*genai.GenerateContentResponse, error) {
		called = true
		return &genai.GenerateContentResponse{}, nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.True(t, cb.IsHealthy())
	assert.Equal(t, map[string]any{"enabled": false}, cb.GetStats())
}

func TestModelCircuitBreakerIsLenient(t *testing.T) {
	cb := NewModelCircuitBreaker(config.OperationScore, breakerConfig(1, 1, 0.1), nil)
	require.NotNil(t, cb)
	assert.Equal(t, "AI-Model-score", cb.GetModelStats()["name"])

	for range 4 {
		_, _ = cb.ExecuteModel(func() (*genai.Model, error) { return nil, errors.New("down") })
	}
	assert.True(t, cb.IsModelHealthy(), "fewer than five failures keep the model breaker closed")

	_, _ = cb.ExecuteModel(func() (*genai.Model, error) { return nil, errors.New("down") })
	assert.False(t, cb.IsModelHealthy())
}
