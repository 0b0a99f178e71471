package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	artyErrors "artyats/internal/errors"
	"artyats/internal/prompts"

	"google.golang.org/genai"
)

// Generator runs one named template against the backend.
type Generator interface {
	Invoke(ctx context.Context, name string, input any, out any) (*TokenUsage, error)
}

// Observer is told about every backend call the Invoker makes.
type Observer func(operation string, duration time.Duration, usage *TokenUsage, err error)

// Invoker validates input, renders a template, calls the backend once and
// validates the structured output. It never caches.
type Invoker struct {
	registry       *prompts.Registry
	backends       map[string]Backend
	defaultBackend Backend
	timeouts       map[string]time.Duration
	temperatures   map[string]float32
	observer       Observer
	logger         *artyErrors.Logger
}

var _ Generator = (*Invoker)(nil)

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithBackend routes one template to a specific backend.
func WithBackend(name string, b Backend) InvokerOption {
	return func(iv *Invoker) { iv.backends[name] = b }
}

// WithDefaultBackend serves every template without a dedicated backend.
func WithDefaultBackend(b Backend) InvokerOption {
	return func(iv *Invoker) { iv.defaultBackend = b }
}

// WithTimeout bounds each call of the named template.
func WithTimeout(name string, d time.Duration) InvokerOption {
	return func(iv *Invoker) { iv.timeouts[name] = d }
}

// WithTemperature sets the sampling temperature for the named template.
func WithTemperature(name string, t float32) InvokerOption {
	return func(iv *Invoker) { iv.temperatures[name] = t }
}

// WithObserver registers a callback for call metrics.
func WithObserver(o Observer) InvokerOption {
	return func(iv *Invoker) { iv.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *artyErrors.Logger) InvokerOption {
	return func(iv *Invoker) { iv.logger = l }
}

// NewInvoker creates an Invoker over the given registry.
func NewInvoker(registry *prompts.Registry, opts ...InvokerOption) *Invoker {
	iv := &Invoker{
		registry:     registry,
		backends:     make(map[string]Backend),
		timeouts:     make(map[string]time.Duration),
		temperatures: make(map[string]float32),
		logger:       artyErrors.Nop(),
	}
	for _, opt := range opts {
		opt(iv)
	}
	return iv
}

// Invoke runs template name with input and decodes the validated result into
// out, which must be a pointer. Input problems are reported before any
// backend call is made.
func (iv *Invoker) Invoke(ctx context.Context, name string, input any, out any) (*TokenUsage, error) {
	tmpl, err := iv.registry.Get(name)
	if err != nil {
		return nil, artyErrors.NewConfigError(artyErrors.ErrCodeTemplateNotFound,
			fmt.Sprintf("template %q is not registered", name), err)
	}

	obj, err := prompts.ToObject(input)
	if err != nil {
		return nil, artyErrors.NewValidationError(artyErrors.ErrCodeInvalidInput,
			fmt.Sprintf("invalid input for %s", name), err)
	}
	if err := prompts.ValidateValue(tmpl.InputSchema, obj); err != nil {
		return nil, artyErrors.NewValidationError(artyErrors.ErrCodeInvalidInput,
			fmt.Sprintf("invalid input for %s: %v", name, err), nil)
	}

	userPrompt, err := tmpl.Render(obj)
	if err != nil {
		return nil, err
	}

	backend := iv.backendFor(name)
	if backend == nil {
		return nil, artyErrors.NewConfigError(artyErrors.ErrCodeInvalidConfig,
			fmt.Sprintf("no backend configured for %s", name), nil)
	}

	req := GenerateRequest{
		Operation:    name,
		SystemPrompt: tmpl.SystemPrompt,
		UserPrompt:   userPrompt,
		Config:       iv.generationConfig(name, tmpl),
	}

	callCtx := ctx
	if timeout := iv.timeouts[name]; timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := backend.Generate(callCtx, req)
	if err != nil {
		err = classifyBackendError(name, err)
		iv.observe(name, time.Since(start), nil, err)
		iv.logger.LogError(err, "Generation failed", "operation", name)
		return nil, err
	}

	if err := decodeOutput(name, tmpl.OutputSchema, resp.Text, out); err != nil {
		iv.observe(name, time.Since(start), resp.Usage, err)
		iv.logger.LogError(err, "Generation returned unusable output", "operation", name)
		return resp.Usage, err
	}

	iv.observe(name, time.Since(start), resp.Usage, nil)
	iv.logger.Debug("Generation completed",
		"operation", name,
		"duration_ms", time.Since(start).Milliseconds())
	return resp.Usage, nil
}

func (iv *Invoker) backendFor(name string) Backend {
	if b, ok := iv.backends[name]; ok {
		return b
	}
	return iv.defaultBackend
}

func (iv *Invoker) generationConfig(name string, tmpl prompts.Template) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   tmpl.ResponseSchema(),
		SafetySettings:   tmpl.SafetySettings,
	}
	switch {
	case tmpl.Temperature != nil:
		cfg.Temperature = tmpl.Temperature
	default:
		if t, ok := iv.temperatures[name]; ok {
			cfg.Temperature = genai.Ptr(t)
		}
	}
	return cfg
}

func (iv *Invoker) observe(name string, d time.Duration, usage *TokenUsage, err error) {
	if iv.observer != nil {
		iv.observer(name, d, usage, err)
	}
}

// decodeOutput parses raw model text as a JSON object, validates it and
// decodes it into out. Missing or ill-typed fields are errors, never zero values.
func decodeOutput(name string, schema *genai.Schema, raw string, out any) error {
	text := stripCodeFence(raw)
	if text == "" {
		return artyErrors.NewSchemaViolationError(artyErrors.ErrCodeMalformedOutput,
			fmt.Sprintf("%s returned an empty response", name), nil)
	}

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return artyErrors.NewSchemaViolationError(artyErrors.ErrCodeMalformedOutput,
			fmt.Sprintf("%s returned malformed JSON", name), err)
	}
	if err := prompts.ValidateValue(schema, decoded); err != nil {
		return artyErrors.NewSchemaViolationError(artyErrors.ErrCodeMalformedOutput,
			fmt.Sprintf("%s returned an unexpected structure: %v", name, err), nil)
	}
	if out == nil {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	if err := dec.Decode(out); err != nil {
		return artyErrors.NewSchemaViolationError(artyErrors.ErrCodeMalformedOutput,
			fmt.Sprintf("%s output does not fit the result type", name), err)
	}
	return nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Call is a typed wrapper around Generator.Invoke.
func Call[Out any](ctx context.Context, gen Generator, name string, input any) (Out, error) {
	var out Out
	if _, err := gen.Invoke(ctx, name, input, &out); err != nil {
		var zero Out
		return zero, err
	}
	return out, nil
}
