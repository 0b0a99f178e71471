package observability

import (
	"context"
	"fmt"
	"time"

	"artyats/internal/ai"
	"artyats/internal/errors"
	"artyats/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the application instruments.
type Metrics struct {
	// Generation calls
	AIRequestDuration metric.Float64Histogram
	AIRequestCount    metric.Int64Counter
	AIErrorCount      metric.Int64Counter
	AITokenUsage      metric.Int64Histogram

	// Orchestrated operations
	OperationDuration metric.Float64Histogram
	OperationCount    metric.Int64Counter
	ATSRealScore      metric.Float64Histogram

	// Chat
	ChatSessions metric.Int64Gauge
	ChatMessages metric.Int64Counter

	// Server
	RateLimitHits   metric.Int64Counter
	CertReloadCount metric.Int64Counter
}

// NewMetrics creates every instrument on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.AIRequestDuration, err = meter.Float64Histogram("arty_ai_request_duration_seconds",
		metric.WithDescription("Time spent in generation backend calls"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create AI request duration metric: %w", err)
	}
	if m.AIRequestCount, err = meter.Int64Counter("arty_ai_requests_total",
		metric.WithDescription("Total number of generation backend calls")); err != nil {
		return nil, fmt.Errorf("failed to create AI request count metric: %w", err)
	}
	if m.AIErrorCount, err = meter.Int64Counter("arty_ai_errors_total",
		metric.WithDescription("Generation calls that failed, by error kind")); err != nil {
		return nil, fmt.Errorf("failed to create AI error count metric: %w", err)
	}
	if m.AITokenUsage, err = meter.Int64Histogram("arty_ai_tokens",
		metric.WithDescription("Tokens used per generation call (input, output, total)"),
		metric.WithUnit("{token}")); err != nil {
		return nil, fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	if m.OperationDuration, err = meter.Float64Histogram("arty_operation_duration_seconds",
		metric.WithDescription("End-to-end duration of analyses, feedback and revisions"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create operation duration metric: %w", err)
	}
	if m.OperationCount, err = meter.Int64Counter("arty_operations_total",
		metric.WithDescription("Total number of analyses, feedback and revisions")); err != nil {
		return nil, fmt.Errorf("failed to create operation count metric: %w", err)
	}
	if m.ATSRealScore, err = meter.Float64Histogram("arty_ats_real_score",
		metric.WithDescription("Distribution of combined ATS scores"),
		metric.WithExplicitBucketBoundaries(10, 20, 30, 40, 50, 60, 70, 80, 90, 100)); err != nil {
		return nil, fmt.Errorf("failed to create score metric: %w", err)
	}

	if m.ChatSessions, err = meter.Int64Gauge("arty_chat_sessions_active",
		metric.WithDescription("Chat sessions currently held in memory")); err != nil {
		return nil, fmt.Errorf("failed to create chat sessions metric: %w", err)
	}
	if m.ChatMessages, err = meter.Int64Counter("arty_chat_messages_total",
		metric.WithDescription("Follow-up questions answered or rejected")); err != nil {
		return nil, fmt.Errorf("failed to create chat messages metric: %w", err)
	}

	if m.RateLimitHits, err = meter.Int64Counter("arty_rate_limit_hits_total",
		metric.WithDescription("Requests rejected by the rate limiter")); err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}
	if m.CertReloadCount, err = meter.Int64Counter("arty_cert_reloads_total",
		metric.WithDescription("TLS certificate reload attempts")); err != nil {
		return nil, fmt.Errorf("failed to create certificate reload metric: %w", err)
	}

	return m, nil
}

// NopMetrics returns instruments that record nothing.
func NopMetrics() *Metrics {
	m, err := NewMetrics(metricnoop.NewMeterProvider().Meter("artyats"))
	if err != nil {
		panic(err)
	}
	return m
}

// AIObserver adapts the metrics to the invoker's per-call hook.
func (m *Metrics) AIObserver() ai.Observer {
	return func(operation string, duration time.Duration, usage *ai.TokenUsage, err error) {
		m.RecordGeneration(context.Background(), operation, duration, usage, err)
	}
}

// RecordGeneration records one backend call.
func (m *Metrics) RecordGeneration(ctx context.Context, operation string, duration time.Duration, usage *ai.TokenUsage, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}
	m.AIRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.AIRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil {
		m.AIErrorCount.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("kind", string(errors.KindOf(err))),
		))
	}

	if usage == nil {
		return
	}
	for _, tt := range []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	} {
		m.AITokenUsage.Record(ctx, tt.value, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("token_type", tt.tokenType),
		))
	}
}

// RecordAnalysis records a finished orchestrated operation.
func (m *Metrics) RecordAnalysis(ctx context.Context, operation string, duration time.Duration, err error, scores *types.ScoreResult) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	)
	m.OperationDuration.Record(ctx, duration.Seconds(), attrs)
	m.OperationCount.Add(ctx, 1, attrs)

	if scores != nil {
		m.ATSRealScore.Record(ctx, scores.ATSRealScore)
	}
}

// RecordChatSessions sets the live session gauge.
func (m *Metrics) RecordChatSessions(active int) {
	m.ChatSessions.Record(context.Background(), int64(active))
}

// RecordChatMessage counts a follow-up question by outcome.
func (m *Metrics) RecordChatMessage(ctx context.Context, err error) {
	outcome := "answered"
	if err != nil {
		outcome = string(errors.KindOf(err))
	}
	m.ChatMessages.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRateLimitHit counts a rejected request by limiter key type.
func (m *Metrics) RecordRateLimitHit(ctx context.Context, keyType string) {
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("key_type", keyType)))
}

// RecordCertReload counts a certificate reload attempt.
func (m *Metrics) RecordCertReload(ctx context.Context, success bool) {
	m.CertReloadCount.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
