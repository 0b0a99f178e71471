package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"artyats/internal/ai"
	"artyats/internal/config"
	"artyats/internal/errors"
	"artyats/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp.Meter("test"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumValue(t *testing.T, data metricdata.Aggregation, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected an int64 sum, got %T", data)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func TestRecordGeneration(t *testing.T) {
	m, reader := newTestMetrics(t)
	observe := m.AIObserver()

	observe("score", 120*time.Millisecond, &ai.TokenUsage{InputTokens: 100, OutputTokens: 20, TotalTokens: 120}, nil)
	observe("score", time.Second, nil, errors.NewBackendUnavailableError(errors.ErrCodeBackendTimeout, "timed out", nil))

	data := collect(t, reader)
	assert.Equal(t, int64(1), sumValue(t, data["arty_ai_requests_total"],
		attribute.String("operation", "score"), attribute.Bool("success", true)))
	assert.Equal(t, int64(1), sumValue(t, data["arty_ai_requests_total"],
		attribute.String("operation", "score"), attribute.Bool("success", false)))
	assert.Equal(t, int64(1), sumValue(t, data["arty_ai_errors_total"],
		attribute.String("operation", "score"), attribute.String("kind", "backend_unavailable")))

	tokens, ok := data["arty_ai_tokens"].(metricdata.Histogram[int64])
	require.True(t, ok)
	assert.Len(t, tokens.DataPoints, 3, "one point per token type")
}

func TestRecordAnalysis(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordAnalysis(context.Background(), "analyze", time.Second, nil,
		&types.ScoreResult{ATSPassScore: 70, HumanRecruiterScore: 80, ATSRealScore: 76})
	m.RecordAnalysis(context.Background(), "analyze", time.Second, assert.AnError, nil)

	data := collect(t, reader)
	assert.Equal(t, int64(1), sumValue(t, data["arty_operations_total"],
		attribute.String("operation", "analyze"), attribute.Bool("success", false)))

	scores, ok := data["arty_ats_real_score"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, scores.DataPoints, 1)
	assert.Equal(t, uint64(1), scores.DataPoints[0].Count)
}

func TestChatAndServerMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordChatSessions(3)
	m.RecordChatMessage(context.Background(), nil)
	m.RecordChatMessage(context.Background(), errors.NewConflictError(errors.ErrCodeRequestInFlight, "busy", nil))
	m.RecordRateLimitHit(context.Background(), "ip")
	m.RecordCertReload(context.Background(), true)

	data := collect(t, reader)
	gauge, ok := data["arty_chat_sessions_active"].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(3), gauge.DataPoints[0].Value)

	assert.Equal(t, int64(1), sumValue(t, data["arty_chat_messages_total"], attribute.String("outcome", "conflict")))
	assert.Equal(t, int64(1), sumValue(t, data["arty_rate_limit_hits_total"], attribute.String("key_type", "ip")))
	assert.Equal(t, int64(1), sumValue(t, data["arty_cert_reloads_total"], attribute.Bool("success", true)))
}

func TestDisabledManager(t *testing.T) {
	m, err := NewManager(SettingsFromConfig(&config.Config{}, "1.0.0"))
	require.NoError(t, err)
	assert.False(t, m.Enabled())
	require.NotNil(t, m.Metrics())

	// Instruments are usable even though nothing is exported.
	m.Metrics().RecordRateLimitHit(context.Background(), "ip")

	called := false
	h := m.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.True(t, called)
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.ServiceName = "artyats"
	cfg.Observability.Enabled = true
	cfg.Observability.SampleRate = 0.5
	cfg.Observability.Tracing.SampleRate = 0.25
	cfg.Observability.Prometheus.Port = "9100"

	s := SettingsFromConfig(cfg, "2.0.0")
	assert.Equal(t, "2.0.0", s.ServiceVersion)
	assert.Equal(t, 0.25, s.SampleRate)
	assert.Equal(t, 15*time.Second, s.CollectionInterval)
	assert.Equal(t, "9100", s.Prometheus.Port)

	fallback := SettingsFromConfig(nil, "dev")
	assert.Equal(t, "artyats", fallback.ServiceName)
	assert.False(t, fallback.Enabled)
}
