package observability

import (
	"time"

	"artyats/internal/config"
)

// Settings is the resolved telemetry configuration.
type Settings struct {
	ServiceName        string
	ServiceVersion     string
	ServiceInstance    string
	Enabled            bool
	ConsoleOutput      bool
	Tracing            bool
	Metrics            bool
	SampleRate         float64
	CollectionInterval time.Duration
	Prometheus         PrometheusConfig
	OTLP               config.OTLPConfig
}

// SettingsFromConfig resolves telemetry settings, using version when no
// service version is configured.
func SettingsFromConfig(cfg *config.Config, version string) Settings {
	if cfg == nil {
		return Settings{
			ServiceName:        "artyats",
			ServiceVersion:     version,
			ServiceInstance:    "artyats-1",
			SampleRate:         1.0,
			CollectionInterval: collectionInterval(nil),
			Prometheus:         GetPrometheusConfig(nil),
		}
	}

	obs := cfg.Observability
	serviceVersion := obs.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}
	sampleRate := obs.SampleRate
	if obs.Tracing.SampleRate > 0 {
		sampleRate = obs.Tracing.SampleRate
	}

	return Settings{
		ServiceName:        obs.ServiceName,
		ServiceVersion:     serviceVersion,
		ServiceInstance:    obs.ServiceInstance,
		Enabled:            obs.Enabled,
		ConsoleOutput:      obs.ConsoleOutput,
		Tracing:            obs.Tracing.Enabled,
		Metrics:            obs.Metrics.Enabled,
		SampleRate:         sampleRate,
		CollectionInterval: collectionInterval(cfg),
		Prometheus:         GetPrometheusConfig(cfg),
		OTLP:               obs.OTLP,
	}
}
