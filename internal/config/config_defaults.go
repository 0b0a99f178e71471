package config

import (
	"time"

	"github.com/spf13/viper"
)

// operationDefaults tunes each operation. Scoring and rationale stay near
// deterministic; suggestions and chat get more room.
var operationDefaults = map[string]struct {
	timeout     time.Duration
	temperature float64
}{
	OperationScore:     {timeout: 60 * time.Second, temperature: 0.1},
	OperationSuggest:   {timeout: 90 * time.Second, temperature: 0.7},
	OperationRationale: {timeout: 60 * time.Second, temperature: 0.3},
	OperationChat:      {timeout: 60 * time.Second, temperature: 0.6},
	OperationFeedback:  {timeout: 45 * time.Second, temperature: 0.5},
	OperationRevise:    {timeout: 60 * time.Second, temperature: 0.6},
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.apiKey", "")
	// No silent retries: a failed call surfaces to the caller.
	v.SetDefault("ai.maxRetries", 0)
	v.SetDefault("ai.temperature", 0.4)
	v.SetDefault("ai.useSystemPrompts", true)

	for _, op := range Operations {
		d := operationDefaults[op]
		prefix := "ai." + op + "."
		v.SetDefault(prefix+"provider", "")
		v.SetDefault(prefix+"model", "")
		v.SetDefault(prefix+"apiKey", "")
		v.SetDefault(prefix+"timeout", d.timeout)
		v.SetDefault(prefix+"temperature", d.temperature)

		v.SetDefault(prefix+"circuitBreaker.enabled", true)
		v.SetDefault(prefix+"circuitBreaker.maxRequests", 3)
		v.SetDefault(prefix+"circuitBreaker.interval", 60*time.Second)
		v.SetDefault(prefix+"circuitBreaker.timeout", 60*time.Second)
		v.SetDefault(prefix+"circuitBreaker.minRequests", 3)
		v.SetDefault(prefix+"circuitBreaker.failureThreshold", 0.6)
	}

	v.SetDefault("analysis.minJobDescriptionLength", 100)
	v.SetDefault("analysis.scoreTolerance", 1.0)
	v.SetDefault("analysis.defaultUserInfo", "Looking for a new role.")

	v.SetDefault("chat.maxContextTurns", 20)
	v.SetDefault("chat.sessionTTL", 30*time.Minute)
	v.SetDefault("chat.cleanupInterval", time.Minute)
	v.SetDefault("chat.maxSessions", 1000)

	v.SetDefault("extract.maxDocumentSize", 10*1024*1024) // 10MB
	v.SetDefault("extract.maxPdfPages", 50)

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	// Analysis runs two sequential backend rounds.
	v.SetDefault("server.writeTimeout", 200*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxBodySize", 2*1024*1024)
	v.SetDefault("server.tls.mode", "disabled")
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.caFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.tls.clientAuthPolicy", "require")
	v.SetDefault("server.tls.autoReload.enabled", true)
	v.SetDefault("server.tls.autoReload.debounceDelay", time.Second)
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.window", time.Minute)

	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 10*1024*1024)

	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.geminiKey", "")

	v.SetDefault("observability.enabled", false)
	v.SetDefault("observability.serviceName", "artyats")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.healthCheck.timeout", 15*time.Second)
	v.SetDefault("observability.healthCheck.aiModelCheckTimeout", 10*time.Second)
}
