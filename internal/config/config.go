package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for every environment override, e.g. ARTY_AI_APIKEY.
const EnvPrefix = "ARTY"

// Config holds all application configuration
// API Key Precedence Order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (ARTY_AI_APIKEY, GEMINI_API_KEY)
// 4. Default values - Lowest priority
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Extract       ExtractConfig       `mapstructure:"extract"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`

	// Prompt text read from instructionsFile/systemFile, keyed by operation.
	// Filled once during LoadConfig and never mutated afterwards.
	loadedPrompts map[string]LoadedPrompt
}

// AIConfig holds the global generation settings and the per-operation sections.
type AIConfig struct {
	Provider         string         `mapstructure:"provider"`
	Model            string         `mapstructure:"model"`
	Timeout          time.Duration  `mapstructure:"timeout"`
	APIKey           string         `mapstructure:"apiKey"`
	MaxRetries       int            `mapstructure:"maxRetries"`
	Temperature      float32        `mapstructure:"temperature"`
	UseSystemPrompts bool           `mapstructure:"useSystemPrompts"`
	Prompt           PromptOverride `mapstructure:"prompt"`

	Score     OperationAIConfig `mapstructure:"score"`
	Suggest   OperationAIConfig `mapstructure:"suggest"`
	Rationale OperationAIConfig `mapstructure:"rationale"`
	Chat      OperationAIConfig `mapstructure:"chat"`
	Feedback  OperationAIConfig `mapstructure:"feedback"`
	Revise    OperationAIConfig `mapstructure:"revise"`
}

// Operation names. Each one has its own section under ai.*.
const (
	OperationScore     = "score"
	OperationSuggest   = "suggest"
	OperationRationale = "rationale"
	OperationChat      = "chat"
	OperationFeedback  = "feedback"
	OperationRevise    = "revise"
)

// Operations lists every configurable generation operation.
var Operations = []string{
	OperationScore,
	OperationSuggest,
	OperationRationale,
	OperationChat,
	OperationFeedback,
	OperationRevise,
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// OperationAIConfig holds AI configuration for specific operations.
// Nil pointer fields fall back to the global AIConfig value.
type OperationAIConfig struct {
	Provider         string               `mapstructure:"provider"`
	Model            string               `mapstructure:"model"`
	Timeout          *time.Duration       `mapstructure:"timeout"`
	APIKey           string               `mapstructure:"apiKey"`
	MaxRetries       *int                 `mapstructure:"maxRetries"`
	Temperature      *float32             `mapstructure:"temperature"`
	UseSystemPrompts *bool                `mapstructure:"useSystemPrompts"`
	Prompt           PromptOverride       `mapstructure:"prompt"`
	CircuitBreaker   CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// PromptOverride replaces built-in prompt text for one operation.
// Inline text and file paths are both accepted; a file wins over inline text.
type PromptOverride struct {
	Instructions     string `mapstructure:"instructions"`
	InstructionsFile string `mapstructure:"instructionsFile"`
	System           string `mapstructure:"system"`
	SystemFile       string `mapstructure:"systemFile"`
}

// AnalysisConfig holds request validation and result checking settings.
type AnalysisConfig struct {
	MinJobDescriptionLength int     `mapstructure:"minJobDescriptionLength"`
	ScoreTolerance          float64 `mapstructure:"scoreTolerance"`
	DefaultUserInfo         string  `mapstructure:"defaultUserInfo"`
}

// ChatConfig holds follow-up conversation settings.
type ChatConfig struct {
	MaxContextTurns int           `mapstructure:"maxContextTurns"`
	SessionTTL      time.Duration `mapstructure:"sessionTTL"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
	MaxSessions     int           `mapstructure:"maxSessions"`
}

// ExtractConfig holds document extraction limits.
type ExtractConfig struct {
	MaxDocumentSize int64 `mapstructure:"maxDocumentSize"`
	MaxPDFPages     int   `mapstructure:"maxPdfPages"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
	MaxBodySize  int64         `mapstructure:"maxBodySize"`

	TLS TLSConfig `mapstructure:"tls"`

	// Valid API keys for authentication. Empty disables auth.
	APIKeys []string `mapstructure:"apiKeys"`

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// TLSConfig holds TLS/mTLS configuration
type TLSConfig struct {
	Mode             string `mapstructure:"mode"`     // "disabled", "server", "mutual"
	CertFile         string `mapstructure:"certFile"` // PEM
	KeyFile          string `mapstructure:"keyFile"`  // PEM
	CAFile           string `mapstructure:"caFile"`   // PEM, mutual mode only
	MinVersion       string `mapstructure:"minVersion"`
	ClientAuthPolicy string `mapstructure:"clientAuthPolicy"` // "require", "request", "verify"

	AutoReload AutoReloadConfig `mapstructure:"autoReload"`
}

// AutoReloadConfig controls certificate hot reload from disk.
type AutoReloadConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DebounceDelay time.Duration `mapstructure:"debounceDelay"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RequestsPerMin int           `mapstructure:"requestsPerMin"`
	BurstCapacity  int           `mapstructure:"burstCapacity"`
	ByIP           bool          `mapstructure:"byIP"`
	ByAPIKey       bool          `mapstructure:"byAPIKey"`
	Window         time.Duration `mapstructure:"window"`
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	ServiceName     string            `mapstructure:"serviceName"`
	ServiceVersion  string            `mapstructure:"serviceVersion"`
	ServiceInstance string            `mapstructure:"serviceInstance"`
	ConsoleOutput   bool              `mapstructure:"consoleOutput"`
	SampleRate      float64           `mapstructure:"sampleRate"`
	Tracing         TracingConfig     `mapstructure:"tracing"`
	Metrics         MetricsConfig     `mapstructure:"metrics"`
	Prometheus      PrometheusConfig  `mapstructure:"prometheus"`
	OTLP            OTLPConfig        `mapstructure:"otlp"`
	HealthCheck     HealthCheckConfig `mapstructure:"healthCheck"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// HealthCheckConfig holds health check configuration
type HealthCheckConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`
	AIModelCheckTimeout time.Duration `mapstructure:"aiModelCheckTimeout"`
}

// LoadConfig loads configuration from defaults, an optional config.yaml and
// ARTY_* environment variables.
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New())
}

// LoadConfigFile is LoadConfig with an explicit config file path.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return loadConfig(v)
}

func loadConfig(v *viper.Viper) (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Printf("[CONFIG] Configured environment variable handling with prefix '%s'", EnvPrefix)

	explicit := v.ConfigFileUsed() != ""
	if !explicit {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/artyats/")
		v.AddConfigPath("$HOME/.artyats")
		v.AddConfigPath(".")
	}

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || explicit {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyFallbacks()
	config.logConfigurationSources(configFileUsed)

	if err := config.validatePromptFiles(); err != nil {
		return nil, fmt.Errorf("prompt file validation failed: %w", err)
	}
	if err := config.loadPromptsFromFiles(); err != nil {
		return nil, fmt.Errorf("failed to load custom prompts from files: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	if c.AI.Timeout <= 0 {
		problems = append(problems, "AI timeout must be positive")
	}
	if c.AI.MaxRetries < 0 {
		problems = append(problems, "AI maxRetries must not be negative")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		problems = append(problems, "AI temperature must be within [0, 2]")
	}
	for _, op := range Operations {
		opCfg := c.rawOperation(op)
		if opCfg.Timeout != nil && *opCfg.Timeout <= 0 {
			problems = append(problems, fmt.Sprintf("ai.%s.timeout must be positive", op))
		}
		if opCfg.MaxRetries != nil && *opCfg.MaxRetries < 0 {
			problems = append(problems, fmt.Sprintf("ai.%s.maxRetries must not be negative", op))
		}
		if opCfg.CircuitBreaker.Enabled && (opCfg.CircuitBreaker.FailureThreshold <= 0 || opCfg.CircuitBreaker.FailureThreshold > 1) {
			problems = append(problems, fmt.Sprintf("ai.%s.circuitBreaker.failureThreshold must be within (0, 1]", op))
		}
	}

	if c.Analysis.MinJobDescriptionLength < 1 {
		problems = append(problems, "analysis.minJobDescriptionLength must be at least 1")
	}
	if c.Analysis.ScoreTolerance < 0 {
		problems = append(problems, "analysis.scoreTolerance must not be negative")
	}
	if c.Chat.MaxContextTurns < 2 {
		problems = append(problems, "chat.maxContextTurns must be at least 2")
	}
	if c.Extract.MaxDocumentSize <= 0 {
		problems = append(problems, "extract.maxDocumentSize must be positive")
	}

	if c.Server.Port == "" {
		problems = append(problems, "server port is required")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		problems = append(problems, fmt.Sprintf("invalid default format: %s", c.App.DefaultFormat))
	}

	if err := c.ValidateTLSConfig(); err != nil {
		problems = append(problems, fmt.Sprintf("TLS configuration error: %v", err))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// RequireAPIKey reports whether a generation backend credential is available.
// Commands that never call the backend (version, extract) skip this check.
func (c *Config) RequireAPIKey() error {
	if c.AI.APIKey != "" {
		return nil
	}
	for _, op := range Operations {
		if c.rawOperation(op).APIKey == "" {
			return fmt.Errorf("AI API key is required (set %s_AI_APIKEY or GEMINI_API_KEY)", EnvPrefix)
		}
	}
	return nil
}
