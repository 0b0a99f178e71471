package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"artyats/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	TokenFile string `mapstructure:"tokenFile"`
	Namespace string `mapstructure:"namespace"`
	// Mount is the KVv2 engine mount; secret paths are relative to it.
	Mount string `mapstructure:"mount"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets names the KVv2 secrets to read. Empty paths are skipped.
type VaultSecrets struct {
	// APIKeys holds a comma-separated "keys" field of server API keys.
	APIKeys string `mapstructure:"apiKeys"`
	// GeminiKey holds the backend credential in its "api_key" field.
	GeminiKey string `mapstructure:"geminiKey"`
}

// secretReader is the subset of VaultClient the secret bindings need.
type secretReader interface {
	ReadString(ctx context.Context, path, field string) (string, error)
}

// VaultClient reads string fields from one KVv2 mount.
type VaultClient struct {
	kv     *api.KVv2
	logger *errors.Logger
}

// NewVaultClient connects to Vault and verifies it answers a health check.
func NewVaultClient(ctx context.Context, cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	apiCfg := api.DefaultConfig()
	if cfg.Address != "" {
		apiCfg.Address = cfg.Address
	}
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := resolveVaultToken(cfg)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().HealthWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault at %s: %w", apiCfg.Address, err)
	}
	if health.Sealed {
		return nil, fmt.Errorf("vault at %s is sealed", apiCfg.Address)
	}
	logger.Info("Connected to Vault",
		"address", apiCfg.Address,
		"version", health.Version,
		"cluster_name", health.ClusterName)

	mount := cfg.Mount
	if mount == "" {
		mount = "secret"
	}
	return &VaultClient{kv: client.KVv2(mount), logger: logger}, nil
}

// resolveVaultToken prefers the inline token over the token file.
func resolveVaultToken(cfg VaultConfig) (string, error) {
	token := cfg.Token
	if token == "" && cfg.TokenFile != "" {
		raw, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// ReadString returns one string field of the latest version of a secret.
func (vc *VaultClient) ReadString(ctx context.Context, path, field string) (string, error) {
	secret, err := vc.kv.Get(ctx, path)
	if err != nil {
		return "", fmt.Errorf("failed to read secret %s: %w", path, err)
	}
	raw, ok := secret.Data[field]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", field, path)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", field, path)
	}

	version := 0
	if secret.VersionMetadata != nil {
		version = secret.VersionMetadata.Version
	}
	vc.logger.Debug("Secret read from Vault",
		"path", path,
		"field", field,
		"version", version,
		"masked_value", maskSecret(value))
	return value, nil
}

func maskSecret(v string) string {
	switch {
	case len(v) > 8:
		return v[:4] + "****" + v[len(v)-4:]
	case v != "":
		return "****"
	default:
		return ""
	}
}

// secretBinding copies one Vault field into the configuration.
type secretBinding struct {
	name  string
	path  string
	field string
	apply func(cfg *Config, value string)
}

func secretBindings(s VaultSecrets) []secretBinding {
	return []secretBinding{
		{name: "server API keys", path: s.APIKeys, field: "keys", apply: applyServerAPIKeys},
		{name: "Gemini API key", path: s.GeminiKey, field: "api_key", apply: applyGeminiKeyToConfig},
	}
}

// ApplyVaultSecrets overrides configured credentials with values from Vault.
// It does nothing when Vault is disabled.
func ApplyVaultSecrets(ctx context.Context, cfg *Config, logger *errors.Logger) error {
	if !cfg.Vault.Enabled {
		logger.Debug("Vault integration disabled, skipping secret loading")
		return nil
	}
	client, err := NewVaultClient(ctx, cfg.Vault, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize vault client: %w", err)
	}
	return applySecrets(ctx, client, cfg, logger)
}

func applySecrets(ctx context.Context, reader secretReader, cfg *Config, logger *errors.Logger) error {
	for _, b := range secretBindings(cfg.Vault.Secrets) {
		if b.path == "" {
			continue
		}
		value, err := reader.ReadString(ctx, b.path, b.field)
		if err != nil {
			return fmt.Errorf("failed to load %s from vault: %w", b.name, err)
		}
		if strings.TrimSpace(value) == "" {
			logger.Warn("Empty secret in Vault, keeping configured value", "secret", b.name, "path", b.path)
			continue
		}
		b.apply(cfg, value)
		logger.Info("Secret applied from Vault", "secret", b.name)
	}
	return nil
}

func applyServerAPIKeys(cfg *Config, value string) {
	cfg.Server.APIKeys = splitAndTrim(value)
}

// applyGeminiKeyToConfig sets the global backend key and fills every
// operation that has no key of its own.
func applyGeminiKeyToConfig(cfg *Config, geminiKey string) {
	cfg.AI.APIKey = geminiKey
	for _, op := range []*OperationAIConfig{
		&cfg.AI.Score,
		&cfg.AI.Suggest,
		&cfg.AI.Rationale,
		&cfg.AI.Chat,
		&cfg.AI.Feedback,
		&cfg.AI.Revise,
	} {
		if op.APIKey == "" {
			op.APIKey = geminiKey
		}
	}
}
