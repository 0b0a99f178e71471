package config

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"artyats/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *errors.Logger {
	return errors.Nop()
}

// fakeVault serves /v1/sys/health and KVv2 reads for the given secrets,
// keyed by request path.
func fakeVault(t *testing.T, sealed bool, secrets map[string]map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/v1/sys/health" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"initialized": true, "sealed": sealed, "version": "1.15.0", "cluster_name": "test",
			})
			return
		}
		data, ok := secrets[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data":     data,
				"metadata": map[string]any{"version": 3},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestApplyVaultSecrets(t *testing.T) {
	srv := fakeVault(t, false, map[string]map[string]any{
		"/v1/secret/data/arty/gemini": {"api_key": "gemini-from-vault"},
		"/v1/secret/data/arty/server": {"keys": "alpha, beta ,,gamma"},
	})

	cfg := &Config{
		AI: AIConfig{
			Chat: OperationAIConfig{APIKey: "chat-specific"},
		},
		Vault: VaultConfig{
			Enabled: true,
			Address: srv.URL,
			Token:   "root",
			Secrets: VaultSecrets{
				GeminiKey: "arty/gemini",
				APIKeys:   "arty/server",
			},
		},
	}

	require.NoError(t, ApplyVaultSecrets(context.Background(), cfg, newTestLogger()))

	assert.Equal(t, "gemini-from-vault", cfg.AI.APIKey)
	assert.Equal(t, "gemini-from-vault", cfg.AI.Score.APIKey)
	assert.Equal(t, "chat-specific", cfg.AI.Chat.APIKey)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, cfg.Server.APIKeys)
}

func TestApplyVaultSecretsCustomMount(t *testing.T) {
	srv := fakeVault(t, false, map[string]map[string]any{
		"/v1/kv/data/arty": {"api_key": "from-kv"},
	})

	cfg := &Config{Vault: VaultConfig{
		Enabled: true,
		Address: srv.URL,
		Token:   "root",
		Mount:   "kv",
		Secrets: VaultSecrets{GeminiKey: "arty"},
	}}

	require.NoError(t, ApplyVaultSecrets(context.Background(), cfg, newTestLogger()))
	assert.Equal(t, "from-kv", cfg.AI.APIKey)
}

func TestApplyVaultSecretsMissingSecret(t *testing.T) {
	srv := fakeVault(t, false, nil)

	cfg := &Config{
		Vault: VaultConfig{
			Enabled: true,
			Address: srv.URL,
			Token:   "root",
			Secrets: VaultSecrets{GeminiKey: "missing"},
		},
	}

	err := ApplyVaultSecrets(context.Background(), cfg, newTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Gemini API key")
}

func TestApplyVaultSecretsSealed(t *testing.T) {
	srv := fakeVault(t, true, nil)

	cfg := &Config{Vault: VaultConfig{Enabled: true, Address: srv.URL, Token: "root"}}

	err := ApplyVaultSecrets(context.Background(), cfg, newTestLogger())
	assert.ErrorContains(t, err, "sealed")
}

func TestApplyVaultSecretsDisabled(t *testing.T) {
	cfg := &Config{Vault: VaultConfig{Enabled: false}}
	assert.NoError(t, ApplyVaultSecrets(context.Background(), cfg, newTestLogger()))
	assert.Empty(t, cfg.AI.APIKey)
}

type mapReader map[string]string

func (m mapReader) ReadString(_ context.Context, path, field string) (string, error) {
	v, ok := m[path+"#"+field]
	if !ok {
		return "", fmt.Errorf("no %s in %s", field, path)
	}
	return v, nil
}

func TestApplySecrets(t *testing.T) {
	t.Run("skips unset paths", func(t *testing.T) {
		cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{GeminiKey: "g"}}}
		require.NoError(t, applySecrets(context.Background(), mapReader{"g#api_key": "k"}, cfg, nil))
		assert.Equal(t, "k", cfg.AI.APIKey)
		assert.Nil(t, cfg.Server.APIKeys)
	})

	t.Run("blank value keeps configured key", func(t *testing.T) {
		cfg := &Config{
			AI:    AIConfig{APIKey: "from-env"},
			Vault: VaultConfig{Secrets: VaultSecrets{GeminiKey: "g"}},
		}
		require.NoError(t, applySecrets(context.Background(), mapReader{"g#api_key": "  "}, cfg, nil))
		assert.Equal(t, "from-env", cfg.AI.APIKey)
	})

	t.Run("read failure names the secret", func(t *testing.T) {
		cfg := &Config{Vault: VaultConfig{Secrets: VaultSecrets{APIKeys: "s"}}}
		err := applySecrets(context.Background(), mapReader{}, cfg, nil)
		assert.ErrorContains(t, err, "server API keys")
	})
}

func TestReadStringFieldErrors(t *testing.T) {
	srv := fakeVault(t, false, map[string]map[string]any{
		"/v1/secret/data/x": {"k": "value-long-enough", "n": 7},
	})

	client, err := NewVaultClient(context.Background(), VaultConfig{Address: srv.URL, Token: "root"}, newTestLogger())
	require.NoError(t, err)

	v, err := client.ReadString(context.Background(), "x", "k")
	require.NoError(t, err)
	assert.Equal(t, "value-long-enough", v)

	_, err = client.ReadString(context.Background(), "x", "absent")
	assert.ErrorContains(t, err, "not found")

	_, err = client.ReadString(context.Background(), "x", "n")
	assert.ErrorContains(t, err, "not a string")
}

func TestApplyGeminiKeyToConfig(t *testing.T) {
	cfg := &Config{AI: AIConfig{Revise: OperationAIConfig{APIKey: "keep-me"}}}

	applyGeminiKeyToConfig(cfg, "fresh")

	assert.Equal(t, "fresh", cfg.AI.APIKey)
	for _, op := range []string{OperationScore, OperationSuggest, OperationRationale, OperationChat, OperationFeedback} {
		assert.Equal(t, "fresh", cfg.rawOperation(op).APIKey, op)
	}
	assert.Equal(t, "keep-me", cfg.AI.Revise.APIKey)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "abcd****6789", maskSecret("abcdef0123456789"))
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "", maskSecret(""))
}

func TestResolveVaultToken(t *testing.T) {
	t.Run("inline token wins", func(t *testing.T) {
		token, err := resolveVaultToken(VaultConfig{Token: "direct-token", TokenFile: "/nonexistent"})
		assert.NoError(t, err)
		assert.Equal(t, "direct-token", token)
	})

	t.Run("token file is trimmed", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "vault-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("  file-token  \n"), 0600))

		token, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile})
		assert.NoError(t, err)
		assert.Equal(t, "file-token", token)
	})

	t.Run("missing token file", func(t *testing.T) {
		_, err := resolveVaultToken(VaultConfig{TokenFile: "/nonexistent/token/file"})
		assert.ErrorContains(t, err, "failed to read vault token file")
	})

	t.Run("blank token file", func(t *testing.T) {
		tokenFile := filepath.Join(t.TempDir(), "empty-token")
		require.NoError(t, os.WriteFile(tokenFile, []byte("   \n"), 0600))

		_, err := resolveVaultToken(VaultConfig{TokenFile: tokenFile})
		assert.ErrorContains(t, err, "vault token is required")
	})
}
