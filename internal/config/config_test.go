package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	err := os.WriteFile(configPath, []byte(content), 0644)
	require.NoError(t, err)
	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"
  base_url: "https://crm.example.com"

database:
  url: "postgres://localhost/crm_test"
  max_open_conns: 10

payment:
  secret_key: "sk_test_123"
  currency: "usd"

storage:
  type: "local"
  local_path: "./test-uploads"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "postgres://localhost/crm_test", cfg.Database.URL)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, "./test-uploads", cfg.Storage.LocalPath)
}

func TestLoadDefaults(t *testing.T) {
	configPath := writeConfig(t, `
database:
  url: "postgres://localhost/crm_test"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, "usd", cfg.Payment.Currency)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, 24, cfg.Auth.SessionTTLHrs)
	assert.NotEmpty(t, cfg.Assistant.ModelID)
}

func TestPaymentModeResolution(t *testing.T) {
	withKey := writeConfig(t, `
payment:
  secret_key: "sk_test_abc"
`)
	cfg, err := Load(withKey)
	require.NoError(t, err)
	assert.Equal(t, PaymentModeLive, cfg.Payment.Mode)

	withoutKey := writeConfig(t, `
server:
  port: 8081
`)
	cfg, err = Load(withoutKey)
	require.NoError(t, err)
	assert.Equal(t, PaymentModeMock, cfg.Payment.Mode)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	configPath := writeConfig(t, `
database:
  url: "postgres://localhost/from_yaml"
`)

	t.Setenv("DATABASE_URL", "postgres://localhost/from_env")
	t.Setenv("STRIPE_SECRET_KEY", "sk_live_xyz")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/from_env", cfg.Database.URL)
	assert.Equal(t, "sk_live_xyz", cfg.Payment.SecretKey)
	assert.Equal(t, PaymentModeLive, cfg.Payment.Mode)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
