// ABOUTME: Tests for configuration loading
// ABOUTME: Verifies YAML parsing, env expansion, durations, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /var/lib/loopchat/state.db
logging:
  level: debug
  format: json
dispatch:
  client: webhook
  pending: per-chat
  webhook_timeout: 10s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/loopchat/state.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, ClientWebhook, cfg.Dispatch.Client)
	assert.Equal(t, "per-chat", cfg.Dispatch.Pending)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.WebhookTimeout)
}

func TestLoad_AppliesDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `
database:
  path: state.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ClientSimulated, cfg.Dispatch.Client)
	assert.Equal(t, "global", cfg.Dispatch.Pending)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.WebhookTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("LOOPCHAT_DB", "/data/loop.db")
	path := writeConfig(t, `
database:
  path: ${LOOPCHAT_DB}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/loop.db", cfg.Database.Path)
}

func TestLoad_RejectsUnknownClient(t *testing.T) {
	path := writeConfig(t, `
dispatch:
  client: carrier-pigeon
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch.client")
}

func TestLoad_RejectsUnknownPendingMode(t *testing.T) {
	path := writeConfig(t, `
dispatch:
  pending: sometimes
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatch.pending")
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
dispatch:
  webhook_timeout: eventually
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook_timeout")
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}
