package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "Sheet1", cfg.Ledger.Worksheet)
	assert.Equal(t, 20*time.Second, cfg.Engine.PauseMin)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
}

func TestLoadReadsSecretsFromEnv(t *testing.T) {
	// These keys have no file entry by default; the env var is the normal
	// way operators provide them.
	t.Setenv("OUTREACH_LEDGER_SPREADSHEET_ID", "sheet-abc")
	t.Setenv("OUTREACH_ANTHROPIC_KEY", "sk-test")
	t.Setenv("OUTREACH_MONITORING_WEBHOOK_URL", "https://hooks.example/outreach")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sheet-abc", cfg.Ledger.SpreadsheetID)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, "https://hooks.example/outreach", cfg.Monitoring.WebhookURL)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	t.Setenv("OUTREACH_STORE_DRIVER", "postgres")
	t.Setenv("OUTREACH_GMAIL_TOKENS_DIR", "/var/lib/outreach/tokens")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/outreach/tokens", cfg.Gmail.TokensDir)
}
