package bot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
stop_on_failure: true
log_file: /var/log/botfarm.log
bots:
  reminderbot:
    tg_token: "123:abc"
    db_conn_str: postgresql://localhost:5432/reminders
    stage_ttl: 5m
    workers: 8
  emptybot:
    debug: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	assert.True(t, cfg.StopOnFailure)
	assert.Equal(t, "/var/log/botfarm.log", cfg.LogFile)
	assert.False(t, cfg.Debug)

	bc, err := cfg.Bot("ReminderBot")
	require.NoError(t, err)
	assert.Equal(t, "123:abc", bc.TgToken)
	assert.Equal(t, "postgresql://localhost:5432/reminders", bc.DBConnStr)
	assert.Equal(t, 5*time.Minute, bc.StageTTL)
	assert.Equal(t, 8, bc.Workers)

	// defaults
	assert.Equal(t, StoragePostgres, bc.Storage)
	assert.Equal(t, 3, bc.RetryAttempts)
	assert.Equal(t, 30*time.Second, bc.HandleTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("BOTFARM_BOTS__REMINDERBOT__TG_TOKEN", "456:def")
	t.Setenv("BOTFARM_BOTS__REMINDERBOT__STORAGE", "memory")
	t.Setenv("BOTFARM_BOTS__REMINDERBOT__RETRY_DELAY", "250ms")
	t.Setenv("BOTFARM_DEBUG", "true")

	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)
	assert.True(t, cfg.Debug)

	bc, err := cfg.Bot("ReminderBot")
	require.NoError(t, err)
	assert.Equal(t, "456:def", bc.TgToken)
	assert.Equal(t, StorageMemory, bc.Storage)
	assert.Equal(t, 250*time.Millisecond, bc.RetryDelay)
}

func TestLoadConfigFromEnvOnly(t *testing.T) {
	t.Setenv("BOTFARM_BOTS__ENVBOT__TG_TOKEN", "789:ghi")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	bc, err := cfg.Bot("EnvBot")
	require.NoError(t, err)
	assert.Equal(t, "789:ghi", bc.TgToken)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestBotWithoutSection(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	_, err = cfg.Bot("GhostBot")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, testConfig))
	require.NoError(t, err)

	ok := Record{Name: "ReminderBot", RequiredConfigFields: []string{CfgTgToken, CfgDbConnStr}}
	assert.NoError(t, cfg.Validate(ok))

	missing := Record{Name: "EmptyBot", RequiredConfigFields: []string{CfgTgToken, CfgDbConnStr}}
	err = cfg.Validate(missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tg_token, db_conn_str")
}
