package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeEnvFile(t,
		"BOT_TOKEN=token123\nADMIN_ID=7\nADMIN_GROUP_ID=-100\nMONGO_URL=mongodb://localhost\nMIN_TOPUP_AMOUNT=2000\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "token123", cfg.BotToken)
	assert.Equal(t, int64(7), cfg.AdminID)
	assert.Equal(t, int64(-100), cfg.AdminGroupID)
	assert.Equal(t, "mongodb://localhost", cfg.MongoURL)
	assert.Equal(t, 2000, cfg.MinTopupAmount)
}

func TestLoadMissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "envtoken")
	t.Setenv("ADMIN_ID", "9")
	t.Setenv("MONGO_URL", "mongodb://env")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	require.NoError(t, err, "a missing env file must not fail an env-only deployment")

	assert.Equal(t, "envtoken", cfg.BotToken)
	assert.Equal(t, int64(9), cfg.AdminID)
	assert.Equal(t, "mongodb://env", cfg.MongoURL)
	assert.Equal(t, 1000, cfg.MinTopupAmount, "default applies without the file")
}

func TestLoadEnvironmentWinsOverFile(t *testing.T) {
	path := writeEnvFile(t,
		"BOT_TOKEN=filetoken\nADMIN_ID=7\nMONGO_URL=mongodb://file\n")
	t.Setenv("BOT_TOKEN", "envtoken")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "envtoken", cfg.BotToken)
	assert.Equal(t, "mongodb://file", cfg.MongoURL)
}

func TestLoadRequiredKeys(t *testing.T) {
	path := writeEnvFile(t, "BOT_TOKEN=token123\nADMIN_ID=7\n")

	_, err := Load(path)
	assert.Error(t, err, "MONGO_URL is required")
}
