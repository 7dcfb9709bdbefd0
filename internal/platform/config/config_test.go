package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseline(t *testing.T) {
	t.Setenv("DEFENDER_BOT_TOKEN", "123:abc")
}

func TestFromEnvDefaults(t *testing.T) {
	setBaseline(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.RunMode)
	assert.Equal(t, 10000, cfg.Port)
	assert.Equal(t, 4, cfg.EnforceWorkers)
	assert.Equal(t, 10*time.Second, cfg.EnforceCallTimeout)
	assert.Equal(t, 30*time.Second, cfg.RaidWindow)
	assert.Equal(t, 10, cfg.RaidThreshold)
	assert.Equal(t, 30*time.Minute, cfg.NotifyCooldown)
	assert.Equal(t, ":10000", cfg.Addr())
}

func TestFromEnvRequiresToken(t *testing.T) {
	t.Setenv("DEFENDER_BOT_TOKEN", "")

	_, err := FromEnv()
	require.Error(t, err)
}

func TestFromEnvServerModeValidation(t *testing.T) {
	setBaseline(t)
	t.Setenv("DEFENDER_RUN_MODE", "server")

	_, err := FromEnv()
	require.ErrorContains(t, err, "PUBLIC_BASE_URL")

	t.Setenv("DEFENDER_PUBLIC_BASE_URL", "https://defender.example.com")
	_, err = FromEnv()
	require.ErrorContains(t, err, "WEBHOOK_SECRET")

	t.Setenv("DEFENDER_WEBHOOK_SECRET", "s3cret")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "server", cfg.RunMode)
}

func TestFromEnvRejectsUnknownMode(t *testing.T) {
	setBaseline(t)
	t.Setenv("DEFENDER_RUN_MODE", "serverless")

	_, err := FromEnv()
	require.ErrorContains(t, err, "unknown run mode")
}

func TestAdminIDs(t *testing.T) {
	cfg := &Config{Admins: " 100, 200,abc, ,200,300 "}
	assert.Equal(t, []int64{100, 200, 300}, cfg.AdminIDs())

	cfg = &Config{}
	assert.Empty(t, cfg.AdminIDs())
}
