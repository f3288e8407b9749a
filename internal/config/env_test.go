package config_test

import (
	"testing"
	"time"

	"github.com/crawlkit-dev/crawlkit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEnvConfig_MatchesConfigurationTable(t *testing.T) {
	cfg := config.DefaultEnvConfig()

	assert.Equal(t, 1000, cfg.MaxPagesLimit)
	assert.Equal(t, 100, cfg.DefaultMaxPages)
	assert.Equal(t, 128, cfg.ConcurrentRequests)
	assert.Equal(t, 20*time.Millisecond, cfg.DownloadDelay)
	assert.Equal(t, 20, cfg.DepthLimit)
	assert.Equal(t, "SkrappBot/1.0", cfg.UserAgent)
	assert.Equal(t, 1*time.Second, cfg.WorkerPollInterval)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 120*time.Second, cfg.OrphanedThreshold)
	assert.Equal(t, 300*time.Second, cfg.StalledThreshold)
	assert.Equal(t, 180*time.Second, cfg.HardStalledThreshold)
	assert.Equal(t, 200, cfg.MinTextLengthSuccess)
	assert.Equal(t, 50, cfg.MinTextLengthMarginal)
	assert.Equal(t, 24, cfg.JobExpiryHours)
}

func TestLoadEnvConfig_OverridesFromEnvironment(t *testing.T) {
	t.Setenv("MAX_PAGES_LIMIT", "500")
	t.Setenv("CRAWLER_USER_AGENT", "custom-bot/2.0")
	t.Setenv("HEARTBEAT_INTERVAL_SECONDS", "30")

	cfg, err := config.LoadEnvConfig()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.MaxPagesLimit)
	assert.Equal(t, "custom-bot/2.0", cfg.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)

	// Unset variables keep their documented default
	assert.Equal(t, 100, cfg.DefaultMaxPages)
}

func TestLoadEnvConfig_InvalidIntegerReturnsError(t *testing.T) {
	t.Setenv("MAX_PAGES_LIMIT", "not-a-number")

	_, err := config.LoadEnvConfig()
	require.Error(t, err)
}

func TestLoadEnvConfig_FractionalSecondsDuration(t *testing.T) {
	t.Setenv("CRAWLER_DOWNLOAD_DELAY", "0.05")

	cfg, err := config.LoadEnvConfig()
	require.NoError(t, err)

	assert.Equal(t, 50*time.Millisecond, cfg.DownloadDelay)
}
