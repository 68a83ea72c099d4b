package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, "5 0 * * *", cfg.Batch.OverdueSweepSchedule)
	assert.Equal(t, "30 3 * * *", cfg.Batch.CorrectionSchedule)
	assert.NotEmpty(t, cfg.Database.URL)
	assert.False(t, cfg.RabbitMQ.Enabled)
}
