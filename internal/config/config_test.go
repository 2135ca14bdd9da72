package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8087, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Analysis.OverallTimeout)
	assert.Equal(t, 10*time.Second, cfg.Analysis.SubTimeout)
	assert.True(t, cfg.Analysis.EnableSSLCheck)
	assert.False(t, cfg.Analysis.EnableAI)
	assert.Equal(t, "memory", cfg.Behavior.Store)
	assert.Equal(t, 0.1, cfg.Behavior.EMAAlpha)
	assert.Equal(t, 720*time.Hour, cfg.Behavior.ProfileTTL)
	assert.Equal(t, 24*time.Hour, cfg.Orchestrator.EventTTL)
	assert.Equal(t, 2*time.Hour, cfg.Orchestrator.DuressAlertTTL)
	assert.Equal(t, "threat-events", cfg.Kafka.Topics.ThreatEvents)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Analysis: AnalysisConfig{OverallTimeout: 30 * time.Second, SubTimeout: 10 * time.Second},
			Behavior: BehaviorConfig{Store: "memory", EMAAlpha: 0.1},
		}
	}

	assert.NoError(t, valid().Validate())

	t.Run("sub timeout exceeds overall", func(t *testing.T) {
		cfg := valid()
		cfg.Analysis.SubTimeout = time.Minute
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero overall timeout", func(t *testing.T) {
		cfg := valid()
		cfg.Analysis.OverallTimeout = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("alpha out of range", func(t *testing.T) {
		cfg := valid()
		cfg.Behavior.EMAAlpha = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown store", func(t *testing.T) {
		cfg := valid()
		cfg.Behavior.Store = "postgres"
		assert.Error(t, cfg.Validate())
	})
}
