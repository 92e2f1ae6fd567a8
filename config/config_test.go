package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("BASE_URL", "http://localhost:8080")
	t.Setenv("DB_URL", "postgres://localhost/test")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "secret", cfg.RefreshTokenSecret)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, "voice_clone_jobs", cfg.VoiceQueue)

	h, m, err := cfg.SweepClock()
	require.NoError(t, err)
	assert.Equal(t, 0, h)
	assert.Equal(t, 0, m)
	assert.False(t, cfg.GoogleEnabled())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("BASE_URL", "")
	t.Setenv("DB_URL", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidSweepAt(t *testing.T) {
	setRequired(t)
	t.Setenv("SWEEP_AT", "25:99")

	_, err := Load()
	assert.Error(t, err)
}

func TestSweepClock(t *testing.T) {
	cfg := &Config{SweepAt: "03:30"}
	h, m, err := cfg.SweepClock()
	require.NoError(t, err)
	assert.Equal(t, 3, h)
	assert.Equal(t, 30, m)
}
