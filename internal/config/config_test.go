package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOSSIER_APP_ENV", "")
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "Dossier Messaging API", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "dossier", cfg.EventChannel)
	require.Equal(t, 30, cfg.MessageRateLimit)
	require.Equal(t, time.Minute, cfg.MessageRateWindow)
	require.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, "*", cfg.CORSAllowOrigins)
}

func TestLoadStrictInvariantsFollowsEnvironment(t *testing.T) {
	t.Setenv("DOSSIER_APP_ENV", "development")
	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.IsDevelopment())
	require.True(t, cfg.StrictInvariants)

	t.Setenv("DOSSIER_APP_ENV", "Production")
	cfg, err = Load()
	require.NoError(t, err)
	require.Equal(t, "production", cfg.AppEnv)
	require.False(t, cfg.StrictInvariants)

	t.Setenv("DOSSIER_MESSAGING_STRICT_INVARIANTS", "true")
	cfg, err = Load()
	require.NoError(t, err)
	require.True(t, cfg.StrictInvariants)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DOSSIER_APP_PORT", ":9090")
	t.Setenv("DOSSIER_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("DOSSIER_NATS_URL", "nats://localhost:4222")
	t.Setenv("DOSSIER_MESSAGING_RATE_LIMIT", "-5")
	t.Setenv("DOSSIER_MESSAGING_RATE_WINDOW", "30s")
	t.Setenv("DOSSIER_SEED_TOKEN", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	require.Equal(t, "nats://localhost:4222", cfg.NATSURL)
	require.Equal(t, 30, cfg.MessageRateLimit)
	require.Equal(t, 30*time.Second, cfg.MessageRateWindow)
	require.Equal(t, "secret", cfg.SeedToken)
}

func TestLoadRejectsInvalidDurations(t *testing.T) {
	t.Setenv("DOSSIER_SHUTDOWN_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
}
