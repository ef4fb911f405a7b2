package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("VERIFY_POLICY", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "mysql", cfg.DBDriver)
	require.Equal(t, VerifyPolicyPoster, cfg.VerifyPolicy)
	require.Equal(t, 7*24*time.Hour, cfg.TokenTTL)
	require.Equal(t, int64(1<<20), cfg.MaxBodyBytes)
	require.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	require.False(t, cfg.ArchiveEnabled())
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("VERIFY_POLICY", "anyone")

	_, err := Load()
	require.ErrorContains(t, err, "VERIFY_POLICY")
}

func TestLoadSQLiteNeedsDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_DSN", "")

	_, err := Load()
	require.ErrorContains(t, err, "DB_DSN")

	t.Setenv("DB_DSN", "file:bounty.db")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.DBDriver)
}

func TestGetList(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	require.Equal(t, []string{"https://a.example", "https://b.example"}, getList("CORS_ALLOWED_ORIGINS", nil))

	t.Setenv("CORS_ALLOWED_ORIGINS", " , ")
	require.Equal(t, []string{"x"}, getList("CORS_ALLOWED_ORIGINS", []string{"x"}))
}

func TestGetBoolAndDuration(t *testing.T) {
	t.Setenv("COOKIE_SECURE", "yes")
	require.True(t, getBool("COOKIE_SECURE", false))
	t.Setenv("COOKIE_SECURE", "nonsense")
	require.False(t, getBool("COOKIE_SECURE", false))

	t.Setenv("REQ_TIMEOUT", "3s")
	require.Equal(t, 3*time.Second, getDuration("REQ_TIMEOUT", time.Second))
	t.Setenv("REQ_TIMEOUT", "-1s")
	require.Equal(t, time.Second, getDuration("REQ_TIMEOUT", time.Second))
}
