package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "dev", cfg.Server.Env)
	assert.True(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, "jwt", cfg.Auth.TokenBackend)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenValidity)
	assert.Empty(t, cfg.Auth.AdminToken)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("TOKEN_BACKEND", "paseto")
	t.Setenv("TOKEN_VALIDITY", "3600")
	t.Setenv("ADMIN_TOKEN", "ops-token")
	t.Setenv("TRUSTED_ORIGINS", "https://app.example.com, https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Server.IsDevelopment())
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "paseto", cfg.Auth.TokenBackend)
	assert.Equal(t, time.Hour, cfg.Auth.TokenValidity)
	assert.Equal(t, "ops-token", cfg.Auth.AdminToken)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.TrustedOrigins)
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_SECRET")
}

func TestLoadRejectsUnknownBackends(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "test-secret")
	t.Setenv("TOKEN_BACKEND", "opaque")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TOKEN_BACKEND")

	t.Setenv("TOKEN_BACKEND", "jwt")
	t.Setenv("STORE_BACKEND", "mysql")

	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_BACKEND")
}

func TestConnectionString(t *testing.T) {
	db := DatabaseConfig{
		Host:     "db",
		Port:     "5432",
		User:     "auth",
		Password: "pw",
		DBName:   "groceries_auth",
		SSLMode:  "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=auth password=pw dbname=groceries_auth sslmode=disable",
		db.ConnectionString())
}
