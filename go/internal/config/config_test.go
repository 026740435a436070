package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	want := Default()
	want.Auth.JWTSecret = "s3cret"
	assert.Equal(t, want, *cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
  allowed_origins: ["https://table.example"]
table:
  ready_lead_time: 30s
  game_length: 5m
  initial_rating: 1200
  k_factor: 24
nats:
  url: nats://localhost:4222
auth:
  jwt_secret: from-file
  token_ttl: 1h
log:
  level: debug
  pretty: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"https://table.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30*time.Second, cfg.Table.ReadyLeadTime)
	assert.Equal(t, 5*time.Minute, cfg.Table.GameLength)
	assert.Equal(t, 1200, cfg.Table.InitialRating)
	assert.Equal(t, 24.0, cfg.Table.KFactor)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "table.refresh", cfg.NATS.Subject)
	assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwt_secret: from-file\n")
	t.Setenv("PORT", "7070")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("GAME_LENGTH", "15m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 15*time.Minute, cfg.Table.GameLength)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"missing secret", "log:\n  level: info\n", nil},
		{"bad yaml", "table: [", map[string]string{"JWT_SECRET": "x"}},
		{"bad duration env", "", map[string]string{"JWT_SECRET": "x", "GAME_LENGTH": "forever"}},
		{"zero game length", "table:\n  game_length: 0s\n", map[string]string{"JWT_SECRET": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}
