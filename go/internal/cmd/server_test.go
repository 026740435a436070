package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mcdev12/tablematch/go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"

	services, err := setupServices(&cfg)
	require.NoError(t, err)
	t.Cleanup(services.Table.Close)

	server := httptest.NewServer(setupServer(&cfg, services).Handler)
	t.Cleanup(server.Close)
	return server
}

func TestServer_HealthAndMetrics(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.True(t, health.Healthy)
	assert.False(t, health.NATSEnabled)
	assert.False(t, health.GameActive)
	assert.Empty(t, health.Errors)

	resp, err = http.Get(server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tablematch_games_scheduled_total")
}

func TestServer_APIMounted(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/leaderboard")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(server.URL+"/api/me/ready", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestOriginChecker(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Origin", "https://evil.example")

	assert.True(t, originChecker([]string{"*"})(req))
	assert.False(t, originChecker([]string{"https://table.example"})(req))

	req.Header.Set("Origin", "https://table.example")
	assert.True(t, originChecker([]string{"https://table.example"})(req))
}
