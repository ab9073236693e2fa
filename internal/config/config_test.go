package config_test

import (
	"testing"
	"time"

	"github.com/Joelisking/projectx-client/internal/config"
	"github.com/stretchr/testify/require"
)

func TestAPI_BaseURL(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("BACKEND_URL", "")
		t.Setenv("API_PREFIX", "")
		require.Equal(t, "http://localhost:8000/api/v1", config.API{}.GetBaseURL())
	})

	t.Run("trims slashes and adds leading slash", func(t *testing.T) {
		t.Setenv("BACKEND_URL", "https://api.example.edu/")
		t.Setenv("API_PREFIX", "api/v2/")
		require.Equal(t, "https://api.example.edu/api/v2", config.API{}.GetBaseURL())
	})
}

func TestEnvVars_Port(t *testing.T) {
	t.Setenv("PORT", "8080")
	require.Equal(t, ":8080", config.EnvVars{}.GetPort())

	t.Setenv("PORT", ":9090")
	require.Equal(t, ":9090", config.EnvVars{}.GetPort())
}

func TestCors_AllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://market.example.edu, ,https://admin.example.edu")
	origins := config.Cors{}.GetAllowedOrigins()

	require.True(t, origins.IsAllowedOrigin("http://localhost:3000"))
	require.True(t, origins.IsAllowedOrigin("https://market.example.edu"))
	require.True(t, origins.IsAllowedOrigin("https://admin.example.edu"))
	require.False(t, origins.IsAllowedOrigin(""))
}

func TestSession_Backend(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "redis")
	require.Equal(t, "redis", config.Session{}.GetSessionBackend())

	t.Setenv("SESSION_BACKEND", "bogus")
	require.Equal(t, "file", config.Session{}.GetSessionBackend())
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("CACHE_TTL", "not-a-duration")
	require.Equal(t, time.Minute, config.Cache{}.GetCacheTTL())

	t.Setenv("CACHE_TTL", "0s")
	require.Zero(t, config.Cache{}.GetCacheTTL())
}
