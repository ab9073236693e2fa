package config

import (
	"strings"
	"time"
)

const (
	backendURLEnvVar = "BACKEND_URL"
	apiPrefixEnvVar  = "API_PREFIX"
)

type APIConfig interface {
	GetBackendURL() string
	GetAPIPrefix() string
	GetBaseURL() string
	GetRefreshPath() string
	GetLoginPath() string
	GetRequestTimeout() time.Duration
}

type API struct{}

var _ APIConfig = API{}

// GetBackendURL returns the origin of the REST backend (e.g. "http://localhost:8000").
func (API) GetBackendURL() string {
	return strings.TrimRight(GetEnv(backendURLEnvVar, "http://localhost:8000"), "/")
}

func (API) GetAPIPrefix() string {
	prefix := GetEnv(apiPrefixEnvVar, "/api/v1")
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return strings.TrimRight(prefix, "/")
}

// GetBaseURL is the backend origin joined with the versioned prefix. Every
// application endpoint is relative to it.
func (a API) GetBaseURL() string {
	return a.GetBackendURL() + a.GetAPIPrefix()
}

// GetRefreshPath is relative to the base URL.
func (API) GetRefreshPath() string {
	return "/auth/refresh/"
}

// GetLoginPath is the client-side login entry point used in session-expired redirects.
func (API) GetLoginPath() string {
	return GetEnv("LOGIN_PATH", "/auth/login")
}

func (API) GetRequestTimeout() time.Duration {
	return GetEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second)
}
