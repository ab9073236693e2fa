package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	// AuthCookieName is the companion plain-text token cookie.
	AuthCookieName = "campusmarketplace_auth_token"

	sessionBackendFile  = "file"
	sessionBackendRedis = "redis"
)

type SessionConfig interface {
	GetSessionBackend() string
	GetSessionFile() string
	GetTokenFile() string
	GetSessionKey() string
	GetRedisURL() string
	GetRedisPassword() string
	GetPersistKey() string
	GetAuthCookieName() string
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSessionBackend is either "file" or "redis".
func (Session) GetSessionBackend() string {
	switch backend := GetEnv("SESSION_BACKEND", sessionBackendFile); backend {
	case sessionBackendRedis:
		return backend
	default:
		return sessionBackendFile
	}
}

func (Session) GetSessionFile() string {
	return GetEnv("SESSION_FILE", filepath.Join(dataDir(), "session.json"))
}

func (Session) GetTokenFile() string {
	return GetEnv("TOKEN_FILE", filepath.Join(dataDir(), AuthCookieName))
}

// GetSessionKey returns a hex encoded 32 byte key. Empty means the session file
// is stored unsealed.
func (Session) GetSessionKey() string {
	return GetEnv("SESSION_KEY", "")
}

func (Session) GetRedisURL() string {
	return GetEnv("REDIS_URL", "localhost:6379")
}

func (Session) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

// GetPersistKey namespaces the persisted session.
func (Session) GetPersistKey() string {
	return GetEnv("PERSIST_KEY", "campusmarketplace")
}

func (Session) GetAuthCookieName() string {
	return AuthCookieName
}

type CacheConfig interface {
	GetCacheTTL() time.Duration
}

type Cache struct{}

var _ CacheConfig = Cache{}

// GetCacheTTL of zero disables response caching.
func (Cache) GetCacheTTL() time.Duration {
	return GetEnvAsDuration("CACHE_TTL", time.Minute)
}

func dataDir() string {
	if dir := os.Getenv("MARKET_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".market"
	}
	return filepath.Join(home, ".market")
}
