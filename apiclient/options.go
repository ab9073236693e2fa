package apiclient

import (
	"net/http"
	"time"

	"github.com/Joelisking/projectx-client/session"
	"github.com/rs/zerolog"
)

type Option func(e *Executor)

// WithHTTPClient sets the client used for every call, including refresh.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Executor) {
		e.httpClient = c
	}
}

// WithTokenStore adds the companion token store consulted when the session
// holds no access token.
func WithTokenStore(ts session.TokenStore) Option {
	return func(e *Executor) {
		e.tokens = ts
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithResponseCache caches tagged GET responses for ttl. A ttl of zero leaves
// caching off.
func WithResponseCache(ttl time.Duration) Option {
	return func(e *Executor) {
		if ttl > 0 {
			e.cache = newResponseCache(ttl)
		}
	}
}

// WithRefreshPath overrides the refresh endpoint, relative to the base URL.
func WithRefreshPath(path string) Option {
	return func(e *Executor) {
		e.refreshPath = path
	}
}

// WithLoginURL sets the login entry point reported on session termination.
func WithLoginURL(url string) Option {
	return func(e *Executor) {
		e.loginURL = url
	}
}
