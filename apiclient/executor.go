package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	clienterrors "github.com/Joelisking/projectx-client/internal/errors"
	"github.com/Joelisking/projectx-client/internal/utils"
	"github.com/Joelisking/projectx-client/session"
	"github.com/Joelisking/projectx-client/tokens"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	DefaultRefreshPath = "/auth/refresh/"
	DefaultLoginURL    = "/auth/login"

	// RequestIDHeader carries the per call id, repeated on retries
	RequestIDHeader = "X-Request-ID"
)

// SessionStore is the part of the token store the executor reads and writes.
// *session.Manager satisfies it.
type SessionStore interface {
	Snapshot() session.Session
	ReplaceTokens(ctx context.Context, access, refresh string) error
	Logout(ctx context.Context) error
}

var _ SessionStore = (*session.Manager)(nil)

type TerminationReason string

const (
	ReasonNoRefreshToken  TerminationReason = "no_refresh_token"
	ReasonRefreshRejected TerminationReason = "refresh_rejected"
	ReasonRefreshFailed   TerminationReason = "refresh_failed"
)

// Termination is delivered to subscribers when an unrecoverable 401 ended the
// session. Hosts send the user to RedirectURL.
type Termination struct {
	Reason      TerminationReason
	RedirectURL string
}

// Executor wraps every call to the remote API. It attaches the bearer token
// and on a 401 runs at most one refresh at a time before retrying the call.
type Executor struct {
	baseURL     string
	refreshPath string
	loginURL    string
	store       SessionStore
	tokens      session.TokenStore
	httpClient  *http.Client
	logger      zerolog.Logger
	cache       *responseCache
	refreshGate gate

	subsMu  sync.Mutex
	subs    map[int]func(Termination)
	nextSub int
}

// New returns an executor for the API rooted at baseURL, e.g.
// http://localhost:8000/api/v1.
func New(baseURL string, store SessionStore, opts ...Option) *Executor {
	e := &Executor{
		baseURL:     strings.TrimRight(baseURL, "/"),
		refreshPath: DefaultRefreshPath,
		loginURL:    DefaultLoginURL,
		store:       store,
		httpClient:  http.DefaultClient,
		logger:      log.Logger,
		subs:        make(map[int]func(Termination)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "apiclient").Logger()
	return e
}

// OnSessionTerminated registers fn to be called after logout-cleanup. The
// returned func unsubscribes.
func (e *Executor) OnSessionTerminated(fn func(Termination)) func() {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()

	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn

	return func() {
		e.subsMu.Lock()
		defer e.subsMu.Unlock()
		delete(e.subs, id)
	}
}

// Refreshing reports whether a token refresh is in flight.
func (e *Executor) Refreshing() bool {
	return e.refreshGate.Locked()
}

// PurgeCache drops every cached response.
func (e *Executor) PurgeCache() {
	if e.cache != nil {
		e.cache.purge()
	}
}

// CachedResponses is the number of responses held by the cache.
func (e *Executor) CachedResponses() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.size()
}

type preparedRequest struct {
	id     string
	method string
	url    string
	body   []byte
	req    Request
}

// Do sends req. The error is only set for transport failures and cancellation;
// HTTP error statuses come back as a Response, see Response.Err.
//
// When the session cannot be refreshed the original 401 is returned and every
// OnSessionTerminated subscriber is notified.
func (e *Executor) Do(ctx context.Context, req Request) (*Response, error) {
	p, err := e.prepare(req)
	if err != nil {
		return nil, err
	}
	logger := e.logger.With().Str("request_id", p.id).Str("method", p.method).Str("path", req.Path).Logger()

	if e.cache != nil && p.method == http.MethodGet && len(req.Provides) > 0 {
		if resp, ok := e.cache.get(cacheKey(p.method, p.url)); ok {
			logger.Debug().Msg("served from cache")
			return resp, nil
		}
	}

	if err := e.refreshGate.Wait(ctx); err != nil {
		return nil, fmt.Errorf("[apiclient Do] waiting for refresh: %w", err)
	}

	token := e.accessToken(ctx)
	resp, err := e.send(ctx, p, token)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp, err = e.handleUnauthorized(ctx, logger, p, token, resp)
		if err != nil {
			return nil, err
		}
	}

	e.afterResponse(logger, p, resp)
	return resp, nil
}

// DoJSON sends req and decodes a 2xx body into out. Non-2xx statuses return
// an *APIError.
func (e *Executor) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := e.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.DecodeJSON(out)
}

func (e *Executor) handleUnauthorized(ctx context.Context, logger zerolog.Logger, p *preparedRequest, usedToken string, original *Response) (*Response, error) {
	release, ok := e.refreshGate.TryAcquire()
	if !ok {
		// someone else is refreshing, reuse their result
		logger.Debug().Msg("refresh in flight, waiting")
		if err := e.refreshGate.Wait(ctx); err != nil {
			return nil, fmt.Errorf("[apiclient handleUnauthorized] waiting for refresh: %w", err)
		}
		return e.send(ctx, p, e.accessToken(ctx))
	}
	defer release()

	current := e.store.Snapshot()
	if current.AccessToken != "" && current.AccessToken != usedToken {
		logger.Debug().Msg("token already refreshed, retrying")
		return e.send(ctx, p, current.AccessToken)
	}

	if current.RefreshToken == "" {
		logger.Info().Msg("401 without refresh token")
		e.logoutCleanup(ctx, ReasonNoRefreshToken)
		return original, nil
	}

	access, err := e.refresh(ctx, current.RefreshToken)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// the caller gave up, the refresh token may still be good
			logger.Debug().Err(err).Msg("refresh abandoned")
			return nil, fmt.Errorf("[apiclient handleUnauthorized] refreshing: %w", ctxErr)
		}
		reason := ReasonRefreshFailed
		if errors.Is(err, clienterrors.ErrRefreshRejected) {
			reason = ReasonRefreshRejected
		}
		logger.Warn().Err(err).Msg("token refresh failed")
		e.logoutCleanup(ctx, reason)
		return original, nil
	}

	return e.send(ctx, p, access)
}

// refresh exchanges the refresh token and stores the result. It returns the
// new access token.
func (e *Executor) refresh(ctx context.Context, refreshToken string) (string, error) {
	body, err := json.Marshal(tokens.RefreshRequest{Refresh: refreshToken})
	if err != nil {
		return "", fmt.Errorf("[apiclient refresh] encoding: %w", err)
	}

	p := &preparedRequest{
		id:     uuid.NewString(),
		method: http.MethodPost,
		url:    e.baseURL + e.refreshPath,
		body:   body,
	}

	e.logger.Debug().Str("request_id", p.id).Msg("refreshing access token")

	// the refresh call never carries a bearer
	resp, err := e.send(ctx, p, "")
	if err != nil {
		return "", fmt.Errorf("[apiclient refresh] %w", err)
	}
	if !resp.OK() {
		return "", fmt.Errorf("[apiclient refresh] %w: status %d", clienterrors.ErrRefreshRejected, resp.StatusCode)
	}

	var out tokens.RefreshResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("[apiclient refresh] %w: %w", clienterrors.ErrRefreshRejected, err)
	}
	access := utils.Value(out.Access)
	if access == "" {
		return "", fmt.Errorf("[apiclient refresh] %w: no access token in response", clienterrors.ErrRefreshRejected)
	}

	if err := e.store.ReplaceTokens(ctx, access, utils.Value(out.Refresh)); err != nil {
		// retries read the in-memory session, so only log persistence failures
		e.logger.Warn().Err(err).Msg("storing refreshed tokens")
	}

	evt := e.logger.Info().Bool("rotated", utils.Value(out.Refresh) != "")
	if exp, err := tokens.ExpiresAt(access); err == nil {
		evt = evt.Time("expires_at", exp)
	}
	evt.Msg("access token refreshed")

	return access, nil
}

// logoutCleanup ends the session: store reset, companion token and cache
// cleared, subscribers notified. It runs even if ctx is already cancelled.
func (e *Executor) logoutCleanup(ctx context.Context, reason TerminationReason) {
	ctx = context.WithoutCancel(ctx)

	if err := e.store.Logout(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("clearing session")
	}
	if e.tokens != nil {
		if err := e.tokens.DeleteToken(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("clearing companion token")
		}
	}
	e.PurgeCache()

	t := Termination{
		Reason:      reason,
		RedirectURL: e.loginURL + "?session_expired=true",
	}
	e.logger.Info().Str("reason", string(reason)).Msg("session terminated")

	e.subsMu.Lock()
	subs := make([]func(Termination), 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.subsMu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
}

// accessToken prefers the session and falls back to the companion store.
func (e *Executor) accessToken(ctx context.Context) string {
	if token := e.store.Snapshot().AccessToken; token != "" {
		return token
	}
	if e.tokens == nil {
		return ""
	}

	token, err := e.tokens.GetToken(ctx)
	if err != nil {
		if !errors.Is(err, clienterrors.ErrTokenNotFound) {
			e.logger.Warn().Err(err).Msg("reading companion token")
		}
		return ""
	}
	return token
}

func (e *Executor) prepare(req Request) (*preparedRequest, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	url := e.baseURL + req.Path
	if q := EncodeQuery(req.Params); q != "" {
		url += "?" + q
	}

	var body []byte
	if req.Body != nil {
		var err error
		if body, err = json.Marshal(req.Body); err != nil {
			return nil, fmt.Errorf("[apiclient prepare] %w: encoding body: %w", clienterrors.ErrInvalidRequest, err)
		}
	}

	return &preparedRequest{
		id:     uuid.NewString(),
		method: method,
		url:    url,
		body:   body,
		req:    req,
	}, nil
}

func (e *Executor) send(ctx context.Context, p *preparedRequest, token string) (*Response, error) {
	var body io.Reader
	if p.body != nil {
		body = bytes.NewReader(p.body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, p.method, p.url, body)
	if err != nil {
		return nil, fmt.Errorf("[apiclient send] %w: %w", clienterrors.ErrInvalidRequest, err)
	}
	for k, vs := range p.req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(RequestIDHeader, p.id)
	if p.body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	httpResp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("[apiclient send] %s %s: %w", p.method, p.url, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("[apiclient send] reading body: %w", err)
	}

	e.logger.Debug().
		Str("request_id", p.id).
		Str("method", p.method).
		Str("url", p.url).
		Int("status", httpResp.StatusCode).
		Bool("auth", token != "").
		Msg("api call")

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, nil
}

func (e *Executor) afterResponse(logger zerolog.Logger, p *preparedRequest, resp *Response) {
	if e.cache == nil || !resp.OK() {
		return
	}
	if p.method == http.MethodGet && len(p.req.Provides) > 0 {
		e.cache.set(cacheKey(p.method, p.url), resp, p.req.Provides)
	}
	if len(p.req.Invalidates) > 0 {
		if n := e.cache.invalidate(p.req.Invalidates); n > 0 {
			logger.Debug().Int("evicted", n).Strs("tags", p.req.Invalidates).Msg("cache invalidated")
		}
	}
}
