package apiclient_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Joelisking/projectx-client/apiclient"
	clienterrors "github.com/Joelisking/projectx-client/internal/errors"
	"github.com/Joelisking/projectx-client/session"
	"github.com/Joelisking/projectx-client/session/repofakes"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// fakeBackend accepts validToken on /api/v1/items/ and answers refresh calls
// with refreshStatus and refreshBody.
type fakeBackend struct {
	mu            sync.Mutex
	validToken    string
	refreshStatus int
	refreshBody   string
	refreshDelay  time.Duration

	refreshCalls  atomic.Int32
	refreshBodies []string
	refreshAuth   []string
	itemAuth      []string
	requestIDs    []string
	itemCalls     atomic.Int32
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/auth/refresh/":
		b.refreshCalls.Add(1)
		body, _ := io.ReadAll(r.Body)

		b.mu.Lock()
		b.refreshBodies = append(b.refreshBodies, string(body))
		b.refreshAuth = append(b.refreshAuth, r.Header.Get("Authorization"))
		status, resp, delay := b.refreshStatus, b.refreshBody, b.refreshDelay
		b.mu.Unlock()

		time.Sleep(delay)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))

	case "/api/v1/items/":
		b.itemCalls.Add(1)
		auth := r.Header.Get("Authorization")

		b.mu.Lock()
		b.itemAuth = append(b.itemAuth, auth)
		b.requestIDs = append(b.requestIDs, r.Header.Get(apiclient.RequestIDHeader))
		valid := b.validToken
		b.mu.Unlock()

		if valid != "" && auth != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Given token not valid for any token type"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":["a","b"],"query":"` + r.URL.RawQuery + `"}`))

	case "/api/v1/forbidden/":
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"detail":"You do not have permission"}`))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *fakeBackend) lastItemAuth() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.itemAuth) == 0 {
		return ""
	}
	return b.itemAuth[len(b.itemAuth)-1]
}

type fixture struct {
	backend  *fakeBackend
	server   *httptest.Server
	manager  *session.Manager
	tokens   *repofakes.FakeTokenStore
	executor *apiclient.Executor

	terminations []apiclient.Termination
	termMu       sync.Mutex
}

func newFixture(t *testing.T, backend *fakeBackend, opts ...apiclient.Option) *fixture {
	t.Helper()

	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	tokens := repofakes.NewFakeTokenStore("")
	manager := session.NewManager(repofakes.NewFakeSessionRepo(), tokens, zerolog.Nop())

	opts = append([]apiclient.Option{
		apiclient.WithHTTPClient(server.Client()),
		apiclient.WithTokenStore(tokens),
		apiclient.WithLogger(zerolog.Nop()),
	}, opts...)

	f := &fixture{
		backend:  backend,
		server:   server,
		manager:  manager,
		tokens:   tokens,
		executor: apiclient.New(server.URL+"/api/v1", manager, opts...),
	}
	f.executor.OnSessionTerminated(func(term apiclient.Termination) {
		f.termMu.Lock()
		defer f.termMu.Unlock()
		f.terminations = append(f.terminations, term)
	})
	return f
}

func (f *fixture) login(t *testing.T, access, refresh string) {
	t.Helper()
	user := &session.User{ID: "u-1", Username: "ama"}
	require.NoError(t, f.manager.LoginSuccess(context.Background(), user, access, refresh))
}

func (f *fixture) terminated() []apiclient.Termination {
	f.termMu.Lock()
	defer f.termMu.Unlock()
	return append([]apiclient.Termination(nil), f.terminations...)
}

func itemsRequest() apiclient.Request {
	return apiclient.Request{Method: http.MethodGet, Path: "/items/"}
}

func TestExecutorRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("transparent success after refresh", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{validToken: "T2", refreshStatus: 200, refreshBody: `{"access":"T2"}`})
		f.login(t, "T1", "R1")

		resp, err := f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		require.Equal(t, int32(1), f.backend.refreshCalls.Load())
		require.Equal(t, []string{`{"refresh":"R1"}`}, f.backend.refreshBodies)
		require.Equal(t, []string{""}, f.backend.refreshAuth)
		require.Equal(t, "Bearer T2", f.backend.lastItemAuth())

		s := f.manager.Snapshot()
		require.Equal(t, "T2", s.AccessToken)
		require.Equal(t, "R1", s.RefreshToken)
		require.Equal(t, "u-1", s.User.ID)
		require.Empty(t, f.terminated())

		// the retry carries the same request id
		require.Len(t, f.backend.requestIDs, 2)
		require.NotEmpty(t, f.backend.requestIDs[0])
		require.Equal(t, f.backend.requestIDs[0], f.backend.requestIDs[1])
	})

	t.Run("rotates the refresh token when returned", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{validToken: "T2", refreshStatus: 200, refreshBody: `{"access":"T2","refresh":"R2"}`})
		f.login(t, "T1", "R1")

		resp, err := f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "R2", f.manager.Snapshot().RefreshToken)
	})

	t.Run("retains the refresh token when not returned", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{validToken: "T2", refreshStatus: 200, refreshBody: `{"access":"T2"}`})
		f.login(t, "T1", "R1")

		_, err := f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)
		require.Equal(t, "R1", f.manager.Snapshot().RefreshToken)
	})

	t.Run("the companion token mirrors the refreshed access token", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{validToken: "T2", refreshStatus: 200, refreshBody: `{"access":"T2"}`})
		f.login(t, "T1", "R1")

		_, err := f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)

		tok, err := f.tokens.GetToken(ctx)
		require.NoError(t, err)
		require.Equal(t, "T2", tok)
	})
}

func TestExecutorSingleFlight(t *testing.T) {
	for _, n := range []int{2, 3, 8} {
		t.Run(fmt.Sprintf("%d callers share one refresh", n), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, &fakeBackend{
				validToken:    "T2",
				refreshStatus: 200,
				refreshBody:   `{"access":"T2"}`,
				refreshDelay:  50 * time.Millisecond,
			})
			f.login(t, "T1", "R1")

			statuses := make([]int, n)
			var g errgroup.Group
			for i := 0; i < n; i++ {
				g.Go(func() error {
					resp, err := f.executor.Do(ctx, itemsRequest())
					if err != nil {
						return err
					}
					statuses[i] = resp.StatusCode
					return nil
				})
			}
			require.NoError(t, g.Wait())

			require.Equal(t, int32(1), f.backend.refreshCalls.Load())
			for _, s := range statuses {
				require.Equal(t, http.StatusOK, s)
			}
			require.Equal(t, "T2", f.manager.Snapshot().AccessToken)
			require.False(t, f.executor.Refreshing())
			require.Empty(t, f.terminated())
		})
	}
}

func TestExecutorTerminalFailure(t *testing.T) {
	ctx := context.Background()

	assertLoggedOut := func(t *testing.T, f *fixture, reason apiclient.TerminationReason) {
		t.Helper()
		require.Equal(t, session.Anonymous(), f.manager.Snapshot())
		_, err := f.tokens.GetToken(ctx)
		require.ErrorIs(t, err, clienterrors.ErrTokenNotFound)

		terms := f.terminated()
		require.Len(t, terms, 1)
		require.Equal(t, reason, terms[0].Reason)
		require.Equal(t, "/auth/login?session_expired=true", terms[0].RedirectURL)
		require.False(t, f.executor.Refreshing())
	}

	t.Run("refresh rejected returns the original 401", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{validToken: "T2", refreshStatus: 401, refreshBody: `{"detail":"Token is blacklisted"}`})
		f.login(t, "T1", "R1")

		resp, err := f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, string(resp.Body), "Given token not valid")
		require.Equal(t, int32(1), f.backend.itemCalls.Load())

		assertLoggedOut(t, f, apiclient.ReasonRefreshRejected)
	})

	t.Run("2xx without access is a failure", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{validToken: "T2", refreshStatus: 200, refreshBody: `{"refresh":"R2"}`})
		f.login(t, "T1", "R1")

		resp, err := f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assertLoggedOut(t, f, apiclient.ReasonRefreshRejected)
	})

	t.Run("undecodable refresh body is a failure", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{validToken: "T2", refreshStatus: 200, refreshBody: `<html>`})
		f.login(t, "T1", "R1")

		resp, err := f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assertLoggedOut(t, f, apiclient.ReasonRefreshRejected)
	})

	t.Run("no refresh token never calls refresh", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{validToken: "T2", refreshStatus: 200, refreshBody: `{"access":"T2"}`})
		f.login(t, "T1", "")

		resp, err := f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, int32(0), f.backend.refreshCalls.Load())
		assertLoggedOut(t, f, apiclient.ReasonNoRefreshToken)
	})

	t.Run("transport error during refresh releases the gate", func(t *testing.T) {
		client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if strings.HasSuffix(r.URL.Path, "/auth/refresh/") {
				return nil, errors.New("connection reset by peer")
			}
			return http.DefaultTransport.RoundTrip(r)
		})}

		f := newFixture(t, &fakeBackend{validToken: "T2", refreshStatus: 200, refreshBody: `{"access":"T2"}`},
			apiclient.WithHTTPClient(client))
		f.login(t, "T1", "R1")

		resp, err := f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assertLoggedOut(t, f, apiclient.ReasonRefreshFailed)

		// a later call is not blocked by a leaked gate
		shortCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		resp, err = f.executor.Do(shortCtx, itemsRequest())
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("caller timeout during refresh keeps the session", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{
			validToken:    "T2",
			refreshStatus: 200,
			refreshBody:   `{"access":"T2"}`,
			refreshDelay:  200 * time.Millisecond,
		})
		f.login(t, "T1", "R1")

		shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		resp, err := f.executor.Do(shortCtx, itemsRequest())
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Nil(t, resp)

		s := f.manager.Snapshot()
		require.True(t, s.IsAuthenticated)
		require.Equal(t, "T1", s.AccessToken)
		require.Equal(t, "R1", s.RefreshToken)
		require.Empty(t, f.terminated())
		require.False(t, f.executor.Refreshing())

		// a patient caller still refreshes with the surviving token
		resp, err = f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "T2", f.manager.Snapshot().AccessToken)
	})

	t.Run("unsubscribed listeners are not called", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{validToken: "T2", refreshStatus: 401})
		f.login(t, "T1", "R1")

		called := false
		unsubscribe := f.executor.OnSessionTerminated(func(apiclient.Termination) { called = true })
		unsubscribe()

		_, err := f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)
		require.False(t, called)
		require.Len(t, f.terminated(), 1)
	})
}

func TestExecutorPassthrough(t *testing.T) {
	ctx := context.Background()

	t.Run("non 401 errors are returned without refresh", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{refreshStatus: 200, refreshBody: `{"access":"T2"}`})
		f.login(t, "T1", "R1")

		resp, err := f.executor.Do(ctx, apiclient.Request{Path: "/forbidden/"})
		require.NoError(t, err)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Equal(t, int32(0), f.backend.refreshCalls.Load())

		err = f.executor.DoJSON(ctx, apiclient.Request{Path: "/forbidden/"}, nil)
		var apiErr *apiclient.APIError
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
		require.Equal(t, "You do not have permission", apiErr.Message())
		require.Equal(t, "T1", f.manager.Snapshot().AccessToken)
	})

	t.Run("anonymous requests carry no bearer", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{})

		var out struct {
			Items []string `json:"items"`
		}
		require.NoError(t, f.executor.DoJSON(ctx, itemsRequest(), &out))
		require.Equal(t, []string{"a", "b"}, out.Items)
		require.Empty(t, f.backend.lastItemAuth())
	})

	t.Run("falls back to the companion token", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{})
		require.NoError(t, f.tokens.SetToken(ctx, "C1"))

		_, err := f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)
		require.Equal(t, "Bearer C1", f.backend.lastItemAuth())
	})

	t.Run("query params use repeated keys", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{})

		var out struct {
			Query string `json:"query"`
		}
		req := itemsRequest()
		req.Params = apiclient.Params{"tag": []string{"a", "b"}, "status": nil}
		require.NoError(t, f.executor.DoJSON(ctx, req, &out))
		require.Equal(t, "tag=a&tag=b", out.Query)
	})

	t.Run("cancelled context is a transport error", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{})
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := f.executor.Do(cancelled, itemsRequest())
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestExecutorResponseCache(t *testing.T) {
	ctx := context.Background()

	cached := func() apiclient.Request {
		req := itemsRequest()
		req.Provides = []string{"Listing"}
		return req
	}

	t.Run("tagged GETs are served from cache", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{}, apiclient.WithResponseCache(time.Minute))

		first, err := f.executor.Do(ctx, cached())
		require.NoError(t, err)
		require.False(t, first.Cached)

		second, err := f.executor.Do(ctx, cached())
		require.NoError(t, err)
		require.True(t, second.Cached)
		require.Equal(t, first.Body, second.Body)
		require.Equal(t, int32(1), f.backend.itemCalls.Load())
	})

	t.Run("invalidating request evicts matching tags", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{}, apiclient.WithResponseCache(time.Minute))

		_, err := f.executor.Do(ctx, cached())
		require.NoError(t, err)
		require.Equal(t, 1, f.executor.CachedResponses())

		mutation := apiclient.Request{Method: http.MethodPost, Path: "/items/", Body: map[string]string{"title": "Desk"}, Invalidates: []string{"Listing"}}
		_, err = f.executor.Do(ctx, mutation)
		require.NoError(t, err)
		require.Equal(t, 0, f.executor.CachedResponses())

		_, err = f.executor.Do(ctx, cached())
		require.NoError(t, err)
		require.Equal(t, int32(3), f.backend.itemCalls.Load())
	})

	t.Run("logout cleanup purges the cache", func(t *testing.T) {
		backend := &fakeBackend{refreshStatus: 401}
		f := newFixture(t, backend, apiclient.WithResponseCache(time.Minute))
		f.login(t, "T1", "R1")

		_, err := f.executor.Do(ctx, cached())
		require.NoError(t, err)
		require.Equal(t, 1, f.executor.CachedResponses())

		backend.mu.Lock()
		backend.validToken = "T2"
		backend.mu.Unlock()

		resp, err := f.executor.Do(ctx, itemsRequest())
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, 0, f.executor.CachedResponses())
	})

	t.Run("caching is off without the option", func(t *testing.T) {
		f := newFixture(t, &fakeBackend{})
		for i := 0; i < 2; i++ {
			_, err := f.executor.Do(ctx, cached())
			require.NoError(t, err)
		}
		require.Equal(t, int32(2), f.backend.itemCalls.Load())
	})
}

func TestAPIErrorMessage(t *testing.T) {
	err := &apiclient.APIError{StatusCode: 400, Body: []byte(`{"message":"Email already registered"}`)}
	require.Equal(t, "api error 400: Email already registered", err.Error())

	err = &apiclient.APIError{StatusCode: 502, Body: []byte("Bad Gateway\n")}
	require.Equal(t, "Bad Gateway", err.Message())

	err = &apiclient.APIError{StatusCode: 500, Body: []byte(strings.Repeat("é", 250))}
	require.Equal(t, strings.Repeat("é", 200), err.Message())

	var decoded map[string]any
	resp := &apiclient.Response{StatusCode: 200, Body: []byte(`{"a":1}`)}
	require.NoError(t, resp.Err())
	require.NoError(t, resp.DecodeJSON(&decoded))
	require.Equal(t, float64(1), decoded["a"])
	require.Error(t, (&apiclient.Response{StatusCode: 200, Body: []byte("{")}).DecodeJSON(&decoded))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
