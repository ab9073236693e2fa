package tokenstore

import (
	"context"
	"errors"
	"net/http"
	"sync"

	clienterrors "github.com/Joelisking/projectx-client/internal/errors"
	"github.com/Joelisking/projectx-client/session"
)

var _ session.TokenStore = (*RequestStore)(nil)

// RequestStore reads the auth cookie from an incoming request and writes
// changes back as Set-Cookie headers. It lives for a single request.
type RequestStore struct {
	name  string
	r     *http.Request
	w     http.ResponseWriter
	lock  sync.Mutex
	token *string
}

func NewRequestStore(cookieName string, w http.ResponseWriter, r *http.Request) *RequestStore {
	return &RequestStore{name: cookieName, r: r, w: w}
}

func (s *RequestStore) GetToken(_ context.Context) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	// a token set or cleared during this request wins over the incoming cookie
	if s.token != nil {
		if *s.token == "" {
			return "", clienterrors.ErrTokenNotFound
		}
		return *s.token, nil
	}

	c, err := s.r.Cookie(s.name)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return "", clienterrors.ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

func (s *RequestStore) SetToken(_ context.Context, token string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.token = &token
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.name,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *RequestStore) DeleteToken(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	empty := ""
	s.token = &empty
	http.SetCookie(s.w, &http.Cookie{
		Name:   s.name,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	return nil
}
