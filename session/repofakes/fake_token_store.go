package repofakes

import (
	"context"
	"sync"

	clienterrors "github.com/Joelisking/projectx-client/internal/errors"
	"github.com/Joelisking/projectx-client/session"
)

var _ session.TokenStore = (*FakeTokenStore)(nil)

type FakeTokenStore struct {
	lock  sync.RWMutex
	token string
}

func NewFakeTokenStore(token string) *FakeTokenStore {
	return &FakeTokenStore{token: token}
}

func (s *FakeTokenStore) GetToken(_ context.Context) (string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.token == "" {
		return "", clienterrors.ErrTokenNotFound
	}
	return s.token, nil
}

func (s *FakeTokenStore) SetToken(_ context.Context, token string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.token = token
	return nil
}

func (s *FakeTokenStore) DeleteToken(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.token = ""
	return nil
}
