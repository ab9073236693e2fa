package repofakes

import (
	"context"
	"sync"

	clienterrors "github.com/Joelisking/projectx-client/internal/errors"
	"github.com/Joelisking/projectx-client/session"
)

var _ session.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo keeps the session in memory. Err, when set, is returned from
// every operation.
type FakeSessionRepo struct {
	lock    sync.RWMutex
	session *session.Session
	saves   int
	Err     error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{}
}

func (r *FakeSessionRepo) Load(_ context.Context) (*session.Session, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	if r.Err != nil {
		return nil, r.Err
	}
	if r.session == nil {
		return nil, clienterrors.ErrSessionNotFound
	}
	s := r.session.Clone()
	return &s, nil
}

func (r *FakeSessionRepo) Save(_ context.Context, s *session.Session) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.Err != nil {
		return r.Err
	}
	c := s.Clone()
	r.session = &c
	r.saves++
	return nil
}

func (r *FakeSessionRepo) Delete(_ context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.Err != nil {
		return r.Err
	}
	r.session = nil
	return nil
}

// Saves returns how many times Save succeeded.
func (r *FakeSessionRepo) Saves() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.saves
}
