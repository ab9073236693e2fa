package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	clienterrors "github.com/Joelisking/projectx-client/internal/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

var _ oauth2.TokenSource = (*Manager)(nil)

// Manager is the single source of truth for the client's session. Every
// transition is persisted to the Repo and the access token is mirrored into the
// companion TokenStore when one is configured.
type Manager struct {
	mu      sync.RWMutex
	current Session
	repo    Repo
	tokens  TokenStore
	logger  zerolog.Logger
}

// NewManager creates a manager in the anonymous state. Call Rehydrate to load a
// previously persisted session. tokenStore may be nil.
func NewManager(repo Repo, tokenStore TokenStore, logger zerolog.Logger) *Manager {
	return &Manager{
		current: Anonymous(),
		repo:    repo,
		tokens:  tokenStore,
		logger:  logger.With().Str("component", "session").Logger(),
	}
}

// Rehydrate loads the persisted session. A missing session leaves the manager
// anonymous and is not an error. Loading state and errors are never restored.
func (m *Manager) Rehydrate(ctx context.Context) error {
	s, err := m.repo.Load(ctx)
	if errors.Is(err, clienterrors.ErrSessionNotFound) {
		m.logger.Debug().Msg("no persisted session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("[session Rehydrate] loading session: %w", err)
	}

	s.IsLoading = false
	s.Error = ""
	if s.AccessToken == "" {
		s.IsAuthenticated = false
	}

	m.mu.Lock()
	m.current = s.Clone()
	m.mu.Unlock()

	m.logger.Debug().Bool("authenticated", s.IsAuthenticated).Msg("session rehydrated")
	return nil
}

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// Token implements oauth2.TokenSource over the current access token.
func (m *Manager) Token() (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current.AccessToken == "" {
		return nil, clienterrors.ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken:  m.current.AccessToken,
		RefreshToken: m.current.RefreshToken,
		TokenType:    "Bearer",
	}, nil
}

// LoginStart marks a login in progress and clears any previous error.
func (m *Manager) LoginStart() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.IsLoading = true
	m.current.Error = ""
}

// LoginSuccess stores the user and tokens. An empty refresh token keeps the one
// already held.
func (m *Manager) LoginSuccess(ctx context.Context, user *User, access, refresh string) error {
	if access == "" {
		return fmt.Errorf("[session LoginSuccess] %w: empty access token", clienterrors.ErrInvalidToken)
	}

	return m.update(ctx, func(s *Session) {
		if user != nil {
			u := *user
			s.User = &u
		}
		s.AccessToken = access
		if refresh != "" {
			s.RefreshToken = refresh
		}
		s.IsAuthenticated = true
		s.IsLoading = false
		s.Error = ""
	})
}

// LoginFailure resets the session to anonymous with the given error message.
func (m *Manager) LoginFailure(ctx context.Context, msg string) error {
	return m.update(ctx, func(s *Session) {
		*s = Anonymous()
		s.Error = msg
	})
}

// ReplaceTokens swaps in a refreshed access token. The refresh token is rotated
// only when a new one is given. The user record is untouched.
func (m *Manager) ReplaceTokens(ctx context.Context, access, refresh string) error {
	if access == "" {
		return fmt.Errorf("[session ReplaceTokens] %w: empty access token", clienterrors.ErrInvalidToken)
	}

	return m.update(ctx, func(s *Session) {
		s.AccessToken = access
		if refresh != "" {
			s.RefreshToken = refresh
		}
		s.IsAuthenticated = true
		s.Error = ""
	})
}

// UpdateUser applies a partial profile update. It is a no-op without a user.
func (m *Manager) UpdateUser(ctx context.Context, patch UserPatch) error {
	return m.update(ctx, func(s *Session) {
		if s.User != nil {
			s.User.apply(patch)
		}
	})
}

// ClearError clears the last login error.
func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Error = ""
}

// Logout resets the session to anonymous and clears both the persisted session
// and the companion token. The in-memory state is reset even if storage fails.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = Anonymous()

	var errs []error
	if err := m.repo.Delete(ctx); err != nil {
		errs = append(errs, fmt.Errorf("[session Logout] deleting session: %w", err))
	}
	if m.tokens != nil {
		if err := m.tokens.DeleteToken(ctx); err != nil {
			errs = append(errs, fmt.Errorf("[session Logout] deleting token: %w", err))
		}
	}

	m.logger.Info().Msg("session cleared")
	return errors.Join(errs...)
}

// update applies fn under the write lock and persists the result. Persisting
// under the lock keeps storage in the same order as memory.
func (m *Manager) update(ctx context.Context, fn func(s *Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn(&m.current)
	return m.persist(ctx)
}

func (m *Manager) persist(ctx context.Context) error {
	s := m.current.Clone()
	s.IsLoading = false
	if err := m.repo.Save(ctx, &s); err != nil {
		return fmt.Errorf("[session persist] saving session: %w", err)
	}

	if m.tokens == nil {
		return nil
	}
	if s.AccessToken == "" {
		if err := m.tokens.DeleteToken(ctx); err != nil {
			return fmt.Errorf("[session persist] deleting token: %w", err)
		}
		return nil
	}
	if err := m.tokens.SetToken(ctx, s.AccessToken); err != nil {
		return fmt.Errorf("[session persist] mirroring token: %w", err)
	}
	return nil
}
