package session

import "context"

// Repo persists the session to durable client storage so it survives restarts.
// A store holds exactly one session.
type Repo interface {
	// Load returns errors.ErrSessionNotFound when nothing has been persisted
	Load(ctx context.Context) (*Session, error)

	// Save replaces the persisted session
	Save(ctx context.Context, s *Session) error

	// Delete removes the persisted session. Deleting a missing session is not an error
	Delete(ctx context.Context) error
}

// TokenStore keeps a companion plain-text access token in a cookie-like store.
// It serves request paths where the persisted session has not been loaded yet.
type TokenStore interface {
	// GetToken returns errors.ErrTokenNotFound when no token is stored
	GetToken(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	DeleteToken(ctx context.Context) error
}
