package tokens

import (
	"fmt"
	"time"

	clienterrors "github.com/Joelisking/projectx-client/internal/errors"
	"github.com/golang-jwt/jwt/v5"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is the subset of the access token payload the client reads.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// ParseUnverified decodes a JWT without checking its signature. The backend is
// the only party that can verify tokens; the client reads claims for display.
func ParseUnverified(token string) (*Claims, error) {
	if token == "" {
		return nil, clienterrors.ErrInvalidToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("[tokens ParseUnverified] %w: %w", clienterrors.ErrInvalidToken, err)
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of an access token.
func ExpiresAt(token string) (time.Time, error) {
	claims, err := ParseUnverified(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("[tokens ExpiresAt] %w: no exp claim", clienterrors.ErrInvalidToken)
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired reports whether the token's exp claim is in the past. Tokens that
// cannot be parsed are reported as expired.
func IsExpired(token string) bool {
	exp, err := ExpiresAt(token)
	if err != nil {
		return true
	}
	return !NowTimeFunc().Before(exp)
}
