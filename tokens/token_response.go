package tokens

// RefreshRequest is the body sent to the refresh endpoint.
// Example: {"refresh": "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."}
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// RefreshResponse is returned by the refresh endpoint.
type RefreshResponse struct {
	// Access is the new short-lived access token.
	// A 2xx response without it is treated as a failed refresh.
	Access *string `json:"access,omitempty"`

	// Refresh is only present when the backend rotates refresh tokens.
	// When absent the client keeps using the refresh token it already holds.
	Refresh *string `json:"refresh,omitempty"`
}

// TokenPair is the token block returned by login and registration.
// Example: {"access_token": "eyJ...", "refresh_token": "eyJ..."}
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
