package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Joelisking/projectx-client/apiclient"
	clienterrors "github.com/Joelisking/projectx-client/internal/errors"
	"github.com/Joelisking/projectx-client/internal/utils"
	"github.com/Joelisking/projectx-client/session"
	"github.com/Joelisking/projectx-client/tokens"
)

const (
	defaultLoginError        = "Login failed. Please try again."
	defaultRegistrationError = "Registration failed. Please try again."
)

// Client exposes the backend endpoints the hosts use. Every call goes through
// the executor so tokens are attached and refreshed.
type Client struct {
	exec    *apiclient.Executor
	session *session.Manager
}

func New(exec *apiclient.Executor, sess *session.Manager) *Client {
	return &Client{exec: exec, session: sess}
}

// Login authenticates and stores the returned user and tokens. On failure the
// session records the backend's message.
func (c *Client) Login(ctx context.Context, creds Credentials) (*session.User, error) {
	return c.authenticate(ctx, "/users/login", creds, defaultLoginError)
}

// Register creates an account and logs it in.
func (c *Client) Register(ctx context.Context, reg Registration) (*session.User, error) {
	return c.authenticate(ctx, "/users/register", reg, defaultRegistrationError)
}

func (c *Client) authenticate(ctx context.Context, path string, body any, fallback string) (*session.User, error) {
	c.session.LoginStart()

	resp, err := c.exec.Do(ctx, apiclient.Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        body,
		Invalidates: []string{TagUsers},
	})
	if err == nil {
		err = resp.Err()
	}
	if err != nil {
		return nil, c.loginFailed(ctx, failureMessage(err, fallback), err)
	}

	user, pair, err := decodeAuth(resp.Body)
	if err != nil {
		return nil, c.loginFailed(ctx, fallback, err)
	}
	if pair == nil || pair.AccessToken == "" {
		return nil, c.loginFailed(ctx, fallback, fmt.Errorf("[marketplace authenticate] %w: no tokens in response", clienterrors.ErrInvalidToken))
	}

	su := user.ToSession()
	if err := c.session.LoginSuccess(ctx, su, pair.AccessToken, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("[marketplace authenticate] storing session: %w", err)
	}
	return su, nil
}

func (c *Client) loginFailed(ctx context.Context, msg string, cause error) error {
	if err := c.session.LoginFailure(ctx, msg); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func decodeAuth(body []byte) (*APIUser, *tokens.TokenPair, error) {
	var wrapped authResponse
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, nil, fmt.Errorf("[marketplace decodeAuth] %w", err)
	}

	user := wrapped.User
	if user == nil {
		user = &APIUser{}
		if err := json.Unmarshal(body, user); err != nil {
			return nil, nil, fmt.Errorf("[marketplace decodeAuth] %w", err)
		}
	}
	return user, wrapped.Tokens, nil
}

// Me fetches the current user's profile.
func (c *Client) Me(ctx context.Context) (*session.User, error) {
	var u APIUser
	err := c.exec.DoJSON(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Path:     "/users/me",
		Provides: []string{TagUsers},
	}, &u)
	if err != nil {
		return nil, err
	}
	return u.ToSession(), nil
}

// UpdateProfile patches the profile and mirrors the result into the session.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*session.User, error) {
	var u APIUser
	err := c.exec.DoJSON(ctx, apiclient.Request{
		Method:      http.MethodPatch,
		Path:        "/users/update_profile",
		Body:        update,
		Invalidates: []string{TagUsers},
	}, &u)
	if err != nil {
		return nil, err
	}

	su := u.ToSession()
	patch := session.UserPatch{
		FirstName:         utils.NonEmpty(su.FirstName),
		LastName:          utils.NonEmpty(su.LastName),
		PhoneNumber:       update.PhoneNumber,
		ProfilePictureURL: update.ProfilePictureURL,
		CampusID:          update.CampusID,
	}
	if su.Campus != "" {
		patch.Campus = &su.Campus
	}
	if err := c.session.UpdateUser(ctx, patch); err != nil {
		return nil, fmt.Errorf("[marketplace UpdateProfile] %w", err)
	}
	return su, nil
}

// ListListings searches active listings.
func (c *Client) ListListings(ctx context.Context, f ListingFilter) (*ListingPage, error) {
	params := apiclient.Params{
		"category":  f.Category,
		"campus":    f.Campus,
		"condition": f.Condition,
		"status":    f.Status,
		"search":    utils.NonEmpty(f.Search),
		"ordering":  utils.NonEmpty(f.Ordering),
	}
	if f.Page > 0 {
		params["page"] = f.Page
	}

	page := &ListingPage{}
	err := c.exec.DoJSON(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Path:     "/marketplace/listings",
		Params:   params,
		Provides: []string{TagMarketplace},
	}, page)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// UnreadNotificationCount is the badge count shown next to notifications.
func (c *Client) UnreadNotificationCount(ctx context.Context) (int, error) {
	var out countResponse
	err := c.exec.DoJSON(ctx, apiclient.Request{
		Method:   http.MethodGet,
		Path:     "/safety/notifications/unread_count",
		Provides: []string{TagSafety},
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Logout ends the session locally. The backend keeps no session to revoke.
func (c *Client) Logout(ctx context.Context) error {
	c.exec.PurgeCache()
	return c.session.Logout(ctx)
}

// failureMessage prefers the backend's "message" field.
func failureMessage(err error, fallback string) string {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return fallback
	}

	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(apiErr.Body, &body) == nil && body.Message != "" {
		return body.Message
	}
	return fallback
}
