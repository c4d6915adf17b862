// Package api is the StayHub client SDK. Its request pipeline attaches the
// stored access token, reacts to the server's 401 reason codes, rotates the
// refresh token at most once per request, and keeps the local session store
// in step with the server's view of the session.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dpavlenko/stayhub/internal/client/session"
	"github.com/dpavlenko/stayhub/internal/common"
	"github.com/dpavlenko/stayhub/internal/logging"
)

// --- wire DTOs, mirroring the server ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Account is the server-side identity of the logged-in user.
type Account struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type loginResponse struct {
	User Account `json:"user"`
	tokenPairResponse
}

// Listing is a rental listing as served by the API.
type Listing struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Title         string    `json:"title"`
	City          string    `json:"city"`
	PricePerNight int64     `json:"price_per_night"`
	CreatedAt     time.Time `json:"created_at"`
}

type createListingRequest struct {
	Title         string `json:"title"`
	City          string `json:"city"`
	PricePerNight int64  `json:"price_per_night"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func decodeReason(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return ""
	}
	return er.Error
}

// Client is the authenticated API client. Business methods never surface
// token mechanics: by the time they return, the pipeline has either
// recovered or ended the session.
type Client struct {
	baseURL        string
	httpc          *http.Client
	store          session.Store
	logger         logging.Logger
	refresher      *refresher
	onForcedLogout func(reason string)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithForcedLogoutHook registers a callback invoked whenever the client ends
// the session on its own: blocked account, failed rotation, or a push
// notification. The hook runs after the local session is cleared.
func WithForcedLogoutHook(hook func(reason string)) Option {
	return func(c *Client) { c.onForcedLogout = hook }
}

// New returns a Client talking to baseURL, persisting its session in store.
func New(baseURL string, timeout time.Duration, store session.Store, logger logging.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
		store:   store,
		logger:  logger.With("module", "api"),
	}
	c.refresher = &refresher{client: c}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// forceLogout clears the local session and notifies the application. It is
// the single exit path for every involuntary session end.
func (c *Client) forceLogout(ctx context.Context, reason string) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error(ctx, "failed to clear session", "error", err.Error())
	}
	c.logger.Info(ctx, "session ended", "reason", reason)
	if c.onForcedLogout != nil {
		c.onForcedLogout(reason)
	}
}

// ForceLogout ends the session from outside the pipeline, e.g. when the
// push listener reports a server-side termination.
func (c *Client) ForceLogout(ctx context.Context, reason string) {
	c.forceLogout(ctx, reason)
}

// do runs one authenticated request. On a 401 it switches on the reason
// code: a blocked account ends the session immediately and never touches
// the rotate endpoint; anything else triggers one rotation followed by one
// resend. The retried flag is the loop guard: a second 401 is final.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, out interface{}, retried bool) error {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	sess, ok, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if ok && sess.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode < 300:
		if out != nil && len(body) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil

	case resp.StatusCode == http.StatusUnauthorized:
		reason := decodeReason(body)
		if reason == common.ReasonAccountBlocked {
			c.forceLogout(ctx, reason)
			return common.ErrAccountBlocked
		}
		if retried {
			// The freshly rotated token was rejected too; rotating again
			// cannot help.
			c.forceLogout(ctx, reason)
			return common.ErrorUnauthorized
		}
		if _, err := c.refresher.EnsureFreshToken(ctx); err != nil {
			return err
		}
		return c.do(ctx, method, path, payload, out, true)

	case resp.StatusCode == http.StatusUnprocessableEntity:
		ve := &ValidationError{}
		if err := json.Unmarshal(body, ve); err != nil {
			return fmt.Errorf("failed to decode validation response: %w", err)
		}
		return ve

	default:
		return fmt.Errorf("unexpected status %s: %s", resp.Status, string(body))
	}
}

// post sends an unauthenticated request, used by the auth endpoints that run
// outside the bearer pipeline.
func (c *Client) post(ctx context.Context, path string, in, out interface{}) (int, []byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	if resp.StatusCode < 300 && out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, body, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, body, nil
}

// Register creates a new account. It does not log in.
func (c *Client) Register(ctx context.Context, email, password, role string) (*Account, error) {
	var acc Account
	status, body, err := c.post(ctx, "/api/auth/register", registerRequest{Email: email, Password: password, Role: role}, &acc)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusCreated:
		return &acc, nil
	case http.StatusUnprocessableEntity:
		ve := &ValidationError{}
		if err := json.Unmarshal(body, ve); err != nil {
			return nil, fmt.Errorf("failed to decode validation response: %w", err)
		}
		return nil, ve
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", status, string(body))
	}
}

// Login authenticates and persists the issued pair as the current session.
func (c *Client) Login(ctx context.Context, email, password string) (*Account, error) {
	var resp loginResponse
	status, body, err := c.post(ctx, "/api/auth/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized:
		if decodeReason(body) == common.ReasonAccountBlocked {
			return nil, common.ErrAccountBlocked
		}
		return nil, common.ErrorUnauthorized
	default:
		return nil, fmt.Errorf("unexpected status %d: %s", status, string(body))
	}

	sess := &session.Session{
		UserID:       resp.User.ID,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	if err := c.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return &resp.User, nil
}

// Logout invalidates the refresh token server-side and clears the local
// session. The local clear happens regardless of the server call outcome,
// so logging out is always possible.
func (c *Client) Logout(ctx context.Context) error {
	sess, ok, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	if ok && sess.RefreshToken != "" {
		if _, _, err := c.post(ctx, "/api/auth/logout", refreshRequest{RefreshToken: sess.RefreshToken}, nil); err != nil {
			c.logger.Warn(ctx, "server logout failed", "error", err.Error())
		}
	}

	return c.store.Clear(ctx)
}

// CurrentUserID returns the user id of the stored session, or empty when
// logged out.
func (c *Client) CurrentUserID(ctx context.Context) string {
	sess, ok, err := c.store.Load(ctx)
	if err != nil || !ok {
		return ""
	}
	return sess.UserID
}

// Listings returns a page of rental listings.
func (c *Client) Listings(ctx context.Context) ([]Listing, error) {
	var result []Listing
	if err := c.do(ctx, http.MethodGet, "/api/listings", nil, &result, false); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateListing publishes a new listing owned by the current user.
func (c *Client) CreateListing(ctx context.Context, title, city string, pricePerNight int64) (*Listing, error) {
	payload, err := json.Marshal(createListingRequest{Title: title, City: city, PricePerNight: pricePerNight})
	if err != nil {
		return nil, err
	}
	var created Listing
	if err := c.do(ctx, http.MethodPost, "/api/listings", payload, &created, false); err != nil {
		return nil, err
	}
	return &created, nil
}
