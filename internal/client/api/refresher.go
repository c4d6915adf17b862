package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/sync/singleflight"

	"github.com/dpavlenko/stayhub/internal/client/session"
	"github.com/dpavlenko/stayhub/internal/common"
)

// refresher serializes token rotation. However many requests hit a 401 at
// the same time, exactly one rotate round-trip goes out; the rest block on
// the singleflight group and share its outcome. The group belongs to this
// instance, so independent clients in one process never couple their
// sessions.
type refresher struct {
	group  singleflight.Group
	client *Client
}

// EnsureFreshToken rotates the stored refresh token and returns the new
// access token. The new pair is persisted before any caller is released, so
// a released caller re-reading the store always sees the post-rotation
// state. Any failure ends the session: rotation is not retried.
func (r *refresher) EnsureFreshToken(ctx context.Context) (string, error) {
	v, err, _ := r.group.Do("refresh", func() (interface{}, error) {
		return r.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *refresher) refresh(ctx context.Context) (string, error) {
	c := r.client

	sess, ok, err := c.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	if !ok || sess.RefreshToken == "" {
		c.forceLogout(ctx, "no session")
		return "", common.ErrNoSession
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: sess.RefreshToken})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		// An unreachable rotate endpoint ends the session: the local pair
		// may already be half-stale and there is no safe way to keep it.
		c.forceLogout(ctx, "refresh unreachable")
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.forceLogout(ctx, "refresh failed")
		return "", err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		reason := decodeReason(body)
		c.logger.Warn(ctx, "token rotation rejected", "reason", reason)
		c.forceLogout(ctx, reason)
		switch reason {
		case common.ReasonRefreshReuse:
			return "", common.ErrRefreshReuse
		case common.ReasonRefreshExpired:
			return "", common.ErrRefreshTokenExpired
		case common.ReasonAccountBlocked:
			return "", common.ErrAccountBlocked
		default:
			return "", common.ErrInvalidToken
		}
	}
	if resp.StatusCode != http.StatusOK {
		c.forceLogout(ctx, "refresh failed")
		return "", fmt.Errorf("unexpected refresh status: %s", resp.Status)
	}

	var pair tokenPairResponse
	if err := json.Unmarshal(body, &pair); err != nil {
		c.forceLogout(ctx, "refresh failed")
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}

	next := &session.Session{
		UserID:       sess.UserID,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}
	if err := c.store.Save(ctx, next); err != nil {
		c.forceLogout(ctx, "refresh failed")
		return "", fmt.Errorf("failed to persist rotated session: %w", err)
	}

	return pair.AccessToken, nil
}
