// Package services contains server-side business logic. This file implements
// TokenService, which owns the credential lifecycle: issuing access/refresh
// pairs, rotating refresh tokens, and revoking every session of a user.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dpavlenko/stayhub/internal/common"
	"github.com/dpavlenko/stayhub/internal/dbx"
	"github.com/dpavlenko/stayhub/internal/logging"
	"github.com/dpavlenko/stayhub/internal/server/auth"
	"github.com/dpavlenko/stayhub/internal/server/blocklist"
	"github.com/dpavlenko/stayhub/internal/server/config"
	"github.com/dpavlenko/stayhub/internal/server/events"
	"github.com/dpavlenko/stayhub/internal/server/models"
	"github.com/dpavlenko/stayhub/internal/server/repositories/repomanager"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService issues, rotates, and revokes credential pairs. Every refresh
// token it mints is persisted; every refresh token it accepts is consumed
// exactly once.
type TokenService struct {
	db              *sql.DB
	repos           repomanager.RepositoryManager
	blocklist       blocklist.Blocklist
	events          events.Publisher
	logger          logging.Logger
	jwtSecret       []byte
	accessValidity  time.Duration
	refreshValidity time.Duration
}

// NewTokenService constructs a TokenService using repositories and server config.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, bl blocklist.Blocklist, pub events.Publisher, l logging.Logger, cfg *config.Config) *TokenService {
	return &TokenService{
		db:              db,
		repos:           m,
		blocklist:       bl,
		events:          pub,
		logger:          l.With("module", "tokens"),
		jwtSecret:       []byte(cfg.SecretKey),
		accessValidity:  cfg.AccessTokenValidityDuration,
		refreshValidity: cfg.RefreshTokenValidityDuration,
	}
}

// Issue mints a fresh access+refresh pair for the user and persists the
// refresh row.
func (s *TokenService) Issue(ctx context.Context, user *models.User) (*TokenPair, error) {
	return s.mintPair(ctx, s.db, user)
}

// Rotate exchanges a presented refresh token for a brand-new pair.
//
// The consume of the old row and the insert of the new one share a single
// transaction, so there is no window in which both tokens are valid. A token
// that resolves to no row has already been rotated, swept, or revoked and is
// reported as common.ErrRefreshReuse; an expired token is the soft
// common.ErrRefreshTokenExpired.
func (s *TokenService) Rotate(ctx context.Context, presented string) (*TokenPair, error) {
	claims, err := auth.ParseToken(presented, auth.KindRefresh, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			// The row, if still present, is garbage now; the janitor sweeps it.
			return nil, common.ErrRefreshTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec, err := s.repos.RefreshTokens(tx).Consume(ctx, presented)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrRefreshReuse
		}
		if err != nil {
			return fmt.Errorf("error consuming refresh token: %w", err)
		}
		if rec.ExpiresAt.Before(time.Now()) {
			return common.ErrRefreshTokenExpired
		}

		user, err := s.repos.Users(tx).GetByID(ctx, claims.Subject)
		if err != nil {
			return fmt.Errorf("error loading token subject: %w", err)
		}
		if user.Blocked {
			return common.ErrAccountBlocked
		}

		pair, err = s.mintPair(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout invalidates a single refresh token. An unknown token is not an
// error: the session it belonged to is gone either way.
func (s *TokenService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.repos.RefreshTokens(s.db).Delete(ctx, refreshToken)
}

// RevokeAll terminates every session of a user: it deletes all refresh rows,
// marks the user in the blocklist for the residual lifetime of outstanding
// access tokens, and publishes a session termination event. Blocklist and
// broker failures are logged but do not undo the revocation, which is
// already durable.
func (s *TokenService) RevokeAll(ctx context.Context, userID, reason string) error {
	if err := s.repos.RefreshTokens(s.db).DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("error revoking refresh tokens: %w", err)
	}

	if err := s.blocklist.MarkBlocked(ctx, userID, s.accessValidity); err != nil {
		s.logger.Error(ctx, "failed to mark user in blocklist", "user_id", userID, "error", err.Error())
	}

	ev := events.SessionTerminated{UserID: userID, Reason: reason, OccurredAt: time.Now().UTC()}
	if err := s.events.SessionTerminated(ctx, ev); err != nil {
		s.logger.Error(ctx, "failed to publish session termination", "user_id", userID, "error", err.Error())
	}

	s.logger.Info(ctx, "all sessions revoked", "user_id", userID, "reason", reason)
	return nil
}

func (s *TokenService) mintPair(ctx context.Context, db dbx.DBTX, user *models.User) (*TokenPair, error) {
	access, err := auth.IssueToken(user.ID, user.RoleID, user.RoleName, auth.KindAccess, s.jwtSecret, s.accessValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	refresh, err := auth.IssueToken(user.ID, "", "", auth.KindRefresh, s.jwtSecret, s.refreshValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	if err := s.repos.RefreshTokens(db).Create(ctx, user.ID, refresh, s.refreshValidity); err != nil {
		if errors.Is(err, common.ErrDuplicateToken) {
			// Random jti collision: practically impossible, never retried.
			return nil, err
		}
		return nil, common.ErrorInternal
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// SweepExpired removes refresh rows whose expiry has passed. Called
// periodically by the app's janitor.
func (s *TokenService) SweepExpired(ctx context.Context) (int64, error) {
	return s.repos.RefreshTokens(s.db).DeleteExpired(ctx)
}
