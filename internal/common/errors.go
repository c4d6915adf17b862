// Package common defines shared constants and sentinel errors used across
// client and server layers of StayHub. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound     = errors.New("not found")
	ErrDuplicateToken = errors.New("duplicate refresh token")
	ErrDuplicateEmail = errors.New("email already registered")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors. ErrTokenExpired and ErrRefreshTokenExpired are
	// soft: the holder can refresh or re-login quietly. ErrRefreshReuse and
	// ErrAccountBlocked are hard: every session for the user is terminated.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshReuse        = errors.New("refresh token reuse detected")
	ErrAccountBlocked      = errors.New("account blocked")

	// ErrNoSession means the client holds no refresh token to exchange.
	ErrNoSession = errors.New("no session")
)
