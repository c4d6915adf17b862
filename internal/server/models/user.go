// Package models defines server-side data models for StayHub.
package models

import "time"

// User is a marketplace account. PasswordHash is a bcrypt hash; Blocked marks
// accounts that were administratively revoked and must not authenticate.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	RoleID       string
	RoleName     string
	Blocked      bool
	CreatedAt    time.Time
}

// Role names recognised by the authorization middleware.
const (
	RoleGuest = "guest"
	RoleHost  = "host"
	RoleAdmin = "admin"
)
