// Package common contains shared constants and sentinel errors used across
// StayHub components.
package common

// Reason codes carried in the body of 401 responses. The set is closed:
// the client switches on these values to pick a recovery action, so a new
// code must be added here and handled explicitly on both sides.
const (
	ReasonInvalidToken   = "invalid_token"
	ReasonAccessExpired  = "access_expired"
	ReasonAccountBlocked = "account_blocked"
	ReasonRefreshExpired = "refresh_expired"
	ReasonRefreshReuse   = "refresh_reuse"
)

// ReasonInvalidCredentials is returned by the login endpoint only; it is not
// part of the token reason set above.
const ReasonInvalidCredentials = "invalid_credentials"

// SessionTerminatedExchange is the direct exchange carrying forced session
// termination events from the server to connected clients. Events are
// published with the user id as the routing key, so each client binds its
// own queue and never sees another user's events.
const SessionTerminatedExchange = "session.terminated"

// SessionTerminatedQueueName returns the per-user queue bound to
// SessionTerminatedExchange.
func SessionTerminatedQueueName(userID string) string {
	return SessionTerminatedExchange + "." + userID
}
