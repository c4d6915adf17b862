// Package auth implements the credential codec: signing and verification of
// the two token kinds StayHub issues. Verification is pure and has no side
// effects and consults the clock exactly once per call.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dpavlenko/stayhub/internal/common"
)

// TokenKind distinguishes the two credentials on the wire. A token of one
// kind never verifies as the other, so a long-lived refresh token can not be
// replayed as an access token.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims carried by every StayHub token. Subject holds the user id and ID
// (jti) a random uuid, which also keeps persisted refresh token strings
// unique. Role claims are set on access tokens only.
type Claims struct {
	jwt.RegisteredClaims
	RoleID   string `json:"role_id,omitempty"`
	RoleName string `json:"role_name,omitempty"`
	Kind     string `json:"kind"`
}

// IssueToken mints a signed HS256 token of the given kind for userID,
// valid for the given duration from now.
func IssueToken(userID, roleID, roleName string, kind TokenKind, secretKey []byte, validity time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		RoleID:   roleID,
		RoleName: roleName,
		Kind:     string(kind),
	})

	return token.SignedString(secretKey)
}

// ParseToken verifies signature, structure, expiry, and kind, and returns the
// embedded claims. It fails with common.ErrTokenExpired when only the expiry
// has elapsed, and common.ErrInvalidToken for every other defect.
func ParseToken(tokenString string, kind TokenKind, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Kind != string(kind) {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
