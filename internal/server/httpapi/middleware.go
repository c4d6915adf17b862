package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dpavlenko/stayhub/internal/common"
	"github.com/dpavlenko/stayhub/internal/server/auth"
)

const (
	ctxUserID   = "user_id"
	ctxRoleName = "role_name"
)

// errorResponse is the body of every non-2xx answer. On 401 the Error field
// carries one of the reason codes from internal/common, which the client
// pipeline switches on.
type errorResponse struct {
	Error string `json:"error"`
}

func reason(c echo.Context, status int, code string) error {
	return c.JSON(status, errorResponse{Error: code})
}

// authMiddleware verifies the bearer access token and consults the blocklist
// so a revoked user is shut out before their access token expires. The user
// id and role land in the echo context for the handlers.
func (s *Server) authMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(header, "Bearer ") {
				return reason(c, http.StatusUnauthorized, common.ReasonInvalidToken)
			}
			raw := strings.TrimPrefix(header, "Bearer ")

			claims, err := auth.ParseToken(raw, auth.KindAccess, s.jwtSecret)
			if err != nil {
				if errors.Is(err, common.ErrTokenExpired) {
					return reason(c, http.StatusUnauthorized, common.ReasonAccessExpired)
				}
				return reason(c, http.StatusUnauthorized, common.ReasonInvalidToken)
			}

			ctx := c.Request().Context()
			blocked, err := s.blocklist.IsBlocked(ctx, claims.Subject)
			if err != nil {
				// A cache outage must not take the API down; the refresh
				// path still sees the durable blocked flag.
				s.logger.Error(ctx, "blocklist lookup failed", "error", err.Error())
			} else if blocked {
				return reason(c, http.StatusUnauthorized, common.ReasonAccountBlocked)
			}

			c.Set(ctxUserID, claims.Subject)
			c.Set(ctxRoleName, claims.RoleName)
			return next(c)
		}
	}
}

// requireRole allows a route only for users carrying the given role claim.
func requireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if got, _ := c.Get(ctxRoleName).(string); got != role {
				return c.JSON(http.StatusForbidden, errorResponse{Error: "forbidden"})
			}
			return next(c)
		}
	}
}
