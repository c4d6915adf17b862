package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dpavlenko/stayhub/internal/common"
	"github.com/dpavlenko/stayhub/internal/server/models"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type loginResponse struct {
	User userResponse `json:"user"`
	tokenPairResponse
}

type listingResponse struct {
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

type blockRequest struct {
	Reason string `json:"reason"`
}

// validationErrorResponse is the 422 body: a human message plus a
// field-name to problem map.
type validationErrorResponse struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func (s *Server) handleRegister(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	fields := map[string]string{}
	if req.Email == "" {
		fields["email"] = "required"
	}
	if req.Password == "" {
		fields["password"] = "required"
	}
	role := req.Role
	switch role {
	case "":
		role = models.RoleGuest
	case models.RoleGuest, models.RoleHost:
	default:
		fields["role"] = "must be guest or host"
	}
	if len(fields) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, validationErrorResponse{Message: "invalid registration", Fields: fields})
	}

	user, err := s.users.Register(c.Request().Context(), req.Email, req.Password, role)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return c.JSON(http.StatusUnprocessableEntity, validationErrorResponse{
				Message: "invalid registration",
				Fields:  map[string]string{"email": "already registered"},
			})
		}
		return reason(c, http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusCreated, userResponse{ID: user.ID, Email: user.Email, Role: user.RoleName})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid body")
	}

	ctx := c.Request().Context()
	user, pair, err := s.users.Login(ctx, strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrAccountBlocked):
			return reason(c, http.StatusUnauthorized, common.ReasonAccountBlocked)
		case errors.Is(err, common.ErrorUnauthorized):
			return reason(c, http.StatusUnauthorized, common.ReasonInvalidCredentials)
		default:
			return reason(c, http.StatusInternalServerError, "internal error")
		}
	}

	return c.JSON(http.StatusOK, loginResponse{
		User:              userResponse{ID: user.ID, Email: user.Email, Role: user.RoleName},
		tokenPairResponse: tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
	})
}

func (s *Server) handleRefresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return reason(c, http.StatusUnauthorized, common.ReasonInvalidToken)
	}

	ctx := c.Request().Context()
	pair, err := s.tokens.Rotate(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrRefreshReuse):
			// Replay of an already-consumed token is a security event,
			// not a user mistake.
			s.logger.Warn(ctx, "refresh token reuse detected", "remote", c.RealIP())
			return reason(c, http.StatusUnauthorized, common.ReasonRefreshReuse)
		case errors.Is(err, common.ErrRefreshTokenExpired):
			return reason(c, http.StatusUnauthorized, common.ReasonRefreshExpired)
		case errors.Is(err, common.ErrAccountBlocked):
			return reason(c, http.StatusUnauthorized, common.ReasonAccountBlocked)
		case errors.Is(err, common.ErrInvalidToken):
			return reason(c, http.StatusUnauthorized, common.ReasonInvalidToken)
		default:
			return reason(c, http.StatusInternalServerError, "internal error")
		}
	}

	return c.JSON(http.StatusOK, tokenPairResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// handleLogout invalidates the presented refresh token. It answers 204 even
// for unknown or absent tokens so a client can always log out.
func (s *Server) handleLogout(c echo.Context) error {
	var req refreshRequest
	_ = c.Bind(&req)

	if err := s.tokens.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return reason(c, http.StatusInternalServerError, "internal error")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListListings(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	result, err := s.listings.List(c.Request().Context(), limit, offset)
	if err != nil {
		return reason(c, http.StatusInternalServerError, "internal error")
	}

	resp := make([]listingResponse, 0, len(result))
	for _, l := range result {
		resp = append(resp, listingResponse{
			ID:            l.ID,
			OwnerID:       l.OwnerID,
			Title:         l.Title,
			City:          l.City,
			PricePerNight: l.PricePerNight,
			CreatedAt:     l.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCreateListing(c echo.Context) error {
	var req createListingRequest
	if err := c.Bind(&req); err != nil {
		return reason(c, http.StatusBadRequest, "invalid body")
	}

	fields := map[string]string{}
	if strings.TrimSpace(req.Title) == "" {
		fields["title"] = "required"
	}
	if strings.TrimSpace(req.City) == "" {
		fields["city"] = "required"
	}
	if req.PricePerNight <= 0 {
		fields["price_per_night"] = "must be positive"
	}
	if len(fields) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, validationErrorResponse{Message: "invalid listing", Fields: fields})
	}

	ownerID, _ := c.Get(ctxUserID).(string)
	created, err := s.listings.Create(c.Request().Context(), ownerID, req.Title, req.City, req.PricePerNight)
	if err != nil {
		return reason(c, http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusCreated, listingResponse{
		ID:            created.ID,
		OwnerID:       created.OwnerID,
		Title:         created.Title,
		City:          created.City,
		PricePerNight: created.PricePerNight,
		CreatedAt:     created.CreatedAt,
	})
}

func (s *Server) handleBlockUser(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return reason(c, http.StatusBadRequest, "missing user id")
	}

	var req blockRequest
	_ = c.Bind(&req)
	if req.Reason == "" {
		req.Reason = "blocked by administrator"
	}

	ctx := c.Request().Context()
	if err := s.users.Block(ctx, userID, req.Reason); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return reason(c, http.StatusNotFound, "user not found")
		}
		return reason(c, http.StatusInternalServerError, "internal error")
	}

	s.logger.Info(ctx, "user blocked", "user_id", userID, "reason", req.Reason)
	return c.NoContent(http.StatusNoContent)
}
