// Package httpapi exposes the marketplace API over HTTP. It owns the route
// table, the bearer-token middleware, and the translation of service
// sentinels into the closed set of machine-readable 401 reason codes the
// client pipeline switches on.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dpavlenko/stayhub/internal/logging"
	"github.com/dpavlenko/stayhub/internal/server/blocklist"
	"github.com/dpavlenko/stayhub/internal/server/models"
	"github.com/dpavlenko/stayhub/internal/server/services"
)

// UserManager is the slice of UserService the handlers need.
type UserManager interface {
	Register(ctx context.Context, email, password, roleName string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, *services.TokenPair, error)
	Block(ctx context.Context, userID, reason string) error
}

// TokenManager is the slice of TokenService the handlers need.
type TokenManager interface {
	Rotate(ctx context.Context, presented string) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
}

// ListingManager is the slice of ListingService the handlers need.
type ListingManager interface {
	List(ctx context.Context, limit, offset int) ([]*models.Listing, error)
	Create(ctx context.Context, ownerID, title, city string, pricePerNight int64) (*models.Listing, error)
}

// Server wires the handlers, middleware, and routes into an echo instance.
type Server struct {
	echo      *echo.Echo
	users     UserManager
	tokens    TokenManager
	listings  ListingManager
	blocklist blocklist.Blocklist
	logger    logging.Logger
	jwtSecret []byte
	addr      string
}

func NewServer(addr string, secret []byte, users UserManager, tokens TokenManager, listings ListingManager, bl blocklist.Blocklist, l logging.Logger) *Server {
	s := &Server{
		echo:      echo.New(),
		users:     users,
		tokens:    tokens,
		listings:  listings,
		blocklist: bl,
		logger:    l.With("module", "httpapi"),
		jwtSecret: secret,
		addr:      addr,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo

	api := e.Group("/api")
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/refresh", s.handleRefresh)
	api.POST("/auth/logout", s.handleLogout)

	protected := api.Group("", s.authMiddleware())
	protected.GET("/listings", s.handleListListings)
	protected.POST("/listings", s.handleCreateListing)

	admin := api.Group("/admin", s.authMiddleware(), requireRole(models.RoleAdmin))
	admin.POST("/users/:id/block", s.handleBlockUser)
}

// Handler returns the underlying HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info(ctx, "http server started", "addr", s.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
