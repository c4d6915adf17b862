// UserService: registration, credential verification, and administrative
// blocking.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/dpavlenko/stayhub/internal/common"
	"github.com/dpavlenko/stayhub/internal/logging"
	"github.com/dpavlenko/stayhub/internal/server/config"
	"github.com/dpavlenko/stayhub/internal/server/models"
	"github.com/dpavlenko/stayhub/internal/server/repositories/repomanager"
)

// UserService verifies login credentials and manages account state. Token
// minting is delegated to TokenService so there is a single issuance path.
type UserService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	tokens     *TokenService
	logger     logging.Logger
	bcryptCost int
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, tokens *TokenService, l logging.Logger, cfg *config.Config) *UserService {
	return &UserService{
		db:         db,
		repos:      m,
		tokens:     tokens,
		logger:     l.With("module", "users"),
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates a new user with the given email, password, and role.
func (s *UserService) Register(ctx context.Context, email, password, roleName string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		RoleID:       "role-" + roleName,
		RoleName:     roleName,
	}

	created, err := s.repos.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return created, nil
}

// Login verifies the password and, on success, returns the user together
// with a freshly issued token pair. A blocked account fails with
// common.ErrAccountBlocked before any token is minted.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorUnauthorized
		}
		return nil, nil, common.ErrorInternal
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, common.ErrorUnauthorized
	}

	if user.Blocked {
		return nil, nil, common.ErrAccountBlocked
	}

	pair, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Block marks the account blocked and revokes every outstanding session.
// The order matters: the flag goes down first so a rotation racing with the
// revocation still sees a blocked user.
func (s *UserService) Block(ctx context.Context, userID, reason string) error {
	if err := s.repos.Users(s.db).SetBlocked(ctx, userID, true); err != nil {
		return fmt.Errorf("error blocking user: %w", err)
	}
	return s.tokens.RevokeAll(ctx, userID, reason)
}
