package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpavlenko/stayhub/internal/common"
	"github.com/dpavlenko/stayhub/internal/logging"
	"github.com/dpavlenko/stayhub/internal/server/auth"
	"github.com/dpavlenko/stayhub/internal/server/models"
	"github.com/dpavlenko/stayhub/internal/server/services"
)

const testSecret = "test-secret"

type fakeUserManager struct {
	loginErr    error
	loginUser   *models.User
	loginPair   *services.TokenPair
	registerErr error
	blockedIDs  []string
}

func (f *fakeUserManager) Register(ctx context.Context, email, password, roleName string) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return &models.User{ID: "u-new", Email: email, RoleName: roleName}, nil
}

func (f *fakeUserManager) Login(ctx context.Context, email, password string) (*models.User, *services.TokenPair, error) {
	if f.loginErr != nil {
		return nil, nil, f.loginErr
	}
	return f.loginUser, f.loginPair, nil
}

func (f *fakeUserManager) Block(ctx context.Context, userID, reason string) error {
	f.blockedIDs = append(f.blockedIDs, userID)
	return nil
}

type fakeTokenManager struct {
	rotateErr   error
	rotatePair  *services.TokenPair
	rotateCalls int
	logoutCalls int
}

func (f *fakeTokenManager) Rotate(ctx context.Context, presented string) (*services.TokenPair, error) {
	f.rotateCalls++
	if f.rotateErr != nil {
		return nil, f.rotateErr
	}
	return f.rotatePair, nil
}

func (f *fakeTokenManager) Logout(ctx context.Context, refreshToken string) error {
	f.logoutCalls++
	return nil
}

type fakeListingManager struct {
	listings []*models.Listing
}

func (f *fakeListingManager) List(ctx context.Context, limit, offset int) ([]*models.Listing, error) {
	return f.listings, nil
}

func (f *fakeListingManager) Create(ctx context.Context, ownerID, title, city string, pricePerNight int64) (*models.Listing, error) {
	l := &models.Listing{ID: "l1", OwnerID: ownerID, Title: title, City: city, PricePerNight: pricePerNight, CreatedAt: time.Now()}
	f.listings = append(f.listings, l)
	return l, nil
}

type fakeBlocklist struct {
	blocked map[string]bool
}

func (f *fakeBlocklist) MarkBlocked(ctx context.Context, userID string, ttl time.Duration) error {
	if f.blocked == nil {
		f.blocked = map[string]bool{}
	}
	f.blocked[userID] = true
	return nil
}

func (f *fakeBlocklist) IsBlocked(ctx context.Context, userID string) (bool, error) {
	return f.blocked[userID], nil
}

type fixture struct {
	srv      *Server
	users    *fakeUserManager
	tokens   *fakeTokenManager
	listings *fakeListingManager
	bl       *fakeBlocklist
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := &fakeUserManager{}
	tokens := &fakeTokenManager{}
	listings := &fakeListingManager{}
	bl := &fakeBlocklist{}
	logger := logging.NewDiscardLogger()
	srv := NewServer(":0", []byte(testSecret), users, tokens, listings, bl, logger)
	return &fixture{srv: srv, users: users, tokens: tokens, listings: listings, bl: bl}
}

func (fx *fixture) request(t *testing.T, method, path, body, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set(headerContentType, "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	fx.srv.Handler().ServeHTTP(rec, req)
	return rec
}

const headerContentType = "Content-Type"

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func accessToken(t *testing.T, userID, roleName string, validity time.Duration) string {
	t.Helper()
	tok, err := auth.IssueToken(userID, "role-"+roleName, roleName, auth.KindAccess, []byte(testSecret), validity)
	require.NoError(t, err)
	return tok
}

func TestLogin_ReturnsPair(t *testing.T) {
	fx := newFixture(t)
	fx.users.loginUser = &models.User{ID: "u1", Email: "a@b.c", RoleName: models.RoleGuest}
	fx.users.loginPair = &services.TokenPair{AccessToken: "A1", RefreshToken: "R1"}

	rec := fx.request(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.c","password":"pw"}`, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, "A1", resp.AccessToken)
	assert.Equal(t, "R1", resp.RefreshToken)
}

func TestLogin_BlockedAccount(t *testing.T) {
	fx := newFixture(t)
	fx.users.loginErr = common.ErrAccountBlocked

	rec := fx.request(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.c","password":"pw"}`, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, common.ReasonAccountBlocked, decodeError(t, rec))
}

func TestLogin_WrongCredentials(t *testing.T) {
	fx := newFixture(t)
	fx.users.loginErr = common.ErrorUnauthorized

	rec := fx.request(t, http.MethodPost, "/api/auth/login", `{"email":"a@b.c","password":"pw"}`, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, common.ReasonInvalidCredentials, decodeError(t, rec))
}

func TestRefresh_ReasonCodes(t *testing.T) {
	tests := []struct {
		name       string
		rotateErr  error
		wantReason string
	}{
		{"reuse", common.ErrRefreshReuse, common.ReasonRefreshReuse},
		{"expired", common.ErrRefreshTokenExpired, common.ReasonRefreshExpired},
		{"blocked", common.ErrAccountBlocked, common.ReasonAccountBlocked},
		{"garbage", common.ErrInvalidToken, common.ReasonInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.tokens.rotateErr = tt.rotateErr

			rec := fx.request(t, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"R1"}`, "")

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.wantReason, decodeError(t, rec))
		})
	}
}

func TestRefresh_Success(t *testing.T) {
	fx := newFixture(t)
	fx.tokens.rotatePair = &services.TokenPair{AccessToken: "A2", RefreshToken: "R2"}

	rec := fx.request(t, http.MethodPost, "/api/auth/refresh", `{"refresh_token":"R1"}`, "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp tokenPairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "A2", resp.AccessToken)
	assert.Equal(t, "R2", resp.RefreshToken)
}

func TestRefresh_EmptyToken(t *testing.T) {
	fx := newFixture(t)

	rec := fx.request(t, http.MethodPost, "/api/auth/refresh", `{}`, "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, common.ReasonInvalidToken, decodeError(t, rec))
	assert.Zero(t, fx.tokens.rotateCalls)
}

func TestLogout_AlwaysNoContent(t *testing.T) {
	fx := newFixture(t)

	rec := fx.request(t, http.MethodPost, "/api/auth/logout", `{"refresh_token":"whatever"}`, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = fx.request(t, http.MethodPost, "/api/auth/logout", "", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestProtected_MissingToken(t *testing.T) {
	fx := newFixture(t)

	rec := fx.request(t, http.MethodGet, "/api/listings", "", "")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, common.ReasonInvalidToken, decodeError(t, rec))
}

func TestProtected_ExpiredToken(t *testing.T) {
	fx := newFixture(t)
	expired := accessToken(t, "u1", models.RoleGuest, -time.Minute)

	rec := fx.request(t, http.MethodGet, "/api/listings", "", expired)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, common.ReasonAccessExpired, decodeError(t, rec))
}

func TestProtected_RefreshTokenRejected(t *testing.T) {
	fx := newFixture(t)
	refresh, err := auth.IssueToken("u1", "", "", auth.KindRefresh, []byte(testSecret), time.Hour)
	require.NoError(t, err)

	rec := fx.request(t, http.MethodGet, "/api/listings", "", refresh)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, common.ReasonInvalidToken, decodeError(t, rec))
}

func TestProtected_BlocklistedUser(t *testing.T) {
	fx := newFixture(t)
	fx.bl.blocked = map[string]bool{"u1": true}
	tok := accessToken(t, "u1", models.RoleGuest, time.Minute)

	rec := fx.request(t, http.MethodGet, "/api/listings", "", tok)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, common.ReasonAccountBlocked, decodeError(t, rec))
}

func TestListings_ListAndCreate(t *testing.T) {
	fx := newFixture(t)
	tok := accessToken(t, "u1", models.RoleHost, time.Minute)

	rec := fx.request(t, http.MethodPost, "/api/listings",
		`{"title":"Loft","city":"Riga","price_per_night":90}`, tok)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created listingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "u1", created.OwnerID)

	rec = fx.request(t, http.MethodGet, "/api/listings", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	var page []listingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page, 1)
	assert.Equal(t, "Loft", page[0].Title)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	fx := newFixture(t)
	fx.users.registerErr = fmt.Errorf("error creating user: %w", common.ErrDuplicateEmail)

	rec := fx.request(t, http.MethodPost, "/api/auth/register", `{"email":"taken@example.com","password":"pw"}`, "")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp validationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "already registered", resp.Fields["email"])
}

func TestCreateListing_Validation(t *testing.T) {
	fx := newFixture(t)
	tok := accessToken(t, "u1", models.RoleHost, time.Minute)

	rec := fx.request(t, http.MethodPost, "/api/listings", `{"title":"","city":"","price_per_night":0}`, tok)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp validationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "title")
	assert.Contains(t, resp.Fields, "city")
	assert.Contains(t, resp.Fields, "price_per_night")
}

func TestAdminBlock_RequiresAdminRole(t *testing.T) {
	fx := newFixture(t)

	guest := accessToken(t, "u1", models.RoleGuest, time.Minute)
	rec := fx.request(t, http.MethodPost, "/api/admin/users/u2/block", `{"reason":"spam"}`, guest)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, fx.users.blockedIDs)

	admin := accessToken(t, "a1", models.RoleAdmin, time.Minute)
	rec = fx.request(t, http.MethodPost, "/api/admin/users/u2/block", `{"reason":"spam"}`, admin)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"u2"}, fx.users.blockedIDs)
}
