package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dpavlenko/stayhub/internal/common"
	"github.com/dpavlenko/stayhub/internal/dbx"
	"github.com/dpavlenko/stayhub/internal/logging"
	"github.com/dpavlenko/stayhub/internal/server/auth"
	"github.com/dpavlenko/stayhub/internal/server/config"
	"github.com/dpavlenko/stayhub/internal/server/events"
	"github.com/dpavlenko/stayhub/internal/server/models"
	listingsrepo "github.com/dpavlenko/stayhub/internal/server/repositories/listings"
	refreshrepo "github.com/dpavlenko/stayhub/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dpavlenko/stayhub/internal/server/repositories/users"
)

// --- fakes shared by the service tests ---

type fakeRefreshRepo struct {
	rows       map[string]*models.RefreshToken
	created    []string
	deletedAll []string
	createErr  error
}

func newFakeRefreshRepo() *fakeRefreshRepo {
	return &fakeRefreshRepo{rows: map[string]*models.RefreshToken{}}
}

func (f *fakeRefreshRepo) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, token)
	f.rows[token] = &models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(validity),
		CreatedAt: time.Now(),
	}
	return nil
}

func (f *fakeRefreshRepo) Consume(ctx context.Context, token string) (*models.RefreshToken, error) {
	rec, ok := f.rows[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	delete(f.rows, token)
	return rec, nil
}

func (f *fakeRefreshRepo) Delete(ctx context.Context, token string) error {
	delete(f.rows, token)
	return nil
}

func (f *fakeRefreshRepo) DeleteAllForUser(ctx context.Context, userID string) error {
	f.deletedAll = append(f.deletedAll, userID)
	for tok, rec := range f.rows {
		if rec.UserID == userID {
			delete(f.rows, tok)
		}
	}
	return nil
}

func (f *fakeRefreshRepo) DeleteExpired(ctx context.Context) (int64, error) {
	var n int64
	for tok, rec := range f.rows {
		if rec.ExpiresAt.Before(time.Now()) {
			delete(f.rows, tok)
			n++
		}
	}
	return n, nil
}

type fakeUsersRepo struct {
	byID  map[string]*models.User
	byEml map[string]*models.User

	getErr  error
	blocked []string
}

func newFakeUsersRepo(users ...*models.User) *fakeUsersRepo {
	f := &fakeUsersRepo{byID: map[string]*models.User{}, byEml: map[string]*models.User{}}
	for _, u := range users {
		f.byID[u.ID] = u
		f.byEml[u.Email] = u
	}
	return f
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	u.ID = "u-" + u.Email
	f.byID[u.ID] = u
	f.byEml[u.Email] = u
	return u, nil
}

func (f *fakeUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, ok := f.byEml[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) SetBlocked(ctx context.Context, id string, blocked bool) error {
	f.blocked = append(f.blocked, id)
	if u, ok := f.byID[id]; ok {
		u.Blocked = blocked
	}
	return nil
}

type fakeRepoManager struct {
	r *fakeRefreshRepo
	u *fakeUsersRepo
}

func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository                 { return m.u }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshrepo.Repository      { return m.r }
func (m *fakeRepoManager) Listings(db dbx.DBTX) listingsrepo.Repository          { return nil }
func (m *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error   { return nil }

type fakeBlocklist struct {
	marked map[string]time.Duration
}

func newFakeBlocklist() *fakeBlocklist { return &fakeBlocklist{marked: map[string]time.Duration{}} }

func (b *fakeBlocklist) MarkBlocked(ctx context.Context, userID string, ttl time.Duration) error {
	b.marked[userID] = ttl
	return nil
}

func (b *fakeBlocklist) IsBlocked(ctx context.Context, userID string) (bool, error) {
	_, ok := b.marked[userID]
	return ok, nil
}

type fakePublisher struct {
	published []events.SessionTerminated
}

func (p *fakePublisher) SessionTerminated(ctx context.Context, ev events.SessionTerminated) error {
	p.published = append(p.published, ev)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

// --- helpers ---

const testSecret = "test-secret"

func testLogger() logging.Logger {
	return logging.NewDiscardLogger()
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    testSecret,
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenValidityDuration: 24 * time.Hour,
		BcryptCost:                   4, // cheapest legal cost, tests only
	}
}

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type tokenFixture struct {
	svc  *TokenService
	rm   *fakeRepoManager
	bl   *fakeBlocklist
	pub  *fakePublisher
	mock sqlmock.Sqlmock
	db   *sql.DB
}

func newTokenFixture(t *testing.T, users ...*models.User) *tokenFixture {
	t.Helper()
	db, mock := newSQLMockDB(t)
	t.Cleanup(func() { db.Close() })

	rm := &fakeRepoManager{r: newFakeRefreshRepo(), u: newFakeUsersRepo(users...)}
	bl := newFakeBlocklist()
	pub := &fakePublisher{}
	svc := NewTokenService(db, rm, bl, pub, testLogger(), testConfig())
	return &tokenFixture{svc: svc, rm: rm, bl: bl, pub: pub, mock: mock, db: db}
}

// --- tests ---

func TestIssue_PersistsRefreshRow(t *testing.T) {
	user := &models.User{ID: "u1", RoleID: "role-guest", RoleName: models.RoleGuest}
	fx := newTokenFixture(t, user)

	pair, err := fx.svc.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("empty pair: %+v", pair)
	}
	if len(fx.rm.r.created) != 1 || fx.rm.r.created[0] != pair.RefreshToken {
		t.Fatalf("refresh row not persisted: %v", fx.rm.r.created)
	}

	claims, err := auth.ParseToken(pair.AccessToken, auth.KindAccess, []byte(testSecret))
	if err != nil {
		t.Fatalf("access token does not verify: %v", err)
	}
	if claims.Subject != "u1" || claims.RoleName != models.RoleGuest {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRotate_Success(t *testing.T) {
	user := &models.User{ID: "u1", RoleID: "role-guest", RoleName: models.RoleGuest}
	fx := newTokenFixture(t, user)

	pair, err := fx.svc.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	next, err := fx.svc.Rotate(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate error: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("rotation returned the same refresh token")
	}
	if _, stillThere := fx.rm.r.rows[pair.RefreshToken]; stillThere {
		t.Fatalf("old refresh row survived rotation")
	}
	if err := fx.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotate_SecondUseIsReuse(t *testing.T) {
	user := &models.User{ID: "u1", RoleName: models.RoleGuest}
	fx := newTokenFixture(t, user)

	pair, err := fx.svc.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	if _, err := fx.svc.Rotate(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("first Rotate error: %v", err)
	}

	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()
	_, err = fx.svc.Rotate(context.Background(), pair.RefreshToken)
	if !errors.Is(err, common.ErrRefreshReuse) {
		t.Fatalf("want common.ErrRefreshReuse on second use, got %v", err)
	}
}

func TestRevokeAll_ThenRotateIsReuse(t *testing.T) {
	user := &models.User{ID: "u1", RoleName: models.RoleGuest}
	fx := newTokenFixture(t, user)

	pair, err := fx.svc.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if err := fx.svc.RevokeAll(context.Background(), "u1", "admin block"); err != nil {
		t.Fatalf("RevokeAll error: %v", err)
	}

	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()
	_, err = fx.svc.Rotate(context.Background(), pair.RefreshToken)
	if !errors.Is(err, common.ErrRefreshReuse) {
		t.Fatalf("want common.ErrRefreshReuse after revocation, got %v", err)
	}
}

func TestRotate_UnknownTokenIsReuse(t *testing.T) {
	fx := newTokenFixture(t)

	unknown, err := auth.IssueToken("ghost", "", "", auth.KindRefresh, []byte(testSecret), time.Hour)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err = fx.svc.Rotate(context.Background(), unknown)
	if !errors.Is(err, common.ErrRefreshReuse) {
		t.Fatalf("want common.ErrRefreshReuse, got %v", err)
	}
}

func TestRotate_ExpiredTokenIsSoft(t *testing.T) {
	fx := newTokenFixture(t)

	expired, err := auth.IssueToken("u1", "", "", auth.KindRefresh, []byte(testSecret), -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	// Rejected before the store is touched: no transaction expected.
	_, err = fx.svc.Rotate(context.Background(), expired)
	if !errors.Is(err, common.ErrRefreshTokenExpired) {
		t.Fatalf("want common.ErrRefreshTokenExpired, got %v", err)
	}
	if err := fx.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected db traffic: %v", err)
	}
}

func TestRotate_GarbageTokenIsInvalid(t *testing.T) {
	fx := newTokenFixture(t)

	_, err := fx.svc.Rotate(context.Background(), "not.a.jwt")
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("want common.ErrInvalidToken, got %v", err)
	}
}

func TestRotate_BlockedUser(t *testing.T) {
	user := &models.User{ID: "u1", RoleName: models.RoleGuest}
	fx := newTokenFixture(t, user)

	pair, err := fx.svc.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	user.Blocked = true

	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err = fx.svc.Rotate(context.Background(), pair.RefreshToken)
	if !errors.Is(err, common.ErrAccountBlocked) {
		t.Fatalf("want common.ErrAccountBlocked, got %v", err)
	}
}

func TestRotate_UserLookupFailureKeepsCause(t *testing.T) {
	user := &models.User{ID: "u1", RoleName: models.RoleGuest}
	fx := newTokenFixture(t, user)

	pair, err := fx.svc.Issue(context.Background(), user)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	cause := errors.New("connection reset")
	fx.rm.u.getErr = cause

	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err = fx.svc.Rotate(context.Background(), pair.RefreshToken)
	if !errors.Is(err, cause) {
		t.Fatalf("want error wrapping the lookup failure, got %v", err)
	}
}

func TestRevokeAll_DeletesMarksAndPublishes(t *testing.T) {
	user := &models.User{ID: "u1", RoleName: models.RoleGuest}
	fx := newTokenFixture(t, user)

	if _, err := fx.svc.Issue(context.Background(), user); err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if err := fx.svc.RevokeAll(context.Background(), "u1", "admin block"); err != nil {
		t.Fatalf("RevokeAll error: %v", err)
	}

	if len(fx.rm.r.deletedAll) != 1 || fx.rm.r.deletedAll[0] != "u1" {
		t.Fatalf("refresh rows not revoked: %v", fx.rm.r.deletedAll)
	}
	if ttl, ok := fx.bl.marked["u1"]; !ok || ttl != testConfig().AccessTokenValidityDuration {
		t.Fatalf("blocklist not marked for access validity, got %v ok=%v", ttl, ok)
	}
	if len(fx.pub.published) != 1 || fx.pub.published[0].UserID != "u1" || fx.pub.published[0].Reason != "admin block" {
		t.Fatalf("termination event not published: %+v", fx.pub.published)
	}
}

func TestLogout_UnknownTokenIsFine(t *testing.T) {
	fx := newTokenFixture(t)

	if err := fx.svc.Logout(context.Background(), "never-issued"); err != nil {
		t.Fatalf("Logout must be idempotent, got %v", err)
	}
	if err := fx.svc.Logout(context.Background(), ""); err != nil {
		t.Fatalf("Logout with empty token must be a no-op, got %v", err)
	}
}
