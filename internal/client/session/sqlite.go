package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dpavlenko/stayhub/internal/client/migrations"
	"github.com/dpavlenko/stayhub/internal/dbx"
)

// SQLiteStore implements Store using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteStore struct {
	db dbx.DBTX
}

// NewSQLiteStore returns a new SQLiteStore bound to the given DBTX.
func NewSQLiteStore(db dbx.DBTX) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// RunMigrations applies the embedded sqlite migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if needed) the local session database and
// returns a migrated store.
func InitDatabase(ctx context.Context, dsn string) (*SQLiteStore, *sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}

	return NewSQLiteStore(db), db, nil
}

func (r *SQLiteStore) Save(ctx context.Context, s *Session) error {
	query := `INSERT INTO session (id, user_id, access_token, refresh_token)
			values (1, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET user_id = excluded.user_id,
				access_token = excluded.access_token,
				refresh_token = excluded.refresh_token,
				saved_at = CURRENT_TIMESTAMP
	`
	_, err := r.db.ExecContext(ctx, query, s.UserID, s.AccessToken, s.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *SQLiteStore) Load(ctx context.Context) (*Session, bool, error) {
	query := `select user_id, access_token, refresh_token from session where id=1`
	row := r.db.QueryRowContext(ctx, query)

	s := &Session{}
	if err := row.Scan(&s.UserID, &s.AccessToken, &s.RefreshToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to load session: %w", err)
	}
	return s, true, nil
}

func (r *SQLiteStore) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `delete from session where id=1`)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
