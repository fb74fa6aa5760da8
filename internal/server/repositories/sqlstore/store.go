// Package sqlstore is the relational vault backend. It speaks PostgreSQL
// through the pgx stdlib driver and SQLite through modernc.org/sqlite, using
// the same queries rebound per dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/migrations"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Store implements repositories.Store over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect dbx.Dialect
	log     logging.Logger

	keys      *KeyRepository
	accounts  *AccountRepository
	passwords *PasswordRepository
}

var _ repositories.Store = (*Store)(nil)

// New wraps an already opened database.
func New(db *sql.DB, dialect dbx.Dialect, log logging.Logger) *Store {
	log = logging.OrNop(log).With("module", "sqlstore", "dialect", string(dialect))
	return &Store{
		db:        db,
		dialect:   dialect,
		log:       log,
		keys:      NewKeyRepository(db, dialect),
		accounts:  NewAccountRepository(db, dialect),
		passwords: NewPasswordRepository(db, dialect),
	}
}

// Open connects to the database named by dsn and checks it is reachable.
// For SQLite, dsn is a file path or a "file:" URI; a busy timeout and the
// textual time format are added when missing, and the pool is limited to one
// connection so writers never contend.
func Open(ctx context.Context, dialect dbx.Dialect, dsn string, log logging.Logger) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)

	switch dialect {
	case dbx.Postgres:
		db, err = sql.Open("pgx", dsn)
	case dbx.SQLite:
		db, err = sql.Open("sqlite", SQLiteDSN(dsn))
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	default:
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	if err != nil {
		return nil, repositories.Unavailable("open database", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, repositories.Unavailable("ping database", err)
	}

	return New(db, dialect, log), nil
}

// SQLiteDSN normalises a SQLite path into a modernc URI with the pragmas the
// store relies on.
func SQLiteDSN(dsn string) string {
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	params := []string{}
	if !strings.Contains(dsn, "busy_timeout") {
		params = append(params, "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(dsn, "_time_format") {
		params = append(params, "_time_format=sqlite")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations of the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	gooseDialect := "pgx"
	dir := "postgres"
	if s.dialect == dbx.SQLite {
		gooseDialect = "sqlite3"
		dir = "sqlite"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}

	if err := gooseUpContext(ctx, s.db, dir); err != nil {
		return fmt.Errorf("migrate %s: %w", s.dialect, err)
	}
	s.log.Info(ctx, "migrations applied")
	return nil
}

func (s *Store) Keys() repositories.KeyRepository           { return s.keys }
func (s *Store) Accounts() repositories.AccountRepository   { return s.accounts }
func (s *Store) Passwords() repositories.PasswordRepository { return s.passwords }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return repositories.Unavailable("ping database", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
