package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
	"github.com/dmitrijs2005/gophvault/internal/timex"
	"github.com/jackc/pgx/v5/pgconn"
)

type AccountRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewAccountRepository(db dbx.DBTX, dialect dbx.Dialect) *AccountRepository {
	return &AccountRepository{db: db, dialect: dialect}
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}

	query := dbx.Rebind(r.dialect,
		`INSERT INTO users (username, totp_secret, registered_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (username) DO NOTHING`)

	res, err := r.db.ExecContext(ctx, query,
		account.Username, account.TOTPSecret, timex.Normalize(account.RegisteredAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", common.ErrDuplicateUser, account.Username)
		}
		return repositories.Unavailable("insert user", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return repositories.Unavailable("insert user", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", common.ErrDuplicateUser, account.Username)
	}
	return nil
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := dbx.Rebind(r.dialect,
		`SELECT username, totp_secret, registered_at FROM users
		 WHERE username = ?`)

	a := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&a.Username, &a.TOTPSecret, &a.RegisteredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, repositories.Unavailable("select user", err)
	}
	a.RegisteredAt = timex.Normalize(a.RegisteredAt)

	if err := a.Validate(); err != nil {
		return nil, repositories.Malformed("user "+username, err)
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
