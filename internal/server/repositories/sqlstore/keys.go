package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
)

type KeyRepository struct {
	db      *sql.DB
	dialect dbx.Dialect
}

func NewKeyRepository(db *sql.DB, dialect dbx.Dialect) *KeyRepository {
	return &KeyRepository{db: db, dialect: dialect}
}

func (r *KeyRepository) Get(ctx context.Context) ([]byte, error) {
	return r.get(ctx, r.db)
}

func (r *KeyRepository) get(ctx context.Context, db dbx.DBTX) ([]byte, error) {
	query := dbx.Rebind(r.dialect,
		`SELECT key FROM encryption_keys
		 WHERE id = ?`)

	var encoded string
	err := db.QueryRowContext(ctx, query, common.EncryptionKeyID).Scan(&encoded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, repositories.Unavailable("select encryption key", err)
	}

	key, err := cryptox.DecodeKey(encoded)
	if err != nil {
		return nil, repositories.Malformed("encryption key", err)
	}
	return key, nil
}

// CreateIfAbsent inserts the key unless the row exists and then reads back
// whatever row is stored, all in one transaction.
func (r *KeyRepository) CreateIfAbsent(ctx context.Context, key []byte) ([]byte, error) {
	insert := dbx.Rebind(r.dialect,
		`INSERT INTO encryption_keys (id, key)
		 VALUES (?, ?)
		 ON CONFLICT (id) DO NOTHING`)

	var stored []byte
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, insert, common.EncryptionKeyID, cryptox.EncodeKey(key)); err != nil {
			return repositories.Unavailable("insert encryption key", err)
		}
		var err error
		stored, err = r.get(ctx, tx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create encryption key: %w", err)
	}
	return stored, nil
}
