package sqlstore

import (
	"context"

	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
	"github.com/dmitrijs2005/gophvault/internal/timex"
	"github.com/google/uuid"
)

type PasswordRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewPasswordRepository(db dbx.DBTX, dialect dbx.Dialect) *PasswordRepository {
	return &PasswordRepository{db: db, dialect: dialect}
}

func (r *PasswordRepository) Upsert(ctx context.Context, rec *models.PasswordRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	query := dbx.Rebind(r.dialect,
		`INSERT INTO passwords (id, app_username, service, service_username, encrypted_password, last_rotated)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (app_username, service, service_username)
		 DO UPDATE SET encrypted_password = excluded.encrypted_password,
		               last_rotated = excluded.last_rotated`)

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.AppUsername, rec.Service, rec.ServiceUsername,
		rec.EncryptedPassword, timex.Normalize(rec.LastRotated))
	if err != nil {
		return repositories.Unavailable("upsert password", err)
	}
	return nil
}

// FindByApp loads every record of appUsername and filters on service in Go,
// so case folding is the same as in the other backends.
func (r *PasswordRepository) FindByApp(ctx context.Context, appUsername, query string) ([]models.PasswordRecord, error) {
	q := dbx.Rebind(r.dialect,
		`SELECT id, app_username, service, service_username, encrypted_password, last_rotated
		 FROM passwords
		 WHERE app_username = ?`)

	rows, err := r.db.QueryContext(ctx, q, appUsername)
	if err != nil {
		return nil, repositories.Unavailable("select passwords", err)
	}
	defer rows.Close()

	var recs []models.PasswordRecord
	for rows.Next() {
		var rec models.PasswordRecord
		if err := rows.Scan(&rec.ID, &rec.AppUsername, &rec.Service, &rec.ServiceUsername,
			&rec.EncryptedPassword, &rec.LastRotated); err != nil {
			return nil, repositories.Malformed("password row", err)
		}
		rec.LastRotated = timex.Normalize(rec.LastRotated)
		if err := rec.Validate(); err != nil {
			return nil, repositories.Malformed("password row "+rec.ID, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, repositories.Unavailable("iterate passwords", err)
	}

	return repositories.FilterAndSort(recs, query), nil
}
