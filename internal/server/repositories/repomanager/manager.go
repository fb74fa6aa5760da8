// Package repomanager opens the storage backend selected in the server
// configuration and prepares it for use (directories, migrations, bucket
// reachability).
package repomanager

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/filestore"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/s3store"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/sqlstore"
)

// SQLiteFileName is used inside the data dir when the sqlite backend is
// selected without a file DSN of its own.
const SQLiteFileName = "vault.db"

// Seams for tests.
var (
	openSQL = sqlstore.Open

	migrateSQL = func(ctx context.Context, s *sqlstore.Store) error {
		return s.Migrate(ctx)
	}

	newObjectAPI = func(ctx context.Context, o s3store.ClientOptions) (s3store.ObjectAPI, error) {
		return s3store.NewClient(ctx, o)
	}
)

// New returns the store configured by cfg.Storage. SQL backends are migrated
// to the latest schema before New returns.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (repositories.Store, error) {
	log = logging.OrNop(log)

	switch cfg.Storage {
	case config.StorageFile:
		s, err := filestore.Open(cfg.DataDir, log)
		if err != nil {
			return nil, err
		}
		return s, nil

	case config.StorageSQLite:
		dsn, err := sqlitePath(cfg)
		if err != nil {
			return nil, err
		}
		return openMigrated(ctx, dbx.SQLite, dsn, log)

	case config.StoragePostgres:
		return openMigrated(ctx, dbx.Postgres, cfg.DatabaseDSN, log)

	case config.StorageS3:
		api, err := newObjectAPI(ctx, s3store.ClientOptions{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			BaseEndpoint: cfg.S3BaseEndpoint,
			UsePathStyle: cfg.S3UsePathStyle,
		})
		if err != nil {
			return nil, err
		}
		s := s3store.New(api, cfg.S3Bucket, cfg.S3Prefix, log)
		if err := s.Ping(ctx); err != nil {
			return nil, err
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

func openMigrated(ctx context.Context, dialect dbx.Dialect, dsn string, log logging.Logger) (repositories.Store, error) {
	s, err := openSQL(ctx, dialect, dsn, log)
	if err != nil {
		return nil, err
	}
	if err := migrateSQL(ctx, s); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// sqlitePath keeps an explicit file DSN and otherwise places the database in
// the data dir. A PostgreSQL URL left over from the defaults is not a file.
func sqlitePath(cfg *config.Config) (string, error) {
	dsn := cfg.DatabaseDSN
	if dsn != "" && !strings.Contains(dsn, "://") {
		return dsn, nil
	}
	dir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SQLiteFileName), nil
}
