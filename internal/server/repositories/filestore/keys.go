package filestore

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
)

type KeyRepository struct {
	s *Store
}

func (r *KeyRepository) Get(ctx context.Context) ([]byte, error) {
	var key []byte
	err := r.s.withRead(ctx, func() error {
		var err error
		key, err = r.load()
		return err
	})
	return key, err
}

func (r *KeyRepository) CreateIfAbsent(ctx context.Context, key []byte) ([]byte, error) {
	var stored []byte
	err := r.s.withWrite(ctx, func() error {
		existing, err := r.load()
		if err == nil {
			stored = existing
			return nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		if err := filex.WriteFileAtomic(r.s.path(KeyFile), []byte(cryptox.EncodeKey(key)), filePerm); err != nil {
			return repositories.Unavailable("write "+KeyFile, err)
		}
		r.s.log.Info(ctx, "encryption key created")
		stored = key
		return nil
	})
	return stored, err
}

func (r *KeyRepository) load() ([]byte, error) {
	data, ok, err := filex.ReadFileIfExists(r.s.path(KeyFile))
	if err != nil {
		return nil, repositories.Unavailable("read "+KeyFile, err)
	}
	if !ok {
		return nil, common.ErrorNotFound
	}

	key, err := cryptox.DecodeKey(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, repositories.Malformed(KeyFile, err)
	}
	return key, nil
}
