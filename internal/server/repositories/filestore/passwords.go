package filestore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/filex"
	"github.com/dmitrijs2005/gophvault/internal/server/models"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
	"github.com/dmitrijs2005/gophvault/internal/timex"
)

var csvHeader = []string{"app_username", "service", "service_username", "encrypted_password", "last_rotated"}

type PasswordRepository struct {
	s *Store
}

// Upsert rewrites passwords.csv with the record replaced in place, or
// appended when its triple is new.
func (r *PasswordRepository) Upsert(ctx context.Context, rec *models.PasswordRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	return r.s.withWrite(ctx, func() error {
		recs, err := r.load()
		if err != nil {
			return err
		}

		updated := *rec
		updated.ID = ""
		updated.LastRotated = timex.Normalize(rec.LastRotated)

		key := rec.Key()
		i := slices.IndexFunc(recs, func(x models.PasswordRecord) bool { return x.Key() == key })
		if i >= 0 {
			recs[i] = updated
		} else {
			recs = append(recs, updated)
		}

		data, err := encodeCSV(recs)
		if err != nil {
			return fmt.Errorf("encode %s: %w", PasswordsFile, err)
		}
		if err := filex.WriteFileAtomic(r.s.path(PasswordsFile), data, filePerm); err != nil {
			return repositories.Unavailable("write "+PasswordsFile, err)
		}
		return nil
	})
}

func (r *PasswordRepository) FindByApp(ctx context.Context, appUsername, query string) ([]models.PasswordRecord, error) {
	var out []models.PasswordRecord
	err := r.s.withRead(ctx, func() error {
		recs, err := r.load()
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if rec.AppUsername == appUsername {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repositories.FilterAndSort(out, query), nil
}

func (r *PasswordRepository) load() ([]models.PasswordRecord, error) {
	data, ok, err := filex.ReadFileIfExists(r.s.path(PasswordsFile))
	if err != nil {
		return nil, repositories.Unavailable("read "+PasswordsFile, err)
	}
	if !ok || len(data) == 0 {
		return nil, nil
	}
	return decodeCSV(data)
}

func decodeCSV(data []byte) ([]models.PasswordRecord, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = len(csvHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, repositories.Malformed(PasswordsFile+" header", err)
	}
	if !slices.Equal(header, csvHeader) {
		return nil, repositories.Malformed(PasswordsFile+" header", fmt.Errorf("unexpected columns %v", header))
	}

	var recs []models.PasswordRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, repositories.Malformed(fmt.Sprintf("%s line %d", PasswordsFile, line), err)
		}

		at, err := time.Parse(time.RFC3339Nano, row[4])
		if err != nil {
			return nil, repositories.Malformed(fmt.Sprintf("%s line %d", PasswordsFile, line), err)
		}
		rec := models.PasswordRecord{
			AppUsername:       row[0],
			Service:           row[1],
			ServiceUsername:   row[2],
			EncryptedPassword: row[3],
			LastRotated:       timex.Normalize(at),
		}
		if err := rec.Validate(); err != nil {
			return nil, repositories.Malformed(fmt.Sprintf("%s line %d", PasswordsFile, line), err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func encodeCSV(recs []models.PasswordRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, rec := range recs {
		row := []string{
			rec.AppUsername,
			rec.Service,
			rec.ServiceUsername,
			rec.EncryptedPassword,
			rec.LastRotated.UTC().Format(time.RFC3339Nano),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
