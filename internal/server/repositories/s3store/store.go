// Package s3store keeps the vault in an S3-compatible bucket, one JSON
// object per key, account and password record:
//
//	<prefix>encryption_key
//	<prefix>accounts/<username>.json
//	<prefix>passwords/<app_username>/<sha256(service, service_username)>.json
//
// The key and accounts are created with a conditional put (If-None-Match: *),
// which makes first-writer-wins atomic across any number of servers. A
// password record always maps to the same object, so an upsert is a single
// atomic overwrite.
package s3store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories"
)

var errPreconditionFailed = errors.New("object already exists")

type Store struct {
	api    ObjectAPI
	bucket string
	prefix string
	log    logging.Logger

	keys      *KeyRepository
	accounts  *AccountRepository
	passwords *PasswordRepository
}

var _ repositories.Store = (*Store)(nil)

// New returns a store over bucket. A non-empty prefix namespaces every
// object, so several vaults can share one bucket.
func New(api ObjectAPI, bucket, prefix string, log logging.Logger) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	s := &Store{
		api:    api,
		bucket: bucket,
		prefix: prefix,
		log:    logging.OrNop(log).With("module", "s3store", "bucket", bucket),
	}
	s.keys = &KeyRepository{s: s}
	s.accounts = &AccountRepository{s: s}
	s.passwords = &PasswordRepository{s: s}
	return s
}

func (s *Store) Keys() repositories.KeyRepository           { return s.keys }
func (s *Store) Accounts() repositories.AccountRepository   { return s.accounts }
func (s *Store) Passwords() repositories.PasswordRepository { return s.passwords }

func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return repositories.Unavailable("head bucket "+s.bucket, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) keyObject() string {
	return s.prefix + "encryption_key"
}

func (s *Store) accountObject(username string) string {
	return s.prefix + "accounts/" + url.PathEscape(username) + ".json"
}

func (s *Store) passwordsPrefix(appUsername string) string {
	return s.prefix + "passwords/" + url.PathEscape(appUsername) + "/"
}

func (s *Store) passwordObject(appUsername, service, serviceUsername string) string {
	h := sha256.New()
	h.Write([]byte(service))
	h.Write([]byte{0})
	h.Write([]byte(serviceUsername))
	return s.passwordsPrefix(appUsername) + hex.EncodeToString(h.Sum(nil)) + ".json"
}

// get reads an object; found is false when it does not exist.
func (s *Store) get(ctx context.Context, key string) (data []byte, found bool, err error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, repositories.Unavailable("get "+key, err)
	}
	defer out.Body.Close()

	data, err = io.ReadAll(out.Body)
	if err != nil {
		return nil, false, repositories.Unavailable("read "+key, err)
	}
	return data, true, nil
}

// put writes an object. With ifAbsent the write only happens when no object
// exists yet, otherwise errPreconditionFailed is returned.
func (s *Store) put(ctx context.Context, key string, data []byte, contentType string, ifAbsent bool) error {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	}
	if ifAbsent {
		in.IfNoneMatch = aws.String("*")
	}

	if _, err := s.api.PutObject(ctx, in); err != nil {
		if ifAbsent && isPreconditionFailed(err) {
			return errPreconditionFailed
		}
		return repositories.Unavailable("put "+key, err)
	}
	return nil
}

// list returns every object key under prefix.
func (s *Store) list(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, repositories.Unavailable("list "+prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any, ifAbsent bool) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.put(ctx, key, data, "application/json", ifAbsent)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey"
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
