package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"featureboard/internal/apperr"
)

// Key layout inside the shared Badger database:
//
//	meta/<bucket>/<key>  JSON Object
//	data/<bucket>/<key>  raw bytes
const (
	metaPrefix = "meta/"
	dataPrefix = "data/"
)

// Open opens the Badger database that backs every bucket. An empty path
// opens an in-memory database.
func Open(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open blob db: %w", err)
	}
	return db, nil
}

// BadgerStore is one bucket of the embedded object store.
type BadgerStore struct {
	db      *badger.DB
	bucket  string
	baseURL string
	signer  *Signer
	now     func() time.Time
}

func NewBadgerStore(db *badger.DB, bucket, baseURL string, signer *Signer) *BadgerStore {
	return &BadgerStore{
		db:      db,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		now:     time.Now,
	}
}

// WithClock replaces the time source; used by tests to age objects.
func (s *BadgerStore) WithClock(now func() time.Time) *BadgerStore {
	s.now = now
	return s
}

func (s *BadgerStore) Bucket() string { return s.bucket }

func (s *BadgerStore) metaKey(key string) []byte { return []byte(metaPrefix + s.bucket + "/" + key) }
func (s *BadgerStore) dataKey(key string) []byte { return []byte(dataPrefix + s.bucket + "/" + key) }

func (s *BadgerStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperr.Transport(err, "upload %s", key)
	}
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return "", apperr.Validation("invalid object key %q", key)
	}
	meta, err := json.Marshal(Object{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal object meta: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(s.dataKey(key), data); err != nil {
			return err
		}
		return txn.Set(s.metaKey(key), meta)
	})
	if err != nil {
		return "", apperr.Transport(err, "upload %s", key)
	}
	return key, nil
}

func (s *BadgerStore) Download(ctx context.Context, key string) ([]byte, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", apperr.Transport(err, "download %s", key)
	}
	var (
		data []byte
		obj  Object
	)
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.metaKey(key))
		if err != nil {
			return err
		}
		if err := item.Value(func(v []byte) error { return json.Unmarshal(v, &obj) }); err != nil {
			return err
		}
		item, err = txn.Get(s.dataKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, "", apperr.NotFound("object %s not found", key)
	}
	if err != nil {
		return nil, "", apperr.Transport(err, "download %s", key)
	}
	return data, obj.ContentType, nil
}

func (s *BadgerStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (SignedURL, error) {
	if err := ctx.Err(); err != nil {
		return SignedURL{}, apperr.Transport(err, "sign %s", key)
	}
	exp := s.now().Add(ttl).UTC()
	tok, err := s.signer.Sign(s.bucket, key, exp)
	if err != nil {
		return SignedURL{}, fmt.Errorf("sign url: %w", err)
	}
	return SignedURL{URL: s.PublicURL(key) + "?token=" + url.QueryEscape(tok), ExpiresAt: exp}, nil
}

func (s *BadgerStore) PublicURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.baseURL + "/blobs/" + s.bucket + "/" + strings.Join(parts, "/")
}

// Remove deletes keys in one transaction and reports which ones existed.
func (s *BadgerStore) Remove(ctx context.Context, keys []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Transport(err, "remove objects")
	}
	removed := make([]string, 0, len(keys))
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if _, err := txn.Get(s.metaKey(k)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			if err := txn.Delete(s.metaKey(k)); err != nil {
				return err
			}
			if err := txn.Delete(s.dataKey(k)); err != nil {
				return err
			}
			removed = append(removed, k)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Transport(err, "remove objects")
	}
	return removed, nil
}

func (s *BadgerStore) List(ctx context.Context, prefix string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Transport(err, "list objects")
	}
	var out []Object
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		p := s.metaKey(prefix)
		opts.Prefix = p
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var obj Object
			if err := it.Item().Value(func(v []byte) error { return json.Unmarshal(v, &obj) }); err != nil {
				return err
			}
			out = append(out, obj)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Transport(err, "list objects")
	}
	return out, nil
}
