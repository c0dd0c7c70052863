// Package drafts persists short-lived client state in a local Badger
// database: form drafts staged across a sign-in redirect, the pending-action
// slot, and the signed-in user's vote set.
//
// Entries carry their own expiry and are checked against an injectable
// clock; an expired entry is deleted when read and reported as absent.
package drafts

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const (
	draftPrefix = "draft:"
	votesPrefix = "votes:"
)

type entry struct {
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

type Store struct {
	db  *badger.DB
	now func() time.Time
	own bool
}

type Option func(*Store)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// Open opens (or creates) a draft database at path; "" is in-memory.
func Open(path string, opts ...Option) (*Store, error) {
	o := badger.DefaultOptions(path)
	if path == "" {
		o = o.WithInMemory(true)
	}
	o.Logger = nil
	db, err := badger.Open(o)
	if err != nil {
		return nil, fmt.Errorf("open drafts db: %w", err)
	}
	s := New(db, opts...)
	s.own = true
	return s, nil
}

// New wraps an already open database. Close does not close db.
func New(db *badger.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Close() error {
	if !s.own {
		return nil
	}
	return s.db.Close()
}

// Store writes payload under key, replacing any previous value.
func (s *Store) Store(key string, payload any, ttl time.Duration) error {
	if key == "" {
		return errors.New("drafts: empty key")
	}
	if ttl <= 0 {
		return errors.New("drafts: ttl must be positive")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", key, err)
	}
	val, err := json.Marshal(entry{Payload: raw, ExpiresAt: s.now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(draftPrefix+key), val)
	})
}

// Get decodes the draft under key into out. It reports false when the draft
// is missing, expired or unreadable; expired and unreadable drafts are
// deleted in the same transaction that read them. A write that races the
// delete makes the transaction conflict and the read is retried.
func (s *Store) Get(key string, out any) (bool, error) {
	k := []byte(draftPrefix + key)
	var e entry
	var stale bool
	read := func(txn *badger.Txn) error {
		e, stale = entry{}, false
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		if err := item.Value(func(v []byte) error {
			stale = json.Unmarshal(v, &e) != nil || !s.now().Before(e.ExpiresAt)
			return nil
		}); err != nil {
			return err
		}
		if stale {
			return txn.Delete(k)
		}
		return nil
	}
	err := s.db.Update(read)
	for errors.Is(err, badger.ErrConflict) {
		err = s.db.Update(read)
	}
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read draft %s: %w", key, err)
	}
	if stale {
		return false, nil
	}
	if out != nil {
		if err := json.Unmarshal(e.Payload, out); err != nil {
			return false, fmt.Errorf("decode draft %s: %w", key, err)
		}
	}
	return true, nil
}

func (s *Store) Clear(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(draftPrefix + key))
	})
}

// SweepExpired deletes every expired or malformed draft and returns how many
// were removed.
func (s *Store) SweepExpired() (int, error) {
	now := s.now()
	var dead [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(draftPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var e entry
				if json.Unmarshal(v, &e) != nil || !now.Before(e.ExpiresAt) {
					dead = append(dead, item.KeyCopy(nil))
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan drafts: %w", err)
	}
	if len(dead) == 0 {
		return 0, nil
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, k := range dead {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired drafts: %w", err)
	}
	return len(dead), nil
}
