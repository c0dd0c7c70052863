package drafts

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Slot is a well-known draft key that holds the key of another draft, such
// as the pending action staged before a sign-in redirect.
type Slot struct {
	store *Store
	name  string
}

func (s *Store) Slot(name string) Slot { return Slot{store: s, name: name} }

func (sl Slot) Set(draftKey string, ttl time.Duration) error {
	return sl.store.Store(sl.name, draftKey, ttl)
}

// Get returns the referenced draft key, or "" when the slot is empty.
func (sl Slot) Get() (string, error) {
	var key string
	ok, err := sl.store.Get(sl.name, &key)
	if err != nil || !ok {
		return "", err
	}
	return key, nil
}

func (sl Slot) Clear() error { return sl.store.Clear(sl.name) }

// VoteSet is the persisted set of ticket ids a user has voted on. It does
// not expire.
type VoteSet struct {
	store *Store
	key   []byte
}

func (s *Store) VoteSet(userID string) *VoteSet {
	return &VoteSet{store: s, key: []byte(votesPrefix + userID)}
}

func (v *VoteSet) load(txn *badger.Txn) (map[string]bool, error) {
	set := map[string]bool{}
	item, err := txn.Get(v.key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return set, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	err = item.Value(func(b []byte) error { return json.Unmarshal(b, &ids) })
	if err != nil {
		// An unreadable set is rebuilt from the server on next sync.
		return set, nil
	}
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (v *VoteSet) save(txn *badger.Txn, set map[string]bool) error {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	b, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return txn.Set(v.key, b)
}

// IDs returns the voted ticket ids in sorted order.
func (v *VoteSet) IDs() ([]string, error) {
	var ids []string
	err := v.store.db.View(func(txn *badger.Txn) error {
		set, err := v.load(txn)
		for id := range set {
			ids = append(ids, id)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read vote set: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (v *VoteSet) Has(ticketID string) (bool, error) {
	var has bool
	err := v.store.db.View(func(txn *badger.Txn) error {
		set, err := v.load(txn)
		has = set[ticketID]
		return err
	})
	if err != nil {
		return false, fmt.Errorf("read vote set: %w", err)
	}
	return has, nil
}

// Set records or drops ticketID.
func (v *VoteSet) Set(ticketID string, voted bool) error {
	err := v.store.db.Update(func(txn *badger.Txn) error {
		set, err := v.load(txn)
		if err != nil {
			return err
		}
		if voted {
			set[ticketID] = true
		} else {
			delete(set, ticketID)
		}
		return v.save(txn, set)
	})
	if err != nil {
		return fmt.Errorf("write vote set: %w", err)
	}
	return nil
}

// Replace overwrites the set, e.g. after fetching /api/votes/mine.
func (v *VoteSet) Replace(ids []string) error {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	err := v.store.db.Update(func(txn *badger.Txn) error { return v.save(txn, set) })
	if err != nil {
		return fmt.Errorf("write vote set: %w", err)
	}
	return nil
}
