// Package suggestions holds the client-side collection of tickets and the
// pure views derived from it.
package suggestions

import (
	"context"
	"sync"

	"featureboard/internal/models"
	"featureboard/pkg/client"
)

// loadPageSize is the page size used by Load; it matches the server maximum.
const loadPageSize = 100

type EventKind string

const (
	EventReplaced EventKind = "replaced"
	EventUpdated  EventKind = "updated"
	EventAdded    EventKind = "added"
	EventRemoved  EventKind = "removed"
)

type Event struct {
	Kind EventKind
	ID   string
}

// Lister is satisfied by *client.Client.
type Lister interface {
	ListTickets(ctx context.Context, p client.ListParams) (models.TicketPage, error)
}

// Store is the ticket collection in insertion order. All methods are safe
// for concurrent use and hand out copies.
type Store struct {
	mu    sync.RWMutex
	items []models.Ticket
	index map[string]int

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

func NewStore() *Store {
	return &Store{index: map[string]int{}, subs: map[int]func(Event){}}
}

// Subscribe registers fn for change events and returns its cancel func.
// fn runs after the change is visible, outside the store lock.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) publish(e Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Get(id string) (models.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Ticket{}, false
	}
	return s.items[i].Clone(), true
}

// All returns a copy of every ticket in insertion order.
func (s *Store) All() []models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Ticket, len(s.items))
	for i, t := range s.items {
		out[i] = t.Clone()
	}
	return out
}

// Replace swaps the whole collection.
func (s *Store) Replace(all []models.Ticket) {
	s.mu.Lock()
	s.items = make([]models.Ticket, 0, len(all))
	s.index = make(map[string]int, len(all))
	for _, t := range all {
		if _, dup := s.index[t.ID]; dup {
			continue
		}
		s.index[t.ID] = len(s.items)
		s.items = append(s.items, t.Clone())
	}
	s.mu.Unlock()
	s.publish(Event{Kind: EventReplaced})
}

// Put replaces an existing ticket in place and reports whether it existed.
func (s *Store) Put(t models.Ticket) bool {
	s.mu.Lock()
	i, ok := s.index[t.ID]
	if ok {
		s.items[i] = t.Clone()
	}
	s.mu.Unlock()
	if ok {
		s.publish(Event{Kind: EventUpdated, ID: t.ID})
	}
	return ok
}

// Upsert replaces t in place or appends it.
func (s *Store) Upsert(t models.Ticket) {
	s.mu.Lock()
	kind := EventUpdated
	if i, ok := s.index[t.ID]; ok {
		s.items[i] = t.Clone()
	} else {
		kind = EventAdded
		s.index[t.ID] = len(s.items)
		s.items = append(s.items, t.Clone())
	}
	s.mu.Unlock()
	s.publish(Event{Kind: kind, ID: t.ID})
}

// Remove deletes id and returns its former index, or -1.
func (s *Store) Remove(id string) int {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return -1
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j].ID] = j
	}
	s.mu.Unlock()
	s.publish(Event{Kind: EventRemoved, ID: id})
	return i
}

// View filters and sorts a copy of the collection.
func (s *Store) View(search string, mode SortMode) []models.Ticket {
	return Sort(Filter(s.All(), search), mode)
}

// Load fetches every page from the server and replaces the collection.
func (s *Store) Load(ctx context.Context, l Lister) error {
	var all []models.Ticket
	for page := 1; ; page++ {
		p, err := l.ListTickets(ctx, client.ListParams{Page: page, Limit: loadPageSize, SortBy: "createdAt", SortOrder: "asc"})
		if err != nil {
			return err
		}
		all = append(all, p.Items...)
		if len(p.Items) == 0 || len(all) >= p.Total {
			break
		}
	}
	s.Replace(all)
	return nil
}
