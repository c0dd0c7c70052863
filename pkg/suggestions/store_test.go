package suggestions

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"featureboard/internal/models"
	"featureboard/pkg/client"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func tk(id, title string, upvotes int, age time.Duration) models.Ticket {
	return models.Ticket{ID: id, Title: title, Upvotes: upvotes, CreatedAt: t0.Add(-age), Status: models.StatusQueued}
}

func ids(items []models.Ticket) string {
	s := ""
	for _, t := range items {
		s += t.ID
	}
	return s
}

func TestSortModes(t *testing.T) {
	items := []models.Ticket{
		tk("a", "export CSV", 3, 3*time.Hour),
		tk("b", "Dark mode", 5, 2*time.Hour),
		tk("c", "api keys", 3, time.Hour),
		tk("d", "Bulk edit", 5, 4*time.Hour),
	}
	tests := []struct {
		mode SortMode
		want string
	}{
		{SortTrending, "bdac"},
		{SortNewest, "cbad"},
		{SortOldest, "dabc"},
		{SortAlphabetical, "cdba"},
		{SortMode("bogus"), "abcd"},
	}
	for _, tt := range tests {
		if got := ids(Sort(items, tt.mode)); got != tt.want {
			t.Errorf("%s: got %s want %s", tt.mode, got, tt.want)
		}
	}
	if ids(items) != "abcd" {
		t.Error("Sort modified its input")
	}
}

func TestTrendingIsStableOnInsertionOrder(t *testing.T) {
	var items []models.Ticket
	for i := 0; i < 20; i++ {
		items = append(items, tk(strconv.Itoa(i%10), "t", 1, 0))
	}
	got := Sort(items, SortTrending)
	for i := range items {
		if got[i].ID != items[i].ID {
			t.Fatalf("tie order changed at %d", i)
		}
	}
}

func TestFilter(t *testing.T) {
	items := []models.Ticket{
		tk("a", "Dark mode", 0, 0),
		{ID: "b", Title: "Other", Description: "make it DARKER"},
		tk("c", "Export", 0, 0),
	}
	tests := []struct {
		search, want string
	}{
		{"dark", "ab"},
		{"  ", "abc"},
		{"", "abc"},
		{"xyz", ""},
	}
	for _, tt := range tests {
		if got := ids(Filter(items, tt.search)); got != tt.want {
			t.Errorf("%q: got %q want %q", tt.search, got, tt.want)
		}
	}
}

func TestStoreMutationsAndEvents(t *testing.T) {
	s := NewStore()
	var mu sync.Mutex
	var events []Event
	cancel := s.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
		// Reading inside a callback must not deadlock.
		s.Len()
	})

	s.Replace([]models.Ticket{tk("a", "A", 0, 0), tk("b", "B", 0, 0), tk("a", "dup", 0, 0)})
	if s.Len() != 2 {
		t.Fatalf("Len = %d", s.Len())
	}
	if s.Put(tk("zz", "Z", 0, 0)) {
		t.Error("Put of missing id reported true")
	}
	s.Upsert(tk("c", "C", 0, 0))
	s.Upsert(tk("a", "A2", 1, 0))
	if i := s.Remove("b"); i != 1 {
		t.Errorf("Remove index = %d", i)
	}
	if i := s.Remove("b"); i != -1 {
		t.Errorf("second Remove = %d", i)
	}
	if got := ids(s.All()); got != "ac" {
		t.Errorf("All = %s", got)
	}
	a, _ := s.Get("a")
	if a.Title != "A2" {
		t.Errorf("a = %+v", a)
	}
	c, ok := s.Get("c")
	if !ok || c.Title != "C" {
		t.Errorf("c index broken after remove: %+v", c)
	}

	cancel()
	s.Upsert(tk("d", "D", 0, 0))

	mu.Lock()
	defer mu.Unlock()
	want := []EventKind{EventReplaced, EventAdded, EventUpdated, EventRemoved}
	if len(events) != len(want) {
		t.Fatalf("events = %+v", events)
	}
	for i, k := range want {
		if events[i].Kind != k {
			t.Errorf("event %d = %s want %s", i, events[i].Kind, k)
		}
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	orig := tk("a", "A", 0, 0)
	orig.Comments = []models.Comment{{ID: "c1", Content: "hi"}}
	s.Replace([]models.Ticket{orig})
	got, _ := s.Get("a")
	got.Comments[0].Content = "changed"
	again, _ := s.Get("a")
	if again.Comments[0].Content != "hi" {
		t.Error("Get leaked internal state")
	}
}

func TestView(t *testing.T) {
	s := NewStore()
	s.Replace([]models.Ticket{tk("a", "Dark mode", 1, 0), tk("b", "Dark sidebar", 4, 0), tk("c", "Export", 9, 0)})
	if got := ids(s.View("dark", SortTrending)); got != "ba" {
		t.Errorf("View = %s", got)
	}
}

type pagedLister struct {
	total int
	calls []client.ListParams
	fail  bool
}

func (p *pagedLister) ListTickets(_ context.Context, lp client.ListParams) (models.TicketPage, error) {
	p.calls = append(p.calls, lp)
	if p.fail {
		return models.TicketPage{}, errors.New("down")
	}
	start := (lp.Page - 1) * lp.Limit
	var items []models.Ticket
	for i := start; i < start+lp.Limit && i < p.total; i++ {
		items = append(items, tk(strconv.Itoa(i), "t", 0, 0))
	}
	return models.TicketPage{Items: items, Total: p.total, Page: lp.Page, Limit: lp.Limit}, nil
}

func TestLoadFetchesEveryPage(t *testing.T) {
	s := NewStore()
	l := &pagedLister{total: 250}
	if err := s.Load(context.Background(), l); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 250 || len(l.calls) != 3 {
		t.Fatalf("Len=%d calls=%d", s.Len(), len(l.calls))
	}

	s.Replace([]models.Ticket{tk("x", "X", 0, 0)})
	if err := s.Load(context.Background(), &pagedLister{fail: true}); err == nil {
		t.Fatal("expected error")
	}
	if s.Len() != 1 {
		t.Error("failed Load changed the collection")
	}
}
