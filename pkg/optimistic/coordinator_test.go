package optimistic

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"featureboard/internal/apperr"
	"featureboard/internal/models"
	"featureboard/pkg/client"
	"featureboard/pkg/drafts"
	"featureboard/pkg/suggestions"
)

// call is one server request parked until the test releases it.
type call struct {
	kind    Kind
	id      string
	proceed chan error
}

// fakeAPI keeps authoritative server state. With hold set, every mutating
// request waits on its call so the test controls server order.
type fakeAPI struct {
	mu      sync.Mutex
	tickets map[string]models.Ticket
	order   []string
	voted   map[string]bool
	hold    bool
	fail    error
	calls   chan *call
	nCalls  int
}

func newFakeAPI(ts ...models.Ticket) *fakeAPI {
	f := &fakeAPI{tickets: map[string]models.Ticket{}, voted: map[string]bool{}, calls: make(chan *call, 16)}
	for _, t := range ts {
		f.tickets[t.ID] = t
		f.order = append(f.order, t.ID)
	}
	return f
}

func (f *fakeAPI) wait(kind Kind, id string) error {
	f.mu.Lock()
	f.nCalls++
	hold, fail := f.hold, f.fail
	f.mu.Unlock()
	if fail != nil {
		return fail
	}
	if !hold {
		return nil
	}
	c := &call{kind: kind, id: id, proceed: make(chan error)}
	f.calls <- c
	return <-c.proceed
}

func (f *fakeAPI) Vote(_ context.Context, id string) (models.VoteResult, error) {
	if err := f.wait(KindVote, id); err != nil {
		return models.VoteResult{}, apperr.Transport(err, "vote")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tickets[id]
	res := models.VoteResult{Action: models.VoteAdded, Delta: 1}
	if f.voted[id] {
		res = models.VoteResult{Action: models.VoteRemoved, Delta: -1}
		delete(f.voted, id)
	} else {
		f.voted[id] = true
	}
	t.Upvotes += res.Delta
	f.tickets[id] = t
	res.Upvotes = t.Upvotes
	return res, nil
}

func (f *fakeAPI) MyVotes(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id := range f.voted {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeAPI) update(kind Kind, id string, fn func(*models.Ticket)) (*models.Ticket, error) {
	if err := f.wait(kind, id); err != nil {
		return nil, apperr.Transport(err, "%s", kind)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tickets[id]
	fn(&t)
	f.tickets[id] = t
	out := t.Clone()
	out.Comments = nil
	return &out, nil
}

func (f *fakeAPI) SetStatus(_ context.Context, id string, st models.Status) (*models.Ticket, error) {
	return f.update(KindStatus, id, func(t *models.Ticket) { t.Status = st })
}

func (f *fakeAPI) SetVisibility(_ context.Context, id string, hidden bool) (*models.Ticket, error) {
	return f.update(KindVisibility, id, func(t *models.Ticket) { t.Hidden = hidden })
}

func (f *fakeAPI) DeleteTicket(_ context.Context, id string) error {
	if err := f.wait(KindDelete, id); err != nil {
		return apperr.Transport(err, "delete")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tickets, id)
	return nil
}

func (f *fakeAPI) ListTickets(context.Context, client.ListParams) (models.TicketPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []models.Ticket
	for _, id := range f.order {
		if t, ok := f.tickets[id]; ok {
			items = append(items, t)
		}
	}
	return models.TicketPage{Items: items, Total: len(items), Page: 1, Limit: 100}, nil
}

func (f *fakeAPI) calledTimes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nCalls
}

var errDown = errors.New("connection refused")

func ticket(id string, upvotes int) models.Ticket {
	return models.Ticket{
		ID: id, Title: "Dark mode", Status: models.StatusQueued, Upvotes: upvotes,
		CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Comments:  []models.Comment{{ID: "c1", TicketID: id, Content: "+1", Author: "Alice"}},
	}
}

func setup(t *testing.T, api *fakeAPI) (*Coordinator, *suggestions.Store, *drafts.VoteSet) {
	t.Helper()
	ds, err := drafts.Open("")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ds.Close() })
	vs := ds.VoteSet("u1")

	store := suggestions.NewStore()
	if err := store.Load(context.Background(), api); err != nil {
		t.Fatal(err)
	}
	c, err := New(store, api, WithVoteSet(vs))
	if err != nil {
		t.Fatal(err)
	}
	return c, store, vs
}

// start runs fn in a goroutine and waits until its server call is parked.
func start(t *testing.T, api *fakeAPI, fn func() error) (*call, <-chan error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case c := <-api.calls:
		return c, done
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the server")
		return nil, nil
	}
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("mutation did not finish")
		return nil
	}
}

func TestToggleVoteTwiceIsIdentity(t *testing.T) {
	api := newFakeAPI(ticket("t1", 3))
	c, store, vs := setup(t, api)
	ctx := context.Background()

	if err := c.ToggleVote(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Get("t1")
	if got.Upvotes != 4 || !c.Voted("t1") {
		t.Fatalf("after first toggle: upvotes=%d voted=%v", got.Upvotes, c.Voted("t1"))
	}
	if has, _ := vs.Has("t1"); !has {
		t.Error("membership not persisted")
	}

	if err := c.ToggleVote(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	got, _ = store.Get("t1")
	if got.Upvotes != 3 || c.Voted("t1") {
		t.Fatalf("after second toggle: upvotes=%d voted=%v", got.Upvotes, c.Voted("t1"))
	}
	if api.tickets["t1"].Upvotes != 3 {
		t.Errorf("server upvotes = %d", api.tickets["t1"].Upvotes)
	}
}

func TestVoteRollbackIsExact(t *testing.T) {
	api := newFakeAPI(ticket("t1", 3))
	c, store, vs := setup(t, api)
	before, _ := store.Get("t1")
	api.fail = errDown

	err := c.ToggleVote(context.Background(), "t1")
	var mf *MutationFailed
	if !errors.As(err, &mf) || mf.Kind != KindVote || mf.EntityID != "t1" || !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("err = %v", err)
	}
	after, _ := store.Get("t1")
	if !reflect.DeepEqual(before, after) || c.Voted("t1") {
		t.Errorf("state not restored:\nbefore %+v\nafter  %+v", before, after)
	}
	if has, _ := vs.Has("t1"); has {
		t.Error("persisted membership not restored")
	}
}

func TestStatusRollbackIsExact(t *testing.T) {
	api := newFakeAPI(ticket("t1", 0))
	c, store, _ := setup(t, api)
	before, _ := store.Get("t1")
	api.fail = errDown

	if err := c.ChangeStatus(context.Background(), "t1", "Completed"); err == nil {
		t.Fatal("expected error")
	}
	after, _ := store.Get("t1")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("before %+v\nafter  %+v", before, after)
	}
}

func TestInvalidStatusNeverPublishes(t *testing.T) {
	api := newFakeAPI(ticket("t1", 0))
	c, store, _ := setup(t, api)
	events := 0
	store.Subscribe(func(suggestions.Event) { events++ })

	err := c.ChangeStatus(context.Background(), "t1", "Done")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if events != 0 || api.calledTimes() != 0 {
		t.Errorf("events=%d calls=%d", events, api.calledTimes())
	}
}

func TestStatusReconcileKeepsLocalComments(t *testing.T) {
	api := newFakeAPI(ticket("t1", 0))
	c, store, _ := setup(t, api)
	if err := c.ChangeStatus(context.Background(), "t1", "InProgress"); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Get("t1")
	if got.Status != models.StatusInProgress || len(got.Comments) != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestStaleResponseIsDropped(t *testing.T) {
	api := newFakeAPI(ticket("t1", 0))
	c, store, _ := setup(t, api)
	api.hold = true
	ctx := context.Background()

	c1, d1 := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "InProgress") })
	c2, d2 := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "Completed") })

	// The later request lands first, then the earlier one.
	c2.proceed <- nil
	if err := wait(t, d2); err != nil {
		t.Fatal(err)
	}
	c1.proceed <- nil
	if err := wait(t, d1); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Get("t1")
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %s, stale response applied", got.Status)
	}
}

func TestOlderSuccessDoesNotClobberNewerOptimisticState(t *testing.T) {
	api := newFakeAPI(ticket("t1", 0))
	c, store, _ := setup(t, api)
	api.hold = true
	ctx := context.Background()

	c1, d1 := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "InProgress") })
	c2, d2 := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "Completed") })

	c1.proceed <- nil
	if err := wait(t, d1); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Get("t1"); got.Status != models.StatusCompleted {
		t.Fatalf("older response overwrote newer optimistic state: %s", got.Status)
	}

	// The newer request fails: roll back to what the server confirmed for
	// the older one.
	c2.proceed <- errDown
	if err := wait(t, d2); err == nil {
		t.Fatal("expected error")
	}
	if got, _ := store.Get("t1"); got.Status != models.StatusInProgress {
		t.Errorf("status = %s, want InProgress", got.Status)
	}
}

func TestFailureHandsSnapshotToNewerRequest(t *testing.T) {
	api := newFakeAPI(ticket("t1", 0))
	c, store, _ := setup(t, api)
	api.hold = true
	ctx := context.Background()

	c1, d1 := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "InProgress") })
	c2, d2 := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "Completed") })

	c1.proceed <- errDown
	if err := wait(t, d1); err == nil {
		t.Fatal("expected error")
	}
	if got, _ := store.Get("t1"); got.Status != models.StatusCompleted {
		t.Fatalf("older failure clobbered newer optimistic state: %s", got.Status)
	}

	c2.proceed <- errDown
	wait(t, d2) //nolint:errcheck
	if got, _ := store.Get("t1"); got.Status != models.StatusQueued {
		t.Errorf("status = %s, want the original Queued", got.Status)
	}
}

func TestNewerOutcomeStaysRollbackTarget(t *testing.T) {
	api := newFakeAPI(ticket("t1", 0))
	c, store, _ := setup(t, api)
	api.hold = true
	ctx := context.Background()

	ca, da := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "InProgress") })
	cb, db := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "Completed") })
	cc, dc := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "Queued") })

	// B answers before A while C is still pending; then C fails.
	cb.proceed <- nil
	if err := wait(t, db); err != nil {
		t.Fatal(err)
	}
	ca.proceed <- nil
	if err := wait(t, da); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Get("t1"); got.Status != models.StatusQueued {
		t.Fatalf("optimistic state lost while C in flight: %s", got.Status)
	}
	cc.proceed <- errDown
	if err := wait(t, dc); err == nil {
		t.Fatal("expected error")
	}
	if got, _ := store.Get("t1"); got.Status != models.StatusCompleted {
		t.Errorf("status = %s, want B's Completed", got.Status)
	}
}

func TestFailedNewestBlocksOlderLateSuccess(t *testing.T) {
	api := newFakeAPI(ticket("t1", 0))
	c, store, _ := setup(t, api)
	api.hold = true
	ctx := context.Background()

	ca, da := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "InProgress") })
	cb, db := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "Completed") })
	cc, dc := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "Queued") })

	cb.proceed <- nil
	wait(t, db) //nolint:errcheck
	cc.proceed <- errDown
	wait(t, dc) //nolint:errcheck
	if got, _ := store.Get("t1"); got.Status != models.StatusCompleted {
		t.Fatalf("status = %s after C failed, want Completed", got.Status)
	}

	// A is older than the restored outcome and must not replace it.
	ca.proceed <- nil
	wait(t, da) //nolint:errcheck
	if got, _ := store.Get("t1"); got.Status != models.StatusCompleted {
		t.Errorf("status = %s, older response applied", got.Status)
	}
}

func TestRapidVoteTogglesReconcile(t *testing.T) {
	api := newFakeAPI(ticket("t1", 3))
	c, store, _ := setup(t, api)
	api.hold = true
	ctx := context.Background()

	c1, d1 := start(t, api, func() error { return c.ToggleVote(ctx, "t1") })
	c2, d2 := start(t, api, func() error { return c.ToggleVote(ctx, "t1") })
	if got, _ := store.Get("t1"); got.Upvotes != 3 || c.Voted("t1") {
		t.Fatalf("optimistic state = %d/%v", got.Upvotes, c.Voted("t1"))
	}

	c1.proceed <- nil
	wait(t, d1) //nolint:errcheck
	if got, _ := store.Get("t1"); got.Upvotes != 3 || c.Voted("t1") {
		t.Fatalf("after first response = %d/%v", got.Upvotes, c.Voted("t1"))
	}
	c2.proceed <- nil
	wait(t, d2) //nolint:errcheck
	if got, _ := store.Get("t1"); got.Upvotes != 3 || c.Voted("t1") {
		t.Errorf("final = %d/%v", got.Upvotes, c.Voted("t1"))
	}
}

func TestLanesAreIndependent(t *testing.T) {
	api := newFakeAPI(ticket("t1", 0))
	c, store, _ := setup(t, api)
	api.hold = true
	ctx := context.Background()

	cv, dv := start(t, api, func() error { return c.SetVisibility(ctx, "t1", true) })
	cs, ds := start(t, api, func() error { return c.ChangeStatus(ctx, "t1", "Completed") })

	// Status lands while the hide is still in flight; the local hide stays.
	cs.proceed <- nil
	wait(t, ds) //nolint:errcheck
	if got, _ := store.Get("t1"); !got.Hidden || got.Status != models.StatusCompleted {
		t.Fatalf("got %+v", got)
	}
	cv.proceed <- errDown
	wait(t, dv) //nolint:errcheck
	if got, _ := store.Get("t1"); got.Hidden || got.Status != models.StatusCompleted {
		t.Errorf("visibility rollback touched status: %+v", got)
	}
}

func TestToggleVisibility(t *testing.T) {
	api := newFakeAPI(ticket("t1", 0))
	c, store, _ := setup(t, api)
	if err := c.ToggleVisibility(context.Background(), "t1"); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.Get("t1"); !got.Hidden {
		t.Error("not hidden")
	}
}

func TestDeleteFailureReloads(t *testing.T) {
	api := newFakeAPI(ticket("t1", 0), ticket("t2", 0))
	c, store, _ := setup(t, api)
	api.fail = errDown

	if err := c.Delete(context.Background(), "t1"); !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := store.Get("t1"); !ok || store.Len() != 2 {
		t.Errorf("collection not reloaded: len=%d", store.Len())
	}

	api.fail = nil
	if err := c.Delete(context.Background(), "t1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Get("t1"); ok {
		t.Error("deleted ticket still present")
	}
	if err := c.Delete(context.Background(), "t1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete = %v", err)
	}
}

func TestSyncVotesAndPersistedSeed(t *testing.T) {
	api := newFakeAPI(ticket("t1", 1), ticket("t2", 0))
	api.voted["t1"] = true
	c, _, vs := setup(t, api)
	if err := c.SyncVotes(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !c.Voted("t1") || c.Voted("t2") {
		t.Fatal("membership not synced")
	}

	// A new coordinator over the same vote set starts with the saved state.
	c2, err := New(suggestions.NewStore(), api, WithVoteSet(vs))
	if err != nil {
		t.Fatal(err)
	}
	if !c2.Voted("t1") {
		t.Error("membership not restored from vote set")
	}
}
