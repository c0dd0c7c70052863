// Package optimistic applies ticket mutations locally before the server
// confirms them, then reconciles with the server answer or rolls back.
//
// Every mutation follows the same steps: snapshot, local delta, publish,
// server call, then reconcile or roll back. Requests are numbered per
// (ticket, kind). A response is dropped when a later request of the same
// lane has already been applied or handed off. While newer requests are in
// flight, a settled request does not touch the visible state; its outcome
// becomes the rollback target of the next pending request instead, unless
// that target already came from a newer request.
package optimistic

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"featureboard/internal/apperr"
	"featureboard/internal/models"
	"featureboard/pkg/client"
	"featureboard/pkg/drafts"
	"featureboard/pkg/suggestions"
)

type Kind string

const (
	KindVote       Kind = "vote"
	KindStatus     Kind = "status"
	KindVisibility Kind = "visibility"
	KindDelete     Kind = "delete"
)

// MutationFailed is returned for every mutation that did not take effect.
// The local state has been rolled back (or reloaded) by the time it is
// returned.
type MutationFailed struct {
	Kind     Kind
	EntityID string
	Err      error
}

func (e *MutationFailed) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.EntityID, e.Err)
}

func (e *MutationFailed) Unwrap() error { return e.Err }

// API is the server side of the mutations; *client.Client satisfies it.
type API interface {
	suggestions.Lister
	Vote(ctx context.Context, ticketID string) (models.VoteResult, error)
	MyVotes(ctx context.Context) ([]string, error)
	SetStatus(ctx context.Context, id string, status models.Status) (*models.Ticket, error)
	SetVisibility(ctx context.Context, id string, hidden bool) (*models.Ticket, error)
	DeleteTicket(ctx context.Context, id string) error
}

var _ API = (*client.Client)(nil)

type Coordinator struct {
	mu    sync.Mutex
	store *suggestions.Store
	api   API
	votes *drafts.VoteSet
	voted map[string]bool
	lanes map[laneKey]*lane
	log   zerolog.Logger
}

type Option func(*Coordinator)

// WithVoteSet persists vote membership and seeds it from what was saved.
func WithVoteSet(vs *drafts.VoteSet) Option { return func(c *Coordinator) { c.votes = vs } }

func WithLogger(l zerolog.Logger) Option { return func(c *Coordinator) { c.log = l } }

// New builds a coordinator over store. Store subscribers run while the
// coordinator lock is held and must not call back into the coordinator
// synchronously.
func New(store *suggestions.Store, api API, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		store: store,
		api:   api,
		voted: map[string]bool{},
		lanes: map[laneKey]*lane{},
		log:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.votes != nil {
		ids, err := c.votes.IDs()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			c.voted[id] = true
		}
	}
	return c, nil
}

// Voted reports whether the current user has voted on id.
func (c *Coordinator) Voted(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voted[id]
}

// SyncVotes replaces the local vote membership with the server's.
func (c *Coordinator) SyncVotes(ctx context.Context) error {
	ids, err := c.api.MyVotes(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voted = make(map[string]bool, len(ids))
	for _, id := range ids {
		c.voted[id] = true
	}
	if c.votes != nil {
		return c.votes.Replace(ids)
	}
	return nil
}

// ---- votes ----

type voteState struct {
	Upvotes int
	Voted   bool
}

// ToggleVote flips the user's vote: ±1 on the count and membership flipped,
// then reconciled to the server's count and action.
func (c *Coordinator) ToggleVote(ctx context.Context, id string) error {
	k := laneKey{id, KindVote}
	c.mu.Lock()
	t, ok := c.store.Get(id)
	if !ok {
		c.mu.Unlock()
		return &MutationFailed{KindVote, id, apperr.NotFound("ticket not found")}
	}
	snap := voteState{Upvotes: t.Upvotes, Voted: c.voted[id]}
	next := voteState{Upvotes: snap.Upvotes + 1, Voted: true}
	if snap.Voted {
		next = voteState{Upvotes: snap.Upvotes - 1, Voted: false}
	}
	c.applyVote(id, next)
	f := c.issue(k, snap)
	c.mu.Unlock()

	res, err := c.api.Vote(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	apply := func(st any) { c.applyVote(id, st.(voteState)) }
	if err != nil {
		c.failed(k, f, apply)
		return &MutationFailed{KindVote, id, err}
	}
	c.succeeded(k, f, voteState{Upvotes: res.Upvotes, Voted: res.Action == models.VoteAdded}, apply)
	return nil
}

func (c *Coordinator) applyVote(id string, st voteState) {
	if t, ok := c.store.Get(id); ok && t.Upvotes != st.Upvotes {
		t.Upvotes = st.Upvotes
		c.store.Put(t)
	}
	if st.Voted {
		c.voted[id] = true
	} else {
		delete(c.voted, id)
	}
	if c.votes != nil {
		if err := c.votes.Set(id, st.Voted); err != nil {
			c.log.Warn().Err(err).Str("ticket_id", id).Msg("persist vote membership")
		}
	}
}

// ---- status / visibility ----

// ChangeStatus sets a ticket's status. An unknown status fails before any
// local change or server call.
func (c *Coordinator) ChangeStatus(ctx context.Context, id, status string) error {
	st, ok := models.ParseStatus(status)
	if !ok {
		return &MutationFailed{KindStatus, id, apperr.Validation("invalid status %q", status)}
	}
	return c.mutateTicket(ctx, id, KindStatus,
		func(t *models.Ticket) { t.Status = st },
		func(ctx context.Context) (*models.Ticket, error) { return c.api.SetStatus(ctx, id, st) })
}

func (c *Coordinator) SetVisibility(ctx context.Context, id string, hidden bool) error {
	return c.mutateTicket(ctx, id, KindVisibility,
		func(t *models.Ticket) { t.Hidden = hidden },
		func(ctx context.Context) (*models.Ticket, error) { return c.api.SetVisibility(ctx, id, hidden) })
}

// ToggleVisibility flips hidden based on the current local value.
func (c *Coordinator) ToggleVisibility(ctx context.Context, id string) error {
	t, ok := c.store.Get(id)
	if !ok {
		return &MutationFailed{KindVisibility, id, apperr.NotFound("ticket not found")}
	}
	return c.SetVisibility(ctx, id, !t.Hidden)
}

func (c *Coordinator) mutateTicket(
	ctx context.Context,
	id string,
	kind Kind,
	delta func(*models.Ticket),
	call func(context.Context) (*models.Ticket, error),
) error {
	k := laneKey{id, kind}
	c.mu.Lock()
	t, ok := c.store.Get(id)
	if !ok {
		c.mu.Unlock()
		return &MutationFailed{kind, id, apperr.NotFound("ticket not found")}
	}
	snap := t.Clone()
	delta(&t)
	c.store.Put(t)
	f := c.issue(k, snap)
	c.mu.Unlock()

	srv, err := call(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed(k, f, func(st any) { c.restoreField(kind, st.(models.Ticket)) })
		return &MutationFailed{kind, id, err}
	}
	c.succeeded(k, f, srv.Clone(), func(st any) { c.applyServer(kind, st.(models.Ticket)) })
	return nil
}

// restoreField rolls back only the field kind owns.
func (c *Coordinator) restoreField(kind Kind, snap models.Ticket) {
	t, ok := c.store.Get(snap.ID)
	if !ok {
		return
	}
	switch kind {
	case KindStatus:
		t.Status = snap.Status
	case KindVisibility:
		t.Hidden = snap.Hidden
	}
	c.store.Put(t)
}

// applyServer replaces the ticket with the server representation. Fields
// owned by other lanes that still have requests in flight keep their local
// optimistic value, and local comments survive a comment-less answer.
func (c *Coordinator) applyServer(kind Kind, srv models.Ticket) {
	cur, ok := c.store.Get(srv.ID)
	if !ok {
		return
	}
	if len(srv.Comments) == 0 {
		srv.Comments = cur.Comments
	}
	if kind != KindStatus && c.inFlight(srv.ID, KindStatus) {
		srv.Status = cur.Status
	}
	if kind != KindVisibility && c.inFlight(srv.ID, KindVisibility) {
		srv.Hidden = cur.Hidden
	}
	if c.inFlight(srv.ID, KindVote) {
		srv.Upvotes = cur.Upvotes
	}
	c.store.Put(srv)
}

// ---- delete ----

// Delete removes the ticket locally, then on the server. If the server
// refuses, the whole collection is reloaded.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	if c.store.Remove(id) < 0 {
		c.mu.Unlock()
		return &MutationFailed{KindDelete, id, apperr.NotFound("ticket not found")}
	}
	c.mu.Unlock()

	if err := c.api.DeleteTicket(ctx, id); err != nil {
		if rerr := c.store.Load(ctx, c.api); rerr != nil {
			c.log.Error().Err(rerr).Str("ticket_id", id).Msg("reload after failed delete")
		}
		return &MutationFailed{KindDelete, id, err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.voted[id] {
		delete(c.voted, id)
		if c.votes != nil {
			if err := c.votes.Set(id, false); err != nil {
				c.log.Warn().Err(err).Str("ticket_id", id).Msg("persist vote membership")
			}
		}
	}
	return nil
}
