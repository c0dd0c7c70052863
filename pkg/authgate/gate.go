// Package authgate runs user actions that need a signed-in user. An anonymous
// user's input is staged as a draft before the sign-in redirect and handed
// back once sign-in completes.
package authgate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"featureboard/internal/models"
	"featureboard/pkg/drafts"
)

const (
	// PendingSlot is the well-known draft key that names the staged action.
	PendingSlot     = "pending-action"
	pendingPrefix   = "pending-"
	DefaultDraftTTL = 30 * time.Minute
)

// Identity reports the current sign-in state. Resolving is true while the
// session is still being restored.
type Identity interface {
	Resolving() bool
	Principal() (models.Principal, bool)
}

// Navigator sends the user to sign-in and knows where they are now.
type Navigator interface {
	CurrentPath() string
	SignIn(returnPath, label string)
}

type Gate struct {
	identity Identity
	drafts   *drafts.Store
	nav      Navigator
	ttl      time.Duration
	newID    func() string
	log      zerolog.Logger
}

type Option func(*Gate)

func WithDraftTTL(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.ttl = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option { return func(g *Gate) { g.log = l } }

func New(identity Identity, store *drafts.Store, nav Navigator, opts ...Option) *Gate {
	g := &Gate{
		identity: identity,
		drafts:   store,
		nav:      nav,
		ttl:      DefaultDraftTTL,
		newID:    uuid.NewString,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Guard runs action when a user is signed in and returns its error. While
// identity is resolving it does nothing. Otherwise it stages snapshot (when
// non-nil), redirects to sign-in with label, and does not run action.
func (g *Gate) Guard(ctx context.Context, action func(context.Context) error, label string, snapshot any) error {
	if g.identity.Resolving() {
		return nil
	}
	if _, ok := g.identity.Principal(); ok {
		return action(ctx)
	}

	if snapshot != nil {
		key := pendingPrefix + g.newID()
		if err := g.drafts.Store(key, snapshot, g.ttl); err != nil {
			return fmt.Errorf("stage pending action: %w", err)
		}
		if err := g.drafts.Slot(PendingSlot).Set(key, g.ttl); err != nil {
			return fmt.Errorf("stage pending action: %w", err)
		}
		g.log.Debug().Str("draft", key).Str("label", label).Msg("staged action before sign-in")
	}
	g.nav.SignIn(g.nav.CurrentPath(), label)
	return nil
}

// Resume decodes the staged snapshot into out and clears it, so a second
// call reports false.
func (g *Gate) Resume(out any) (bool, error) {
	slot := g.drafts.Slot(PendingSlot)
	key, err := slot.Get()
	if err != nil {
		return false, err
	}
	if key == "" {
		return false, nil
	}
	found, err := g.drafts.Get(key, out)
	if cerr := g.drafts.Clear(key); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := slot.Clear(); cerr != nil && err == nil {
		err = cerr
	}
	return found && err == nil, err
}

// OnSignIn returns a sign-in completion callback that restores the staged
// snapshot into a fresh T and passes it to fn. Nothing is called when no
// snapshot is pending.
func OnSignIn[T any](g *Gate, fn func(T)) func() {
	return func() {
		var v T
		ok, err := g.Resume(&v)
		if err != nil {
			g.log.Warn().Err(err).Msg("resume pending action")
			return
		}
		if ok {
			fn(v)
		}
	}
}
