package optimistic

type laneKey struct {
	id   string
	kind Kind
}

// lane orders the requests of one (ticket, kind) pair.
type lane struct {
	issued  uint64
	applied uint64
	pending []*flight // ascending seq
}

type flight struct {
	seq uint64
	// rollback is the state to restore if this request fails and is the
	// newest. It starts as the issuance snapshot and may be replaced by an
	// older request's outcome. origin is the seq of the request that
	// produced it, 0 for a snapshot.
	rollback any
	origin   uint64
}

// All lane methods run with c.mu held.

func (c *Coordinator) issue(k laneKey, snapshot any) *flight {
	l := c.lanes[k]
	if l == nil {
		l = &lane{}
		c.lanes[k] = l
	}
	l.issued++
	f := &flight{seq: l.issued, rollback: snapshot}
	l.pending = append(l.pending, f)
	return f
}

func (c *Coordinator) inFlight(id string, kind Kind) bool {
	l := c.lanes[laneKey{id, kind}]
	return l != nil && len(l.pending) > 0
}

// settle removes f from its lane and returns the lane, whether f is stale,
// and the next newer pending request (nil when f is the newest).
func (c *Coordinator) settle(k laneKey, f *flight) (l *lane, stale bool, next *flight) {
	l = c.lanes[k]
	for i, p := range l.pending {
		if p == f {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			break
		}
	}
	for _, p := range l.pending {
		if p.seq > f.seq {
			next = p
			break
		}
	}
	return l, f.seq < l.applied, next
}

func (c *Coordinator) done(k laneKey, l *lane) {
	if len(l.pending) == 0 {
		delete(c.lanes, k)
	}
}

// handOff makes state the rollback target of next unless next already
// holds an outcome from a newer request.
func handOff(next *flight, state any, origin uint64) {
	if origin >= next.origin {
		next.rollback = state
		next.origin = origin
	}
}

// succeeded applies server state unless it is stale or superseded by a
// newer in-flight request, in which case it becomes that request's
// rollback target. Either way older responses are stale from then on.
func (c *Coordinator) succeeded(k laneKey, f *flight, server any, apply func(any)) {
	l, stale, next := c.settle(k, f)
	defer c.done(k, l)
	switch {
	case stale:
		c.log.Debug().Str("ticket_id", k.id).Str("kind", string(k.kind)).Uint64("seq", f.seq).Msg("dropped stale response")
		return
	case next != nil:
		handOff(next, server, f.seq)
	default:
		apply(server)
	}
	l.applied = f.seq
}

// failed restores f's rollback target when f is the newest request, and
// otherwise hands it to the next pending request.
func (c *Coordinator) failed(k laneKey, f *flight, apply func(any)) {
	l, stale, next := c.settle(k, f)
	defer c.done(k, l)
	switch {
	case stale:
	case next != nil:
		handOff(next, f.rollback, f.origin)
	default:
		apply(f.rollback)
		if f.origin > l.applied {
			l.applied = f.origin
		}
	}
}
