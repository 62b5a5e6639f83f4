package idcache

import "fmt"

// Keyed is the minimum capability the identity map needs from an entry:
// a primary id, once assigned. Envelope and ChildEnvelope both satisfy it.
type Keyed interface {
	comparable
	ID() ID
}

// DuplicateIdError signals an invariant violation: two entries for the
// same kind claiming the same initialized id. A well-behaved Store adapter
// never causes this; seeing it means the store misbehaved (e.g. returned
// an id already handed out).
type DuplicateIdError struct {
	Kind string
	ID   ID
}

func (e *DuplicateIdError) Error() string {
	return fmt.Sprintf("idcache: duplicate id %d for kind %q", e.ID, e.Kind)
}

// Map is the per-kind identity map: an id-indexed index of live entries,
// each reachable by at least one external Handle. E is the concrete entry
// type for this kind (*Envelope[S] for root kinds, *ChildEnvelope[S, PE]
// for child kinds).
//
// Map holds no "bookkeeping" strong reference of its own; byID and pending
// are plain indexes, and refs tracks external holders only. An entry is
// erased the moment its external holder count reaches zero (see Handle.Close).
type Map[E Keyed] struct {
	kind    string
	byID    map[ID]E
	pending []E
	refs    map[E]int32
}

// NewMap creates an empty identity map for one entity kind. kind is used
// only for error messages.
func NewMap[E Keyed](kind string) *Map[E] {
	return &Map[E]{
		kind: kind,
		byID: make(map[ID]E),
		refs: make(map[E]int32),
	}
}

// Find looks up an entry by its already-initialized id. It never matches
// a pending (id == 0) entry — id 0 is never a valid lookup key.
func (m *Map[E]) Find(id ID) (E, bool) {
	if id == Uninitialized {
		var zero E
		return zero, false
	}
	e, ok := m.byID[id]
	return e, ok
}

// Intern adds a brand-new entry to the map (pending list if its id is not
// yet assigned, byID directly otherwise) and returns a handle to it. It is
// the caller's job to ensure e was never interned before.
func (m *Map[E]) Intern(e E) (*Handle[E], error) {
	id := e.ID()
	if id == Uninitialized {
		m.pending = append(m.pending, e)
	} else {
		if _, dup := m.byID[id]; dup {
			return nil, &DuplicateIdError{Kind: m.kind, ID: id}
		}
		m.byID[id] = e
	}
	return m.acquireLocked(e), nil
}

// Acquire returns a new handle to an entry already present in the map,
// incrementing its external-holder count. Used for cache hits.
func (m *Map[E]) Acquire(e E) *Handle[E] {
	return m.acquireLocked(e)
}

func (m *Map[E]) acquireLocked(e E) *Handle[E] {
	m.refs[e]++
	return &Handle[E]{entry: e, owner: m}
}

// Promote moves a pending (id == 0 at Intern time) entry into byID once
// the store has assigned it a real id via e's own SetID. It must be called
// exactly once per entry, after SetID succeeds. On a duplicate id the entry
// stays in pending, untouched, so the resident entry keeps its slot and the
// failed entry still unwinds cleanly through Handle.Close.
func (m *Map[E]) Promote(e E) error {
	id := e.ID()
	if _, dup := m.byID[id]; dup {
		return &DuplicateIdError{Kind: m.kind, ID: id}
	}
	for i, p := range m.pending {
		if p == e {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
	m.byID[id] = e
	return nil
}

// Discard drops an entry that was interned but must never become visible
// (the store rejected its insert). It removes the entry and any ref-count
// bookkeeping unconditionally, independent of the external-holder count.
func (m *Map[E]) Discard(e E) {
	m.removeFromIndexes(e)
	delete(m.refs, e)
	releaseParentIfChild(e)
}

// erase is called by Handle.Close when an entry's external-holder count
// drops to zero.
func (m *Map[E]) erase(e E) {
	m.removeFromIndexes(e)
	delete(m.refs, e)
	releaseParentIfChild(e)
}

// parentReleaser is implemented by *ChildEnvelope[S, PE]; root *Envelope[S]
// entries don't implement it, so the type assertion below is a no-op for
// them. This is how a child entry's own hold on its parent handle gets
// released when the child entry is itself evicted.
type parentReleaser interface {
	releaseParent()
}

func releaseParentIfChild[E Keyed](e E) {
	if pr, ok := any(e).(parentReleaser); ok {
		pr.releaseParent()
	}
}

// removeFromIndexes drops e from whichever index holds it. The byID slot is
// only cleared when it actually holds e: an entry whose Promote was rejected
// carries an initialized id while a different entry owns the slot, and that
// resident entry must not be evicted on the loser's behalf. Such an entry is
// still in pending, so the pending scan runs as the fallback.
func (m *Map[E]) removeFromIndexes(e E) {
	id := e.ID()
	if id != Uninitialized {
		if cur, ok := m.byID[id]; ok && cur == e {
			delete(m.byID, id)
			return
		}
	}
	for i, p := range m.pending {
		if p == e {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
}

// Len reports the number of initialized-id entries currently live in the
// map (pending, not-yet-persisted entries are not counted). Exposed for
// tests and diagnostics, not part of the cache's operational surface.
func (m *Map[E]) Len() int { return len(m.byID) }
