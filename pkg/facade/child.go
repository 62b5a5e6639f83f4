package facade

import (
	"context"

	"github.com/ha1tch/pantrycache/pkg/idcache"
	"github.com/ha1tch/pantrycache/pkg/store"
)

// ChildEngine hosts the identity map and store routing for one child
// entity kind. It resolves its parent through a ParentResolver instead of
// holding a concrete parent type, so a ChildEngine can sit under a
// RootEngine (Description under Category) or under another ChildEngine
// (Instance under Description) without duplicating any logic.
type ChildEngine[S any, PE idcache.Keyed] struct {
	codec  ChildCodec[S, PE]
	store  store.Store
	parent ParentResolver[PE]
	m      *idcache.Map[*idcache.ChildEnvelope[S, PE]]
}

// NewChildEngine constructs an engine for one child kind, resolving its
// parent through resolver (a RootEngine or ChildEngine for the declared
// parent kind) on every miss.
func NewChildEngine[S any, PE idcache.Keyed](codec ChildCodec[S, PE], st store.Store, resolver ParentResolver[PE]) *ChildEngine[S, PE] {
	return &ChildEngine[S, PE]{
		codec:  codec,
		store:  st,
		parent: resolver,
		m:      idcache.NewMap[*idcache.ChildEnvelope[S, PE]](codec.Kind),
	}
}

// Kind returns the entity kind name this engine was built for.
func (e *ChildEngine[S, PE]) Kind() string { return e.codec.Kind }

// Len reports how many initialized entries are currently cached.
func (e *ChildEngine[S, PE]) Len() int { return e.m.Len() }

// Create constructs a new child entity under parent, interns it, and
// asks the store for a real id. parent is cloned so the new entry owns an
// independent handle to it — the caller's own parent handle keeps its own
// lifecycle, and the child's hold on the parent persists even if the
// caller later closes its copy. On any failure after interning, the
// entry (and its cloned parent handle, via Map's parent-release hook) is
// evicted before the error propagates.
func (e *ChildEngine[S, PE]) Create(ctx context.Context, parent *idcache.Handle[PE], schema S) (*idcache.Handle[*idcache.ChildEnvelope[S, PE]], error) {
	ownParent := parent.Clone()
	env := idcache.NewChildEnvelope(ownParent, schema)

	h, err := e.m.Intern(env)
	if err != nil {
		ownParent.Close()
		return nil, err
	}

	data, err := e.codec.Encode(*env.Schema())
	if err != nil {
		h.Close()
		return nil, err
	}

	id, err := e.store.Insert(ctx, e.codec.Kind, store.Row{
		Kind:  e.codec.Kind,
		FKID:  env.FKID(),
		HasFK: true,
		Data:  data,
	})
	if err != nil {
		h.Close()
		return nil, err
	}

	if err := env.SetID(id); err != nil {
		h.Close()
		return nil, err
	}
	if err := e.m.Promote(env); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// Retrieve looks up id in the identity map first; on a hit with a valid
// entry, it returns a new handle to the same entry. On a miss, it fetches
// the row from the store and recursively retrieves the parent through the
// same ParentResolver entry-point used everywhere else, preserving the
// parent's identity-map invariant.
func (e *ChildEngine[S, PE]) Retrieve(ctx context.Context, id idcache.ID) (*idcache.Handle[*idcache.ChildEnvelope[S, PE]], error) {
	if existing, ok := e.m.Find(id); ok && existing.Valid() {
		return e.m.Acquire(existing), nil
	}

	row, err := e.store.Get(ctx, e.codec.Kind, id)
	if err != nil {
		return nil, err
	}
	schema, err := e.codec.Decode(row.Data)
	if err != nil {
		return nil, err
	}

	parentHandle, err := e.parent.Retrieve(ctx, row.FKID)
	if err != nil {
		return nil, err
	}

	env := idcache.NewChildEnvelopeWithID(row.ID, row.FKID, schema, parentHandle)
	h, err := e.m.Intern(env)
	if err != nil {
		parentHandle.Close()
		return nil, err
	}
	return h, nil
}

// RetrieveMany bulk-fetches from the store, resolves the distinct set of
// parent ids referenced by the rows that are not already cached in a
// single call to the parent resolver, and interns each new row, reusing
// (never overwriting) any entry already present.
func (e *ChildEngine[S, PE]) RetrieveMany(ctx context.Context, ids []idcache.ID) ([]*idcache.Handle[*idcache.ChildEnvelope[S, PE]], error) {
	rows, err := e.store.GetMany(ctx, e.codec.Kind, ids)
	if err != nil {
		return nil, err
	}
	return e.internRows(ctx, rows)
}

// RetrieveFiltered is identical to RetrieveMany but sources rows from an
// opaque store-side filter instead of an id set.
func (e *ChildEngine[S, PE]) RetrieveFiltered(ctx context.Context, filter store.Filter) ([]*idcache.Handle[*idcache.ChildEnvelope[S, PE]], error) {
	rows, err := e.store.Query(ctx, e.codec.Kind, filter)
	if err != nil {
		return nil, err
	}
	return e.internRows(ctx, rows)
}

func (e *ChildEngine[S, PE]) internRows(ctx context.Context, rows []store.Row) ([]*idcache.Handle[*idcache.ChildEnvelope[S, PE]], error) {
	// Partition rows into ones already cached (no parent lookup needed)
	// and ones that need interning, collecting the distinct parent ids
	// for the latter so the parent resolver is called exactly once.
	needsParent := make([]store.Row, 0, len(rows))
	parentIDSet := make(map[idcache.ID]struct{})
	var parentIDs []idcache.ID

	result := make([]*idcache.Handle[*idcache.ChildEnvelope[S, PE]], len(rows))
	pending := make(map[int]store.Row)

	for i, row := range rows {
		if existing, ok := e.m.Find(row.ID); ok {
			result[i] = e.m.Acquire(existing)
			continue
		}
		pending[i] = row
		needsParent = append(needsParent, row)
		if _, seen := parentIDSet[row.FKID]; !seen {
			parentIDSet[row.FKID] = struct{}{}
			parentIDs = append(parentIDs, row.FKID)
		}
	}

	if len(needsParent) == 0 {
		return result, nil
	}

	parentHandles, err := e.parent.RetrieveMany(ctx, parentIDs)
	if err != nil {
		closeHandles(result)
		return nil, err
	}
	parentIndex := make(map[idcache.ID]*idcache.Handle[PE], len(parentHandles))
	for _, ph := range parentHandles {
		parentIndex[ph.Entry().ID()] = ph
	}

	// fail unwinds both the singly-resolved parent handles and every result
	// handle acquired so far, so a failed bulk retrieval strands nothing.
	fail := func(err error) ([]*idcache.Handle[*idcache.ChildEnvelope[S, PE]], error) {
		closeHandles(parentHandles)
		closeHandles(result)
		return nil, err
	}

	for i, row := range pending {
		ph, ok := parentIndex[row.FKID]
		if !ok {
			return fail(&DanglingForeignKeyError{
				Kind:       e.codec.Kind,
				ParentKind: e.codec.ParentKind,
				ParentID:   row.FKID,
			})
		}

		schema, err := e.codec.Decode(row.Data)
		if err != nil {
			return fail(err)
		}
		env := idcache.NewChildEnvelopeWithID(row.ID, row.FKID, schema, ph.Clone())
		h, err := e.m.Intern(env)
		if err != nil {
			return fail(err)
		}
		result[i] = h
	}

	closeHandles(parentHandles)
	return result, nil
}

// Commit persists the handle's current schema, synchronizing fk_id from
// the live (possibly re-parented) parent handle first.
func (e *ChildEngine[S, PE]) Commit(ctx context.Context, h *idcache.Handle[*idcache.ChildEnvelope[S, PE]]) error {
	env := h.Entry()
	if _, ok := e.m.Find(env.ID()); !ok {
		return &EntityNotCachedError{Kind: e.codec.Kind, ID: env.ID()}
	}
	env.SyncFKFromParent()
	data, err := e.codec.Encode(*env.Schema())
	if err != nil {
		return err
	}
	return e.store.Update(ctx, e.codec.Kind, store.Row{
		Kind:  e.codec.Kind,
		ID:    env.ID(),
		FKID:  env.FKID(),
		HasFK: true,
		Data:  data,
	})
}

// Remove deletes the entity from the store, tombstones the entry, and
// closes the caller's handle. On success the returned handle is nil; the
// caller should rebind its variable to it.
func (e *ChildEngine[S, PE]) Remove(ctx context.Context, h *idcache.Handle[*idcache.ChildEnvelope[S, PE]]) (*idcache.Handle[*idcache.ChildEnvelope[S, PE]], error) {
	env := h.Entry()
	if _, ok := e.m.Find(env.ID()); !ok {
		return h, &EntityNotCachedError{Kind: e.codec.Kind, ID: env.ID()}
	}
	if err := e.store.Remove(ctx, e.codec.Kind, env.ID()); err != nil {
		return h, err
	}
	env.Invalidate()
	h.Close()
	return nil, nil
}
