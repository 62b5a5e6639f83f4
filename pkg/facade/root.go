package facade

import (
	"context"

	"github.com/ha1tch/pantrycache/pkg/idcache"
	"github.com/ha1tch/pantrycache/pkg/store"
)

// RootEngine hosts the identity map and store routing for one root
// (parentless) entity kind. It also satisfies ParentResolver[*idcache.Envelope[S]],
// so a ChildEngine whose parent kind is root-level depends on it directly.
type RootEngine[S any] struct {
	codec RootCodec[S]
	store store.Store
	m     *idcache.Map[*idcache.Envelope[S]]
}

// NewRootEngine constructs an engine for one root kind, with its own empty
// identity map.
func NewRootEngine[S any](codec RootCodec[S], st store.Store) *RootEngine[S] {
	return &RootEngine[S]{
		codec: codec,
		store: st,
		m:     idcache.NewMap[*idcache.Envelope[S]](codec.Kind),
	}
}

// Kind returns the entity kind name this engine was built for.
func (e *RootEngine[S]) Kind() string { return e.codec.Kind }

// Len reports how many initialized entries are currently cached, for tests
// and diagnostics.
func (e *RootEngine[S]) Len() int { return e.m.Len() }

// Create constructs a new entity, interns it in an uninitialized state,
// asks the store for a real id, and promotes the entry once assigned. If
// any step after interning fails, the entry is evicted before the error
// propagates — the map never holds an entry the store rejected.
func (e *RootEngine[S]) Create(ctx context.Context, schema S) (*idcache.Handle[*idcache.Envelope[S]], error) {
	env := idcache.NewEnvelope(schema)
	h, err := e.m.Intern(env)
	if err != nil {
		return nil, err
	}

	data, err := e.codec.Encode(*env.Schema())
	if err != nil {
		h.Close()
		return nil, err
	}

	id, err := e.store.Insert(ctx, e.codec.Kind, store.Row{Data: data})
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
// entry, it returns a new handle to the same entry. On a miss, or a
// tombstoned hit, it fetches from the store and interns a fresh entry.
func (e *RootEngine[S]) Retrieve(ctx context.Context, id idcache.ID) (*idcache.Handle[*idcache.Envelope[S]], error) {
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
	env := idcache.NewEnvelopeWithID(row.ID, schema)
	return e.m.Intern(env)
}

// RetrieveMany bulk-fetches from the store and interns each row not
// already cached, reusing (never overwriting) any entry already present.
// Handles are returned in the store's returned order.
func (e *RootEngine[S]) RetrieveMany(ctx context.Context, ids []idcache.ID) ([]*idcache.Handle[*idcache.Envelope[S]], error) {
	rows, err := e.store.GetMany(ctx, e.codec.Kind, ids)
	if err != nil {
		return nil, err
	}
	return e.internRows(rows)
}

// RetrieveFiltered is identical to RetrieveMany but sources rows from an
// opaque store-side filter instead of an id set.
func (e *RootEngine[S]) RetrieveFiltered(ctx context.Context, filter store.Filter) ([]*idcache.Handle[*idcache.Envelope[S]], error) {
	rows, err := e.store.Query(ctx, e.codec.Kind, filter)
	if err != nil {
		return nil, err
	}
	return e.internRows(rows)
}

func (e *RootEngine[S]) internRows(rows []store.Row) ([]*idcache.Handle[*idcache.Envelope[S]], error) {
	result := make([]*idcache.Handle[*idcache.Envelope[S]], 0, len(rows))
	for _, row := range rows {
		if existing, ok := e.m.Find(row.ID); ok {
			result = append(result, e.m.Acquire(existing))
			continue
		}
		schema, err := e.codec.Decode(row.Data)
		if err != nil {
			closeHandles(result)
			return nil, err
		}
		env := idcache.NewEnvelopeWithID(row.ID, schema)
		h, err := e.m.Intern(env)
		if err != nil {
			closeHandles(result)
			return nil, err
		}
		result = append(result, h)
	}
	return result, nil
}

// closeHandles unwinds the handles acquired so far when a bulk retrieval
// fails partway, so a failed operation never strands entries in the map.
func closeHandles[E idcache.Keyed](handles []*idcache.Handle[E]) {
	for _, h := range handles {
		h.Close()
	}
}

// Commit persists the handle's current schema. The entry must still be in
// the identity map, or EntityNotCachedError is returned.
func (e *RootEngine[S]) Commit(ctx context.Context, h *idcache.Handle[*idcache.Envelope[S]]) error {
	env := h.Entry()
	if _, ok := e.m.Find(env.ID()); !ok {
		return &EntityNotCachedError{Kind: e.codec.Kind, ID: env.ID()}
	}
	data, err := e.codec.Encode(*env.Schema())
	if err != nil {
		return err
	}
	return e.store.Update(ctx, e.codec.Kind, store.Row{ID: env.ID(), Data: data})
}

// Remove deletes the entity from the store, tombstones the entry, and
// consumes the caller's handle. On success the returned handle is nil;
// the caller should rebind its variable to it. On failure the original
// handle is returned unchanged so the caller's reference stays usable.
func (e *RootEngine[S]) Remove(ctx context.Context, h *idcache.Handle[*idcache.Envelope[S]]) (*idcache.Handle[*idcache.Envelope[S]], error) {
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
