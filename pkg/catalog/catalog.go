// Package catalog wires the generic facade engines into a concrete,
// typed three-kind pantry domain: Category -> Description -> Instance.
// Each DB method is a thin, kind-specific front over pkg/facade's
// RootEngine/ChildEngine generics.
package catalog

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/ha1tch/pantrycache/pkg/facade"
	"github.com/ha1tch/pantrycache/pkg/idcache"
	"github.com/ha1tch/pantrycache/pkg/store"
)

const (
	KindCategory    = "category"
	KindDescription = "description"
	KindInstance    = "instance"
)

// CategoryHandle, DescriptionHandle, and InstanceHandle are the concrete
// handle types callers hold for each kind.
type (
	CategoryHandle    = idcache.Handle[*idcache.Envelope[CategorySchema]]
	DescriptionHandle = idcache.Handle[*idcache.ChildEnvelope[DescriptionSchema, *idcache.Envelope[CategorySchema]]]
	InstanceHandle    = idcache.Handle[*idcache.ChildEnvelope[InstanceSchema, *idcache.ChildEnvelope[DescriptionSchema, *idcache.Envelope[CategorySchema]]]]
)

// DB hosts one identity map per registered kind plus the backing store,
// exposing the typed create/retrieve/commit/remove surface. A single DB
// is not safe for concurrent use — callers sharing one *DB across
// goroutines must synchronize externally.
type DB struct {
	store    store.Store
	logger   zerolog.Logger
	category *facade.RootEngine[CategorySchema]
	desc     *facade.ChildEngine[DescriptionSchema, *idcache.Envelope[CategorySchema]]
	instance *facade.ChildEngine[InstanceSchema, *idcache.ChildEnvelope[DescriptionSchema, *idcache.Envelope[CategorySchema]]]
}

// NewDB builds the facade.Registry for the three sample kinds, validates
// the declared parent DAG is acyclic, and constructs one engine per kind
// over st.
func NewDB(st store.Store, logger zerolog.Logger) (*DB, error) {
	reg := facade.NewRegistry()
	reg.Register(KindCategory, "")
	reg.Register(KindDescription, KindCategory)
	reg.Register(KindInstance, KindDescription)
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	categoryEngine := facade.NewRootEngine(facade.RootCodec[CategorySchema]{
		Kind:   KindCategory,
		Encode: encodeJSON[CategorySchema],
		Decode: decodeJSON[CategorySchema],
	}, st)

	descEngine := facade.NewChildEngine(facade.ChildCodec[DescriptionSchema, *idcache.Envelope[CategorySchema]]{
		Kind:       KindDescription,
		ParentKind: KindCategory,
		Encode:     encodeJSON[DescriptionSchema],
		Decode:     decodeJSON[DescriptionSchema],
	}, st, categoryEngine)

	instanceEngine := facade.NewChildEngine(facade.ChildCodec[InstanceSchema, *idcache.ChildEnvelope[DescriptionSchema, *idcache.Envelope[CategorySchema]]]{
		Kind:       KindInstance,
		ParentKind: KindDescription,
		Encode:     encodeJSON[InstanceSchema],
		Decode:     decodeJSON[InstanceSchema],
	}, st, descEngine)

	return &DB{
		store:    st,
		logger:   logger,
		category: categoryEngine,
		desc:     descEngine,
		instance: instanceEngine,
	}, nil
}

func encodeJSON[S any](s S) (json.RawMessage, error) {
	return json.Marshal(s)
}

func decodeJSON[S any](data json.RawMessage) (S, error) {
	var s S
	err := json.Unmarshal(data, &s)
	return s, err
}

// logOp records a failed facade operation on the way out. A plain miss
// (store.ErrNotFound) is routine caller-visible flow and logs at debug;
// anything else is a real failure.
func (db *DB) logOp(op, kind string, err error) error {
	if err == nil {
		return nil
	}
	evt := db.logger.Error()
	if errors.Is(err, store.ErrNotFound) {
		evt = db.logger.Debug()
	}
	evt.Err(err).Str("op", op).Str("kind", kind).Msg("catalog operation failed")
	return err
}

// --- Category (root kind) ---

func (db *DB) CreateCategory(ctx context.Context, schema CategorySchema) (*CategoryHandle, error) {
	h, err := db.category.Create(ctx, schema)
	return h, db.logOp("create", KindCategory, err)
}

func (db *DB) RetrieveCategory(ctx context.Context, id idcache.ID) (*CategoryHandle, error) {
	h, err := db.category.Retrieve(ctx, id)
	return h, db.logOp("retrieve", KindCategory, err)
}

func (db *DB) RetrieveCategories(ctx context.Context, ids []idcache.ID) ([]*CategoryHandle, error) {
	hs, err := db.category.RetrieveMany(ctx, ids)
	return hs, db.logOp("retrieve-many", KindCategory, err)
}

func (db *DB) RetrieveCategoriesFiltered(ctx context.Context, pred func(CategorySchema) bool) ([]*CategoryHandle, error) {
	hs, err := db.category.RetrieveFiltered(ctx, rowFilter(pred))
	return hs, db.logOp("retrieve-filtered", KindCategory, err)
}

func (db *DB) CommitCategory(ctx context.Context, h *CategoryHandle) error {
	return db.logOp("commit", KindCategory, db.category.Commit(ctx, h))
}

func (db *DB) RemoveCategory(ctx context.Context, h *CategoryHandle) (*CategoryHandle, error) {
	h, err := db.category.Remove(ctx, h)
	return h, db.logOp("remove", KindCategory, err)
}

// --- Description (child of Category) ---

func (db *DB) CreateDescription(ctx context.Context, parent *CategoryHandle, schema DescriptionSchema) (*DescriptionHandle, error) {
	h, err := db.desc.Create(ctx, parent, schema)
	return h, db.logOp("create", KindDescription, err)
}

func (db *DB) RetrieveDescription(ctx context.Context, id idcache.ID) (*DescriptionHandle, error) {
	h, err := db.desc.Retrieve(ctx, id)
	return h, db.logOp("retrieve", KindDescription, err)
}

func (db *DB) RetrieveDescriptions(ctx context.Context, ids []idcache.ID) ([]*DescriptionHandle, error) {
	hs, err := db.desc.RetrieveMany(ctx, ids)
	return hs, db.logOp("retrieve-many", KindDescription, err)
}

func (db *DB) RetrieveDescriptionsFiltered(ctx context.Context, pred func(DescriptionSchema) bool) ([]*DescriptionHandle, error) {
	hs, err := db.desc.RetrieveFiltered(ctx, rowFilter(pred))
	return hs, db.logOp("retrieve-filtered", KindDescription, err)
}

// RetrieveDescriptionsByCategory lists every description whose fk_id
// matches catID, filtering on the row's foreign key directly rather than
// its decoded schema.
func (db *DB) RetrieveDescriptionsByCategory(ctx context.Context, catID idcache.ID) ([]*DescriptionHandle, error) {
	hs, err := db.desc.RetrieveFiltered(ctx, func(row store.Row) bool { return row.FKID == catID })
	return hs, db.logOp("retrieve-by-parent", KindDescription, err)
}

func (db *DB) CommitDescription(ctx context.Context, h *DescriptionHandle) error {
	return db.logOp("commit", KindDescription, db.desc.Commit(ctx, h))
}

func (db *DB) RemoveDescription(ctx context.Context, h *DescriptionHandle) (*DescriptionHandle, error) {
	h, err := db.desc.Remove(ctx, h)
	return h, db.logOp("remove", KindDescription, err)
}

// --- Instance (child of Description) ---

func (db *DB) CreateInstance(ctx context.Context, parent *DescriptionHandle, schema InstanceSchema) (*InstanceHandle, error) {
	h, err := db.instance.Create(ctx, parent, schema)
	return h, db.logOp("create", KindInstance, err)
}

func (db *DB) RetrieveInstance(ctx context.Context, id idcache.ID) (*InstanceHandle, error) {
	h, err := db.instance.Retrieve(ctx, id)
	return h, db.logOp("retrieve", KindInstance, err)
}

func (db *DB) RetrieveInstances(ctx context.Context, ids []idcache.ID) ([]*InstanceHandle, error) {
	hs, err := db.instance.RetrieveMany(ctx, ids)
	return hs, db.logOp("retrieve-many", KindInstance, err)
}

func (db *DB) RetrieveInstancesFiltered(ctx context.Context, pred func(InstanceSchema) bool) ([]*InstanceHandle, error) {
	hs, err := db.instance.RetrieveFiltered(ctx, rowFilter(pred))
	return hs, db.logOp("retrieve-filtered", KindInstance, err)
}

// RetrieveInstancesByDescription lists every instance whose fk_id matches
// descID, filtering on the row's foreign key directly.
func (db *DB) RetrieveInstancesByDescription(ctx context.Context, descID idcache.ID) ([]*InstanceHandle, error) {
	hs, err := db.instance.RetrieveFiltered(ctx, func(row store.Row) bool { return row.FKID == descID })
	return hs, db.logOp("retrieve-by-parent", KindInstance, err)
}

func (db *DB) CommitInstance(ctx context.Context, h *InstanceHandle) error {
	return db.logOp("commit", KindInstance, db.instance.Commit(ctx, h))
}

func (db *DB) RemoveInstance(ctx context.Context, h *InstanceHandle) (*InstanceHandle, error) {
	h, err := db.instance.Remove(ctx, h)
	return h, db.logOp("remove", KindInstance, err)
}

// Close releases the underlying store.
func (db *DB) Close() error {
	return db.store.Close()
}

// CategoryCacheLen, DescriptionCacheLen, and InstanceCacheLen report how
// many initialized entries are currently resident in each kind's identity
// map. Exposed for tests and diagnostics, not part of the facade surface.
func (db *DB) CategoryCacheLen() int    { return db.category.Len() }
func (db *DB) DescriptionCacheLen() int { return db.desc.Len() }
func (db *DB) InstanceCacheLen() int    { return db.instance.Len() }

// rowFilter adapts a typed schema predicate into a store.Filter by
// decoding each row's JSON payload before applying pred. A row that fails
// to decode is excluded rather than panicking — callers drive filters
// only over kinds whose codec already decoded the same shape successfully
// at write time.
func rowFilter[S any](pred func(S) bool) store.Filter {
	return func(row store.Row) bool {
		s, err := decodeJSON[S](row.Data)
		if err != nil {
			return false
		}
		return pred(s)
	}
}
