package facade

import (
	"context"
	"encoding/json"

	"github.com/ha1tch/pantrycache/pkg/idcache"
)

// RootCodec describes how a root (parentless) kind's schema maps onto a
// store.Row: its kind name plus the JSON encode/decode pair the engine uses
// to move a schema value in and out of Row.Data.
type RootCodec[S any] struct {
	Kind   string
	Encode func(S) (json.RawMessage, error)
	Decode func(json.RawMessage) (S, error)
}

// ChildCodec is the same shape for a child kind, plus the declared parent
// kind name — used only for error messages and Registry validation, never
// for dispatch (the parent is reached via ParentResolver, not by name).
type ChildCodec[S any, PE idcache.Keyed] struct {
	Kind       string
	ParentKind string
	Encode     func(S) (json.RawMessage, error)
	Decode     func(json.RawMessage) (S, error)
}

// ParentResolver is the capability a ChildEngine needs from whatever hosts
// its parent kind, root or child. Both RootEngine and ChildEngine implement
// it, so a grandchild's ChildEngine resolves its parent through the
// parent's own ChildEngine, which in turn resolves the root through a
// RootEngine. Parent resolution thereby always goes through the same
// retrieve entry-point every other caller uses, preserving the parent's
// identity-map guarantee at any depth.
type ParentResolver[PE idcache.Keyed] interface {
	Retrieve(ctx context.Context, id idcache.ID) (*idcache.Handle[PE], error)
	RetrieveMany(ctx context.Context, ids []idcache.ID) ([]*idcache.Handle[PE], error)
}
