// Package facade implements the generic create/retrieve/commit/remove
// engine the identity-map core exposes to application code, plus a
// Registry that validates the static parent/child DAG declared between
// entity kinds before any entity is cached. One RootEngine or ChildEngine
// exists per registered kind, each hosting its own idcache.Map and
// routing misses through a store.Store.
package facade

import "fmt"

// UnknownKindError is returned when a Registry is asked to validate a
// child kind whose declared parent kind was never registered.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("facade: unknown entity kind %q", e.Kind)
}

// EntityNotCachedError is returned by Commit/Remove when the supplied
// handle's entry is not present in its kind's identity map — a forged
// handle or a facade/engine mismatch.
type EntityNotCachedError struct {
	Kind string
	ID   interface{}
}

func (e *EntityNotCachedError) Error() string {
	return fmt.Sprintf("facade: entity %v of kind %q is not in the identity map", e.ID, e.Kind)
}

// DanglingForeignKeyError is raised by a bulk or filtered retrieval when a
// child row's foreign key resolves to no parent row.
type DanglingForeignKeyError struct {
	Kind       string
	ParentKind string
	ParentID   interface{}
}

func (e *DanglingForeignKeyError) Error() string {
	return fmt.Sprintf("facade: %s row references missing %s id %v", e.Kind, e.ParentKind, e.ParentID)
}
