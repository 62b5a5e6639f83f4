package facade

import "github.com/ha1tch/pantrycache/pkg/kindgraph"

// Registry validates the static parent/child relationships declared
// between a database's registered kinds before any entity is cached. A
// root kind is registered with an empty parent; a child kind names its
// parent kind. Validate rejects an unknown parent or a cyclic
// declaration. Both are construction-time checks: the typed facade
// methods make an unknown-kind call site impossible later, so a bad
// declaration surfaces once, when the database is built.
type Registry struct {
	graph    *kindgraph.Graph
	parents  map[string]string
	declared map[string]bool
}

// NewRegistry returns an empty kind registry.
func NewRegistry() *Registry {
	return &Registry{
		graph:    kindgraph.New(),
		parents:  make(map[string]string),
		declared: make(map[string]bool),
	}
}

// Register declares a kind. parent is "" for a root kind, or the name of
// an already-or-later-registered parent kind for a child kind.
func (r *Registry) Register(kind, parent string) {
	r.declared[kind] = true
	r.graph.AddNode(kind)
	if parent != "" {
		r.parents[kind] = parent
		r.graph.AddEdge(parent, kind, "parent")
	}
}

// Validate checks that every declared parent was itself registered and
// that the resulting kind graph is acyclic. It is called once, at
// database construction, never per-operation.
func (r *Registry) Validate() error {
	for kind, parent := range r.parents {
		if !r.declared[parent] {
			return &UnknownKindError{Kind: parent}
		}
		_ = kind
	}
	if r.graph.HasCycle() {
		return &UnknownKindError{Kind: "<cycle detected in kind graph>"}
	}
	return nil
}
