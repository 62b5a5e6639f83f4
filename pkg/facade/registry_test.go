package facade_test

import (
	"testing"

	"github.com/ha1tch/pantrycache/pkg/facade"
)

func TestRegistryValidateAcceptsTree(t *testing.T) {
	r := facade.NewRegistry()
	r.Register("category", "")
	r.Register("description", "category")
	r.Register("instance", "description")

	if err := r.Validate(); err != nil {
		t.Fatalf("expected a strict parent/child chain to validate, got %v", err)
	}
}

func TestRegistryValidateRejectsUnknownParent(t *testing.T) {
	r := facade.NewRegistry()
	r.Register("description", "category") // "category" never registered

	if err := r.Validate(); err == nil {
		t.Fatalf("expected Validate to reject a child whose parent kind was never registered")
	} else if _, ok := err.(*facade.UnknownKindError); !ok {
		t.Fatalf("expected UnknownKindError, got %T: %v", err, err)
	}
}

func TestRegistryValidateRejectsCycle(t *testing.T) {
	r := facade.NewRegistry()
	r.Register("category", "instance")
	r.Register("description", "category")
	r.Register("instance", "description")

	if err := r.Validate(); err == nil {
		t.Fatalf("expected Validate to reject a cyclic kind graph")
	}
}
