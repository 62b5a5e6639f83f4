package idcache_test

import (
	"testing"

	"github.com/ha1tch/pantrycache/pkg/idcache"
)

func TestReadOnlySharesEntry(t *testing.T) {
	m := idcache.NewMap[*sortable]("widgets")

	e := &sortable{id: 1}
	h, err := m.Intern(e)
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}

	ro := h.ReadOnly()
	if ro.Entry() != e {
		t.Fatalf("ReadOnly handle should share the same entry")
	}

	h.Close()
	if _, ok := m.Find(1); !ok {
		t.Fatalf("entry must survive while the read-only handle is still open")
	}

	ro.Close()
	if _, ok := m.Find(1); ok {
		t.Fatalf("entry must be evicted once the read-only handle also closes")
	}
}
