package idcache_test

import (
	"testing"

	"github.com/ha1tch/pantrycache/pkg/idcache"
)

// sortable is a minimal Keyed entry used to exercise Map/Handle in
// isolation, without pulling in the facade or store packages.
type sortable struct {
	id idcache.ID
}

func (s *sortable) ID() idcache.ID { return s.id }

func TestMapInternAndFind(t *testing.T) {
	m := idcache.NewMap[*sortable]("widgets")

	e := &sortable{id: 1}
	h, err := m.Intern(e)
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}
	defer h.Close()

	found, ok := m.Find(1)
	if !ok {
		t.Fatalf("expected to find interned entry")
	}
	if found != e {
		t.Fatalf("Find returned a different entry than interned")
	}
}

func TestMapFindMissesOnZero(t *testing.T) {
	m := idcache.NewMap[*sortable]("widgets")

	e := &sortable{id: 0}
	h, err := m.Intern(e)
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}
	defer h.Close()

	if _, ok := m.Find(0); ok {
		t.Fatalf("Find(0) must never hit, even with a pending zero-id entry present")
	}
}

func TestMapDuplicateIdRejected(t *testing.T) {
	m := idcache.NewMap[*sortable]("widgets")

	h1, err := m.Intern(&sortable{id: 7})
	if err != nil {
		t.Fatalf("first Intern failed: %v", err)
	}
	defer h1.Close()

	_, err = m.Intern(&sortable{id: 7})
	if err == nil {
		t.Fatalf("expected DuplicateIdError for a second entry with id 7")
	}
	if _, ok := err.(*idcache.DuplicateIdError); !ok {
		t.Fatalf("expected *idcache.DuplicateIdError, got %T", err)
	}
}

func TestMapPendingZeroIdEntriesCoexist(t *testing.T) {
	m := idcache.NewMap[*sortable]("widgets")

	h1, err := m.Intern(&sortable{id: 0})
	if err != nil {
		t.Fatalf("first pending Intern failed: %v", err)
	}
	defer h1.Close()

	h2, err := m.Intern(&sortable{id: 0})
	if err != nil {
		t.Fatalf("second pending Intern should not collide on the zero sentinel: %v", err)
	}
	defer h2.Close()
}

func TestMapPromote(t *testing.T) {
	m := idcache.NewMap[*sortable]("widgets")

	e := &sortable{id: 0}
	h, err := m.Intern(e)
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}
	defer h.Close()

	e.id = 42
	if err := m.Promote(e); err != nil {
		t.Fatalf("Promote failed: %v", err)
	}

	found, ok := m.Find(42)
	if !ok || found != e {
		t.Fatalf("expected to find promoted entry by its new id")
	}
}

func TestMapPromoteDuplicateLeavesResidentIntact(t *testing.T) {
	m := idcache.NewMap[*sortable]("widgets")

	resident := &sortable{id: 9}
	h1, err := m.Intern(resident)
	if err != nil {
		t.Fatalf("Intern resident failed: %v", err)
	}
	defer h1.Close()

	loser := &sortable{id: 0}
	h2, err := m.Intern(loser)
	if err != nil {
		t.Fatalf("Intern pending failed: %v", err)
	}

	loser.id = 9
	if err := m.Promote(loser); err == nil {
		t.Fatalf("expected Promote to reject the duplicate id")
	} else if _, ok := err.(*idcache.DuplicateIdError); !ok {
		t.Fatalf("expected *idcache.DuplicateIdError, got %T", err)
	}

	if found, ok := m.Find(9); !ok || found != resident {
		t.Fatalf("resident entry must keep its slot after a rejected Promote")
	}

	h2.Close()
	if found, ok := m.Find(9); !ok || found != resident {
		t.Fatalf("resident entry must survive the losing entry's unwind")
	}
}

func TestMapEvictsOnLastHandleClose(t *testing.T) {
	m := idcache.NewMap[*sortable]("widgets")

	e := &sortable{id: 1}
	h1, err := m.Intern(e)
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}
	h2 := h1.Clone()

	h1.Close()
	if _, ok := m.Find(1); !ok {
		t.Fatalf("entry must still be present while a clone is outstanding")
	}

	h2.Close()
	if _, ok := m.Find(1); ok {
		t.Fatalf("entry must be evicted once the last handle closes")
	}
}

func TestMapCloseIsIdempotent(t *testing.T) {
	m := idcache.NewMap[*sortable]("widgets")

	e := &sortable{id: 1}
	h, err := m.Intern(e)
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}

	h.Close()
	h.Close() // must not double-decrement and must not panic

	if _, ok := m.Find(1); ok {
		t.Fatalf("entry should be gone after the one real close")
	}
}

func TestMapAcquireAddsExternalHolder(t *testing.T) {
	m := idcache.NewMap[*sortable]("widgets")

	e := &sortable{id: 1}
	h1, err := m.Intern(e)
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}

	h2 := m.Acquire(e)

	h1.Close()
	if _, ok := m.Find(1); !ok {
		t.Fatalf("entry must survive while Acquire'd handle is outstanding")
	}

	h2.Close()
	if _, ok := m.Find(1); ok {
		t.Fatalf("entry must be evicted once both holders close")
	}
}

func TestMapDiscard(t *testing.T) {
	m := idcache.NewMap[*sortable]("widgets")

	e := &sortable{id: 0}
	h, err := m.Intern(e)
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}
	m.Discard(e)
	h.Close() // no-op: entry already gone from the indexes

	if m.Len() != 0 {
		t.Fatalf("expected no initialized entries after discard, got %d", m.Len())
	}
}
