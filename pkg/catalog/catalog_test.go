package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ha1tch/pantrycache/pkg/catalog"
	"github.com/ha1tch/pantrycache/pkg/idcache"
	"github.com/ha1tch/pantrycache/pkg/store"
)

func newTestDB(t *testing.T) *catalog.DB {
	t.Helper()
	st, err := store.NewJSONFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONFileStore failed: %v", err)
	}
	db, err := catalog.NewDB(st, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// S1 — monotonic ids.
func TestCreateCategoryMonotonicIDs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for n := 1; n <= 100; n++ {
		h, err := db.CreateCategory(ctx, catalog.CategorySchema{Name: "cat"})
		if err != nil {
			t.Fatalf("CreateCategory #%d failed: %v", n, err)
		}
		if int(h.Entry().ID()) != n {
			t.Fatalf("expected id %d, got %d", n, h.Entry().ID())
		}
		h.Close()
	}
}

// S2 — id immutability.
func TestSetIDTwiceFails(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	h, err := db.CreateCategory(ctx, catalog.CategorySchema{Name: "cat"})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	defer h.Close()

	if err := h.Entry().SetID(2); err == nil {
		t.Fatalf("expected SetID to fail on an already-initialized entity")
	} else if _, ok := err.(*idcache.IllegalStateError); !ok {
		t.Fatalf("expected IllegalStateError, got %T", err)
	}
}

// S3 — identity after retrieve.
func TestRetrieveCategorySharesEntry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c, err := db.CreateCategory(ctx, catalog.CategorySchema{Name: "Dairy"})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	defer c.Close()

	c2, err := db.RetrieveCategory(ctx, c.Entry().ID())
	if err != nil {
		t.Fatalf("RetrieveCategory failed: %v", err)
	}
	defer c2.Close()

	if c.Entry() != c2.Entry() {
		t.Fatalf("expected retrieve to return a handle to the same entry")
	}

	c.Entry().Schema().Name = "Dairy & Eggs"
	if c2.Entry().Schema().Name != "Dairy & Eggs" {
		t.Fatalf("mutation through one handle must be visible through the other")
	}
}

// S4 — parent hydration.
func TestRetrieveDescriptionHydratesParent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cat, err := db.CreateCategory(ctx, catalog.CategorySchema{Name: "Dairy"})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	desc, err := db.CreateDescription(ctx, cat, catalog.DescriptionSchema{Name: "2% Milk"})
	if err != nil {
		t.Fatalf("CreateDescription failed: %v", err)
	}
	catID := cat.Entry().ID()
	descID := desc.Entry().ID()
	cat.Close()
	desc.Close()

	// Fresh cache: nothing is resident, both retrieves must hit the store.
	fresh, err := db.RetrieveDescription(ctx, descID)
	if err != nil {
		t.Fatalf("RetrieveDescription failed: %v", err)
	}
	defer fresh.Close()

	parent := fresh.Entry().Parent()
	if parent.Entry().ID() != catID {
		t.Fatalf("expected hydrated parent id %d, got %d", catID, parent.Entry().ID())
	}
	if parent.Entry().Schema().Name != "Dairy" {
		t.Fatalf("expected hydrated parent name %q, got %q", "Dairy", parent.Entry().Schema().Name)
	}

	again, err := db.RetrieveCategory(ctx, catID)
	if err != nil {
		t.Fatalf("RetrieveCategory failed: %v", err)
	}
	defer again.Close()

	if again.Entry() != parent.Entry() {
		t.Fatalf("expected a second retrieve of the parent to share the hydrated entry")
	}
}

// S5 — bulk fetch preserves edits.
func TestRetrieveFilteredPreservesMutations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cat, err := db.CreateCategory(ctx, catalog.CategorySchema{Name: "Dairy"})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	defer cat.Close()

	desc, err := db.CreateDescription(ctx, cat, catalog.DescriptionSchema{Name: "test", DaysValidSuggestion: 3})
	if err != nil {
		t.Fatalf("CreateDescription failed: %v", err)
	}
	defer desc.Close()

	desc.Entry().Schema().Name = "other test"
	desc.Entry().Schema().DaysValidSuggestion = 5

	results, err := db.RetrieveDescriptionsFiltered(ctx, func(s catalog.DescriptionSchema) bool {
		return true
	})
	if err != nil {
		t.Fatalf("RetrieveDescriptionsFiltered failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	defer results[0].Close()

	if results[0].Entry() != desc.Entry() {
		t.Fatalf("filtered retrieve must return the same cached entry")
	}
	if results[0].Entry().Schema().Name != "other test" || results[0].Entry().Schema().DaysValidSuggestion != 5 {
		t.Fatalf("filtered retrieve overwrote in-memory mutations: got %+v", *results[0].Entry().Schema())
	}
}

// S6 — remove and tombstone.
func TestRemoveCategoryTombstones(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	handles := make([]*catalog.CategoryHandle, 0, 10)
	for i := 0; i < 10; i++ {
		h, err := db.CreateCategory(ctx, catalog.CategorySchema{Name: "cat"})
		if err != nil {
			t.Fatalf("CreateCategory failed: %v", err)
		}
		handles = append(handles, h)
	}
	defer func() {
		for _, h := range handles {
			h.Close()
		}
	}()

	other, err := db.RetrieveCategory(ctx, handles[4].Entry().ID())
	if err != nil {
		t.Fatalf("RetrieveCategory failed: %v", err)
	}
	defer other.Close()

	removed, err := db.RemoveCategory(ctx, handles[4])
	if err != nil {
		t.Fatalf("RemoveCategory failed: %v", err)
	}
	if removed != nil {
		t.Fatalf("expected RemoveCategory to return a nil handle on success")
	}
	handles[4] = nil

	if other.Entry().Valid() {
		t.Fatalf("expected other handle to observe the tombstone")
	}

	if _, err := db.RetrieveCategory(ctx, other.Entry().ID()); err == nil {
		t.Fatalf("expected retrieve of a deleted id to bypass the tombstone and fail in the store")
	}
}

// S7 — eviction on last-drop.
func TestEvictionOnLastDrop(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	h, err := db.CreateCategory(ctx, catalog.CategorySchema{Name: "cat"})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	id := h.Entry().ID()
	h.Close()

	if db.CategoryCacheLen() != 0 {
		t.Fatalf("expected the map to have evicted the entry after the last handle closed")
	}

	h2, err := db.RetrieveCategory(ctx, id)
	if err != nil {
		t.Fatalf("RetrieveCategory should still succeed via the store: %v", err)
	}
	defer h2.Close()
}

func TestInstanceThreeLevelHydration(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cat, err := db.CreateCategory(ctx, catalog.CategorySchema{Name: "Dairy"})
	if err != nil {
		t.Fatalf("CreateCategory failed: %v", err)
	}
	desc, err := db.CreateDescription(ctx, cat, catalog.DescriptionSchema{Name: "Milk"})
	if err != nil {
		t.Fatalf("CreateDescription failed: %v", err)
	}
	inst, err := db.CreateInstance(ctx, desc, catalog.InstanceSchema{
		PurchaseDate:   time.Now().UTC(),
		ExpirationDate: time.Now().UTC().AddDate(0, 0, 7),
	})
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	instID := inst.Entry().ID()
	catID := cat.Entry().ID()
	cat.Close()
	desc.Close()
	inst.Close()

	fresh, err := db.RetrieveInstance(ctx, instID)
	if err != nil {
		t.Fatalf("RetrieveInstance failed: %v", err)
	}
	defer fresh.Close()

	grandparent := fresh.Entry().Parent().Entry().Parent()
	if grandparent.Entry().ID() != catID {
		t.Fatalf("expected grandparent category id %d, got %d", catID, grandparent.Entry().ID())
	}
}
