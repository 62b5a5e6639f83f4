package store_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/pantrycache/pkg/idcache"
	"github.com/ha1tch/pantrycache/pkg/store"
)

func setupSQLiteTest(t *testing.T) (store.Store, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "pantrycache-test-*.db")
	require.NoError(t, err)
	tmpFile.Close()
	dbPath := tmpFile.Name()

	s, err := store.NewStore("sqlite", map[string]interface{}{"db_path": dbPath})
	require.NoError(t, err)
	require.NotNil(t, s)

	return s, func() {
		s.Close()
		os.Remove(dbPath)
	}
}

func testRow(data string) store.Row {
	return store.Row{Data: json.RawMessage(`{"name":"` + data + `"}`)}
}

func TestSQLiteStore_InsertAndGet(t *testing.T) {
	s, cleanup := setupSQLiteTest(t)
	defer cleanup()
	ctx := context.Background()

	id, err := s.Insert(ctx, "category", testRow("Produce"))
	require.NoError(t, err)
	assert.Equal(t, idcache.ID(1), id)

	row, err := s.Get(ctx, "category", id)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Produce"}`, string(row.Data))
}

func TestSQLiteStore_SequencesAreIndependentPerKind(t *testing.T) {
	s, cleanup := setupSQLiteTest(t)
	defer cleanup()
	ctx := context.Background()

	catID, err := s.Insert(ctx, "category", testRow("Produce"))
	require.NoError(t, err)
	descID, err := s.Insert(ctx, "description", testRow("Apples"))
	require.NoError(t, err)

	assert.Equal(t, catID, descID)
}

func TestSQLiteStore_GetNotFound(t *testing.T) {
	s, cleanup := setupSQLiteTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Get(ctx, "category", 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteStore_UpdateNotFound(t *testing.T) {
	s, cleanup := setupSQLiteTest(t)
	defer cleanup()
	ctx := context.Background()

	err := s.Update(ctx, "category", store.Row{ID: 999, Data: json.RawMessage(`{}`)})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteStore_Update(t *testing.T) {
	s, cleanup := setupSQLiteTest(t)
	defer cleanup()
	ctx := context.Background()

	id, err := s.Insert(ctx, "category", testRow("Produce"))
	require.NoError(t, err)

	err = s.Update(ctx, "category", store.Row{ID: id, Data: json.RawMessage(`{"name":"Dairy"}`)})
	require.NoError(t, err)

	row, err := s.Get(ctx, "category", id)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Dairy"}`, string(row.Data))
}

func TestSQLiteStore_Remove(t *testing.T) {
	s, cleanup := setupSQLiteTest(t)
	defer cleanup()
	ctx := context.Background()

	id, err := s.Insert(ctx, "category", testRow("Produce"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, "category", id))

	_, err = s.Get(ctx, "category", id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteStore_RemoveNotFound(t *testing.T) {
	s, cleanup := setupSQLiteTest(t)
	defer cleanup()
	ctx := context.Background()

	err := s.Remove(ctx, "category", 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLiteStore_GetMany(t *testing.T) {
	s, cleanup := setupSQLiteTest(t)
	defer cleanup()
	ctx := context.Background()

	id1, err := s.Insert(ctx, "category", testRow("Produce"))
	require.NoError(t, err)
	id2, err := s.Insert(ctx, "category", testRow("Dairy"))
	require.NoError(t, err)

	rows, err := s.GetMany(ctx, "category", []idcache.ID{id1, id2, 999})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSQLiteStore_QueryWithFilter(t *testing.T) {
	s, cleanup := setupSQLiteTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Insert(ctx, "category", testRow("Produce"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, "category", testRow("Dairy"))
	require.NoError(t, err)

	rows, err := s.Query(ctx, "category", func(r store.Row) bool {
		return string(r.Data) == `{"name":"Dairy"}`
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, `{"name":"Dairy"}`, string(rows[0].Data))
}

func TestSQLiteStore_InsertPreservesForeignKey(t *testing.T) {
	s, cleanup := setupSQLiteTest(t)
	defer cleanup()
	ctx := context.Background()

	parentID, err := s.Insert(ctx, "category", testRow("Produce"))
	require.NoError(t, err)

	childID, err := s.Insert(ctx, "description", store.Row{
		FKID: parentID, HasFK: true, Data: json.RawMessage(`{"text":"fresh"}`),
	})
	require.NoError(t, err)

	row, err := s.Get(ctx, "description", childID)
	require.NoError(t, err)
	assert.True(t, row.HasFK)
	assert.Equal(t, parentID, row.FKID)
}
