package store_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/pantrycache/pkg/store"
)

func setupJSONFileTest(t *testing.T) (store.Store, func()) {
	t.Helper()

	dir, err := os.MkdirTemp("", "pantrycache-jsonfile-*")
	require.NoError(t, err)

	s, err := store.NewStore("jsonfile", map[string]interface{}{"base_dir": dir})
	require.NoError(t, err)
	require.NotNil(t, s)

	return s, func() {
		s.Close()
		os.RemoveAll(dir)
	}
}

func TestJSONFileStore_InsertAndGet(t *testing.T) {
	s, cleanup := setupJSONFileTest(t)
	defer cleanup()
	ctx := context.Background()

	id, err := s.Insert(ctx, "category", testRow("Produce"))
	require.NoError(t, err)

	row, err := s.Get(ctx, "category", id)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Produce"}`, string(row.Data))
}

func TestJSONFileStore_GetNotFound(t *testing.T) {
	s, cleanup := setupJSONFileTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Get(ctx, "category", 999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJSONFileStore_UpdateAndRemove(t *testing.T) {
	s, cleanup := setupJSONFileTest(t)
	defer cleanup()
	ctx := context.Background()

	id, err := s.Insert(ctx, "category", testRow("Produce"))
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, "category", store.Row{ID: id, Data: json.RawMessage(`{"name":"Dairy"}`)}))
	row, err := s.Get(ctx, "category", id)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Dairy"}`, string(row.Data))

	require.NoError(t, s.Remove(ctx, "category", id))
	_, err = s.Get(ctx, "category", id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJSONFileStore_QuerySkipsSequenceFile(t *testing.T) {
	s, cleanup := setupJSONFileTest(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.Insert(ctx, "category", testRow("Produce"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, "category", testRow("Dairy"))
	require.NoError(t, err)

	rows, err := s.Query(ctx, "category", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestJSONFileStore_QueryOnMissingKindDirectory(t *testing.T) {
	s, cleanup := setupJSONFileTest(t)
	defer cleanup()
	ctx := context.Background()

	rows, err := s.Query(ctx, "nonexistent", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
