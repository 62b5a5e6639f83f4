package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ha1tch/pantrycache/pkg/idcache"
)

// JSONFileStore implements Store as one JSON file per row, laid out
// baseDir/kind/id.json, plus a per-kind sequence file for id allocation.
// Useful for tests and for offline tooling like pantry-migrate.
type JSONFileStore struct {
	baseDir string
	idMu    sync.Mutex
	fileMu  sync.RWMutex
}

type jsonRow struct {
	FKID  int64           `json:"fk_id"`
	HasFK bool            `json:"has_fk"`
	Data  json.RawMessage `json:"data"`
}

// NewJSONFileStore creates the base directory if needed and returns a store
// rooted there.
func NewJSONFileStore(baseDir string) (*JSONFileStore, error) {
	if baseDir == "" {
		baseDir = "data"
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("store: creating base directory: %w", err)
	}
	return &JSONFileStore{baseDir: baseDir}, nil
}

func (s *JSONFileStore) kindDir(kind string) string {
	return filepath.Join(s.baseDir, kind)
}

func (s *JSONFileStore) rowFile(kind string, id idcache.ID) string {
	return filepath.Join(s.kindDir(kind), fmt.Sprintf("%d.json", int64(id)))
}

func (s *JSONFileStore) seqFile(kind string) string {
	return filepath.Join(s.kindDir(kind), "_next_id.json")
}

func (s *JSONFileStore) nextID(kind string) (idcache.ID, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if err := os.MkdirAll(s.kindDir(kind), 0755); err != nil {
		return 0, fmt.Errorf("%w: creating kind directory: %v", ErrStoreFailure, err)
	}

	seqFile := s.seqFile(kind)
	next := int64(1)
	if data, err := os.ReadFile(seqFile); err == nil {
		var seq struct {
			NextID int64 `json:"next_id"`
		}
		if err := json.Unmarshal(data, &seq); err == nil {
			next = seq.NextID
		}
	}

	data, err := json.Marshal(struct {
		NextID int64 `json:"next_id"`
	}{NextID: next + 1})
	if err != nil {
		return 0, fmt.Errorf("%w: encoding sequence: %v", ErrStoreFailure, err)
	}
	if err := os.WriteFile(seqFile, data, 0644); err != nil {
		return 0, fmt.Errorf("%w: writing sequence: %v", ErrStoreFailure, err)
	}
	return idcache.ID(next), nil
}

// Insert implements Store.
func (s *JSONFileStore) Insert(ctx context.Context, kind string, row Row) (idcache.ID, error) {
	id, err := s.nextID(kind)
	if err != nil {
		return 0, err
	}
	if err := s.writeRow(kind, id, row); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *JSONFileStore) writeRow(kind string, id idcache.ID, row Row) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if err := os.MkdirAll(s.kindDir(kind), 0755); err != nil {
		return fmt.Errorf("%w: creating kind directory: %v", ErrStoreFailure, err)
	}

	jr := jsonRow{FKID: int64(row.FKID), HasFK: row.HasFK, Data: row.Data}
	data, err := json.Marshal(jr)
	if err != nil {
		return fmt.Errorf("%w: encoding %s/%d: %v", ErrStoreFailure, kind, int64(id), err)
	}
	if err := os.WriteFile(s.rowFile(kind, id), data, 0644); err != nil {
		return fmt.Errorf("%w: writing %s/%d: %v", ErrStoreFailure, kind, int64(id), err)
	}
	return nil
}

func (s *JSONFileStore) readRow(kind string, id idcache.ID) (Row, error) {
	s.fileMu.RLock()
	defer s.fileMu.RUnlock()

	data, err := os.ReadFile(s.rowFile(kind, id))
	if err != nil {
		if os.IsNotExist(err) {
			return Row{}, ErrNotFound
		}
		return Row{}, fmt.Errorf("%w: reading %s/%d: %v", ErrStoreFailure, kind, int64(id), err)
	}

	var jr jsonRow
	if err := json.Unmarshal(data, &jr); err != nil {
		return Row{}, fmt.Errorf("%w: decoding %s/%d: %v", ErrStoreFailure, kind, int64(id), err)
	}
	return Row{Kind: kind, ID: id, FKID: idcache.ID(jr.FKID), HasFK: jr.HasFK, Data: jr.Data}, nil
}

// Get implements Store.
func (s *JSONFileStore) Get(ctx context.Context, kind string, id idcache.ID) (Row, error) {
	return s.readRow(kind, id)
}

// GetMany implements Store. Missing ids are silently omitted.
func (s *JSONFileStore) GetMany(ctx context.Context, kind string, ids []idcache.ID) ([]Row, error) {
	var result []Row
	for _, id := range ids {
		row, err := s.readRow(kind, id)
		if err == nil {
			result = append(result, row)
		} else if err != ErrNotFound {
			return nil, err
		}
	}
	return result, nil
}

// Query implements Store by reading every row file under kind's directory
// and applying the caller's predicate in process.
func (s *JSONFileStore) Query(ctx context.Context, kind string, filter Filter) ([]Row, error) {
	s.fileMu.RLock()
	entries, err := os.ReadDir(s.kindDir(kind))
	s.fileMu.RUnlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: listing %s: %v", ErrStoreFailure, kind, err)
	}

	var result []Row
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == "_next_id.json" || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		var n int64
		if _, err := fmt.Sscanf(entry.Name(), "%d.json", &n); err != nil {
			continue
		}
		row, err := s.readRow(kind, idcache.ID(n))
		if err != nil {
			continue
		}
		if filter == nil || filter(row) {
			result = append(result, row)
		}
	}
	return result, nil
}

// Update implements Store.
func (s *JSONFileStore) Update(ctx context.Context, kind string, row Row) error {
	if _, err := s.readRow(kind, row.ID); err != nil {
		return err
	}
	return s.writeRow(kind, row.ID, row)
}

// Remove implements Store.
func (s *JSONFileStore) Remove(ctx context.Context, kind string, id idcache.ID) error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if err := os.Remove(s.rowFile(kind, id)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: deleting %s/%d: %v", ErrStoreFailure, kind, int64(id), err)
	}
	return nil
}

// Close implements Store. Nothing to release for a file-backed store.
func (s *JSONFileStore) Close() error { return nil }
