package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ha1tch/pantrycache/pkg/idcache"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteConfig holds SQLite-specific tuning knobs.
type SQLiteConfig struct {
	DBPath      string
	EnableWAL   bool
	CacheSize   int // page cache size in KB
	BusyTimeout int // milliseconds to wait on a locked database
}

// SQLiteStore implements Store over a single `entities` table shared by
// every registered kind: one JSON blob per row, with an explicit fk
// column so one schema serves every kind.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (and if necessary creates) a SQLite-backed store.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = "pantrycache.db"
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	s := &SQLiteStore{db: db}
	if err := s.initialize(context.Background(), cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initializing sqlite schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize(ctx context.Context, cfg SQLiteConfig) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout),
		fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheSize),
	}
	if cfg.EnableWAL {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS entities (
			kind       TEXT NOT NULL,
			id         INTEGER NOT NULL,
			fk_id      INTEGER,
			has_fk     INTEGER NOT NULL DEFAULT 0,
			data       TEXT NOT NULL,
			PRIMARY KEY (kind, id)
		);

		CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
		CREATE INDEX IF NOT EXISTS idx_entities_fk ON entities(kind, fk_id);

		CREATE TABLE IF NOT EXISTS entity_sequences (
			kind    TEXT PRIMARY KEY,
			next_id INTEGER NOT NULL DEFAULT 1
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) nextID(ctx context.Context, tx *sql.Tx, kind string) (idcache.ID, error) {
	var next int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO entity_sequences (kind, next_id)
		VALUES (?, 1)
		ON CONFLICT(kind) DO UPDATE SET next_id = next_id + 1
		RETURNING next_id
	`, kind).Scan(&next)
	if err != nil {
		return 0, err
	}
	return idcache.ID(next), nil
}

// Insert implements Store.
func (s *SQLiteStore) Insert(ctx context.Context, kind string, row Row) (idcache.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: beginning insert transaction: %v", ErrStoreFailure, err)
	}
	defer tx.Rollback()

	id, err := s.nextID(ctx, tx, kind)
	if err != nil {
		return 0, fmt.Errorf("%w: allocating id: %v", ErrStoreFailure, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entities (kind, id, fk_id, has_fk, data) VALUES (?, ?, ?, ?, ?)`,
		kind, int64(id), int64(row.FKID), boolToInt(row.HasFK), string(row.Data))
	if err != nil {
		return 0, fmt.Errorf("%w: inserting row: %v", ErrStoreFailure, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing insert: %v", ErrStoreFailure, err)
	}
	return id, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, kind string, id idcache.ID) (Row, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fk_id, has_fk, data FROM entities WHERE kind = ? AND id = ?`, kind, int64(id))

	var fkID int64
	var hasFK int
	var data string
	if err := row.Scan(&fkID, &hasFK, &data); err != nil {
		if err == sql.ErrNoRows {
			return Row{}, ErrNotFound
		}
		return Row{}, fmt.Errorf("%w: fetching %s/%d: %v", ErrStoreFailure, kind, id, err)
	}
	return Row{Kind: kind, ID: id, FKID: idcache.ID(fkID), HasFK: hasFK != 0, Data: json.RawMessage(data)}, nil
}

// GetMany implements Store. Ids that don't exist are silently omitted.
func (s *SQLiteStore) GetMany(ctx context.Context, kind string, ids []idcache.ID) ([]Row, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, kind)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, int64(id))
	}

	query := fmt.Sprintf(
		`SELECT id, fk_id, has_fk, data FROM entities WHERE kind = ? AND id IN (%s)`,
		strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %s in bulk: %v", ErrStoreFailure, kind, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var id, fkID int64
		var hasFK int
		var data string
		if err := rows.Scan(&id, &fkID, &hasFK, &data); err != nil {
			return nil, fmt.Errorf("%w: scanning %s row: %v", ErrStoreFailure, kind, err)
		}
		result = append(result, Row{Kind: kind, ID: idcache.ID(id), FKID: idcache.ID(fkID), HasFK: hasFK != 0, Data: json.RawMessage(data)})
	}
	return result, rows.Err()
}

// Query implements Store by fetching every row of kind and applying the
// caller's predicate in process.
func (s *SQLiteStore) Query(ctx context.Context, kind string, filter Filter) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fk_id, has_fk, data FROM entities WHERE kind = ?`, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: querying %s: %v", ErrStoreFailure, kind, err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		var id, fkID int64
		var hasFK int
		var data string
		if err := rows.Scan(&id, &fkID, &hasFK, &data); err != nil {
			return nil, fmt.Errorf("%w: scanning %s row: %v", ErrStoreFailure, kind, err)
		}
		r := Row{Kind: kind, ID: idcache.ID(id), FKID: idcache.ID(fkID), HasFK: hasFK != 0, Data: json.RawMessage(data)}
		if filter == nil || filter(r) {
			result = append(result, r)
		}
	}
	return result, rows.Err()
}

// Update implements Store.
func (s *SQLiteStore) Update(ctx context.Context, kind string, row Row) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entities SET fk_id = ?, has_fk = ?, data = ? WHERE kind = ? AND id = ?`,
		int64(row.FKID), boolToInt(row.HasFK), string(row.Data), kind, int64(row.ID))
	if err != nil {
		return fmt.Errorf("%w: updating %s/%d: %v", ErrStoreFailure, kind, row.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking update result: %v", ErrStoreFailure, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove implements Store.
func (s *SQLiteStore) Remove(ctx context.Context, kind string, id idcache.ID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entities WHERE kind = ? AND id = ?`, kind, int64(id))
	if err != nil {
		return fmt.Errorf("%w: deleting %s/%d: %v", ErrStoreFailure, kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking delete result: %v", ErrStoreFailure, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
