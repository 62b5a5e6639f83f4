// Package store defines the narrow backing-store contract the identity-map
// facade consumes, plus three concrete adapters (SQLite, Redis, JSON file).
// The cache treats every adapter as opaque: it calls Insert/Get/GetMany/
// Query/Update/Remove and nothing else.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ha1tch/pantrycache/pkg/idcache"
)

// ErrNotFound is returned when a row is missing for a requested id.
var ErrNotFound = errors.New("store: not found")

// ErrStoreFailure wraps any I/O or constraint failure an adapter reports.
// Concrete errors from an adapter wrap this with %w, so callers can use
// errors.Is(err, store.ErrStoreFailure).
var ErrStoreFailure = errors.New("store: failure")

// Row is the adapter-facing representation of one entity row: its kind,
// its id, an optional foreign-key id, and the schema payload serialized as
// JSON. This single shape lets one adapter implementation serve every
// registered kind without per-kind SQL or per-kind Redis key layouts.
type Row struct {
	Kind  string
	ID    idcache.ID
	FKID  idcache.ID
	HasFK bool
	Data  json.RawMessage
}

// Filter is an opaque, caller-supplied predicate over a decoded row. Every
// adapter implements Query the same way: fetch the kind's rows and apply
// the predicate, so no adapter needs its own query DSL.
type Filter func(Row) bool

// Store is the contract the identity-map facade calls through. Every
// operation is a single implicit transaction; the facade makes no
// multi-operation atomicity claim beyond what an adapter itself provides.
type Store interface {
	Insert(ctx context.Context, kind string, row Row) (idcache.ID, error)
	Get(ctx context.Context, kind string, id idcache.ID) (Row, error)
	GetMany(ctx context.Context, kind string, ids []idcache.ID) ([]Row, error)
	Query(ctx context.Context, kind string, filter Filter) ([]Row, error)
	Update(ctx context.Context, kind string, row Row) error
	Remove(ctx context.Context, kind string, id idcache.ID) error
	Close() error
}

// Factory builds a Store from a loosely-typed configuration map.
type Factory func(config map[string]interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a named store implementation to the factory registry.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// NewStore builds a named store instance, e.g. NewStore("sqlite", cfg).
func NewStore(name string, config map[string]interface{}) (Store, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("store: unknown store type %q", name)
	}
	return factory(config)
}

func init() {
	Register("sqlite", func(config map[string]interface{}) (Store, error) {
		dbPath, _ := config["db_path"].(string)
		if dbPath == "" {
			dbPath = "pantrycache.db"
		}
		cfg := SQLiteConfig{
			DBPath:      dbPath,
			EnableWAL:   true,
			CacheSize:   2000,
			BusyTimeout: 5000,
		}
		if wal, ok := config["enable_wal"].(bool); ok {
			cfg.EnableWAL = wal
		}
		if cache, ok := config["cache_size"].(int); ok {
			cfg.CacheSize = cache
		}
		if timeout, ok := config["busy_timeout"].(int); ok {
			cfg.BusyTimeout = timeout
		}
		return NewSQLiteStore(cfg)
	})

	Register("jsonfile", func(config map[string]interface{}) (Store, error) {
		baseDir, _ := config["base_dir"].(string)
		if baseDir == "" {
			baseDir = "data"
		}
		return NewJSONFileStore(baseDir)
	})

	Register("redis", func(config map[string]interface{}) (Store, error) {
		host, _ := config["host"].(string)
		if host == "" {
			host = "localhost"
		}
		port, _ := config["port"].(int)
		if port == 0 {
			port = 6379
		}
		return NewRedisStore(host, port)
	})
}
