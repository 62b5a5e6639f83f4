package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ha1tch/pantrycache/pkg/idcache"
)

// RedisStore implements Store over Redis hashes: one hash per row, and a
// monotonic INCR-backed sequence per kind for id allocation.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection with a Ping.
func NewRedisStore(host string, port int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		PoolSize:     50,
		MinIdleConns: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: connecting to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func rowKey(kind string, id idcache.ID) string {
	return fmt.Sprintf("ent:%s:%d", kind, int64(id))
}

func seqKey(kind string) string {
	return fmt.Sprintf("seq:%s", kind)
}

// Insert implements Store.
func (r *RedisStore) Insert(ctx context.Context, kind string, row Row) (idcache.ID, error) {
	next, err := r.client.Incr(ctx, seqKey(kind)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: allocating id for %s: %v", ErrStoreFailure, kind, err)
	}
	id := idcache.ID(next)

	if err := r.writeHash(ctx, kind, id, row); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *RedisStore) writeHash(ctx context.Context, kind string, id idcache.ID, row Row) error {
	err := r.client.HSet(ctx, rowKey(kind, id), map[string]interface{}{
		"fk_id":  int64(row.FKID),
		"has_fk": boolToInt(row.HasFK),
		"data":   string(row.Data),
	}).Err()
	if err != nil {
		return fmt.Errorf("%w: writing %s/%d: %v", ErrStoreFailure, kind, id, err)
	}
	return nil
}

func (r *RedisStore) readHash(ctx context.Context, kind string, id idcache.ID) (Row, bool, error) {
	vals, err := r.client.HGetAll(ctx, rowKey(kind, id)).Result()
	if err != nil {
		return Row{}, false, fmt.Errorf("%w: reading %s/%d: %v", ErrStoreFailure, kind, id, err)
	}
	if len(vals) == 0 {
		return Row{}, false, nil
	}
	fkID, _ := strconv.ParseInt(vals["fk_id"], 10, 64)
	hasFK := vals["has_fk"] == "1"
	return Row{Kind: kind, ID: id, FKID: idcache.ID(fkID), HasFK: hasFK, Data: json.RawMessage(vals["data"])}, true, nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, kind string, id idcache.ID) (Row, error) {
	row, ok, err := r.readHash(ctx, kind, id)
	if err != nil {
		return Row{}, err
	}
	if !ok {
		return Row{}, ErrNotFound
	}
	return row, nil
}

// GetMany implements Store. Missing ids are silently omitted.
func (r *RedisStore) GetMany(ctx context.Context, kind string, ids []idcache.ID) ([]Row, error) {
	var result []Row
	for _, id := range ids {
		row, ok, err := r.readHash(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, row)
		}
	}
	return result, nil
}

// Query implements Store by scanning every key for kind and applying the
// caller's predicate in process.
func (r *RedisStore) Query(ctx context.Context, kind string, filter Filter) ([]Row, error) {
	var result []Row
	var cursor uint64
	pattern := fmt.Sprintf("ent:%s:*", kind)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: scanning %s: %v", ErrStoreFailure, kind, err)
		}
		for _, key := range keys {
			id, err := idFromRowKey(kind, key)
			if err != nil {
				continue
			}
			row, ok, err := r.readHash(ctx, kind, id)
			if err != nil {
				return nil, err
			}
			if ok && (filter == nil || filter(row)) {
				result = append(result, row)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return result, nil
}

func idFromRowKey(kind, key string) (idcache.ID, error) {
	prefix := fmt.Sprintf("ent:%s:", kind)
	if len(key) <= len(prefix) {
		return 0, fmt.Errorf("malformed key %q", key)
	}
	n, err := strconv.ParseInt(key[len(prefix):], 10, 64)
	if err != nil {
		return 0, err
	}
	return idcache.ID(n), nil
}

// Update implements Store.
func (r *RedisStore) Update(ctx context.Context, kind string, row Row) error {
	exists, err := r.client.Exists(ctx, rowKey(kind, row.ID)).Result()
	if err != nil {
		return fmt.Errorf("%w: checking %s/%d: %v", ErrStoreFailure, kind, row.ID, err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return r.writeHash(ctx, kind, row.ID, row)
}

// Remove implements Store.
func (r *RedisStore) Remove(ctx context.Context, kind string, id idcache.ID) error {
	n, err := r.client.Del(ctx, rowKey(kind, id)).Result()
	if err != nil {
		return fmt.Errorf("%w: deleting %s/%d: %v", ErrStoreFailure, kind, id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close implements Store.
func (r *RedisStore) Close() error { return r.client.Close() }
