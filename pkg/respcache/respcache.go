// Package respcache memoizes rendered JSON response bodies for the REST
// layer's list endpoints. Every cached body belongs to an invalidation
// group (the entity kind it renders), so a mutation drops every cached
// listing for that kind in one call. It is deliberately separate from
// pkg/idcache and pkg/facade: it holds serialized response bodies at the
// transport boundary, never identity-map entries or query results inside
// the cache core.
package respcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is the capability pkg/restapi needs from a response cache: fetch
// a rendered body, store one under an invalidation group, and drop a
// whole group when its kind mutates.
type Cache interface {
	GetBody(ctx context.Context, key string) ([]byte, bool)
	PutBody(ctx context.Context, group, key string, body []byte)
	InvalidateGroup(ctx context.Context, group string)
	Close() error
}

// MemoryCache keeps rendered bodies in an in-process LRU with a fixed
// TTL, plus a group index naming the keys each group invalidation must
// drop.
type MemoryCache struct {
	mu     sync.Mutex
	bodies *lru.LRU[string, []byte]
	groups map[string]map[string]struct{}
}

// NewMemoryCache creates an in-memory response cache holding at most
// size bodies, each expiring after ttl.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		bodies: lru.NewLRU[string, []byte](size, nil, ttl),
		groups: make(map[string]map[string]struct{}),
	}
}

func (m *MemoryCache) GetBody(ctx context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bodies.Get(key)
}

func (m *MemoryCache) PutBody(ctx context.Context, group, key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies.Add(key, body)
	if m.groups[group] == nil {
		m.groups[group] = make(map[string]struct{})
	}
	m.groups[group][key] = struct{}{}
}

func (m *MemoryCache) InvalidateGroup(ctx context.Context, group string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.groups[group] {
		m.bodies.Remove(key)
	}
	delete(m.groups, group)
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies.Purge()
	m.groups = make(map[string]map[string]struct{})
	return nil
}

// RedisCache keeps rendered bodies in Redis with a per-entry TTL and one
// set per group tracking that group's keys, so invalidation is a set
// read plus a multi-key delete rather than a keyspace scan.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache dials Redis and pings it once before returning.
func NewRedisCache(host string, port int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		PoolSize:     50,
		MinIdleConns: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("respcache: connecting to redis: %w", err)
	}

	return &RedisCache{client: client, ttl: ttl}, nil
}

func groupKey(group string) string {
	return "respcache:group:" + group
}

func (r *RedisCache) GetBody(ctx context.Context, key string) ([]byte, bool) {
	body, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return body, true
}

func (r *RedisCache) PutBody(ctx context.Context, group, key string, body []byte) {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, body, r.ttl)
	pipe.SAdd(ctx, groupKey(group), key)
	// keep the group index from outliving its members
	pipe.Expire(ctx, groupKey(group), 2*r.ttl)
	pipe.Exec(ctx)
}

func (r *RedisCache) InvalidateGroup(ctx context.Context, group string) {
	keys, err := r.client.SMembers(ctx, groupKey(group)).Result()
	if err != nil {
		return
	}
	keys = append(keys, groupKey(group))
	r.client.Del(ctx, keys...)
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
