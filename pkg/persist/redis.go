package persist

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient is the subset of Redis operations RedisStore needs.
// NewGoRedisClient adapts a go-redis client to it.
type RedisClient interface {
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	// Get returns ErrRedisNil when the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
}

// ErrRedisNil is returned by RedisClient.Get for missing keys.
var ErrRedisNil = stderrors.New("redis: nil")

// RedisStore is a Redis-backed snapshot store, suitable when several
// processes share one registry state.
type RedisStore struct {
	client RedisClient
	prefix string
	ttl    time.Duration
	closed atomic.Bool
}

// RedisStoreOption configures RedisStore behavior.
type RedisStoreOption func(*RedisStore)

// WithRedisPrefix sets the key prefix. Default: "vstore:snapshot:".
func WithRedisPrefix(prefix string) RedisStoreOption {
	return func(r *RedisStore) {
		r.prefix = prefix
	}
}

// WithRedisTTL makes snapshots expire. Default: no expiration.
func WithRedisTTL(ttl time.Duration) RedisStoreOption {
	return func(r *RedisStore) {
		r.ttl = ttl
	}
}

// NewRedisStore creates a Redis-backed snapshot store.
func NewRedisStore(client RedisClient, opts ...RedisStoreOption) *RedisStore {
	r := &RedisStore{
		client: client,
		prefix: "vstore:snapshot:",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisStore) key(key string) string {
	return r.prefix + key
}

// Save stores data under key.
func (r *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	if r.closed.Load() {
		return errClosed("redis")
	}
	return r.client.Set(ctx, r.key(key), data, r.ttl)
}

// Load returns the snapshot under key.
func (r *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	if r.closed.Load() {
		return nil, errClosed("redis")
	}
	data, err := r.client.Get(ctx, r.key(key))
	if err != nil {
		if stderrors.Is(err, ErrRedisNil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Delete removes the snapshot under key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if r.closed.Load() {
		return errClosed("redis")
	}
	return r.client.Del(ctx, r.key(key))
}

// Close marks the store as closed. The client is left open, as it may be
// shared.
func (r *RedisStore) Close() error {
	r.closed.Store(true)
	return nil
}

// Prefix returns the key prefix.
func (r *RedisStore) Prefix() string {
	return r.prefix
}

// goRedisClient adapts *redis.Client to RedisClient.
type goRedisClient struct {
	c redis.UniversalClient
}

// NewGoRedisClient adapts a go-redis client (single node, cluster or
// ring) for RedisStore.
func NewGoRedisClient(c redis.UniversalClient) RedisClient {
	return goRedisClient{c: c}
}

func (g goRedisClient) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return g.c.Set(ctx, key, value, expiration).Err()
}

func (g goRedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := g.c.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, ErrRedisNil
	}
	return data, err
}

func (g goRedisClient) Del(ctx context.Context, keys ...string) error {
	return g.c.Del(ctx, keys...).Err()
}
