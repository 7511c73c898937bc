package persist

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/nats-io/nats.go/jetstream"
)

// KeyValue is the subset of a JetStream key-value bucket KVStore uses.
// jetstream.KeyValue satisfies it.
type KeyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error
}

// KVStore keeps snapshots in a NATS JetStream key-value bucket. Every
// Save creates a new revision, so the bucket history holds earlier
// snapshots.
type KVStore struct {
	bucket KeyValue
	closed atomic.Bool
}

// NewKVStore creates a store over bucket.
func NewKVStore(bucket KeyValue) *KVStore {
	return &KVStore{bucket: bucket}
}

// kvKey maps a snapshot key to a valid KV key: letters, digits and
// "-_=./" only.
func kvKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '=', r == '.', r == '/':
			return r
		}
		return '_'
	}, key)
}

// Save puts data as a new revision of key.
func (k *KVStore) Save(ctx context.Context, key string, data []byte) error {
	if k.closed.Load() {
		return errClosed("nats-kv")
	}
	if _, err := k.bucket.Put(ctx, kvKey(key), data); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

// Load returns the latest revision of key.
func (k *KVStore) Load(ctx context.Context, key string) ([]byte, error) {
	if k.closed.Load() {
		return nil, errClosed("nats-kv")
	}
	entry, err := k.bucket.Get(ctx, kvKey(key))
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) || stderrors.Is(err, jetstream.ErrKeyDeleted) {
			return nil, nil
		}
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return copyBytes(entry.Value()), nil
}

// Delete places a delete marker on key.
func (k *KVStore) Delete(ctx context.Context, key string) error {
	if k.closed.Load() {
		return errClosed("nats-kv")
	}
	err := k.bucket.Delete(ctx, kvKey(key))
	if err != nil && !stderrors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}

// Close marks the store as closed. The NATS connection is left open.
func (k *KVStore) Close() error {
	k.closed.Store(true)
	return nil
}
