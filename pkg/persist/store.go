package persist

import "context"

// SnapshotStore defines the interface for snapshot persistence backends.
// Implementations must be safe for concurrent use.
type SnapshotStore interface {
	// Save stores data under key, overwriting any previous snapshot.
	Save(ctx context.Context, key string, data []byte) error

	// Load returns the snapshot stored under key.
	// Returns (nil, nil) if there is none.
	Load(ctx context.Context, key string) ([]byte, error)

	// Delete removes the snapshot. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the store. Shared clients passed in
	// by the caller are left open.
	Close() error
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
