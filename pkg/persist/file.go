package persist

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps one snapshot file per key in a directory. Writes go to
// a temporary file that is renamed into place, so readers never see a
// partial snapshot.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	closed bool
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Path returns the file that holds key.
func (f *FileStore) Path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// Save writes data atomically.
func (f *FileStore) Save(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errClosed("file")
	}

	tmp, err := os.CreateTemp(f.dir, ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path(key))
}

// Load reads the snapshot file for key.
func (f *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return nil, errClosed("file")
	}

	data, err := os.ReadFile(f.Path(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

// Delete removes the snapshot file for key.
func (f *FileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errClosed("file")
	}
	err := os.Remove(f.Path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close marks the store as closed. Files are kept.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
