package store

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vstore/pkg/reactive"
)

func counterOptions() Options {
	return Options{
		State: func() any {
			return map[string]any{
				"count":  0,
				"nested": map[string]any{"a": 1, "b": 2},
				"list":   []any{1, 2},
			}
		},
		Getters: map[string]GetterFunc{
			"double": func(s *Store) any { return Value[int](s, "count") * 2 },
		},
		Actions: map[string]ActionFunc{
			"increment": func(s *Store, _ ...any) (any, error) {
				return nil, s.Set("count", Value[int](s, "count")+1)
			},
			"add": func(s *Store, args ...any) (any, error) {
				n := Value[int](s, "count") + args[0].(int)
				return n, s.Set("count", n)
			},
		},
	}
}

// newRegistry returns an installed registry that is also active.
func newRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	r := New(opts...)
	require.NoError(t, r.Install(reactive.NewOwner(nil)))
	t.Cleanup(func() {
		r.Dispose()
		SetActive(nil)
	})
	return r
}

// logBuffer is a goroutine-safe slog sink for asserting on diagnostics.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *logBuffer) {
	buf := &logBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

// recorder collects subscription notifications.
type recorder struct {
	mutations []Mutation
	states    []map[string]any
}

func (r *recorder) record(m Mutation, state map[string]any) {
	r.mutations = append(r.mutations, m)
	r.states = append(r.states, state)
}
