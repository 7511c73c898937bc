package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnActionSeesEveryCall(t *testing.T) {
	r := newRegistry(t)
	s := Define("counter", counterOptions()).Use(r)

	var calls []string
	var args [][]any
	s.OnAction(func(ctx *ActionContext) {
		calls = append(calls, ctx.Name)
		args = append(args, ctx.Args)
		assert.Same(t, s, ctx.Store)
	})

	_, err := s.Call("add", 2)
	require.NoError(t, err)
	_, err = s.Call("increment")
	require.NoError(t, err)

	assert.Equal(t, []string{"add", "increment"}, calls)
	assert.Equal(t, []any{2}, args[0])
	assert.Empty(t, args[1])
}

func TestAfterHookReplacesResult(t *testing.T) {
	r := newRegistry(t)
	s := Define("counter", counterOptions()).Use(r)

	var seen []any
	s.OnAction(func(ctx *ActionContext) {
		ctx.After(func(result any) any {
			seen = append(seen, result)
			return "first"
		})
		ctx.After(func(result any) any {
			seen = append(seen, result)
			return nil
		})
		ctx.After(func(result any) any {
			seen = append(seen, result)
			return "last"
		})
	})

	got, err := s.Call("add", 3)
	require.NoError(t, err)
	assert.Equal(t, "last", got, "the last non-nil hook result wins")
	assert.Equal(t, []any{3, 3, 3}, seen, "every hook sees the original result")
}

func TestAfterHookKeepsResultWhenNil(t *testing.T) {
	r := newRegistry(t)
	s := Define("counter", counterOptions()).Use(r)
	s.OnAction(func(ctx *ActionContext) {
		ctx.After(func(any) any { return nil })
	})

	got, err := s.Call("add", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestOnErrorForReturnedError(t *testing.T) {
	r := newRegistry(t)
	boom := errors.New("boom")
	s := Define("failing", Options{
		Actions: map[string]ActionFunc{
			"fail": func(*Store, ...any) (any, error) { return nil, boom },
		},
	}).Use(r)

	var errs []error
	afterCalled := false
	s.OnAction(func(ctx *ActionContext) {
		ctx.OnError(func(err error) { errs = append(errs, err) })
		ctx.After(func(any) any { afterCalled = true; return nil })
	})

	_, err := s.Call("fail")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []error{boom}, errs)
	assert.False(t, afterCalled)
}

func TestHooksRegisteredWhileRunningAreNotCalled(t *testing.T) {
	r := newRegistry(t)
	boom := errors.New("boom")
	s := Define("failing", Options{
		Actions: map[string]ActionFunc{
			"fail": func(*Store, ...any) (any, error) { return nil, boom },
			"ok":   func(*Store, ...any) (any, error) { return 1, nil },
		},
	}).Use(r)

	var onErrorCalls, afterCalls int
	s.OnAction(func(ctx *ActionContext) {
		ctx.OnError(func(error) {
			onErrorCalls++
			ctx.OnError(func(error) { onErrorCalls++ })
		})
		ctx.After(func(any) any {
			afterCalls++
			ctx.After(func(any) any { afterCalls++; return "late" })
			return nil
		})
	})

	_, err := s.Call("fail")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, onErrorCalls)

	got, err := s.Call("ok")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.Equal(t, 1, afterCalls)
}

func TestOnErrorForPanic(t *testing.T) {
	r := newRegistry(t)
	s := Define("panicky", Options{
		Actions: map[string]ActionFunc{
			"explode": func(*Store, ...any) (any, error) { panic("kaboom") },
		},
	}).Use(r)

	var errs []error
	s.OnAction(func(ctx *ActionContext) {
		ctx.OnError(func(err error) { errs = append(errs, err) })
	})

	assert.PanicsWithValue(t, "kaboom", func() { _, _ = s.Call("explode") })
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "panic: kaboom")
}

func TestListenerPanicIsNotReportedAsActionError(t *testing.T) {
	r := newRegistry(t)
	s := Define("counter", counterOptions()).Use(r)

	var errs []error
	s.OnAction(func(ctx *ActionContext) {
		ctx.OnError(func(err error) { errs = append(errs, err) })
	})
	s.OnAction(func(*ActionContext) { panic("listener") })

	assert.Panics(t, func() { _, _ = s.Call("increment") })
	assert.Empty(t, errs)
	assert.Equal(t, 0, Value[int](s, "count"), "the action does not run")
}

func TestDeferredActionResolves(t *testing.T) {
	r := newRegistry(t)
	release := make(chan struct{})
	s := Define("async", Options{
		Actions: map[string]ActionFunc{
			"load": func(_ *Store, args ...any) (any, error) {
				return Go(func() (any, error) {
					<-release
					return args[0], nil
				}), nil
			},
		},
	}).Use(r)

	afterCh := make(chan any, 1)
	s.OnAction(func(ctx *ActionContext) {
		ctx.After(func(result any) any {
			afterCh <- result
			return "ignored"
		})
	})

	got, err := s.Call("load", "payload")
	require.NoError(t, err)
	d, ok := got.(*Deferred)
	require.True(t, ok)

	select {
	case <-d.Done():
		t.Fatal("settled before the work finished")
	default:
	}

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	value, err := d.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "payload", value, "hooks only observe deferred results")
	assert.Equal(t, "payload", <-afterCh)
}

func TestDeferredActionRejects(t *testing.T) {
	r := newRegistry(t)
	boom := errors.New("boom")
	s := Define("async", Options{
		Actions: map[string]ActionFunc{
			"load": func(*Store, ...any) (any, error) {
				return Go(func() (any, error) { return nil, boom }), nil
			},
			"crash": func(*Store, ...any) (any, error) {
				return Go(func() (any, error) { panic("bad") }), nil
			},
		},
	}).Use(r)

	errCh := make(chan error, 2)
	s.OnAction(func(ctx *ActionContext) {
		ctx.OnError(func(err error) { errCh <- err })
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := s.Call("load")
	require.NoError(t, err)
	_, err = got.(*Deferred).Await(ctx)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, <-errCh, boom)

	got, err = s.Call("crash")
	require.NoError(t, err)
	_, err = got.(*Deferred).Await(ctx)
	assert.EqualError(t, err, "panic: bad")
	assert.EqualError(t, <-errCh, "panic: bad")
}

func TestDeferredSettlesOnce(t *testing.T) {
	d := NewDeferred()
	d.Resolve(1)
	d.Reject(errors.New("late"))
	d.Resolve(2)

	value, err := d.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, value)

	var got []any
	d.onSettle(func(v any, _ error) { got = append(got, v) })
	assert.Equal(t, []any{1}, got, "late waiters run immediately")
}

func TestDeferredAwaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDeferred().Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	v, err := Resolved("ok").Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestActionSetsActiveRegistry(t *testing.T) {
	r := newRegistry(t)
	s := Define("counter", counterOptions()).Use(r)

	other := New()
	defer other.Dispose()
	SetActive(other)

	_, err := s.Call("increment")
	require.NoError(t, err)
	assert.Same(t, r, Active())
}

func TestOnActionRemover(t *testing.T) {
	r := newRegistry(t)
	s := Define("counter", counterOptions()).Use(r)

	calls := 0
	remove := s.OnAction(func(*ActionContext) { calls++ })
	_, _ = s.Call("increment")
	remove()
	_, _ = s.Call("increment")

	assert.Equal(t, 1, calls)
}

func TestBoundActionFromGetUsesCanonicalStore(t *testing.T) {
	r := newRegistry(t)
	s := Define("counter", counterOptions()).Use(r)

	calls := 0
	s.OnAction(func(*ActionContext) { calls++ })

	increment := s.Get("increment").(BoundAction)
	_, err := increment()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, Value[int](s, "count"))
}
