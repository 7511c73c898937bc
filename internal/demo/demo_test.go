package demo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vstore/pkg/persist"
	"github.com/vango-dev/vstore/pkg/store"
	"github.com/vango-dev/vstore/pkg/storetest"
)

func TestCounterAcceptsJSONNumbers(t *testing.T) {
	r := storetest.NewRegistry(t)
	c := Counter.Use(r)

	got, err := c.Call("add", float64(4))
	require.NoError(t, err)
	assert.Equal(t, 4, got)
	assert.Equal(t, 8, c.Get("double"))

	_, err = c.Call("add")
	assert.EqualError(t, err, "missing argument 0")
}

func TestTodos(t *testing.T) {
	r := storetest.NewRegistry(t)
	todos := Todos(nil).Use(r)

	_, err := todos.Call("add", "  buy milk ")
	require.NoError(t, err)
	_, err = todos.Call("add", "walk dog")
	require.NoError(t, err)
	assert.Equal(t, 2, todos.Get("remaining"))

	_, err = todos.Call("toggle", float64(1))
	require.NoError(t, err)
	assert.Equal(t, 1, todos.Get("remaining"))
	assert.Equal(t, []Todo{{ID: 1, Text: "buy milk", Done: true}, {ID: 2, Text: "walk dog"}}, todos.Get("items"))

	_, err = todos.Call("setFilter", "open")
	require.NoError(t, err)
	assert.Equal(t, []Todo{{ID: 2, Text: "walk dog"}}, todos.Get("visible"))

	_, err = todos.Call("toggle", 42)
	assert.Error(t, err)
	_, err = todos.Call("add", " ")
	assert.Error(t, err)
	_, err = todos.Call("setFilter", "someday")
	assert.Error(t, err)
}

func TestTodosLoad(t *testing.T) {
	r := storetest.NewRegistry(t)
	todos := Todos(SampleTodos).Use(r)

	res, err := todos.Call("load")
	require.NoError(t, err)
	d, ok := res.(*store.Deferred)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := d.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, todos.Get("remaining"))
	assert.Equal(t, 4, todos.Get("nextId"))
}

func TestTodosFilterIsNotHydrated(t *testing.T) {
	r := storetest.NewRegistry(t)
	require.NoError(t, r.Hydrate(map[string]map[string]any{
		"todos": {
			"items":  []any{map[string]any{"id": float64(7), "text": "restored", "done": false}},
			"nextId": float64(8),
			"filter": "done",
		},
	}))

	todos := Todos(nil).Use(r)
	assert.Equal(t, []Todo{{ID: 7, Text: "restored"}}, todos.Get("items"))
	assert.Equal(t, 8, todos.Get("nextId"))
	assert.Equal(t, "all", todos.Get("filter"))
}

func TestCartCheckoutCountsOrders(t *testing.T) {
	r := storetest.NewRegistry(t)
	cart := Cart.Use(r)

	total, err := cart.Call("add", "apple", 1.5, float64(4))
	require.NoError(t, err)
	assert.Equal(t, 6.0, total)
	total, err = cart.Call("add", "apple", 1.5)
	require.NoError(t, err)
	assert.Equal(t, 7.5, total)

	res, err := cart.Call("checkout")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"total": 7.5, "orders": 1}, res)
	assert.Equal(t, 0.0, cart.Get("total"))
	assert.Equal(t, 1, Counter.Use(r).Get("count"))
}

func TestCartOverBudget(t *testing.T) {
	r := storetest.NewRegistry(t)
	cart := Cart.Use(r)

	_, err := cart.Call("add", "tv", 500.0)
	require.NoError(t, err)
	_, err = cart.Call("checkout")
	assert.True(t, errors.Is(err, ErrOverBudget))

	total, err := cart.Call("remove", "tv")
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
}

func TestDefinitions(t *testing.T) {
	defs := Definitions(SampleTodos)
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = d.ID()
	}
	assert.Equal(t, []string{"counter", "todos", "cart"}, ids)
}

func TestCartRecordsDirectMutations(t *testing.T) {
	r := storetest.NewRegistry(t)
	cart := Cart.Use(r)
	rec := storetest.Record(cart)

	_, err := cart.Call("add", "pear", 2.0, 3)
	require.NoError(t, err)

	rec.ExpectTypes(t, store.MutationDirect)
	storetest.ExpectState(t, cart, map[string]any{
		"lines":  []any{map[string]any{"sku": "pear", "qty": 3, "price": 2}},
		"budget": 100,
	})
	storetest.ExpectValue(t, cart, "total", 6)
}

func TestTodosSurviveRestart(t *testing.T) {
	r := storetest.NewRegistry(t)
	todos := Todos(nil).Use(r)
	_, err := todos.Call("add", "persist me")
	require.NoError(t, err)
	_, err = todos.Call("setFilter", "done")
	require.NoError(t, err)

	next := storetest.Restart(t, r, persist.NewMemoryStore())
	restored := Todos(nil).Use(next)

	storetest.ExpectValue(t, restored, "items", []Todo{{ID: 1, Text: "persist me"}})
	storetest.ExpectValue(t, restored, "nextId", 2)
	storetest.ExpectValue(t, restored, "filter", "all")
	storetest.ExpectValue(t, restored, "remaining", 1)
}
