// Package demo defines the stores served by the vstore binary.
package demo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vango-dev/vstore/pkg/reactive"
	"github.com/vango-dev/vstore/pkg/store"
)

// Counter is an options store with a count, a getter and two actions.
var Counter = store.Define("counter", store.Options{
	State: func() any { return map[string]any{"count": 0} },
	Getters: map[string]store.GetterFunc{
		"double": func(s *store.Store) any { return store.Value[int](s, "count") * 2 },
	},
	Actions: map[string]store.ActionFunc{
		"increment": func(s *store.Store, _ ...any) (any, error) {
			n := store.Value[int](s, "count") + 1
			return n, s.Set("count", n)
		},
		"add": func(s *store.Store, args ...any) (any, error) {
			by, err := intArg(args, 0)
			if err != nil {
				return nil, err
			}
			n := store.Value[int](s, "count") + by
			return n, s.Set("count", n)
		},
	},
})

// Todo is one entry of the todos store.
type Todo struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Loader fetches the initial todo list for the todos store's load action.
type Loader func(ctx context.Context) ([]Todo, error)

// Todos returns a setup store over a todo list. Its load action runs load
// on a background goroutine and replaces the list with the result.
func Todos(load Loader) *store.Definition {
	return store.DefineSetup("todos", func() *store.Fields {
		items := reactive.NewSignal([]Todo{})
		nextID := reactive.NewSignal(1)
		filter := reactive.NewSignal("all")

		remaining := reactive.NewMemo(func() int {
			n := 0
			for _, t := range items.Get() {
				if !t.Done {
					n++
				}
			}
			return n
		})
		visible := reactive.NewMemo(func() []Todo {
			out := []Todo{}
			for _, t := range items.Get() {
				switch filter.Get() {
				case "done":
					if !t.Done {
						continue
					}
				case "open":
					if t.Done {
						continue
					}
				}
				out = append(out, t)
			}
			return out
		})

		add := func(_ *store.Store, args ...any) (any, error) {
			text, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			text = strings.TrimSpace(text)
			if text == "" {
				return nil, errors.New("todo text is empty")
			}
			todo := Todo{ID: nextID.Peek(), Text: text}
			reactive.Batch(func() {
				nextID.Set(todo.ID + 1)
				items.Update(func(list []Todo) []Todo {
					return append(append([]Todo{}, list...), todo)
				})
			})
			return todo, nil
		}

		toggle := func(_ *store.Store, args ...any) (any, error) {
			id, err := intArg(args, 0)
			if err != nil {
				return nil, err
			}
			var found bool
			items.Update(func(list []Todo) []Todo {
				out := append([]Todo{}, list...)
				for i := range out {
					if out[i].ID == id {
						out[i].Done = !out[i].Done
						found = true
					}
				}
				return out
			})
			if !found {
				return nil, fmt.Errorf("no todo with id %d", id)
			}
			return nil, nil
		}

		setFilter := func(_ *store.Store, args ...any) (any, error) {
			f, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			switch f {
			case "all", "open", "done":
				filter.Set(f)
				return nil, nil
			}
			return nil, fmt.Errorf("unknown filter %q", f)
		}

		loadAction := func(*store.Store, ...any) (any, error) {
			if load == nil {
				return store.Resolved(0), nil
			}
			return store.Go(func() (any, error) {
				list, err := load(context.Background())
				if err != nil {
					return nil, err
				}
				maxID := 0
				for _, t := range list {
					if t.ID > maxID {
						maxID = t.ID
					}
				}
				reactive.Batch(func() {
					items.Set(list)
					nextID.Set(maxID + 1)
				})
				return len(list), nil
			}), nil
		}

		return store.NewFields().
			State("items", items).
			State("nextId", nextID).
			State("filter", store.SkipHydrate(filter)).
			Getter("remaining", remaining).
			Getter("visible", visible).
			Action("add", add).
			Action("toggle", toggle).
			Action("setFilter", setFilter).
			Action("load", loadAction)
	})
}

// Line is one cart entry.
type Line struct {
	SKU   string  `json:"sku"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

// ErrOverBudget is returned by the cart's checkout action.
var ErrOverBudget = errors.New("cart total exceeds budget")

// Cart is a setup store whose checkout action counts orders in Counter.
var Cart = store.DefineSetup("cart", func() *store.Fields {
	lines := reactive.NewSignal([]Line{})
	budget := reactive.NewSignal(100.0)

	total := reactive.NewMemo(func() float64 {
		var sum float64
		for _, l := range lines.Get() {
			sum += float64(l.Qty) * l.Price
		}
		return sum
	})

	add := func(_ *store.Store, args ...any) (any, error) {
		sku, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		price, err := floatArg(args, 1)
		if err != nil {
			return nil, err
		}
		qty := 1
		if len(args) > 2 {
			if qty, err = intArg(args, 2); err != nil {
				return nil, err
			}
		}
		lines.Update(func(list []Line) []Line {
			out := append([]Line{}, list...)
			for i := range out {
				if out[i].SKU == sku {
					out[i].Qty += qty
					out[i].Price = price
					return out
				}
			}
			return append(out, Line{SKU: sku, Qty: qty, Price: price})
		})
		return total.Peek(), nil
	}

	remove := func(_ *store.Store, args ...any) (any, error) {
		sku, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		lines.Update(func(list []Line) []Line {
			out := make([]Line, 0, len(list))
			for _, l := range list {
				if l.SKU != sku {
					out = append(out, l)
				}
			}
			return out
		})
		return total.Peek(), nil
	}

	checkout := func(s *store.Store, _ ...any) (any, error) {
		sum := total.Peek()
		if sum > budget.Peek() {
			return nil, ErrOverBudget
		}
		counter, err := Counter.Resolve(s.Registry())
		if err != nil {
			return nil, err
		}
		orders, err := counter.Call("increment")
		if err != nil {
			return nil, err
		}
		lines.Set([]Line{})
		return map[string]any{"total": sum, "orders": orders}, nil
	}

	return store.NewFields().
		State("lines", lines).
		State("budget", budget).
		Getter("total", total).
		Action("add", add).
		Action("remove", remove).
		Action("checkout", checkout)
})

// Definitions returns every demo store.
func Definitions(load Loader) []*store.Definition {
	return []*store.Definition{Counter, Todos(load), Cart}
}

// SampleTodos is a Loader returning a fixed list.
func SampleTodos(ctx context.Context) ([]Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []Todo{
		{ID: 1, Text: "Write the store", Done: true},
		{ID: 2, Text: "Persist snapshots"},
		{ID: 3, Text: "Stream mutations"},
	}, nil
}

func arg(args []any, i int) (any, error) {
	if i >= len(args) {
		return nil, fmt.Errorf("missing argument %d", i)
	}
	return args[i], nil
}

func intArg(args []any, i int) (int, error) {
	v, err := arg(args, i)
	if err != nil {
		return 0, err
	}
	return reactive.Convert[int](v)
}

func floatArg(args []any, i int) (float64, error) {
	v, err := arg(args, i)
	if err != nil {
		return 0, err
	}
	return reactive.Convert[float64](v)
}

func stringArg(args []any, i int) (string, error) {
	v, err := arg(args, i)
	if err != nil {
		return "", err
	}
	return reactive.Convert[string](v)
}
