package reactive

import "testing"

func TestOwnerBasic(t *testing.T) {
	owner := NewOwner(nil)

	if owner.ID() == 0 {
		t.Error("owner should have non-zero ID")
	}
	if owner.Parent() != nil {
		t.Error("root owner should have nil parent")
	}
	if owner.IsDisposed() || !owner.Active() {
		t.Error("new owner should be active")
	}
}

func TestOwnerHierarchy(t *testing.T) {
	root := NewOwner(nil)
	child := NewOwner(root)
	grandchild := NewOwner(child)

	if child.Parent() != root || grandchild.Parent() != child {
		t.Error("unexpected parent links")
	}
	if grandchild.Root() != root {
		t.Error("Root should walk to the top of the tree")
	}
}

func TestOwnerDisposeOrder(t *testing.T) {
	root := NewOwner(nil)
	child1 := NewOwner(root)
	child2 := NewOwner(root)
	grandchild := NewOwner(child1)

	order := []string{}
	add := func(name string) func() {
		return func() { order = append(order, name) }
	}

	grandchild.OnCleanup(add("grandchild"))
	child1.OnCleanup(add("child1"))
	child2.OnCleanup(add("child2"))
	root.OnCleanup(add("root-1"))
	root.OnCleanup(add("root-2"))

	root.Dispose()

	want := []string{"child2", "grandchild", "child1", "root-2", "root-1"}
	if len(order) != len(want) {
		t.Fatalf("disposal order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("disposal order = %v, want %v", order, want)
		}
	}

	for _, o := range []*Owner{root, child1, child2, grandchild} {
		if !o.IsDisposed() {
			t.Error("all owners should be disposed")
		}
	}
}

func TestOwnerDisposeIdempotent(t *testing.T) {
	owner := NewOwner(nil)
	calls := 0
	owner.OnCleanup(func() { calls++ })
	owner.Dispose()
	owner.Dispose()
	if calls != 1 {
		t.Errorf("cleanup should run once, got %d", calls)
	}
}

func TestOwnerOnCleanupAfterDispose(t *testing.T) {
	owner := NewOwner(nil)
	owner.Dispose()
	called := false
	owner.OnCleanup(func() { called = true })
	if !called {
		t.Error("cleanup registered on a disposed owner should run immediately")
	}
}

func TestOwnerChildDisposeDetaches(t *testing.T) {
	root := NewOwner(nil)
	child := NewOwner(root)
	child.Dispose()
	if len(root.children) != 0 {
		t.Error("disposed child should be removed from its parent")
	}
}

func TestOwnerNextTickRunsAfterEffects(t *testing.T) {
	root := NewOwner(nil)
	child := NewOwner(root)
	count := NewSignal(0)
	order := []string{}

	WithOwner(child, func() {
		CreateEffect(func() Cleanup {
			if count.Get() > 0 {
				order = append(order, "effect")
			}
			return nil
		})
	})

	count.Set(1)
	child.NextTick(func() { order = append(order, "tick") })

	if len(order) != 0 {
		t.Fatal("nothing should run before Flush")
	}
	child.Flush()

	if len(order) != 2 || order[0] != "effect" || order[1] != "tick" {
		t.Errorf("order = %v, want [effect tick]", order)
	}
}

func TestOwnerFlushRunsWorkQueuedByTicks(t *testing.T) {
	root := NewOwner(nil)
	count := NewSignal(0)
	seen := []int{}

	WithOwner(root, func() {
		CreateEffect(func() Cleanup {
			seen = append(seen, count.Get())
			return nil
		})
	})

	root.NextTick(func() { count.Set(5) })
	root.Flush()

	if len(seen) != 2 || seen[1] != 5 {
		t.Errorf("effect invalidated by a tick should run in the same Flush, got %v", seen)
	}
}

func TestOwnerNextTickDroppedOnDispose(t *testing.T) {
	root := NewOwner(nil)
	root.NextTick(func() { t.Error("tick should not run after dispose") })
	root.Dispose()
	root.Flush()
}
