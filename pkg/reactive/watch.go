package reactive

type watchConfig struct {
	sync      bool
	immediate bool
}

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

// FlushSync makes the watcher fire inside the write that changed its
// source instead of on the owner's next flush.
func FlushSync() WatchOption {
	return func(c *watchConfig) { c.sync = true }
}

// Immediate also fires the callback for the initial value, with the zero
// value as old.
func Immediate() WatchOption {
	return func(c *watchConfig) { c.immediate = true }
}

// Watch re-evaluates source whenever one of the signals it reads changes
// and calls callback with the new and previous results. The callback runs
// untracked. The watcher belongs to the current owner; stop detaches it
// early.
//
// Example:
//
//	stop := reactive.Watch(count.Get, func(n, prev int) {
//	    log.Printf("count %d -> %d", prev, n)
//	})
//	defer stop()
func Watch[T any](source func() T, callback func(value, old T), opts ...WatchOption) (stop func()) {
	var cfg watchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var effOpts []EffectOption
	if cfg.sync {
		effOpts = append(effOpts, Sync())
	}

	var last T
	first := true
	e := CreateEffect(func() Cleanup {
		value := source()
		prev := last
		last = value
		if first {
			first = false
			if !cfg.immediate {
				return nil
			}
		}
		Untracked(func() {
			callback(value, prev)
		})
		return nil
	}, effOpts...)

	return e.Stop
}
