// Package notify provides a small typed publish/subscribe primitive used for
// in-process state notifications (sensor changes, magazine transitions,
// turret events).
package notify

import (
	"sort"
	"sync"
)

// Notifier fans a value out to registered handlers.
//
// Handlers run synchronously on the publishing goroutine, in subscription
// order, after the internal lock is released. A handler may therefore
// subscribe or cancel, but must not block for long.
//
// The zero value is ready to use.
type Notifier[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[uint64]entry[T]
}

type entry[T any] struct {
	fn   func(T)
	once bool
}

// Subscribe registers fn for every future Publish. The returned cancel
// function is idempotent.
func (n *Notifier[T]) Subscribe(fn func(T)) (cancel func()) {
	return n.add(fn, false)
}

// Once registers fn for the next Publish only. Calling cancel before that
// removes it; calling it afterwards is a no-op.
func (n *Notifier[T]) Once(fn func(T)) (cancel func()) {
	return n.add(fn, true)
}

func (n *Notifier[T]) add(fn func(T), once bool) func() {
	n.mu.Lock()
	if n.handlers == nil {
		n.handlers = make(map[uint64]entry[T])
	}
	n.nextID++
	id := n.nextID
	n.handlers[id] = entry[T]{fn: fn, once: once}
	n.mu.Unlock()

	var cancelOnce sync.Once
	return func() {
		cancelOnce.Do(func() {
			n.mu.Lock()
			delete(n.handlers, id)
			n.mu.Unlock()
		})
	}
}

// Publish delivers v to every current handler. One-shot handlers are
// removed before any handler runs, so a nested Publish cannot deliver to
// them twice.
func (n *Notifier[T]) Publish(v T) {
	n.mu.Lock()
	ids := make([]uint64, 0, len(n.handlers))
	for id := range n.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		e := n.handlers[id]
		fns = append(fns, e.fn)
		if e.once {
			delete(n.handlers, id)
		}
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of registered handlers.
func (n *Notifier[T]) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.handlers)
}
