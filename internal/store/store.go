// Package store provides small reactive containers: a value that notifies
// subscribers when replaced, and read-only values derived from another store.
// Notifications are delivered through a Scheduler so that every subscriber
// sees a published value before any re-publication made in reaction to it.
package store

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Readable is a value that can be read and observed.
type Readable[T any] interface {
	Get() T
	// Subscribe registers fn and delivers the current value to it. The
	// returned function removes the subscription and is safe to call twice.
	Subscribe(fn func(T)) (unsubscribe func())
}

type subscriber[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// Writable holds a value and notifies subscribers whenever it is replaced.
type Writable[T any] struct {
	sched *Scheduler
	equal func(a, b T) bool

	mu    sync.RWMutex
	value T
	subs  []*subscriber[T]
}

// New creates a store that notifies on every Set.
func New[T any](sched *Scheduler, initial T) *Writable[T] {
	if sched == nil {
		sched = NewScheduler()
	}
	return &Writable[T]{sched: sched, value: initial}
}

// NewComparable creates a store that skips notification when the new value
// equals the current one.
func NewComparable[T comparable](sched *Scheduler, initial T) *Writable[T] {
	w := New(sched, initial)
	w.equal = func(a, b T) bool { return a == b }
	return w
}

// Get returns the current value.
func (w *Writable[T]) Get() T {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.value
}

// Set replaces the value and schedules one notification per subscriber.
func (w *Writable[T]) Set(value T) {
	w.Update(func(T) T { return value })
}

// Update replaces the value with fn applied to the current one. fn runs with
// the store locked and must not touch the store.
func (w *Writable[T]) Update(fn func(T) T) {
	w.Modify(func(v T) (T, bool) { return fn(v), true })
}

// Modify is Update where fn may decline the change by returning false, in
// which case nobody is notified.
func (w *Writable[T]) Modify(fn func(T) (T, bool)) {
	w.mu.Lock()
	next, changed := fn(w.value)
	if !changed || (w.equal != nil && w.equal(w.value, next)) {
		w.mu.Unlock()
		return
	}
	w.value = next

	tasks := make([]func(), 0, len(w.subs))
	for _, sub := range w.subs {
		sub := sub
		tasks = append(tasks, func() {
			if sub.active.Load() {
				sub.fn(next)
			}
		})
	}
	owner := w.sched.push(tasks...)
	w.mu.Unlock()

	if owner {
		w.sched.drain()
	}
}

// Subscribe implements Readable.
func (w *Writable[T]) Subscribe(fn func(T)) func() {
	sub := &subscriber[T]{fn: fn}
	sub.active.Store(true)

	w.mu.Lock()
	w.subs = append(w.subs, sub)
	current := w.value
	owner := w.sched.push(func() {
		if sub.active.Load() {
			sub.fn(current)
		}
	})
	w.mu.Unlock()

	if owner {
		w.sched.drain()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			w.mu.Lock()
			w.subs = slices.DeleteFunc(w.subs, func(s *subscriber[T]) bool { return s == sub })
			w.mu.Unlock()
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (w *Writable[T]) Subscribers() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.subs)
}

// Derived is a read-only value computed from an upstream store. Get always
// reflects the upstream's current value; subscribers are notified after each
// upstream notification that changes the result.
type Derived[T any] struct {
	get   func() T
	inner *Writable[T]
	stop  func()
}

// Derive creates a Derived value tracking src through fn. Subscribers are only
// notified when the derived value actually changes.
func Derive[S any, T comparable](sched *Scheduler, src Readable[S], fn func(S) T) *Derived[T] {
	d := &Derived[T]{
		get:   func() T { return fn(src.Get()) },
		inner: NewComparable(sched, fn(src.Get())),
	}
	d.stop = src.Subscribe(func(v S) {
		d.inner.Set(fn(v))
	})
	return d
}

// Get implements Readable.
func (d *Derived[T]) Get() T {
	return d.get()
}

// Subscribe implements Readable.
func (d *Derived[T]) Subscribe(fn func(T)) func() {
	return d.inner.Subscribe(fn)
}

// Stop detaches subscribers from the upstream store. Get keeps working.
func (d *Derived[T]) Stop() {
	d.stop()
}
