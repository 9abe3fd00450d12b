// Package cell provides pull-based reactive value containers.
//
// A Cell holds one value. Get reads it on demand; Subscribe registers a
// callback that runs after every change. Derived read-only views are built
// with Map and never store a copy of the value: Get always projects the
// current source value.
//
//	count := cell.New(0)
//	doubled := cell.Map[int](count, func(n int) int { return n * 2 })
//	stop := doubled.Subscribe(func(v int) { fmt.Println("doubled:", v) })
//	count.Set(4) // prints "doubled: 8"
//	stop()
//
// All types are safe for concurrent use. Callbacks run synchronously on the
// goroutine that performed the write, after internal locks are released.
package cell

import (
	"reflect"
	"sync"
)

// View is the read-only side of a cell.
type View[T any] interface {
	// Get returns the current value.
	Get() T

	// Subscribe registers fn to be called with the new value after every
	// change. The returned function removes the subscription.
	Subscribe(fn func(T)) (unsubscribe func())
}

// subscribers is the type-erased callback registry shared by Cell.
type subscribers[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	fns    map[uint64]func(T)
	order  []uint64
}

func (s *subscribers[T]) add(fn func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[uint64]func(T))
	}
	s.nextID++
	id := s.nextID
	s.fns[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *subscribers[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fns, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// notify calls every subscriber in registration order. The list is copied
// first so callbacks may subscribe or unsubscribe freely.
func (s *subscribers[T]) notify(v T) {
	s.mu.RLock()
	fns := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.fns[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (s *subscribers[T]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Cell is a mutable, observable value.
type Cell[T any] struct {
	mu    sync.RWMutex
	value T
	equal func(a, b T) bool
	subs  subscribers[T]
}

// New creates a cell holding initial.
func New[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// WithEquals sets the equality used to decide whether Set is a change.
// Returning false unconditionally makes every write notify.
func (c *Cell[T]) WithEquals(fn func(a, b T) bool) *Cell[T] {
	c.mu.Lock()
	c.equal = fn
	c.mu.Unlock()
	return c
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set stores v and notifies subscribers if it differs from the old value.
func (c *Cell[T]) Set(v T) {
	c.Update(func(T) T { return v })
}

// Update atomically replaces the value with fn(old).
func (c *Cell[T]) Update(fn func(T) T) {
	c.mu.Lock()
	old := c.value
	next := fn(old)
	changed := !c.equals(old, next)
	if changed {
		c.value = next
	}
	c.mu.Unlock()

	if changed {
		c.subs.notify(next)
	}
}

// Subscribe implements View.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	return c.subs.add(fn)
}

// Subscribers returns the number of registered callbacks.
func (c *Cell[T]) Subscribers() int {
	return c.subs.len()
}

func (c *Cell[T]) equals(a, b T) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return Equal(a, b)
}

// Equal is the default equality: == for comparable dynamic types (so
// pointers and errors compare by identity), reflect.DeepEqual otherwise.
func Equal[T any](a, b T) bool {
	ai, bi := any(a), any(b)
	if ai == nil || bi == nil {
		return ai == nil && bi == nil
	}
	ta, tb := reflect.TypeOf(ai), reflect.TypeOf(bi)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return ai == bi
	}
	return reflect.DeepEqual(a, b)
}
