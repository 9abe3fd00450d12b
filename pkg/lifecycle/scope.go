// Package lifecycle provides disposal scopes.
//
// A Scope owns cleanup functions and child scopes. Disposing a scope
// disposes its children (last created first), then runs its own cleanups in
// reverse registration order. Scopes form a tree mirroring whatever owns
// them: a process, a server, a single HTTP connection.
//
//	root := lifecycle.FromContext(ctx) // disposed when ctx is cancelled
//	conn := lifecycle.NewScope(root)
//	conn.OnCleanup(func() { ws.Close() })
//	defer conn.Dispose()
package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
)

var idCounter atomic.Uint64

// Scope is a node in the disposal tree.
type Scope struct {
	id     uint64
	parent *Scope

	children   []*Scope
	childrenMu sync.Mutex

	cleanups   []func()
	cleanupsMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc

	disposed atomic.Bool
}

// NewScope creates a scope. A non-nil parent adopts it, so disposing the
// parent disposes the new scope too. Creating a child of a disposed parent
// returns an already-disposed scope.
func NewScope(parent *Scope) *Scope {
	base := context.Background()
	if parent != nil {
		base = parent.ctx
	}
	ctx, cancel := context.WithCancel(base)
	s := &Scope{
		id:     idCounter.Add(1),
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
	}
	if parent != nil {
		if !parent.addChild(s) {
			s.Dispose()
		}
	}
	return s
}

// FromContext returns a root scope that is disposed when ctx is done.
func FromContext(ctx context.Context) *Scope {
	s := NewScope(nil)
	stop := context.AfterFunc(ctx, s.Dispose)
	s.OnCleanup(func() { stop() })
	return s
}

var (
	rootOnce sync.Once
	root     *Scope
)

// Root returns the process-wide ambient scope. Components that are given
// no explicit scope attach themselves here; a main function may dispose it
// on shutdown.
func Root() *Scope {
	rootOnce.Do(func() {
		root = NewScope(nil)
	})
	return root
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() uint64 {
	return s.id
}

// Parent returns the parent scope, or nil for a root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Context returns a context cancelled when the scope is disposed.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Done is closed when the scope is disposed.
func (s *Scope) Done() <-chan struct{} {
	return s.ctx.Done()
}

// IsDisposed reports whether Dispose has been called.
func (s *Scope) IsDisposed() bool {
	return s.disposed.Load()
}

func (s *Scope) addChild(child *Scope) bool {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	if s.disposed.Load() {
		return false
	}
	s.children = append(s.children, child)
	return true
}

func (s *Scope) removeChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// OnCleanup registers fn to run when the scope is disposed. If the scope is
// already disposed, fn runs immediately.
func (s *Scope) OnCleanup(fn func()) {
	s.cleanupsMu.Lock()
	if s.disposed.Load() {
		s.cleanupsMu.Unlock()
		fn()
		return
	}
	s.cleanups = append(s.cleanups, fn)
	s.cleanupsMu.Unlock()
}

// Dispose tears the scope down: children first (newest first), then this
// scope's cleanups (newest first), then its context. It is idempotent.
func (s *Scope) Dispose() {
	// Hold both locks while flipping the flag so that a concurrent
	// OnCleanup or addChild either lands before disposal or sees it.
	s.childrenMu.Lock()
	s.cleanupsMu.Lock()
	if s.disposed.Swap(true) {
		s.cleanupsMu.Unlock()
		s.childrenMu.Unlock()
		return
	}
	children := s.children
	s.children = nil
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupsMu.Unlock()
	s.childrenMu.Unlock()

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	s.cancel()
}
