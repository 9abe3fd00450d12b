package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_CleanupsRunInReverse(t *testing.T) {
	s := NewScope(nil)
	var order []int
	s.OnCleanup(func() { order = append(order, 1) })
	s.OnCleanup(func() { order = append(order, 2) })
	s.OnCleanup(func() { order = append(order, 3) })

	s.Dispose()
	s.Dispose()

	assert.Equal(t, []int{3, 2, 1}, order)
	assert.True(t, s.IsDisposed())
}

func TestScope_ChildrenDisposedFirst(t *testing.T) {
	parent := NewScope(nil)
	a := NewScope(parent)
	b := NewScope(parent)

	var order []string
	parent.OnCleanup(func() { order = append(order, "parent") })
	a.OnCleanup(func() { order = append(order, "a") })
	b.OnCleanup(func() { order = append(order, "b") })

	parent.Dispose()

	assert.Equal(t, []string{"b", "a", "parent"}, order)
	assert.True(t, a.IsDisposed())
	assert.True(t, b.IsDisposed())
}

func TestScope_ChildDisposalDetachesFromParent(t *testing.T) {
	parent := NewScope(nil)
	child := NewScope(parent)
	calls := 0
	child.OnCleanup(func() { calls++ })

	child.Dispose()
	parent.Dispose()

	assert.Equal(t, 1, calls)
	assert.Same(t, parent, child.Parent())
}

func TestScope_OnCleanupAfterDisposeRunsImmediately(t *testing.T) {
	s := NewScope(nil)
	s.Dispose()

	ran := false
	s.OnCleanup(func() { ran = true })
	assert.True(t, ran)
}

func TestScope_ChildOfDisposedParentIsDisposed(t *testing.T) {
	parent := NewScope(nil)
	parent.Dispose()

	child := NewScope(parent)
	assert.True(t, child.IsDisposed())
}

func TestScope_ContextCancelledOnDispose(t *testing.T) {
	parent := NewScope(nil)
	child := NewScope(parent)

	parent.Dispose()

	select {
	case <-child.Done():
	default:
		t.Fatal("child context should be cancelled")
	}
	assert.ErrorIs(t, child.Context().Err(), context.Canceled)
}

func TestFromContext_DisposesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := FromContext(ctx)

	cancel()
	require.Eventually(t, s.IsDisposed, time.Second, 5*time.Millisecond)
}

func TestRoot_IsStable(t *testing.T) {
	assert.Same(t, Root(), Root())
	assert.NotZero(t, Root().ID())
}
