// Package serial provides a non-blocking, single-consumer task queue.
//
// A Queue runs submitted tasks one at a time, in submission order, on
// whichever goroutine happens to find the queue idle. Tasks submitted while
// the queue is draining (including from inside a running task) are appended
// and executed by the draining goroutine after the current task returns.
// Dispatch never blocks waiting for another goroutine.
package serial

import "sync"

// Queue serializes task execution. The zero value is ready to use.
type Queue struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
	closed  bool
}

// Dispatch submits fn for execution. If no other goroutine is draining the
// queue, fn (and anything it enqueues) runs on the calling goroutine before
// Dispatch returns. Tasks submitted after Close are discarded.
func (q *Queue) Dispatch(fn func()) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.tasks = append(q.tasks, fn)
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	q.drain()
}

func (q *Queue) drain() {
	// A panicking task must not leave the queue marked as running forever.
	defer func() {
		if r := recover(); r != nil {
			q.mu.Lock()
			q.running = false
			q.mu.Unlock()
			panic(r)
		}
	}()

	for {
		q.mu.Lock()
		if q.closed || len(q.tasks) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}
		fn := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		fn()
	}
}

// Close discards pending tasks and rejects future ones. A task already
// executing on another goroutine is allowed to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.tasks = nil
	q.mu.Unlock()
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of tasks waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
