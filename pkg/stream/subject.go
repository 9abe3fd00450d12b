package stream

import "sync"

// Subject is a hot, multicast Stream. Values pushed with Next are delivered
// to every current subscriber; late subscribers only see later values.
// After Error or Complete, new subscribers receive the terminal
// notification immediately.
type Subject[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subjectEntry[T]
	done   bool
	err    error
}

type subjectEntry[T any] struct {
	id  uint64
	obs Observer[T]
}

// NewSubject returns an empty Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Subscribe implements Stream.
func (s *Subject[T]) Subscribe(o Observer[T]) Subscription {
	s.mu.Lock()
	if s.done {
		err := s.err
		s.mu.Unlock()
		if err != nil {
			o.Error(err)
		} else {
			o.Complete()
		}
		return NewSubscription()
	}
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subjectEntry[T]{id: id, obs: o})
	s.mu.Unlock()

	return NewSubscription(func() { s.remove(id) })
}

func (s *Subject[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.subs {
		if e.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// snapshot copies the subscriber list so that callbacks run without the
// lock held.
func (s *Subject[T]) snapshot() []subjectEntry[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.done {
		return nil
	}
	subs := make([]subjectEntry[T], len(s.subs))
	copy(subs, s.subs)
	return subs
}

// Next pushes v to all current subscribers.
func (s *Subject[T]) Next(v T) {
	for _, e := range s.snapshot() {
		e.obs.Next(v)
	}
}

// Error terminates the subject with err.
func (s *Subject[T]) Error(err error) {
	s.terminate(err, true)
}

// Complete terminates the subject normally.
func (s *Subject[T]) Complete() {
	s.terminate(nil, false)
}

func (s *Subject[T]) terminate(err error, isErr bool) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.err = err
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()

	for _, e := range subs {
		if isErr {
			e.obs.Error(err)
		} else {
			e.obs.Complete()
		}
	}
}

// Observers returns the number of current subscribers.
func (s *Subject[T]) Observers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
