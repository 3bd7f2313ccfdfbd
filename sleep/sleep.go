// Package sleep provides a synchronization primitive that allows a single
// goroutine to efficiently sleep while waiting for events from multiple
// sources, each represented by a Waker
//
// The goroutine that wants to sleep does something like:
//
//	var s sleep.Sleeper
//	s.AddWaker(&w1, 1)
//	s.AddWaker(&w2, 2)
//	for {
//		switch id, _ := s.Fetch(true); id {
//		case 1:
//			// Handle event from w1
//		case 2:
//			// Handle event from w2
//		}
//	}
//
// and any number of goroutines can then cause it to wake up by calling
// w1.Assert() or w2.Assert()
package sleep

import "sync"

// Waker represents a source of events that a Sleeper can wait on and that
// other goroutines can assert to wake the sleeper up
//
// The zero value for Waker is an unasserted waker ready for use. A Waker
// should be registered with at most one Sleeper at a time
type Waker struct {
	mu       sync.Mutex
	asserted bool
	owner    *Sleeper
	id       int
}

// Assert marks the waker as asserted and wakes up the Sleeper it is
// registered with, if any. Asserting an already-asserted waker is a no-op
func (w *Waker) Assert() {
	w.mu.Lock()
	already := w.asserted
	w.asserted = true
	owner := w.owner
	w.mu.Unlock()

	if !already && owner != nil {
		owner.signal()
	}
}

// Clear clears the asserted state of the waker
func (w *Waker) Clear() {
	w.mu.Lock()
	w.asserted = false
	w.mu.Unlock()
}

// IsAsserted returns whether the waker is currently asserted
func (w *Waker) IsAsserted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.asserted
}

// consume atomically checks and clears the asserted flag, returning whether
// it was set
func (w *Waker) consume() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.asserted {
		return false
	}
	w.asserted = false
	return true
}

func (w *Waker) register(s *Sleeper, id int) {
	w.mu.Lock()
	w.owner = s
	w.id = id
	w.mu.Unlock()
}

// Sleeper allows a goroutine to block until one of potentially many wakers
// associated with it is asserted
//
// The zero value for Sleeper is an empty sleeper with no wakers, ready to
// use
type Sleeper struct {
	mu     sync.Mutex
	cond   *sync.Cond
	wakers []*Waker
	done   bool
}

func (s *Sleeper) condLocked() *sync.Cond {
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
	return s.cond
}

// AddWaker associates the given waker with the sleeper and the given id,
// which is returned by Fetch when the waker is the one that caused the
// sleeper to wake up
func (s *Sleeper) AddWaker(w *Waker, id int) {
	w.register(s, id)

	s.mu.Lock()
	s.wakers = append(s.wakers, w)
	s.mu.Unlock()
}

// signal wakes up any goroutine blocked in Fetch
func (s *Sleeper) signal() {
	s.mu.Lock()
	s.condLocked().Broadcast()
	s.mu.Unlock()
}

// Fetch checks all wakers associated with the sleeper and returns the id and
// true for one that is asserted. If none is asserted and block is true,
// Fetch blocks until one becomes asserted; if block is false, Fetch returns
// immediately with ok set to false
func (s *Sleeper) Fetch(block bool) (id int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.condLocked()

	for {
		wakers := s.wakers
		for _, w := range wakers {
			if w.consume() {
				return w.id, true
			}
		}

		if !block || s.done {
			return 0, false
		}

		s.cond.Wait()
	}
}

// Done removes all wakers from the sleeper and releases any goroutine
// currently blocked in Fetch. It is the caller's responsibility to ensure no
// other goroutine calls AddWaker concurrently with Done
func (s *Sleeper) Done() {
	s.mu.Lock()
	s.wakers = nil
	s.done = true
	s.condLocked().Broadcast()
	s.mu.Unlock()
}
