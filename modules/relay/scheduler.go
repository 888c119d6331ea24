package relay

import (
	"sync"
	"time"
)

// promotionScheduler runs one cancellable delayed task per message id.
type promotionScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

func newPromotionScheduler() *promotionScheduler {
	return &promotionScheduler{timers: make(map[string]*time.Timer)}
}

// schedule runs fn after delay unless cancelled first. Rescheduling an id
// replaces its pending task.
func (s *promotionScheduler) schedule(id string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		current, ok := s.timers[id]
		if !ok || current != timer || s.closed {
			s.mu.Unlock()
			return
		}
		delete(s.timers, id)
		s.mu.Unlock()
		fn()
	})
	s.timers[id] = timer
	return true
}

// cancel stops the pending task for id. It reports whether one was pending.
func (s *promotionScheduler) cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.timers[id]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, id)
	return true
}

// pending returns the number of scheduled tasks.
func (s *promotionScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// stop cancels every pending task and refuses new ones.
func (s *promotionScheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
