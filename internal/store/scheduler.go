package store

import (
	"sync"

	"github.com/computehome/launcher/internal/recovery"
)

// Scheduler runs tasks one at a time in FIFO order. The goroutine that
// enqueues into an idle scheduler drains the queue itself, so a call made
// while nothing else is running has completed every resulting notification
// by the time it returns. Calls made while another goroutine (or an enclosing
// task) is draining only enqueue.
type Scheduler struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
}

// NewScheduler creates an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule appends tasks to the queue and drains it if no one else is.
func (s *Scheduler) Schedule(tasks ...func()) {
	if s.push(tasks...) {
		s.drain()
	}
}

// push enqueues tasks and reports whether the caller now owns draining.
func (s *Scheduler) push(tasks ...func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = append(s.queue, tasks...)
	if s.draining || len(s.queue) == 0 {
		return false
	}
	s.draining = true
	return true
}

func (s *Scheduler) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		recovery.Run("store task", task)
	}
}
