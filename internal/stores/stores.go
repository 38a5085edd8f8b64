// Package stores holds the domain caches fed by the message bus. Each store
// reacts only to the tags it owns, may send follow-up requests or move the
// activity tracker along, and never touches another store.
package stores

import (
	"sync"

	"github.com/computehome/launcher/internal/protocol"
)

// Step ids used in the connection scenario.
const (
	StepConnect    = "connect"
	StepConfig     = "config"
	StepUser       = "user"
	StepContainers = "containers"
)

// subscription unsubscribes from the bus exactly once.
type subscription struct {
	once        sync.Once
	unsubscribe func()
}

func (s *subscription) Shutdown() {
	s.once.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
	})
}

type subscriber interface {
	Subscribe(func(protocol.Message)) func()
}

func (s *subscription) attach(b subscriber, fn func(protocol.Message)) {
	s.unsubscribe = b.Subscribe(fn)
}
