// Package bus is the shared message slot every component observes. Inbound
// frames and locally synthesised events are published here; stores react to
// the tags they own and send requests back through the bound sender, so no
// store ever calls into another.
package bus

import (
	"sync"

	"github.com/computehome/launcher/internal/protocol"
	"github.com/computehome/launcher/internal/store"
)

// Sender delivers outbound messages. It reports whether the message was
// handed to the transport.
type Sender interface {
	Send(protocol.Message) bool
}

// Bus holds the most recent message and the outbound path.
type Bus struct {
	message *store.Writable[protocol.Message]

	mu     sync.RWMutex
	sender Sender
}

// New creates a bus whose notifications run on sched.
func New(sched *store.Scheduler) *Bus {
	return &Bus{message: store.New(sched, protocol.Message{})}
}

// Bind attaches the outbound path.
func (b *Bus) Bind(s Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sender = s
}

// Publish makes m the latest message and notifies every subscriber.
func (b *Bus) Publish(m protocol.Message) {
	b.message.Set(m)
}

// Latest returns the most recently published message.
func (b *Bus) Latest() protocol.Message {
	return b.message.Get()
}

// Subscribe registers fn for every published message. The current message is
// delivered first.
func (b *Bus) Subscribe(fn func(protocol.Message)) func() {
	return b.message.Subscribe(fn)
}

// Messages exposes the slot as a read-only store.
func (b *Bus) Messages() store.Readable[protocol.Message] {
	return b.message
}

// Send forwards m to the bound sender. Without one the message is dropped.
func (b *Bus) Send(m protocol.Message) bool {
	b.mu.RLock()
	s := b.sender
	b.mu.RUnlock()

	if s == nil {
		return false
	}
	return s.Send(m)
}
