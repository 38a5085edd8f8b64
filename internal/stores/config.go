package stores

import (
	"github.com/computehome/launcher/internal/activity"
	"github.com/computehome/launcher/internal/bus"
	"github.com/computehome/launcher/internal/protocol"
	"github.com/computehome/launcher/internal/store"
)

// ConfigStore caches the configuration the backend pushes once a session is
// established.
type ConfigStore struct {
	subscription

	bus      *bus.Bus
	activity *activity.Tracker
	config   *store.Writable[*protocol.Config]
}

// NewConfigStore subscribes a config store to b.
func NewConfigStore(sched *store.Scheduler, b *bus.Bus, tracker *activity.Tracker) *ConfigStore {
	s := &ConfigStore{
		bus:      b,
		activity: tracker,
		config:   store.New[*protocol.Config](sched, nil),
	}
	s.attach(b, s.handle)
	return s
}

func (s *ConfigStore) handle(m protocol.Message) {
	switch m.Type {
	case protocol.TypeConnected:
		s.activity.Start(StepConfig, "Authenticating...")
	case protocol.TypeConfig:
		if m.Config == nil {
			return
		}
		s.config.Set(m.Config)
		s.activity.Complete(StepConfig, true)
	}
}

// Config returns the cached configuration, nil before the first push.
func (s *ConfigStore) Config() store.Readable[*protocol.Config] {
	return s.config
}

// Request asks the backend to push the configuration again.
func (s *ConfigStore) Request() bool {
	return s.bus.Send(protocol.RequestConfig())
}
