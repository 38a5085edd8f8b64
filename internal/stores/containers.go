package stores

import (
	"slices"

	"github.com/computehome/launcher/internal/activity"
	"github.com/computehome/launcher/internal/bus"
	"github.com/computehome/launcher/internal/protocol"
	"github.com/computehome/launcher/internal/store"
)

// ContainersStore caches the user's containers in the order the backend
// listed them. They are fetched as soon as the user is known.
type ContainersStore struct {
	subscription

	bus        *bus.Bus
	activity   *activity.Tracker
	containers *store.Writable[[]protocol.Container]
}

// NewContainersStore subscribes a containers store to b.
func NewContainersStore(sched *store.Scheduler, b *bus.Bus, tracker *activity.Tracker) *ContainersStore {
	s := &ContainersStore{
		bus:        b,
		activity:   tracker,
		containers: store.New[[]protocol.Container](sched, nil),
	}
	s.attach(b, s.handle)
	return s
}

func (s *ContainersStore) handle(m protocol.Message) {
	switch m.Type {
	case protocol.TypeUser:
		s.activity.Start(StepContainers, "Fetching your containers...")
		s.bus.Send(protocol.RequestContainers())
	case protocol.TypeContainers:
		s.containers.Set(slices.Clone(m.Containers))
		s.activity.Complete(StepContainers, true)
	case protocol.TypeUnauthorised, protocol.TypeLoggedOut:
		s.containers.Set(nil)
	}
}

// Containers returns the cached list.
func (s *ContainersStore) Containers() store.Readable[[]protocol.Container] {
	return s.containers
}

// Running returns the running containers in list order.
func (s *ContainersStore) Running() []protocol.Container {
	var running []protocol.Container
	for _, c := range s.containers.Get() {
		if c.IsRunning() {
			running = append(running, c)
		}
	}
	return running
}

// Refresh asks the backend for the list again.
func (s *ContainersStore) Refresh() bool {
	return s.bus.Send(protocol.RequestContainers())
}
