package stores

import (
	"github.com/computehome/launcher/internal/activity"
	"github.com/computehome/launcher/internal/bus"
	"github.com/computehome/launcher/internal/protocol"
	"github.com/computehome/launcher/internal/store"
)

// UserStore caches the authenticated user and the unauthorised and
// logged-out flags. A config push means the session is valid again, so it
// clears both flags and fetches the user.
type UserStore struct {
	subscription

	bus            *bus.Bus
	activity       *activity.Tracker
	user           *store.Writable[*protocol.User]
	isUnauthorised *store.Writable[bool]
	isLoggedOut    *store.Writable[bool]
}

// NewUserStore subscribes a user store to b.
func NewUserStore(sched *store.Scheduler, b *bus.Bus, tracker *activity.Tracker) *UserStore {
	s := &UserStore{
		bus:            b,
		activity:       tracker,
		user:           store.New[*protocol.User](sched, nil),
		isUnauthorised: store.NewComparable(sched, false),
		isLoggedOut:    store.NewComparable(sched, false),
	}
	s.attach(b, s.handle)
	return s
}

func (s *UserStore) handle(m protocol.Message) {
	switch m.Type {
	case protocol.TypeConfig:
		s.isUnauthorised.Set(false)
		s.isLoggedOut.Set(false)
		s.activity.Start(StepUser, "Fetching your details...")
		s.bus.Send(protocol.RequestUser())
	case protocol.TypeUser:
		if m.User == nil {
			return
		}
		s.user.Set(m.User)
		s.activity.Complete(StepUser, true)
	case protocol.TypeUnauthorised:
		s.activity.Close()
		s.user.Set(nil)
		s.isUnauthorised.Set(true)
	case protocol.TypeLoggedOut:
		s.activity.Close()
		s.user.Set(nil)
		s.isLoggedOut.Set(true)
	}
}

// User returns the current user, nil when unknown.
func (s *UserStore) User() store.Readable[*protocol.User] {
	return s.user
}

func (s *UserStore) IsUnauthorised() store.Readable[bool] {
	return s.isUnauthorised
}

func (s *UserStore) IsLoggedOut() store.Readable[bool] {
	return s.isLoggedOut
}
