// Package activity tracks a single multi-step operation ("scenario") such as
// authenticating, fetching configuration and fetching containers, so the
// presentation layer can show which step is running.
package activity

import (
	"slices"

	"github.com/computehome/launcher/internal/store"
)

// Status is the state of one step.
type Status uint8

const (
	Waiting Status = iota
	Active
	Failed
	Succeeded
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Active:
		return "active"
	case Failed:
		return "failed"
	case Succeeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

// MarshalText renders the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Descriptor describes a step when a scenario is initialised.
type Descriptor struct {
	ID    string
	Title string
	SVG   string
}

// Settings describe a new scenario.
type Settings struct {
	Title      string
	Message    string
	Activities []Descriptor
	// Parallel disables the promotion of preceding steps in Start.
	Parallel bool
}

// Activity is one step of a running scenario.
type Activity struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SVG      string `json:"svg,omitempty"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
}

// State is a running scenario. Published states are never modified; every
// change publishes a fresh copy.
type State struct {
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Activities []Activity `json:"activities"`

	parallel bool
}

// Find returns the step with the given id.
func (s *State) Find(id string) (Activity, bool) {
	if s == nil {
		return Activity{}, false
	}
	for _, a := range s.Activities {
		if a.ID == id {
			return a, true
		}
	}
	return Activity{}, false
}

// Finished reports whether every step succeeded.
func (s *State) Finished() bool {
	if s == nil || len(s.Activities) == 0 {
		return false
	}
	for _, a := range s.Activities {
		if a.Status != Succeeded {
			return false
		}
	}
	return true
}

func (s *State) clone() *State {
	c := *s
	c.Activities = slices.Clone(s.Activities)
	return &c
}

// Tracker holds the current scenario, or nil when none is running.
type Tracker struct {
	state *store.Writable[*State]
}

// NewTracker creates a tracker with no scenario.
func NewTracker(sched *store.Scheduler) *Tracker {
	return &Tracker{state: store.New[*State](sched, nil)}
}

// State returns the current scenario, nil if none. The result must be
// treated as read-only.
func (t *Tracker) State() *State {
	return t.state.Get()
}

// Subscribe observes scenario changes.
func (t *Tracker) Subscribe(fn func(*State)) func() {
	return t.state.Subscribe(fn)
}

// Readable exposes the tracker as a read-only store.
func (t *Tracker) Readable() store.Readable[*State] {
	return t.state
}

// Initialise replaces any scenario with a new one in which every step is
// waiting.
func (t *Tracker) Initialise(settings Settings) {
	state := &State{
		Title:      settings.Title,
		Message:    settings.Message,
		Activities: make([]Activity, 0, len(settings.Activities)),
		parallel:   settings.Parallel,
	}
	for _, d := range settings.Activities {
		state.Activities = append(state.Activities, Activity{
			ID:     d.ID,
			Title:  d.Title,
			SVG:    d.SVG,
			Status: Waiting,
		})
	}
	t.state.Set(state)
}

// Start marks a step active and updates the scenario message. Unless the
// scenario is parallel, every waiting or active step before it is marked as
// succeeded; with an unknown id that is every waiting or active step. Without
// a scenario this does nothing.
func (t *Tracker) Start(id, message string) {
	t.modify(func(s *State) bool {
		s.Message = message
		s.update(id, func(a *Activity) { a.Status = Active })
		if s.parallel {
			return true
		}
		for i := range s.Activities {
			a := &s.Activities[i]
			if a.ID == id {
				break
			}
			if a.Status == Waiting || a.Status == Active {
				a.Status = Succeeded
				a.Progress = 100
			}
		}
		return true
	})
}

// Progress records how far a step has got, clamped to 0–100.
func (t *Tracker) Progress(id string, percent int) {
	percent = min(max(percent, 0), 100)
	t.modify(func(s *State) bool {
		return s.update(id, func(a *Activity) { a.Progress = percent })
	})
}

// Complete marks a step as succeeded or failed. Unknown ids are ignored.
func (t *Tracker) Complete(id string, success bool) {
	t.modify(func(s *State) bool {
		return s.update(id, func(a *Activity) {
			if success {
				a.Status = Succeeded
				a.Progress = 100
			} else {
				a.Status = Failed
			}
		})
	})
}

// Close discards the scenario.
func (t *Tracker) Close() {
	t.state.Set(nil)
}

// modify applies fn to a copy of the scenario and publishes it if fn reports
// a change.
func (t *Tracker) modify(fn func(*State) bool) {
	t.state.Modify(func(current *State) (*State, bool) {
		if current == nil {
			return nil, false
		}
		next := current.clone()
		return next, fn(next)
	})
}

func (s *State) update(id string, fn func(*Activity)) bool {
	for i := range s.Activities {
		if s.Activities[i].ID == id {
			fn(&s.Activities[i])
			return true
		}
	}
	return false
}
