package activity

import (
	"encoding/json"
	"testing"

	"github.com/computehome/launcher/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statuses(s *State) map[string]Status {
	out := make(map[string]Status, len(s.Activities))
	for _, a := range s.Activities {
		out[a.ID] = a.Status
	}
	return out
}

func newScenario(t *testing.T, ids ...string) *Tracker {
	t.Helper()
	tracker := NewTracker(store.NewScheduler())
	descriptors := make([]Descriptor, 0, len(ids))
	for _, id := range ids {
		descriptors = append(descriptors, Descriptor{ID: id, Title: "Step " + id})
	}
	tracker.Initialise(Settings{Title: "T", Activities: descriptors})
	return tracker
}

func TestTracker_Initialise(t *testing.T) {
	tracker := NewTracker(nil)
	assert.Nil(t, tracker.State())

	tracker.Initialise(Settings{
		Title:   "Starting",
		Message: "Please wait",
		Activities: []Descriptor{
			{ID: "a", Title: "First", SVG: "<svg/>"},
			{ID: "b", Title: "Second"},
		},
	})

	state := tracker.State()
	require.NotNil(t, state)
	assert.Equal(t, "Starting", state.Title)
	assert.Equal(t, "Please wait", state.Message)
	assert.Equal(t, []Activity{
		{ID: "a", Title: "First", SVG: "<svg/>", Status: Waiting},
		{ID: "b", Title: "Second", Status: Waiting},
	}, state.Activities)

	t.Run("replaces an existing scenario", func(t *testing.T) {
		tracker.Start("a", "going")
		tracker.Initialise(Settings{Title: "Again", Activities: []Descriptor{{ID: "c"}}})
		assert.Equal(t, "Again", tracker.State().Title)
		assert.Equal(t, "", tracker.State().Message)
		assert.Equal(t, map[string]Status{"c": Waiting}, statuses(tracker.State()))
	})
}

func TestTracker_StartPromotesEarlierSteps(t *testing.T) {
	tracker := newScenario(t, "a", "b")

	tracker.Start("b", "msg")

	state := tracker.State()
	assert.Equal(t, map[string]Status{"a": Succeeded, "b": Active}, statuses(state))
	assert.Equal(t, "msg", state.Message)
}

func TestTracker_StartLeavesLaterSteps(t *testing.T) {
	tracker := newScenario(t, "a", "b", "c")

	tracker.Start("a", "one")
	tracker.Start("b", "two")

	assert.Equal(t, map[string]Status{"a": Succeeded, "b": Active, "c": Waiting}, statuses(tracker.State()))
}

func TestTracker_StartKeepsFailedSteps(t *testing.T) {
	tracker := newScenario(t, "a", "b")

	tracker.Complete("a", false)
	tracker.Start("b", "")

	assert.Equal(t, map[string]Status{"a": Failed, "b": Active}, statuses(tracker.State()))
}

func TestTracker_StartUnknownID(t *testing.T) {
	tracker := newScenario(t, "a", "b")

	tracker.Start("a", "")
	tracker.Start("missing", "hello")

	assert.Equal(t, map[string]Status{"a": Succeeded, "b": Succeeded}, statuses(tracker.State()))
	assert.Equal(t, "hello", tracker.State().Message)

	t.Run("failed steps stay failed", func(t *testing.T) {
		tracker := newScenario(t, "a", "b")
		tracker.Complete("a", false)
		tracker.Start("missing", "")
		assert.Equal(t, map[string]Status{"a": Failed, "b": Succeeded}, statuses(tracker.State()))
	})

	t.Run("parallel scenarios are left alone", func(t *testing.T) {
		tracker := NewTracker(nil)
		tracker.Initialise(Settings{Parallel: true, Activities: []Descriptor{{ID: "a"}}})
		tracker.Start("missing", "m")
		assert.Equal(t, map[string]Status{"a": Waiting}, statuses(tracker.State()))
	})
}

func TestTracker_ParallelScenario(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Initialise(Settings{
		Parallel:   true,
		Activities: []Descriptor{{ID: "a"}, {ID: "b"}},
	})

	tracker.Start("a", "")
	tracker.Start("b", "")

	assert.Equal(t, map[string]Status{"a": Active, "b": Active}, statuses(tracker.State()))
}

func TestTracker_Complete(t *testing.T) {
	t.Run("only the named step changes", func(t *testing.T) {
		tracker := newScenario(t, "a", "b")
		tracker.Complete("a", true)
		assert.Equal(t, map[string]Status{"a": Succeeded, "b": Waiting}, statuses(tracker.State()))
	})

	t.Run("failure", func(t *testing.T) {
		tracker := newScenario(t, "a", "b")
		tracker.Start("b", "")
		tracker.Complete("b", false)
		assert.Equal(t, map[string]Status{"a": Succeeded, "b": Failed}, statuses(tracker.State()))
	})

	t.Run("unknown id is ignored", func(t *testing.T) {
		tracker := newScenario(t, "a")
		before := tracker.State()
		tracker.Complete("zzz", true)
		assert.Same(t, before, tracker.State())
	})
}

func TestTracker_Progress(t *testing.T) {
	tracker := newScenario(t, "a")

	tracker.Progress("a", 40)
	a, ok := tracker.State().Find("a")
	require.True(t, ok)
	assert.Equal(t, 40, a.Progress)

	tracker.Progress("a", 250)
	a, _ = tracker.State().Find("a")
	assert.Equal(t, 100, a.Progress)

	tracker.Progress("a", -5)
	a, _ = tracker.State().Find("a")
	assert.Equal(t, 0, a.Progress)

	tracker.Complete("a", true)
	a, _ = tracker.State().Find("a")
	assert.Equal(t, 100, a.Progress)
}

func TestTracker_Close(t *testing.T) {
	tracker := newScenario(t, "a", "b")
	tracker.Close()
	assert.Nil(t, tracker.State())

	assert.NotPanics(t, func() {
		tracker.Start("a", "x")
		tracker.Complete("a", true)
		tracker.Progress("a", 10)
	})
	assert.Nil(t, tracker.State(), "operations after close must not create a scenario")
}

func TestTracker_PublishedStatesAreImmutable(t *testing.T) {
	tracker := newScenario(t, "a", "b")

	var seen []*State
	tracker.Subscribe(func(s *State) { seen = append(seen, s) })

	tracker.Start("a", "one")
	tracker.Start("b", "two")

	require.Len(t, seen, 3)
	assert.Equal(t, map[string]Status{"a": Waiting, "b": Waiting}, statuses(seen[0]))
	assert.Equal(t, map[string]Status{"a": Active, "b": Waiting}, statuses(seen[1]))
	assert.Equal(t, map[string]Status{"a": Succeeded, "b": Active}, statuses(seen[2]))
}

func TestState_Finished(t *testing.T) {
	var nilState *State
	assert.False(t, nilState.Finished())

	tracker := newScenario(t, "a", "b")
	assert.False(t, tracker.State().Finished())
	tracker.Start("b", "")
	tracker.Complete("b", true)
	assert.True(t, tracker.State().Finished())
}

func TestState_JSON(t *testing.T) {
	tracker := newScenario(t, "a")
	tracker.Start("a", "m")

	data, err := json.Marshal(tracker.State())
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"T","message":"m","activities":[{"id":"a","title":"Step a","status":"active","progress":0}]}`, string(data))
}
