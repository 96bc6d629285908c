// Package timeline holds the sorted sequence of events a subject browses
// through, and the cursors the display layer moves over it.
package timeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/class1/graduate/pkg/shootingtime"
)

var ErrOutOfRange = errors.New("timeline position out of range")

// Event is a named occasion with at least one experience.
type Event struct {
	Description string
	Experiences []*Experience

	// guarded by the owning Timeline
	onExperience int
}

func NewEvent(description string, experiences []*Experience) *Event {
	return &Event{Description: description, Experiences: experiences}
}

// Key is the shooting time of the first experience.
func (e *Event) Key() shootingtime.ShootingTime {
	return e.Experiences[0].ShotAt
}

// Equal compares events by description.
func (e *Event) Equal(o *Event) bool {
	return e.Description == o.Description
}

func (e *Event) Less(o *Event) bool {
	return e.Key().Before(o.Key())
}

// Timeline is the globally sorted event sequence of one session. Its structure
// is fixed by Merge; afterwards only experience payloads and the cursors change.
type Timeline struct {
	events []*Event

	mu      sync.RWMutex
	onEvent int
}

// Merge concatenates personal and shared events and sorts them by key. Ties
// keep concatenation order. Empty events are dropped.
func Merge(personal, shared []*Event) *Timeline {
	events := make([]*Event, 0, len(personal)+len(shared))
	for _, group := range [][]*Event{personal, shared} {
		for _, e := range group {
			if e == nil || len(e.Experiences) == 0 {
				continue
			}
			events = append(events, e)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Less(events[j])
	})
	return &Timeline{events: events}
}

func (t *Timeline) Len() int { return len(t.events) }

// Events returns the events in order. The slice is a copy; the events are shared.
func (t *Timeline) Events() []*Event {
	out := make([]*Event, len(t.events))
	copy(out, t.events)
	return out
}

func (t *Timeline) Event(i int) (*Event, error) {
	if i < 0 || i >= len(t.events) {
		return nil, fmt.Errorf("%w: event %d of %d", ErrOutOfRange, i, len(t.events))
	}
	return t.events[i], nil
}

// Slot addresses one experience by (event, experience) index.
func (t *Timeline) Slot(event, experience int) (*Experience, error) {
	e, err := t.Event(event)
	if err != nil {
		return nil, err
	}
	if experience < 0 || experience >= len(e.Experiences) {
		return nil, fmt.Errorf("%w: experience %d of %d in event %d", ErrOutOfRange, experience, len(e.Experiences), event)
	}
	return e.Experiences[experience], nil
}

// Locate returns the first index whose key is >= target, or Len() if none is.
func (t *Timeline) Locate(target shootingtime.ShootingTime) int {
	return sort.Search(len(t.events), func(i int) bool {
		return !t.events[i].Key().Before(target)
	})
}

// StartAt moves the event cursor to Locate(target), clamped to the last event.
func (t *Timeline) StartAt(target shootingtime.ShootingTime) int {
	i := t.Locate(target)
	if i >= len(t.events) {
		i = len(t.events) - 1
	}
	if i < 0 {
		i = 0
	}
	t.mu.Lock()
	t.onEvent = i
	t.mu.Unlock()
	return i
}

// Cursor returns the current event index and that event's experience index.
func (t *Timeline) Cursor() (event, experience int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.events) == 0 {
		return 0, 0
	}
	return t.onEvent, t.events[t.onEvent].onExperience
}

func (t *Timeline) Jump(event int) error {
	if event < 0 || event >= len(t.events) {
		return fmt.Errorf("%w: event %d of %d", ErrOutOfRange, event, len(t.events))
	}
	t.mu.Lock()
	t.onEvent = event
	t.mu.Unlock()
	return nil
}

// Seek moves both cursors, e.g. to restore a saved position.
func (t *Timeline) Seek(event, experience int) error {
	if _, err := t.Slot(event, experience); err != nil {
		return err
	}
	t.mu.Lock()
	t.onEvent = event
	t.events[event].onExperience = experience
	t.mu.Unlock()
	return nil
}

// NextEvent advances the event cursor. It returns false when already on the
// last event, which the caller treats as the end of the timeline.
func (t *Timeline) NextEvent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.onEvent+1 >= len(t.events) {
		return false
	}
	t.onEvent++
	return true
}

func (t *Timeline) PreviousEvent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.onEvent == 0 {
		return false
	}
	t.onEvent--
	return true
}

// NextExperience moves to the next photo of the current event, wrapping around.
func (t *Timeline) NextExperience() int {
	return t.stepExperience(1)
}

func (t *Timeline) PreviousExperience() int {
	return t.stepExperience(-1)
}

func (t *Timeline) stepExperience(delta int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.events) == 0 {
		return 0
	}
	e := t.events[t.onEvent]
	n := len(e.Experiences)
	e.onExperience = ((e.onExperience+delta)%n + n) % n
	return e.onExperience
}
