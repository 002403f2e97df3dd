// Package navigate derives the selected snapshot from a timeline and the
// current compact timestamp, and turns prev/next and tick clicks into
// navigation intents. It never changes the selection itself: the routing
// layer acts on the intent and reports the new current timestamp back.
package navigate

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/timescrub/timescrub/event"
	"github.com/hazyhaar/timescrub/timescrub/internal/timeline"
)

var (
	// ErrSelectionUnresolved reports that the current timestamp is not in
	// the timeline. It renders as "no selection" and is never fatal.
	ErrSelectionUnresolved = errors.New("navigate: selection unresolved")

	// ErrIndexOutOfRange is returned for a tick index outside the timeline.
	ErrIndexOutOfRange = errors.New("navigate: index out of range")
)

// Controller tracks the selected index for one timeline.
type Controller struct {
	tl       *timeline.Timeline
	current  string
	selected int
}

// New creates a Controller with no timeline and no selection.
func New() *Controller {
	return &Controller{selected: -1}
}

// Resolve replaces both inputs and recomputes the selection.
func (c *Controller) Resolve(tl *timeline.Timeline, current string) int {
	c.tl = tl
	c.current = timeline.CompactKey(current)
	return c.recompute()
}

// SetTimeline replaces the timeline and recomputes the selection. A nil
// timeline (failed or pending load) leaves the selection unresolved.
func (c *Controller) SetTimeline(tl *timeline.Timeline) int {
	c.tl = tl
	return c.recompute()
}

// SetCurrent replaces the current timestamp and recomputes the selection.
func (c *Controller) SetCurrent(current string) int {
	c.current = timeline.CompactKey(current)
	return c.recompute()
}

func (c *Controller) recompute() int {
	c.selected = c.tl.IndexOf(c.current)
	return c.selected
}

// Timeline returns the timeline the selection is derived from.
func (c *Controller) Timeline() *timeline.Timeline { return c.tl }

// Current returns the compact current timestamp.
func (c *Controller) Current() string { return c.current }

// Selected returns the selected index, -1 when unresolved.
func (c *Controller) Selected() int { return c.selected }

// SelectedSnapshot returns the selected snapshot or ErrSelectionUnresolved.
func (c *Controller) SelectedSnapshot() (timeline.Snapshot, error) {
	s, ok := c.tl.At(c.selected)
	if !ok {
		return timeline.Snapshot{}, fmt.Errorf("%w: %q", ErrSelectionUnresolved, c.current)
	}
	return s, nil
}

// CanStep reports whether Step(delta) would move. Hosts disable the
// prev/next controls when it is false. Only -1 and 1 are steps.
func (c *Controller) CanStep(delta int) bool {
	if c.selected < 0 || (delta != -1 && delta != 1) {
		return false
	}
	next := c.selected + delta
	return next >= 0 && next < c.tl.Len()
}

// Step returns the intent for the neighbour at delta. Steps past either
// boundary, or without a selection, are no-ops reported by ok=false.
func (c *Controller) Step(delta int) (in event.Intent, ok bool) {
	if !c.CanStep(delta) {
		return event.Intent{}, false
	}
	in, err := c.NavigateTo(c.selected + delta)
	return in, err == nil
}

// NavigateTo returns the intent to show the snapshot at index.
func (c *Controller) NavigateTo(index int) (event.Intent, error) {
	s, ok := c.tl.At(index)
	if !ok {
		return event.Intent{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, c.tl.Len())
	}
	return event.Intent{
		URL:        c.tl.URL,
		Index:      index,
		CompactKey: s.CompactKey,
		Timestamp:  s.Timestamp,
	}, nil
}
