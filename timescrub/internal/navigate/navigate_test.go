package navigate

import (
	"errors"
	"testing"

	"github.com/hazyhaar/timescrub/timescrub/internal/timeline"
)

func sample() *timeline.Timeline {
	snaps, _ := timeline.Normalize([]timeline.Snapshot{
		{Timestamp: "2024-01-01T00:00:00"},
		{Timestamp: "2024-06-01T00:00:00"},
		{Timestamp: "2025-01-01T00:00:00"},
	})
	return &timeline.Timeline{URL: "example.com", Snapshots: snaps}
}

func TestResolve_Scenario(t *testing.T) {
	c := New()
	if got := c.Resolve(sample(), "20240601000000"); got != 1 {
		t.Fatalf("selected: got %d, want 1", got)
	}
	s, err := c.SelectedSnapshot()
	if err != nil || s.Timestamp != "2024-06-01T00:00:00" {
		t.Fatalf("selected snapshot: got %+v, %v", s, err)
	}
}

func TestResolve_Absent(t *testing.T) {
	c := New()
	if got := c.Resolve(sample(), "20240602000000"); got != -1 {
		t.Fatalf("selected: got %d, want -1", got)
	}
	if _, err := c.SelectedSnapshot(); !errors.Is(err, ErrSelectionUnresolved) {
		t.Fatalf("error: got %v, want ErrSelectionUnresolved", err)
	}
}

func TestRecompute_OnEitherInput(t *testing.T) {
	// WHAT: the selection follows both the timeline and the current timestamp.
	c := New()
	c.SetCurrent("20250101000000")
	if c.Selected() != -1 {
		t.Fatal("no timeline yet, selection must be -1")
	}
	if got := c.SetTimeline(sample()); got != 2 {
		t.Fatalf("after timeline: got %d, want 2", got)
	}
	if got := c.SetCurrent("2024-01-01T00:00:00"); got != 0 {
		t.Fatalf("after current: got %d, want 0", got)
	}
	if got := c.SetTimeline(nil); got != -1 {
		t.Fatalf("after cleared timeline: got %d, want -1", got)
	}
}

func TestStep_Boundaries(t *testing.T) {
	c := New()
	c.Resolve(sample(), "20240101000000")
	if c.CanStep(-1) {
		t.Error("prev must be disabled at index 0")
	}
	if _, ok := c.Step(-1); ok {
		t.Error("step(-1) at 0 must be a no-op")
	}
	if c.Selected() != 0 {
		t.Errorf("selection moved: %d", c.Selected())
	}

	c.SetCurrent("20250101000000")
	if _, ok := c.Step(+1); ok {
		t.Error("step(+1) at last index must be a no-op")
	}

	in, ok := c.Step(-1)
	if !ok {
		t.Fatal("step(-1) at last index should move")
	}
	if in.CompactKey != "20240601000000" || in.Index != 1 || in.URL != "example.com" {
		t.Fatalf("intent: got %+v", in)
	}
	if c.Selected() != 2 {
		t.Error("Step must not change the selection; the routing layer does")
	}
}

func TestStep_OnlyAdjacent(t *testing.T) {
	// WHAT: prev/next move by exactly one snapshot; larger offsets and 0
	// are rejected even when the target index exists.
	c := New()
	c.Resolve(sample(), "20240101000000")
	for _, delta := range []int{2, -2, 0} {
		if c.CanStep(delta) {
			t.Errorf("CanStep(%d): got true, want false", delta)
		}
		if _, ok := c.Step(delta); ok {
			t.Errorf("Step(%d): got ok, want no-op", delta)
		}
	}
	if _, ok := c.Step(1); !ok {
		t.Fatal("Step(1) should still move")
	}
}

func TestStep_NoSelection(t *testing.T) {
	c := New()
	c.Resolve(sample(), "19990101000000")
	if c.CanStep(1) || c.CanStep(-1) {
		t.Fatal("no step without a selection")
	}
}

func TestNavigateTo(t *testing.T) {
	c := New()
	c.Resolve(sample(), "20240601000000")
	in, err := c.NavigateTo(2)
	if err != nil {
		t.Fatal(err)
	}
	if in.CompactKey != "20250101000000" || in.Timestamp != "2025-01-01T00:00:00" {
		t.Fatalf("intent: got %+v", in)
	}
	if _, err := c.NavigateTo(3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("error: got %v, want ErrIndexOutOfRange", err)
	}
	if _, err := c.NavigateTo(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("error: got %v, want ErrIndexOutOfRange", err)
	}
}
