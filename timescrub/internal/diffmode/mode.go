package diffmode

import (
	"errors"
	"fmt"
)

// Mode is a comparison sub-mode.
type Mode string

const (
	SideBySide    Mode = "side-by-side"
	SliderOverlay Mode = "slider-overlay"
	CrossFade     Mode = "cross-fade"
	PixelDiff     Mode = "pixel-diff"
	DOMDiff       Mode = "dom-diff"
)

// Modes lists every sub-mode in display order.
var Modes = []Mode{SideBySide, SliderOverlay, CrossFade, PixelDiff, DOMDiff}

// ErrInvalidMode is returned by ParseMode for unknown names.
var ErrInvalidMode = errors.New("diffmode: invalid mode")

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// Async reports whether the mode runs an asynchronous pipeline. The other
// modes are presentation surfaces built synchronously from the pair.
func (m Mode) Async() bool {
	return m == PixelDiff || m == DOMDiff
}

// State is the coordinator's top-level state.
type State int

const (
	Navigation State = iota
	Comparing
)

func (s State) String() string {
	if s == Comparing {
		return "comparing"
	}
	return "navigation"
}

// Status describes the artifact slot of the active request.
type Status string

const (
	StatusIdle        Status = "idle"        // navigation, nothing to compare
	StatusPlaceholder Status = "placeholder" // comparing without a target
	StatusPending     Status = "pending"     // pair chosen, pipeline not started
	StatusLoading     Status = "loading"
	StatusReady       Status = "ready"
	StatusFailed      Status = "failed"
)
