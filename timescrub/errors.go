package timescrub

import (
	"github.com/hazyhaar/timescrub/timescrub/internal/archive"
	"github.com/hazyhaar/timescrub/timescrub/internal/diffmode"
	"github.com/hazyhaar/timescrub/timescrub/internal/navigate"
	"github.com/hazyhaar/timescrub/timescrub/internal/pixeldiff"
	"github.com/hazyhaar/timescrub/timescrub/internal/structdiff"
	"github.com/hazyhaar/timescrub/timescrub/internal/timeline"
)

// Errors returned by the Engine. Test with errors.Is.
var (
	ErrNotFound            = archive.ErrNotFound
	ErrNetwork             = archive.ErrNetwork
	ErrTimelineLoad        = timeline.ErrLoad
	ErrSelectionUnresolved = navigate.ErrSelectionUnresolved
	ErrIndexOutOfRange     = navigate.ErrIndexOutOfRange
	ErrCaptureFailure      = pixeldiff.ErrCaptureFailure
	ErrContentFetch        = structdiff.ErrContentFetch
	ErrStale               = diffmode.ErrStale
	ErrNotComparing        = diffmode.ErrNotComparing
	ErrNoTarget            = diffmode.ErrNoTarget
	ErrInvalidMode         = diffmode.ErrInvalidMode
)
