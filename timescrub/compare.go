package timescrub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hazyhaar/timescrub/timescrub/event"
	"github.com/hazyhaar/timescrub/timescrub/internal/archive"
	"github.com/hazyhaar/timescrub/timescrub/internal/diffmode"
	"github.com/hazyhaar/timescrub/timescrub/internal/pixeldiff"
	"github.com/hazyhaar/timescrub/timescrub/internal/structdiff"
	"github.com/hazyhaar/timescrub/timescrub/internal/surface"
	"github.com/hazyhaar/timescrub/timescrub/internal/timeline"
)

// ErrNotReady is returned when the active artifact is still loading or
// failed.
var ErrNotReady = errors.New("timescrub: artifact not ready")

// Re-exported artifact types.
type (
	View             = surface.View
	PixelOutput      = pixeldiff.Output
	StructuralResult = structdiff.Result
	TextDiff         = archive.TextDiff
	Resolution       = archive.Resolution
)

// ToggleDiff enters or leaves diff mode. Entering starts with no target.
func (e *Engine) ToggleDiff(ctx context.Context) event.Selection {
	state := e.coord.Toggle()
	e.logger.Info("timescrub: diff mode", "state", state.String(), "mode", e.coord.Mode())
	sel := e.Selection(ctx)
	e.emitSelection(sel)
	return sel
}

// SetMode switches the diff sub-mode. The pair is kept and the new mode's
// pipeline starts at once; re-selecting a failed mode retries it.
func (e *Engine) SetMode(ctx context.Context, mode string) error {
	m, err := diffmode.ParseMode(mode)
	if err != nil {
		return err
	}
	if err := e.coord.SetMode(m); err != nil {
		return err
	}
	if req, ok := e.coord.Active(); ok {
		e.emitRequest(eventRequest(req))
		e.start()
	}
	e.emitSelection(e.Selection(ctx))
	return nil
}

// SetSlider moves the slider-overlay divider and returns the clamped value.
func (e *Engine) SetSlider(pct int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.divider = surface.Clamp(pct)
	return e.divider
}

// SetOpacity sets the cross-fade opacity and returns the clamped value.
func (e *Engine) SetOpacity(pct int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opacity = surface.Clamp(pct)
	return e.opacity
}

// start runs the pipeline of the active request unless it is already
// running or its slot is filled. Surface modes complete inline.
func (e *Engine) start() {
	t, ok, err := e.coord.Begin()
	if err != nil || !ok {
		return
	}
	switch t.Mode {
	case diffmode.PixelDiff:
		if out, hit := e.pixel.Cached(t.URL, t.From.CompactKey, t.To.CompactKey); hit {
			e.complete(t, out, nil)
			return
		}
		e.spawn(func() {
			out, err := e.pixel.Run(t.Context(), t.URL, t.From.CompactKey, t.To.CompactKey)
			e.complete(t, out, err)
		})
	case diffmode.DOMDiff:
		e.spawn(func() { e.runStructural(t) })
	default:
		e.complete(t, e.view(t.Request), nil)
	}
}

func (e *Engine) runStructural(t diffmode.Ticket) {
	var mu sync.Mutex
	partial := structdiff.Result{URL: t.URL}
	onSide := func(which structdiff.Which, s structdiff.Side) {
		mu.Lock()
		if which == structdiff.FromSide {
			partial.From = s
		} else {
			partial.To = s
		}
		snap := partial
		mu.Unlock()
		e.emitMu.Lock()
		defer e.emitMu.Unlock()
		if e.coord.Publish(t, &snap) != nil {
			return
		}
		e.emitArtifact(event.Artifact{
			RequestID: t.ID,
			Mode:      string(t.Mode),
			Status:    string(diffmode.StatusLoading),
			Detail:    structuralDetail(&snap),
		})
	}
	res, err := e.structural.Run(t.Context(), t.URL, t.From.CompactKey, t.To.CompactKey, onSide)
	e.complete(t, res, err)
}

// complete stores a pipeline result. Results of superseded requests are
// dropped without trace beyond a debug log.
func (e *Engine) complete(t diffmode.Ticket, payload any, err error) {
	if err != nil {
		payload = nil
	}
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	if cerr := e.coord.Complete(t, payload, err); cerr != nil {
		return
	}
	art := event.Artifact{
		RequestID: t.ID,
		Mode:      string(t.Mode),
		Status:    string(diffmode.StatusReady),
		Detail:    detail(payload),
	}
	if err != nil {
		art.Status = string(diffmode.StatusFailed)
		art.Error = err.Error()
		e.logger.Warn("timescrub: pipeline failed", "request_id", t.ID, "mode", t.Mode,
			"from", t.From.CompactKey, "to", t.To.CompactKey, "error", err)
	}
	e.emitArtifact(art)
}

// PixelSummary is the artifact detail of a pixel diff.
type PixelSummary struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	DiffPixels int     `json:"diff_pixels"`
	Ratio      float64 `json:"ratio"`
	Regions    int     `json:"regions"`
	ElapsedMS  int64   `json:"elapsed_ms"`
}

// SideSummary is the per-side artifact detail of a structural diff.
type SideSummary struct {
	Loaded bool   `json:"loaded"`
	Error  string `json:"error,omitempty"`
}

func detail(payload any) any {
	switch p := payload.(type) {
	case *pixeldiff.Output:
		return PixelSummary{
			Width:      p.Result.Width,
			Height:     p.Result.Height,
			DiffPixels: p.Result.DiffPixels,
			Ratio:      p.Result.Ratio,
			Regions:    len(p.Result.Regions),
			ElapsedMS:  p.Elapsed.Milliseconds(),
		}
	case *structdiff.Result:
		return structuralDetail(p)
	case surface.View:
		return map[string]string{"mount_key": p.MountKey}
	}
	return nil
}

func structuralDetail(r *structdiff.Result) map[string]SideSummary {
	side := func(s structdiff.Side) SideSummary { return SideSummary{Loaded: s.Loaded, Error: s.Err} }
	return map[string]SideSummary{"from": side(r.From), "to": side(r.To)}
}

func (e *Engine) view(req diffmode.Request) surface.View {
	v := surface.New(string(req.Mode), req.URL,
		surface.Endpoint{Timestamp: req.From.Timestamp, CompactKey: req.From.CompactKey},
		surface.Endpoint{Timestamp: req.To.Timestamp, CompactKey: req.To.CompactKey},
		e.archive.ReplayURL,
	)
	e.mu.Lock()
	v.Divider, v.Opacity = e.divider, e.opacity
	e.mu.Unlock()
	return v
}

// Comparison is the full state of the active comparison for hosts.
type Comparison struct {
	Status     string            `json:"status"`
	Request    *event.Request    `json:"request,omitempty"`
	View       *View             `json:"view,omitempty"`
	Partial    bool              `json:"partial,omitempty"`
	Error      string            `json:"error,omitempty"`
	Pixel      *PixelSummary     `json:"pixel,omitempty"`
	Image      string            `json:"image,omitempty"` // data: URI of the difference image
	Structural *StructuralResult `json:"structural,omitempty"`
}

// Comparison returns the active request and its artifact.
func (e *Engine) Comparison() Comparison {
	c := Comparison{Status: string(e.coord.Status())}
	req, ok := e.coord.Active()
	if !ok {
		return c
	}
	ev := eventRequest(req)
	v := e.view(req)
	c.Request, c.View = &ev, &v

	art, ok := e.coord.Artifact()
	if !ok || art.Request.Generation != req.Generation {
		return c
	}
	c.Partial = art.Partial
	if art.Err != nil {
		c.Error = art.Err.Error()
	}
	switch p := art.Payload.(type) {
	case *pixeldiff.Output:
		s := detail(p).(PixelSummary)
		c.Pixel = &s
		c.Image = p.DataURI()
	case *structdiff.Result:
		c.Structural = p
	}
	return c
}

// Surface renders the HTML fragment of the active comparison: a
// placeholder without a target, a loading or failure notice for the
// asynchronous modes, the surface otherwise.
func (e *Engine) Surface() (string, error) {
	status := e.coord.Status()
	switch status {
	case diffmode.StatusIdle:
		return "", ErrNotComparing
	case diffmode.StatusPlaceholder:
		return surface.Placeholder(), nil
	}
	req, ok := e.coord.Active()
	if !ok {
		return surface.Placeholder(), nil
	}
	v := e.view(req)
	art, hasArt := e.coord.Artifact()
	if hasArt && !art.Partial && art.Err != nil {
		return surface.Failed(art.Err.Error()), nil
	}

	switch req.Mode {
	case diffmode.PixelDiff:
		out, ok := art.Payload.(*pixeldiff.Output)
		if !hasArt || !ok {
			return surface.Loading(), nil
		}
		return surface.Pixel(v, out.DataURI())
	case diffmode.DOMDiff:
		var from, to surface.DOMSide
		if res, ok := art.Payload.(*structdiff.Result); hasArt && ok {
			from, to = domSide(res.From), domSide(res.To)
		}
		return surface.DOM(v, from, to)
	}
	return v.HTML()
}

func domSide(s structdiff.Side) surface.DOMSide {
	return surface.DOMSide{Loaded: s.Loaded, Err: s.Err, Markup: s.Sanitized}
}

// PixelPNG returns the encoded difference image of the active pixel diff.
func (e *Engine) PixelPNG() ([]byte, error) {
	if _, err := e.active(); err != nil {
		return nil, err
	}
	art, ok := e.coord.Artifact()
	if !ok || art.Partial || art.Err != nil {
		return nil, ErrNotReady
	}
	out, ok := art.Payload.(*pixeldiff.Output)
	if !ok {
		return nil, fmt.Errorf("%w: mode is %s", ErrNotReady, art.Request.Mode)
	}
	return out.PNG, nil
}

// TextDiff fetches the archive's textual diff summary for the active pair.
func (e *Engine) TextDiff(ctx context.Context) (*TextDiff, error) {
	req, err := e.active()
	if err != nil {
		return nil, err
	}
	return e.archive.TextDiff(ctx, req.URL, req.From.CompactKey, req.To.CompactKey)
}

func (e *Engine) active() (diffmode.Request, error) {
	req, ok := e.coord.Active()
	if ok {
		return req, nil
	}
	if !e.coord.Comparing() {
		return diffmode.Request{}, ErrNotComparing
	}
	return diffmode.Request{}, ErrNoTarget
}

// Resolve asks the archive for the snapshot nearest to at. It is a lookup
// for hosts and never feeds the selection.
func (e *Engine) Resolve(ctx context.Context, pageURL, at string) (*Resolution, error) {
	return e.archive.Resolve(ctx, pageURL, timeline.CompactKey(at))
}

// PixelDiff runs the pixel pipeline for an explicit pair outside diff
// mode. Timestamps may be canonical or compact.
func (e *Engine) PixelDiff(ctx context.Context, pageURL, from, to string) (*PixelOutput, error) {
	return e.pixel.Run(ctx, pageURL, timeline.CompactKey(from), timeline.CompactKey(to))
}

// ReplayURL returns the archive replay address of pageURL at ts.
func (e *Engine) ReplayURL(ts, pageURL string) string {
	return e.archive.ReplayURL(timeline.CompactKey(ts), pageURL)
}

func eventRequest(r diffmode.Request) event.Request {
	return event.Request{
		ID:         r.ID,
		URL:        r.URL,
		From:       r.From.Timestamp,
		To:         r.To.Timestamp,
		FromKey:    r.From.CompactKey,
		ToKey:      r.To.CompactKey,
		Mode:       string(r.Mode),
		Generation: r.Generation,
	}
}
