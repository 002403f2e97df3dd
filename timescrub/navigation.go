package timescrub

import (
	"context"

	"github.com/hazyhaar/timescrub/timescrub/event"
)

// Open loads the timeline of pageURL and resolves current, the compact
// timestamp of the route being shown. Opening always leaves diff mode.
// A load failure is returned and also reported in the selection's Error,
// with no selection.
func (e *Engine) Open(ctx context.Context, pageURL, current string) (event.Selection, error) {
	e.coord.Exit()

	e.mu.Lock()
	if pageURL != e.url {
		e.nav.SetTimeline(nil)
	}
	e.url = pageURL
	e.nav.SetCurrent(current)
	e.mu.Unlock()

	_, err := e.store.Load(ctx, pageURL)
	if err != nil && e.store.Err() != err {
		// Overtaken by a newer load; its outcome is the one that counts.
		err = nil
	}

	e.mu.Lock()
	if e.url == pageURL {
		e.nav.SetTimeline(e.store.Current())
	}
	e.mu.Unlock()

	sel := e.Selection(ctx)
	e.logger.Info("timescrub: open", "url", pageURL, "current", sel.Current,
		"snapshots", sel.Length, "selected", sel.SelectedIndex)
	e.emitSelection(sel)
	return sel, err
}

// SetCurrent reports that the route now shows the snapshot at current.
// A selection change leaves diff mode.
func (e *Engine) SetCurrent(ctx context.Context, current string) event.Selection {
	e.mu.Lock()
	before := e.nav.Selected()
	after := e.nav.SetCurrent(current)
	e.mu.Unlock()

	if after != before {
		e.coord.Exit()
	}
	sel := e.Selection(ctx)
	e.emitSelection(sel)
	return sel
}

// Selection returns the current selection state.
func (e *Engine) Selection(ctx context.Context) event.Selection {
	e.mu.Lock()
	tl := e.nav.Timeline()
	sel := event.Selection{
		URL:           e.url,
		Current:       e.nav.Current(),
		Length:        tl.Len(),
		SelectedIndex: e.nav.Selected(),
		CanPrev:       e.nav.CanStep(-1),
		CanNext:       e.nav.CanStep(1),
	}
	snap, snapErr := e.nav.SelectedSnapshot()
	e.mu.Unlock()

	sel.Comparing = e.coord.Comparing()
	sel.DiffTargetIndex = e.coord.Target()
	sel.Mode = string(e.coord.Mode())
	sel.Status = string(e.coord.Status())
	if sel.Comparing {
		sel.CanPrev, sel.CanNext = false, false
	}
	sel.Loading = e.store.Loading()
	if err := e.store.Err(); err != nil {
		sel.Error = err.Error()
	}
	if snapErr == nil {
		ok, err := e.ledger.IsBookmarked(ctx, tl.URL, snap.Timestamp)
		if err != nil {
			e.logger.Debug("timescrub: bookmark lookup failed", "url", tl.URL, "error", err)
		}
		sel.Bookmarked = ok
	}
	return sel
}

// CanStep reports whether Step(delta) would produce an intent. Stepping is
// disabled while comparing.
func (e *Engine) CanStep(delta int) bool {
	if e.coord.Comparing() {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nav.CanStep(delta)
}

// Step emits the navigation intent for the neighbour at delta. ok is false
// at either boundary, without a selection and while comparing.
func (e *Engine) Step(ctx context.Context, delta int) (in event.Intent, ok bool) {
	if e.coord.Comparing() {
		return event.Intent{}, false
	}
	e.mu.Lock()
	in, ok = e.nav.Step(delta)
	e.mu.Unlock()
	if ok {
		e.logger.Debug("timescrub: step", "delta", delta, "to", in.CompactKey)
		e.emitIntent(in)
	}
	return in, ok
}

// ClickResult is what a tick click produced: a navigation intent in
// navigation, a diff request while comparing.
type ClickResult struct {
	Intent  *event.Intent  `json:"intent,omitempty"`
	Request *event.Request `json:"request,omitempty"`
}

// Click handles a click on the tick at index. While comparing, the clicked
// snapshot becomes From, the selected one To, and the sub-mode pipeline
// starts. Otherwise it emits a navigation intent.
func (e *Engine) Click(ctx context.Context, index int) (ClickResult, error) {
	if e.coord.Comparing() {
		e.mu.Lock()
		tl, selected := e.nav.Timeline(), e.nav.Selected()
		e.mu.Unlock()

		req, err := e.coord.Click(tl, index, selected)
		if err != nil {
			return ClickResult{}, err
		}
		ev := eventRequest(req)
		e.logger.Info("timescrub: compare", "url", req.URL,
			"from", req.From.CompactKey, "to", req.To.CompactKey, "mode", req.Mode)
		e.emitRequest(ev)
		e.start()
		return ClickResult{Request: &ev}, nil
	}

	e.mu.Lock()
	in, err := e.nav.NavigateTo(index)
	e.mu.Unlock()
	if err != nil {
		return ClickResult{}, err
	}
	e.emitIntent(in)
	return ClickResult{Intent: &in}, nil
}
