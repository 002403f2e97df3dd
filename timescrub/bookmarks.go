package timescrub

import "context"

// ToggleBookmark flips the bookmark on the selected snapshot and reports
// whether it is now bookmarked. Without a selection it returns
// ErrSelectionUnresolved.
func (e *Engine) ToggleBookmark(ctx context.Context) (bool, error) {
	e.mu.Lock()
	snap, err := e.nav.SelectedSnapshot()
	tl := e.nav.Timeline()
	e.mu.Unlock()
	if err != nil {
		return false, err
	}
	pageURL := tl.URL
	on, err := e.ToggleBookmarkAt(ctx, pageURL, snap.Timestamp)
	if err != nil {
		return false, err
	}
	e.emitSelection(e.Selection(ctx))
	return on, nil
}

// ToggleBookmarkAt flips the bookmark on the snapshot of pageURL at ts.
// Membership is by exact timestamp.
func (e *Engine) ToggleBookmarkAt(ctx context.Context, pageURL, ts string) (bool, error) {
	on, err := e.ledger.Toggle(ctx, pageURL, ts)
	if err != nil {
		return false, err
	}
	e.logger.Info("timescrub: bookmark", "url", pageURL, "timestamp", ts, "bookmarked", on)
	return on, nil
}

// IsBookmarked reports whether the snapshot of pageURL at ts is bookmarked.
func (e *Engine) IsBookmarked(ctx context.Context, pageURL, ts string) (bool, error) {
	return e.ledger.IsBookmarked(ctx, pageURL, ts)
}

// Bookmarks lists the bookmarked timestamps of pageURL in insertion order.
func (e *Engine) Bookmarks(ctx context.Context, pageURL string) ([]string, error) {
	return e.ledger.List(ctx, pageURL)
}
