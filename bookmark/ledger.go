// Package bookmark keeps per-resource sets of bookmarked snapshot
// timestamps in client-local key-value storage. Each resource lives under
// its own key ("bookmarks_" + url) holding a JSON array of timestamps in
// insertion order, so sets of different resources never share storage.
//
// The ledger assumes a single writer: there is no merge or conflict
// resolution, and writes are last-write-wins per key.
package bookmark

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// KV is client-local persistent storage.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Key returns the storage key of url's bookmark set.
func Key(url string) string { return "bookmarks_" + url }

// Ledger reads and toggles bookmark sets.
type Ledger struct {
	kv     KV
	logger *slog.Logger
	mu     sync.Mutex
}

// New creates a Ledger over kv.
func New(kv KV, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{kv: kv, logger: logger}
}

// List returns the bookmarked timestamps of url in the order they were added.
// An unreadable stored value is logged and treated as an empty set.
func (l *Ledger) List(ctx context.Context, url string) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx, url)
}

// IsBookmarked reports whether ts is in url's set.
func (l *Ledger) IsBookmarked(ctx context.Context, url, ts string) (bool, error) {
	list, err := l.List(ctx, url)
	if err != nil {
		return false, err
	}
	return slices.Contains(list, ts), nil
}

// Toggle flips membership of ts in url's set and returns the new state.
func (l *Ledger) Toggle(ctx context.Context, url, ts string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	list, err := l.load(ctx, url)
	if err != nil {
		return false, err
	}
	on := false
	if i := slices.Index(list, ts); i >= 0 {
		list = slices.Delete(list, i, i+1)
	} else {
		list = append(list, ts)
		on = true
	}

	data, err := json.Marshal(list)
	if err != nil {
		return false, fmt.Errorf("bookmark: encode: %w", err)
	}
	if err := l.kv.Set(ctx, Key(url), string(data)); err != nil {
		return false, fmt.Errorf("bookmark: set %s: %w", url, err)
	}
	l.logger.Debug("bookmark: toggled", "url", url, "timestamp", ts, "bookmarked", on)
	return on, nil
}

func (l *Ledger) load(ctx context.Context, url string) ([]string, error) {
	raw, ok, err := l.kv.Get(ctx, Key(url))
	if err != nil {
		return nil, fmt.Errorf("bookmark: get %s: %w", url, err)
	}
	if !ok || raw == "" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		l.logger.Warn("bookmark: unreadable set ignored", "url", url, "error", err)
		return []string{}, nil
	}
	return list, nil
}
