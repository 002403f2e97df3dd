package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/timescrub/timescrub/internal/archive"
)

// ErrLoad marks every timeline load failure (network or parse).
var ErrLoad = errors.New("timeline: load failure")

// Source lists snapshots from the archive backend.
type Source interface {
	Timeline(ctx context.Context, url string) (*archive.TimelineResponse, error)
}

// Store fetches and holds the timeline of the resource being viewed.
type Store struct {
	src    Source
	logger *slog.Logger

	mu      sync.Mutex
	gen     uint64
	current *Timeline
	url     string
	err     error
	loading bool
}

// NewStore creates a Store backed by src.
func NewStore(src Source, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{src: src, logger: logger}
}

// Load fetches the timeline of url and replaces the held one. A load that
// is overtaken by a newer Load returns its result without installing it.
// On failure the held timeline is cleared and the error kept for Err.
// No retry is attempted.
func (s *Store) Load(ctx context.Context, url string) (*Timeline, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.loading = true
	if s.url != url {
		s.current = nil
	}
	s.url = url
	s.mu.Unlock()

	tl, err := s.fetch(ctx, url)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Debug("timeline: superseded load dropped", "url", url)
		return tl, err
	}
	s.loading = false
	if err != nil {
		s.current = nil
		s.err = err
		s.logger.Warn("timeline: load failed", "url", url, "error", err)
		return nil, err
	}
	s.current = tl
	s.err = nil
	s.logger.Info("timeline: loaded", "url", url, "snapshots", tl.Len())
	return tl, nil
}

func (s *Store) fetch(ctx context.Context, url string) (*Timeline, error) {
	resp, err := s.src.Timeline(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	snaps := make([]Snapshot, len(resp.Snapshots))
	scored := true
	for i, e := range resp.Snapshots {
		snaps[i] = Snapshot{Timestamp: e.Timestamp, StatusCode: e.Status, Digest: e.Digest}
		if e.Intensity != nil {
			snaps[i].Intensity = *e.Intensity
		} else {
			scored = false
		}
	}

	snaps, dropped := Normalize(snaps)
	for _, d := range dropped {
		s.logger.Warn("timeline: duplicate compact key dropped", "url", url, "timestamp", d.Timestamp, "compact_key", d.CompactKey)
	}
	if !scored {
		for i, v := range DigestIntensity(snaps) {
			snaps[i].Intensity = v
		}
	}
	return &Timeline{URL: url, Snapshots: snaps}, nil
}

// Current returns the held timeline, nil before a successful load.
func (s *Store) Current() *Timeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// URL returns the resource of the latest Load.
func (s *Store) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Err returns the failure of the latest completed load, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Loading reports whether the latest Load is still in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}
