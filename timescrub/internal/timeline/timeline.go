// Package timeline holds the ordered snapshot list of the resource being
// viewed and the compact key used to address snapshots in routes.
package timeline

import (
	"sort"
	"strings"
)

// Snapshot is one archived capture of a resource.
type Snapshot struct {
	Timestamp  string  `json:"timestamp"`
	CompactKey string  `json:"compact_key"`
	StatusCode int     `json:"status_code"`
	Digest     string  `json:"digest"`
	Intensity  float64 `json:"intensity"`
}

// Timeline is the ascending snapshot sequence of one URL. A Timeline is
// replaced wholesale, never mutated after construction.
type Timeline struct {
	URL       string     `json:"url"`
	Snapshots []Snapshot `json:"snapshots"`
}

// CompactKey strips the separators of a canonical timestamp and truncates
// sub-second precision: "2024-06-01T00:00:00.123Z" becomes "20240601000000".
// Compact input is returned unchanged.
func CompactKey(ts string) string {
	if i := strings.IndexByte(ts, '.'); i >= 0 {
		ts = ts[:i]
	}
	ts = strings.TrimSuffix(ts, "Z")
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', ':', 'T':
			return -1
		}
		return r
	}, ts)
}

// Len returns the number of snapshots; a nil Timeline has none.
func (t *Timeline) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Snapshots)
}

// At returns the snapshot at i.
func (t *Timeline) At(i int) (Snapshot, bool) {
	if i < 0 || i >= t.Len() {
		return Snapshot{}, false
	}
	return t.Snapshots[i], true
}

// IndexOf returns the index whose compact key equals compactKey(current),
// or -1. No nearest-match fallback is attempted.
func (t *Timeline) IndexOf(current string) int {
	key := CompactKey(current)
	if key == "" {
		return -1
	}
	for i := 0; i < t.Len(); i++ {
		if t.Snapshots[i].CompactKey == key {
			return i
		}
	}
	return -1
}

// Dropped describes a snapshot removed during normalisation.
type Dropped struct {
	Timestamp  string
	CompactKey string
}

// Normalize fills compact keys, sorts ascending by timestamp (stable), drops
// later snapshots that collide on compact key and clamps intensity to
// [0,1]. It returns the dropped entries so callers can log them.
func Normalize(snaps []Snapshot) ([]Snapshot, []Dropped) {
	out := make([]Snapshot, len(snaps))
	copy(out, snaps)
	for i := range out {
		out[i].CompactKey = CompactKey(out[i].Timestamp)
		out[i].Intensity = clamp(out[i].Intensity)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })

	var dropped []Dropped
	seen := make(map[string]bool, len(out))
	kept := out[:0]
	for _, s := range out {
		if seen[s.CompactKey] {
			dropped = append(dropped, Dropped{Timestamp: s.Timestamp, CompactKey: s.CompactKey})
			continue
		}
		seen[s.CompactKey] = true
		kept = append(kept, s)
	}
	return kept, dropped
}

// DigestIntensity scores each snapshot 1 when its digest differs from its
// predecessor and 0 otherwise. The first snapshot scores 0.
func DigestIntensity(snaps []Snapshot) []float64 {
	out := make([]float64, len(snaps))
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Digest != snaps[i-1].Digest {
			out[i] = 1
		}
	}
	return out
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	}
	return v
}
