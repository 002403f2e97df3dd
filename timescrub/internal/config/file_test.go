package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.Capture.Width != 1920 || c.Capture.Height != 1080 {
		t.Errorf("viewport: got %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if c.Capture.Settle != 500*time.Millisecond || c.Capture.NavTimeout != 30*time.Second {
		t.Errorf("timings: settle=%v nav=%v", c.Capture.Settle, c.Capture.NavTimeout)
	}
	if !c.Capture.StealthEnabled() {
		t.Error("stealth should default to on")
	}
	if c.PixelDiff.Threshold != 0.05 || c.PixelDiff.Highlight != "#ff0000" || c.PixelDiff.Grid != 50 {
		t.Errorf("pixeldiff: got %+v", c.PixelDiff)
	}
	if c.Bookmarks.Backend != "memory" || c.HTTP.Addr != ":8086" {
		t.Errorf("bookmarks=%q addr=%q", c.Bookmarks.Backend, c.HTTP.Addr)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timescrub.yaml")
	data := `
archive:
  base_url: http://archive.internal:3001
  api_prefix: /api/v1
capture:
  width: 1280
  stealth: false
  resource_blocking: [media, fonts]
pixeldiff:
  threshold: 0.1
bookmarks:
  backend: sqlite
  path: /var/lib/timescrub/bookmarks.db
sinks:
  - type: stdout
  - type: webhook
    url: http://hooks.local/ts
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Archive.APIPrefix != "/api/v1" || c.Archive.BaseURL != "http://archive.internal:3001" {
		t.Errorf("archive: got %+v", c.Archive)
	}
	if c.Capture.Width != 1280 || c.Capture.Height != 1080 {
		t.Errorf("viewport: got %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if c.Capture.StealthEnabled() {
		t.Error("explicit stealth: false must be kept")
	}
	if len(c.Capture.ResourceBlocking) != 2 {
		t.Errorf("resource blocking: got %v", c.Capture.ResourceBlocking)
	}
	if c.PixelDiff.Threshold != 0.1 || c.PixelDiff.Dim != 0.1 {
		t.Errorf("pixeldiff: got %+v", c.PixelDiff)
	}
	if len(c.Sinks) != 2 || c.Sinks[1].URL != "http://hooks.local/ts" {
		t.Errorf("sinks: got %+v", c.Sinks)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad yaml":        "archive: [",
		"sqlite no path":  "bookmarks: {backend: sqlite}",
		"unknown backend": "bookmarks: {backend: redis}",
		"webhook no url":  "sinks: [{type: webhook}]",
		"unknown sink":    "sinks: [{type: nats}]",
		"archive scheme":  "archive: {base_url: 'file:///srv/archive'}",
		"webhook scheme":  "sinks: [{type: webhook, url: 'ftp://hooks.local'}]",
	}
	for name, data := range cases {
		if _, err := Parse([]byte(data)); err == nil || !strings.HasPrefix(err.Error(), "config:") {
			t.Errorf("%s: got %v, want config error", name, err)
		}
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
