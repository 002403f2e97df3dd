package capture

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "media": true, "xhr": true}
	cases := []struct {
		typ  string
		want bool
	}{
		{"Image", true},
		{"Media", true},
		{"Font", false},
		{"Stylesheet", false},
		{"XHR", true},
		{"Document", false},
	}
	for _, c := range cases {
		if got := shouldBlock(set, c.typ); got != c.want {
			t.Errorf("shouldBlock(%q): got %v, want %v", c.typ, got, c.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.defaults()
	if c.RecycleInterval != 4*time.Hour {
		t.Errorf("recycle: got %v", c.RecycleInterval)
	}
	if c.MemoryLimit != 1<<30 {
		t.Errorf("memory limit: got %d", c.MemoryLimit)
	}
	if c.Logger == nil {
		t.Error("logger should default")
	}
}

func TestManager_ClosedRefusesWork(t *testing.T) {
	// WHAT: a closed manager never launches Chrome.
	m := NewManager(Config{})
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Browser(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("browser: got %v, want ErrClosed", err)
	}
	if err := m.Recycle(); !errors.Is(err, ErrClosed) {
		t.Fatalf("recycle: got %v, want ErrClosed", err)
	}

	r := NewRodRenderer(m, func(ts, u string) string { return u })
	if _, err := r.RenderToBitmap(context.Background(), "example.com", "20240101000000", 10, 10); !errors.Is(err, ErrClosed) {
		t.Fatalf("render: got %v, want ErrClosed", err)
	}
}
