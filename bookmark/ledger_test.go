package bookmark

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/hazyhaar/timescrub/dbopen"

	_ "modernc.org/sqlite"
)

const ts = "2024-06-01T00:00:00"

func stores(t *testing.T) map[string]func() KV {
	t.Helper()
	mem := NewMemoryKV()
	db := dbopen.OpenMemory(t)
	path := filepath.Join(t.TempDir(), "bookmarks.json")
	return map[string]func() KV{
		"memory": func() KV { return mem },
		"sqlite": func() KV {
			kv, err := NewSQLiteKV(context.Background(), db)
			if err != nil {
				t.Fatal(err)
			}
			return kv
		},
		"file": func() KV {
			kv, err := OpenFileKV(path, nil)
			if err != nil {
				t.Fatal(err)
			}
			return kv
		},
	}
}

func TestLedger_ReloadScenario(t *testing.T) {
	// WHAT: a bookmark survives a fresh ledger over the same storage and
	// does not leak to another url.
	ctx := context.Background()
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			on, err := New(open(), nil).Toggle(ctx, "example.com", ts)
			if err != nil || !on {
				t.Fatalf("toggle: on=%v err=%v", on, err)
			}

			reloaded := New(open(), nil)
			ok, err := reloaded.IsBookmarked(ctx, "example.com", ts)
			if err != nil || !ok {
				t.Fatalf("same url: got %v, %v; want bookmarked", ok, err)
			}
			ok, err = reloaded.IsBookmarked(ctx, "other.example", ts)
			if err != nil || ok {
				t.Fatalf("other url: got %v, %v; want not bookmarked", ok, err)
			}
		})
	}
}

func TestLedger_ToggleIdempotence(t *testing.T) {
	ctx := context.Background()
	l := New(NewMemoryKV(), nil)
	l.Toggle(ctx, "example.com", "2024-01-01T00:00:00")

	for _, start := range []bool{false, true} {
		if start {
			l.Toggle(ctx, "example.com", ts)
		}
		before, _ := l.IsBookmarked(ctx, "example.com", ts)
		l.Toggle(ctx, "example.com", ts)
		l.Toggle(ctx, "example.com", ts)
		after, _ := l.IsBookmarked(ctx, "example.com", ts)
		if before != after {
			t.Fatalf("double toggle changed membership: %v -> %v", before, after)
		}
	}
}

func TestLedger_OrderedList(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	l := New(kv, nil)
	for _, s := range []string{"c", "a", "b"} {
		l.Toggle(ctx, "example.com", s)
	}
	l.Toggle(ctx, "example.com", "a")

	got, err := l.List(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"c", "b"}) {
		t.Fatalf("list: got %v, want [c b]", got)
	}
	raw, ok, _ := kv.Get(ctx, "bookmarks_example.com")
	if !ok || raw != `["c","b"]` {
		t.Fatalf("stored value: got %q", raw)
	}
}

func TestLedger_EmptyAndCorrupt(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	l := New(kv, nil)
	got, err := l.List(ctx, "example.com")
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("empty: got %v, %v", got, err)
	}

	kv.Set(ctx, Key("example.com"), "{broken")
	got, err = l.List(ctx, "example.com")
	if err != nil || len(got) != 0 {
		t.Fatalf("corrupt: got %v, %v", got, err)
	}
	if on, err := l.Toggle(ctx, "example.com", ts); err != nil || !on {
		t.Fatalf("toggle over corrupt value: on=%v err=%v", on, err)
	}
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, bool, error) { return "", false, errors.New("disk") }
func (failingKV) Set(context.Context, string, string) error         { return errors.New("disk") }

func TestLedger_StorageError(t *testing.T) {
	l := New(failingKV{}, nil)
	if _, err := l.Toggle(context.Background(), "example.com", ts); err == nil {
		t.Fatal("expected storage error")
	}
}

func TestFileKV_WatchReloads(t *testing.T) {
	// WHAT: a write from another process is picked up without reopening.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := filepath.Join(t.TempDir(), "kv.json")

	reader, err := OpenFileKV(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := reader.Watch(ctx); err != nil {
		t.Fatal(err)
	}

	writer, err := OpenFileKV(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := writer.Set(ctx, Key("example.com"), `["`+ts+`"]`); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok, _ := reader.Get(ctx, Key("example.com")); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher did not reload the file")
}

func TestFileKV_FailedWriteKeepsState(t *testing.T) {
	// WHAT: a Set whose write fails leaves memory and disk on the old value.
	// WHY: Get must never report a bookmark that a restart would lose.
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.json")
	kv, err := OpenFileKV(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(ctx, "a", "1"); err != nil {
		t.Fatal(err)
	}

	// A directory in place of the temp file makes the write fail.
	if err := os.Mkdir(path+".tmp", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path+".tmp", "x"), nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(ctx, "a", "2"); err == nil {
		t.Fatal("expected write error")
	}
	if err := kv.Set(ctx, "b", "1"); err == nil {
		t.Fatal("expected write error")
	}

	if v, _, _ := kv.Get(ctx, "a"); v != "1" {
		t.Fatalf("a: got %q, want 1", v)
	}
	if _, ok, _ := kv.Get(ctx, "b"); ok {
		t.Fatal("b: got present, want absent")
	}
	reopened, err := OpenFileKV(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v, _, _ := reopened.Get(ctx, "a"); v != "1" {
		t.Fatalf("a on disk: got %q, want 1", v)
	}
}
