package bookmark

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileKV keeps all keys in one JSON object file. Writes replace the file
// atomically. Watch reloads it when another process edits it.
type FileKV struct {
	path   string
	logger *slog.Logger

	mu sync.RWMutex
	m  map[string]string
}

// OpenFileKV loads path, starting empty when it does not exist.
func OpenFileKV(path string, logger *slog.Logger) (*FileKV, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &FileKV{path: path, logger: logger, m: make(map[string]string)}
	if err := f.reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FileKV) reload() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bookmark: read %s: %w", f.path, err)
	}
	m := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("bookmark: parse %s: %w", f.path, err)
		}
	}
	f.mu.Lock()
	f.m = m
	f.mu.Unlock()
	return nil
}

func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.m[key]
	return v, ok, nil
}

// Set persists the new value before it becomes visible; a failed write
// leaves the store unchanged.
func (f *FileKV) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := make(map[string]string, len(f.m)+1)
	for k, v := range f.m {
		next[k] = v
	}
	next[key] = value

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("bookmark: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("bookmark: mkdir: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("bookmark: write: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("bookmark: rename: %w", err)
	}
	f.m = next
	return nil
}

// Watch reloads the file on external changes until ctx is done. Events are
// debounced; a file that fails to parse keeps the previous content.
func (f *FileKV) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("bookmark: watcher: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.Close()
		return fmt.Errorf("bookmark: mkdir: %w", err)
	}
	// The directory is watched because atomic renames replace the file inode.
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("bookmark: watch %s: %w", dir, err)
	}

	go func() {
		defer w.Close()
		var debounce *time.Timer
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(f.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(100*time.Millisecond, func() {
					if err := f.reload(); err != nil {
						f.logger.Warn("bookmark: reload failed", "path", f.path, "error", err)
						return
					}
					f.logger.Debug("bookmark: reloaded", "path", f.path)
				})
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				f.logger.Warn("bookmark: watcher error", "error", err)
			}
		}
	}()
	return nil
}
