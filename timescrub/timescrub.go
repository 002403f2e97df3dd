// Package timescrub is the engine behind a snapshot-timeline UI for an
// archive of captured web pages. It loads the ordered snapshots of a URL,
// derives the selected snapshot from the current route, turns prev/next and
// tick clicks into navigation intents and runs the diff mode: side-by-side,
// slider and cross-fade surfaces plus the asynchronous pixel-diff and
// structural DOM-diff pipelines.
//
// Usage:
//
//	cfg, _ := timescrub.LoadConfigFile("timescrub.yaml")
//	eng, err := timescrub.New(cfg, timescrub.WithLogger(logger))
//	defer eng.Close()
//	eng.Open(ctx, "http://example.com/", "20240601000000")
//	http.ListenAndServe(cfg.HTTP.Addr, eng.Handler())
package timescrub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hazyhaar/timescrub/bookmark"
	"github.com/hazyhaar/timescrub/timescrub/internal/archive"
	"github.com/hazyhaar/timescrub/timescrub/internal/capture"
	"github.com/hazyhaar/timescrub/timescrub/internal/diffmode"
	"github.com/hazyhaar/timescrub/timescrub/internal/navigate"
	"github.com/hazyhaar/timescrub/timescrub/internal/pixeldiff"
	"github.com/hazyhaar/timescrub/timescrub/internal/sink"
	"github.com/hazyhaar/timescrub/timescrub/internal/structdiff"
	"github.com/hazyhaar/timescrub/timescrub/internal/timeline"
)

// Renderer renders a replay page off-screen. The default drives a
// headless Chrome; tests and embedders may inject their own.
type Renderer = pixeldiff.Renderer

// BookmarkStore is the string key/value capability bookmarks persist in.
type BookmarkStore = bookmark.KV

// Engine wires every component for one host UI. It is safe for concurrent
// use; pipelines complete on their own goroutines.
type Engine struct {
	cfg    *Config
	logger *slog.Logger

	archive    *archive.Client
	store      *timeline.Store
	coord      *diffmode.Coordinator
	pixel      *pixeldiff.Pipeline
	structural *structdiff.Pipeline
	ledger     *bookmark.Ledger
	sinks      *sink.Router

	mu      sync.Mutex
	nav     *navigate.Controller
	url     string
	divider int
	opacity int

	// emitMu pairs the staleness check of a result with its artifact
	// event, so events of one request are never reordered.
	emitMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	runMu     sync.Mutex
	closed    bool
	wg        sync.WaitGroup
	closers   []io.Closer
	closeOnce sync.Once
}

type options struct {
	logger     *slog.Logger
	renderer   Renderer
	kv         BookmarkStore
	sinks      []Sink
	httpClient *http.Client
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRenderer replaces the headless Chrome renderer.
func WithRenderer(r Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithBookmarkStore replaces the configured bookmark backend.
func WithBookmarkStore(kv BookmarkStore) Option {
	return func(o *options) { o.kv = kv }
}

// WithSink adds an event sink next to the configured ones.
func WithSink(s Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, s) }
}

// WithHTTPClient sets the HTTP client used to reach the archive.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New creates an Engine. A nil cfg uses DefaultConfig. No browser is
// started until the first pixel diff.
func New(cfg *Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: slog.Default()}
	for _, fn := range opts {
		fn(&o)
	}
	highlight, err := pixeldiff.ParseHighlight(cfg.PixelDiff.Highlight)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:     cfg,
		logger:  o.logger,
		nav:     navigate.New(),
		divider: 50,
		opacity: 50,
		ctx:     ctx,
		cancel:  cancel,
	}

	aopts := []archive.Option{
		archive.WithTimeout(cfg.Archive.Timeout),
		archive.WithUserAgent(cfg.Archive.UserAgent),
		archive.WithMaxBytes(cfg.Archive.MaxBytes),
		archive.WithAPIPrefix(cfg.Archive.APIPrefix),
		archive.WithLogger(o.logger),
	}
	if o.httpClient != nil {
		aopts = append(aopts, archive.WithHTTPClient(o.httpClient))
	}
	e.archive = archive.New(cfg.Archive.BaseURL, aopts...)
	e.store = timeline.NewStore(e.archive, o.logger)
	e.coord = diffmode.New(diffmode.WithLogger(o.logger), diffmode.WithBaseContext(ctx))

	renderer := o.renderer
	if renderer == nil {
		mgr := capture.NewManager(capture.Config{
			RemoteURL:        cfg.Capture.Remote,
			RecycleInterval:  cfg.Capture.RecycleInterval,
			MemoryLimit:      cfg.Capture.MemoryLimit,
			ResourceBlocking: cfg.Capture.ResourceBlocking,
			Stealth:          cfg.Capture.StealthEnabled(),
			Logger:           o.logger,
		})
		e.closers = append(e.closers, mgr)
		renderer = capture.NewRodRenderer(mgr, e.archive.ReplayURL,
			capture.WithNavTimeout(cfg.Capture.NavTimeout),
			capture.WithSettle(cfg.Capture.Settle),
		)
	}
	e.pixel = pixeldiff.NewPipeline(renderer,
		pixeldiff.WithOptions(pixeldiff.Options{
			Threshold: cfg.PixelDiff.Threshold,
			Dim:       cfg.PixelDiff.Dim,
			Highlight: highlight,
			Grid:      cfg.PixelDiff.Grid,
			RegionMin: cfg.PixelDiff.RegionMin,
		}),
		pixeldiff.WithViewport(cfg.Capture.Width, cfg.Capture.Height),
		pixeldiff.WithMemoSize(cfg.PixelDiff.MemoSize),
		pixeldiff.WithBaseContext(ctx),
		pixeldiff.WithRunTimeout(cfg.Capture.NavTimeout+cfg.Capture.Settle+30*time.Second),
		pixeldiff.WithLogger(o.logger),
	)
	e.structural = structdiff.New(e.archive, structdiff.WithLogger(o.logger))

	kv := o.kv
	if kv == nil {
		kv, err = e.openBookmarks()
		if err != nil {
			e.Close()
			return nil, err
		}
	}
	e.ledger = bookmark.New(kv, o.logger)

	configured, err := buildSinks(cfg.Sinks, o.logger)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.sinks = sink.NewRouter(o.logger, append(configured, o.sinks...)...)

	e.logger.Info("timescrub: engine ready",
		"archive", e.archive.BaseURL(), "bookmarks", cfg.Bookmarks.Backend, "mode", e.coord.Mode())
	return e, nil
}

func (e *Engine) openBookmarks() (BookmarkStore, error) {
	bc := e.cfg.Bookmarks
	switch bc.Backend {
	case "sqlite":
		kv, err := bookmark.OpenSQLiteKV(e.ctx, bc.Path)
		if err != nil {
			return nil, fmt.Errorf("timescrub: bookmarks: %w", err)
		}
		e.closers = append(e.closers, kv)
		return kv, nil
	case "file":
		kv, err := bookmark.OpenFileKV(bc.Path, e.logger)
		if err != nil {
			return nil, fmt.Errorf("timescrub: bookmarks: %w", err)
		}
		if err := kv.Watch(e.ctx); err != nil {
			e.logger.Warn("timescrub: bookmark file not watched", "path", bc.Path, "error", err)
		}
		return kv, nil
	}
	return bookmark.NewMemoryKV(), nil
}

// Config returns the configuration the Engine was built with.
func (e *Engine) Config() *Config { return e.cfg }

// Wait blocks until the active request has settled. Runs of superseded
// requests are not waited for.
func (e *Engine) Wait() { _ = e.WaitContext(context.Background()) }

// WaitContext is Wait bounded by ctx.
func (e *Engine) WaitContext(ctx context.Context) error {
	for {
		select {
		case <-e.coord.Settled():
		case <-ctx.Done():
			return ctx.Err()
		}
		// The artifact event of the completed run is out once emitMu is free.
		e.emitMu.Lock()
		loading := e.coord.Status() == diffmode.StatusLoading
		e.emitMu.Unlock()
		if !loading {
			return nil
		}
	}
}

// spawn runs fn on a tracked goroutine unless the engine is closed.
func (e *Engine) spawn(fn func()) bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.closed {
		return false
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
	return true
}

// Close cancels running pipelines, waits for them and releases the
// browser, bookmark store and sinks.
func (e *Engine) Close() error {
	var errs []error
	e.closeOnce.Do(func() {
		if e.coord != nil {
			e.coord.Exit()
		}
		e.cancel()
		e.runMu.Lock()
		e.closed = true
		e.runMu.Unlock()
		e.wg.Wait()
		if e.sinks != nil {
			errs = append(errs, e.sinks.Close())
		}
		for _, c := range e.closers {
			errs = append(errs, c.Close())
		}
		e.logger.Info("timescrub: engine closed")
	})
	return errors.Join(errs...)
}
