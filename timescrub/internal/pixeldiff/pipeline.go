package pixeldiff

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrCaptureFailure aborts the pipeline when either side fails to render.
// No partial diff is produced.
var ErrCaptureFailure = errors.New("pixeldiff: capture failure")

// Renderer renders the replay of pageURL at compactTS off-screen into a
// width x height bitmap.
type Renderer interface {
	RenderToBitmap(ctx context.Context, pageURL, compactTS string, width, height int) (image.Image, error)
}

// Output is the artifact of one pipeline run.
type Output struct {
	URL     string        `json:"url"`
	From    string        `json:"from"`
	To      string        `json:"to"`
	Result  *Result       `json:"result"`
	PNG     []byte        `json:"-"`
	Elapsed time.Duration `json:"elapsed"`
}

// DataURI returns the encoded difference image as a data: URI.
func (o *Output) DataURI() string { return DataURI(o.PNG) }

// Pipeline runs both captures concurrently, joins them and compares.
// Completed outputs are memoised per (url, from, to); concurrent calls for
// the same pair share one run.
type Pipeline struct {
	renderer Renderer
	opts     Options
	width    int
	height   int
	memoSize int
	timeout  time.Duration
	base     context.Context
	logger   *slog.Logger

	group singleflight.Group
	mu    sync.Mutex
	memo  map[string]*Output
	order []string
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithOptions sets the comparison options.
func WithOptions(o Options) PipelineOption {
	return func(p *Pipeline) { p.opts = o }
}

// WithViewport sets the canonical capture size. Default: 1920x1080.
func WithViewport(w, h int) PipelineOption {
	return func(p *Pipeline) {
		if w > 0 && h > 0 {
			p.width, p.height = w, h
		}
	}
}

// WithMemoSize bounds the number of memoised outputs. Default: 16.
func WithMemoSize(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.memoSize = n
		}
	}
}

// WithRunTimeout bounds one shared run. Default: 2m.
func WithRunTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithBaseContext sets the parent context of shared runs. A run outlives
// the callers that started it and is only cancelled by this context or by
// the run timeout.
func WithBaseContext(ctx context.Context) PipelineOption {
	return func(p *Pipeline) {
		if ctx != nil {
			p.base = ctx
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a Pipeline rendering through r.
func NewPipeline(r Renderer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		renderer: r,
		opts:     DefaultOptions(),
		width:    1920,
		height:   1080,
		memoSize: 16,
		timeout:  2 * time.Minute,
		base:     context.Background(),
		logger:   slog.Default(),
		memo:     make(map[string]*Output),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func memoKey(url, from, to string) string { return url + "|" + from + "|" + to }

// Cached returns the memoised output for the pair, if any.
func (p *Pipeline) Cached(url, from, to string) (*Output, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out, ok := p.memo[memoKey(url, from, to)]
	return out, ok
}

// Run produces the difference image of url between the compact timestamps
// from and to. Failures are not memoised.
//
// Concurrent callers share one run, which does not see any caller's
// context: a caller whose ctx ends gets ctx.Err() while the run goes on
// for the others and for the memo.
func (p *Pipeline) Run(ctx context.Context, url, from, to string) (*Output, error) {
	key := memoKey(url, from, to)
	if out, ok := p.Cached(url, from, to); ok {
		return out, nil
	}

	ch := p.group.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(p.base, p.timeout)
		defer cancel()
		out, err := p.run(runCtx, url, from, to)
		if err != nil {
			return nil, err
		}
		p.store(key, out)
		return out, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Output), nil
	}
}

func (p *Pipeline) run(ctx context.Context, url, from, to string) (*Output, error) {
	start := time.Now()
	var imgFrom, imgTo image.Image

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := p.renderer.RenderToBitmap(gctx, url, from, p.width, p.height)
		if err != nil {
			return fmt.Errorf("%w: from %s: %w", ErrCaptureFailure, from, err)
		}
		imgFrom = img
		return nil
	})
	g.Go(func() error {
		img, err := p.renderer.RenderToBitmap(gctx, url, to, p.width, p.height)
		if err != nil {
			return fmt.Errorf("%w: to %s: %w", ErrCaptureFailure, to, err)
		}
		imgTo = img
		return nil
	})
	if err := g.Wait(); err != nil {
		p.logger.Warn("pixeldiff: capture failed", "url", url, "from", from, "to", to, "error", err)
		return nil, err
	}

	res := Compare(imgFrom, imgTo, p.opts)
	pngBytes, err := EncodePNG(res.Image)
	if err != nil {
		return nil, err
	}

	out := &Output{URL: url, From: from, To: to, Result: res, PNG: pngBytes, Elapsed: time.Since(start)}
	p.logger.Info("pixeldiff: done", "url", url, "from", from, "to", to,
		"diff_pixels", res.DiffPixels, "ratio", res.Ratio, "regions", len(res.Regions), "elapsed", out.Elapsed)
	return out, nil
}

func (p *Pipeline) store(key string, out *Output) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.memo[key]; ok {
		return
	}
	p.memo[key] = out
	p.order = append(p.order, key)
	for len(p.order) > p.memoSize {
		delete(p.memo, p.order[0])
		p.order = p.order[1:]
	}
}

// Reset drops every memoised output.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.memo = make(map[string]*Output)
	p.order = nil
}
