// Package structdiff fetches the raw markup of two snapshots and prepares
// each side for sandboxed, script-free inspection: sanitised markup for an
// iframe srcdoc, an element outline and a readable text rendition.
package structdiff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// ErrContentFetch marks a side whose raw content could not be fetched.
var ErrContentFetch = errors.New("structdiff: content fetch failure")

// Fetcher retrieves raw archived markup.
type Fetcher interface {
	Content(ctx context.Context, compactTS, pageURL string) ([]byte, error)
}

// Side is one half of the structural view.
type Side struct {
	Timestamp string `json:"timestamp"`
	Loaded    bool   `json:"loaded"`
	Err       string `json:"error,omitempty"`
	Raw       string `json:"raw,omitempty"`
	Sanitized string `json:"sanitized,omitempty"`
	Outline   []Node `json:"outline,omitempty"`
	Markdown  string `json:"markdown,omitempty"`

	census map[string]int
}

// Result holds both sides. A failed side keeps Loaded false and carries
// its error; the other side is unaffected.
type Result struct {
	URL      string     `json:"url"`
	From     Side       `json:"from"`
	To       Side       `json:"to"`
	TagDelta []TagDelta `json:"tag_delta,omitempty"`
}

// Err returns the first side failure, wrapping ErrContentFetch.
func (r *Result) Err() error {
	for _, s := range []Side{r.From, r.To} {
		if s.Err != "" {
			return fmt.Errorf("%w: %s: %s", ErrContentFetch, s.Timestamp, s.Err)
		}
	}
	return nil
}

// Pipeline runs the structural diff.
type Pipeline struct {
	fetcher      Fetcher
	policy       *bluemonday.Policy
	md           *converter.Converter
	outlineLimit int
	logger       *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOutlineLimit caps outline nodes per side. Default: 2000.
func WithOutlineLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.outlineLimit = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a Pipeline fetching through f.
func New(f Fetcher, opts ...Option) *Pipeline {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class", "id").Globally()
	policy.AllowStyling()

	p := &Pipeline{
		fetcher: f,
		policy:  policy,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		outlineLimit: 2000,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Which names a side in progress callbacks.
type Which string

const (
	FromSide Which = "from"
	ToSide   Which = "to"
)

// Run fetches both sides concurrently. onSide, if set, is called as each
// side settles so hosts can show it without waiting for the other. Run
// itself only fails when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, pageURL, from, to string, onSide func(Which, Side)) (*Result, error) {
	res := &Result{URL: pageURL}

	var wg sync.WaitGroup
	var mu sync.Mutex
	load := func(which Which, ts string, dst *Side) {
		defer wg.Done()
		s := p.side(ctx, pageURL, ts)
		mu.Lock()
		*dst = s
		mu.Unlock()
		if onSide != nil {
			onSide(which, s)
		}
	}
	wg.Add(2)
	go load(FromSide, from, &res.From)
	go load(ToSide, to, &res.To)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res.From.Loaded && res.To.Loaded {
		res.TagDelta = censusDelta(res.From.census, res.To.census)
	}
	p.logger.Info("structdiff: done", "url", pageURL, "from", from, "to", to,
		"from_loaded", res.From.Loaded, "to_loaded", res.To.Loaded, "tag_changes", len(res.TagDelta))
	return res, nil
}

func (p *Pipeline) side(ctx context.Context, pageURL, ts string) Side {
	s := Side{Timestamp: ts}
	raw, err := p.fetcher.Content(ctx, ts, pageURL)
	if err != nil {
		s.Err = err.Error()
		p.logger.Warn("structdiff: fetch failed", "url", pageURL, "timestamp", ts, "error", err)
		return s
	}
	s.Loaded = true
	s.Raw = string(raw)
	s.Sanitized = p.policy.Sanitize(s.Raw)

	nodes, census, err := outline(raw, p.outlineLimit)
	if err != nil {
		p.logger.Debug("structdiff: outline failed", "timestamp", ts, "error", err)
	}
	s.Outline, s.census = nodes, census

	md, err := p.md.ConvertString(s.Raw)
	if err == nil {
		s.Markdown = strings.TrimSpace(md)
	}
	return s
}
