package structdiff

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
}

func (f *fakeFetcher) Content(ctx context.Context, ts, pageURL string) ([]byte, error) {
	if err := f.errs[ts]; err != nil {
		return nil, err
	}
	return []byte(f.pages[ts]), nil
}

const before = `<html><head><title>t</title><script>alert(1)</script></head>
<body><div id="main" class="a b"><h1>Hello</h1><p onclick="steal()">one</p></div></body></html>`

const after = `<html><head><title>t</title></head>
<body><div id="main"><h1>Hello</h1><p>one</p><p>two</p><img src="x.png"></div></body></html>`

func TestRun_BothSides(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{"a": before, "b": after}}
	res, err := New(f).Run(context.Background(), "example.com", "a", "b", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.From.Loaded || !res.To.Loaded || res.Err() != nil {
		t.Fatalf("sides not loaded: %+v", res)
	}
	if res.From.Raw != before {
		t.Error("raw markup must be kept verbatim")
	}
	if strings.Contains(res.From.Sanitized, "<script") || strings.Contains(res.From.Sanitized, "onclick") {
		t.Errorf("sanitized markup still executable: %s", res.From.Sanitized)
	}
	if !strings.Contains(res.From.Sanitized, `id="main"`) {
		t.Errorf("sanitized markup lost structure: %s", res.From.Sanitized)
	}
	if !strings.Contains(res.To.Markdown, "# Hello") {
		t.Errorf("markdown: got %q", res.To.Markdown)
	}

	deltas := map[string]int{}
	for _, d := range res.TagDelta {
		deltas[d.Tag] = d.Delta
	}
	if deltas["p"] != 1 || deltas["img"] != 1 || deltas["script"] != -1 {
		t.Fatalf("tag delta: got %+v", res.TagDelta)
	}
	if _, ok := deltas["h1"]; ok {
		t.Error("unchanged tags must not be listed")
	}
}

func TestRun_OneSideFails(t *testing.T) {
	// WHAT: a failed side leaves its content unset without blocking the other.
	boom := errors.New("404")
	f := &fakeFetcher{pages: map[string]string{"b": after}, errs: map[string]error{"a": boom}}

	var mu sync.Mutex
	seen := map[Which]Side{}
	res, err := New(f).Run(context.Background(), "example.com", "a", "b", func(w Which, s Side) {
		mu.Lock()
		seen[w] = s
		mu.Unlock()
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.From.Loaded || res.From.Raw != "" || res.From.Err == "" {
		t.Fatalf("failed side: got %+v", res.From)
	}
	if !res.To.Loaded || res.To.Raw == "" {
		t.Fatalf("other side should load: %+v", res.To)
	}
	if !errors.Is(res.Err(), ErrContentFetch) {
		t.Fatalf("Err: got %v, want ErrContentFetch", res.Err())
	}
	if res.TagDelta != nil {
		t.Error("no tag delta with a missing side")
	}
	if len(seen) != 2 || !seen[ToSide].Loaded || seen[FromSide].Loaded {
		t.Fatalf("progress callbacks: got %+v", seen)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fakeFetcher{pages: map[string]string{"a": before, "b": after}}
	if _, err := New(f).Run(ctx, "example.com", "a", "b", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestOutline(t *testing.T) {
	nodes, census, err := outline([]byte(before), 100)
	if err != nil {
		t.Fatal(err)
	}
	var lines []string
	for _, n := range nodes {
		lines = append(lines, n.String())
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "    div#main.a.b") {
		t.Fatalf("outline:\n%s", joined)
	}
	if census["p"] != 1 || census["html"] != 1 {
		t.Fatalf("census: %v", census)
	}

	capped, _, _ := outline([]byte(before), 2)
	if len(capped) != 2 {
		t.Fatalf("limit: got %d nodes", len(capped))
	}
}
