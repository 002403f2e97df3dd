package timescrub

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/timescrub/timescrub/event"
)

func serve(t *testing.T, e *Engine) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(e.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHTTP_OpenStateClick(t *testing.T) {
	archive := newArchive(t)
	e, _ := testEngine(t, archive.URL, nil)
	srv := serve(t, e)

	resp := do(t, "GET", srv.URL+"/health", "")
	if resp.StatusCode != 200 {
		t.Fatalf("health: got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("shield stack not applied")
	}

	resp = do(t, "POST", srv.URL+"/api/open", `{"url":"example.com","current":"20240601000000"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("open: got %d", resp.StatusCode)
	}
	sel := decode[event.Selection](t, resp)
	if sel.SelectedIndex != 1 || sel.Length != 3 {
		t.Fatalf("selection: %+v", sel)
	}

	// Offsets other than -1 and 1 are rejected, not reported as boundaries.
	for _, bad := range []string{"2", "-2", "0"} {
		resp = do(t, "POST", srv.URL+"/api/step/"+bad, "")
		if resp.StatusCode != 400 {
			t.Fatalf("step %s: got %d, want 400", bad, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp = do(t, "POST", srv.URL+"/api/step/prev", "")
	step := decode[struct {
		Moved  bool         `json:"moved"`
		Intent event.Intent `json:"intent"`
	}](t, resp)
	if !step.Moved || step.Intent.CompactKey != "20240101000000" {
		t.Fatalf("step: %+v", step)
	}

	do(t, "POST", srv.URL+"/api/diff/toggle", "")
	resp = do(t, "POST", srv.URL+"/api/click/0", "")
	if resp.StatusCode != 200 {
		t.Fatalf("click: got %d", resp.StatusCode)
	}
	click := decode[ClickResult](t, resp)
	if click.Request == nil || click.Request.FromKey != "20240101000000" || click.Request.ToKey != "20240601000000" {
		t.Fatalf("click: %+v", click)
	}

	resp = do(t, "GET", srv.URL+"/api/diff", "")
	cmp := decode[Comparison](t, resp)
	if cmp.Status != "ready" || cmp.View == nil || cmp.View.Mode != "side-by-side" {
		t.Fatalf("comparison: %+v", cmp)
	}

	resp = do(t, "GET", srv.URL+"/api/diff/surface", "")
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("surface content type: %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ts-side-by-side") {
		t.Fatalf("surface: %s", body)
	}

	resp = do(t, "GET", srv.URL+"/api/state", "")
	sel = decode[event.Selection](t, resp)
	if !sel.Comparing || sel.DiffTargetIndex != 0 {
		t.Fatalf("state: %+v", sel)
	}
}

func TestHTTP_Errors(t *testing.T) {
	archive := newArchive(t)
	e, _ := testEngine(t, archive.URL, nil)
	srv := serve(t, e)

	cases := []struct {
		method, path, body string
		want               int
	}{
		{"POST", "/api/open", `{"url":"missing.example"}`, 404},
		{"POST", "/api/open", `{}`, 400},
		{"POST", "/api/open", `not json`, 400},
		{"POST", "/api/click/x", "", 400},
		{"PUT", "/api/diff/mode/wipe", "", 400},
		{"GET", "/api/diff/pixel.png", "", 409},
		{"GET", "/api/diff/text", "", 409},
		{"GET", "/api/diff/surface", "", 409},
		{"POST", "/api/bookmarks/toggle", "", 409},
		{"POST", "/api/bookmarks/toggle", `{"url":"example.com"}`, 400},
		{"GET", "/api/resolve?url=example.com", "", 400},
	}
	for _, tc := range cases {
		resp := do(t, tc.method, srv.URL+tc.path, tc.body)
		if resp.StatusCode != tc.want {
			t.Errorf("%s %s: got %d, want %d", tc.method, tc.path, resp.StatusCode, tc.want)
		}
	}
}

func TestHTTP_SliderAndBookmarks(t *testing.T) {
	archive := newArchive(t)
	e, _ := testEngine(t, archive.URL, nil)
	srv := serve(t, e)

	do(t, "POST", srv.URL+"/api/open", `{"url":"example.com","current":"20240601000000"}`)

	resp := do(t, "PUT", srv.URL+"/api/diff/slider/-20", "")
	if v := decode[map[string]int](t, resp); v["value"] != 0 {
		t.Fatalf("slider clamp: got %d, want 0", v["value"])
	}

	resp = do(t, "POST", srv.URL+"/api/bookmarks/toggle", "")
	if v := decode[map[string]bool](t, resp); !v["bookmarked"] {
		t.Fatal("toggle: want bookmarked")
	}
	resp = do(t, "GET", srv.URL+"/api/bookmarks?url=example.com", "")
	list := decode[struct {
		Timestamps []string `json:"timestamps"`
	}](t, resp)
	if len(list.Timestamps) != 1 || list.Timestamps[0] != "2024-06-01T00:00:00" {
		t.Fatalf("bookmarks: %v", list.Timestamps)
	}

	resp = do(t, "GET", srv.URL+"/api/resolve?url=example.com&at=20240501000000", "")
	if resp.StatusCode != 200 {
		t.Fatalf("resolve: got %d", resp.StatusCode)
	}
	if res := decode[Resolution](t, resp); res.ActualTimestamp != "2024-06-01T00:00:00" {
		t.Fatalf("resolve: %+v", res)
	}
}
