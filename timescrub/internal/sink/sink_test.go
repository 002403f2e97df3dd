package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/timescrub/timescrub/event"
)

func TestStdout_JSONLines(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	ctx := context.Background()

	if err := s.SendIntent(ctx, event.Intent{URL: "example.com", CompactKey: "20240601000000"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SendArtifact(ctx, event.Artifact{Mode: "pixel-diff", Status: "ready"}); err != nil {
		t.Fatal(err)
	}

	dec := json.NewDecoder(&buf)
	var first, second struct {
		ID   string          `json:"id"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := dec.Decode(&first); err != nil {
		t.Fatal(err)
	}
	if err := dec.Decode(&second); err != nil {
		t.Fatal(err)
	}
	if first.Type != "intent" || second.Type != "artifact" {
		t.Fatalf("types: got %q, %q", first.Type, second.Type)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("ids must be unique and non-empty: %q, %q", first.ID, second.ID)
	}
	var in event.Intent
	if err := json.Unmarshal(first.Data, &in); err != nil {
		t.Fatal(err)
	}
	if in.CompactKey != "20240601000000" {
		t.Errorf("compact key: got %q", in.CompactKey)
	}
}

func TestRouter_FanOutContinuesOnError(t *testing.T) {
	// WHAT: a failing sink does not prevent delivery to the others.
	// WHY: a dead webhook must not starve the in-process host.
	errBoom := errors.New("boom")
	var delivered int
	failing := &Callback{OnSelection: func(context.Context, event.Selection) error { return errBoom }}
	ok := &Callback{OnSelection: func(context.Context, event.Selection) error { delivered++; return nil }}

	r := NewRouter(nil, failing, ok)
	err := r.SendSelection(context.Background(), event.Selection{SelectedIndex: 1})
	if !errors.Is(err, errBoom) {
		t.Fatalf("error: got %v, want %v", err, errBoom)
	}
	if delivered != 1 {
		t.Fatalf("delivered: got %d, want 1", delivered)
	}
}

func TestCallback_NilHandlers(t *testing.T) {
	c := &Callback{}
	ctx := context.Background()
	if err := c.SendIntent(ctx, event.Intent{}); err != nil {
		t.Fatal(err)
	}
	if err := c.SendRequest(ctx, event.Request{}); err != nil {
		t.Fatal(err)
	}
}

func TestWebhook_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !bytes.Contains(body, []byte(`"type":"request"`)) {
			t.Errorf("unexpected body: %s", body)
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	if err := w.SendRequest(context.Background(), event.Request{ID: "req_1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("calls: got %d, want 2", got)
	}
}

func TestWebhook_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	if err := w.SendIntent(context.Background(), event.Intent{}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}
