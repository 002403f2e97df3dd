package timescrub

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/timescrub/timescrub/event"
)

var testImpl = &mcp.Implementation{Name: "timescrub-test", Version: "0.1.0"}

// mcpSession registers the tools of an engine backed by the fake archive
// and returns a connected client session.
func mcpSession(t *testing.T) (*Engine, *mcp.ClientSession) {
	t.Helper()
	archive := newArchive(t)
	e, _ := testEngine(t, archive.URL, nil)

	srv := mcp.NewServer(testImpl, nil)
	e.RegisterMCP(srv)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return e, session
}

// callTool invokes a tool and returns the JSON text from the first TextContent.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

func TestMCP_OpenToggleClick(t *testing.T) {
	_, session := mcpSession(t)

	var sel event.Selection
	text := callTool(t, session, "timescrub_open", map[string]any{"url": page, "current": "2024-06-01T00:00:00"})
	if err := json.Unmarshal([]byte(text), &sel); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sel.SelectedIndex != 1 {
		t.Fatalf("selected: got %d, want 1", sel.SelectedIndex)
	}

	callTool(t, session, "timescrub_toggle_diff", map[string]any{})
	text = callTool(t, session, "timescrub_click", map[string]any{"index": 0})
	var click ClickResult
	if err := json.Unmarshal([]byte(text), &click); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if click.Request == nil || click.Request.From != "2024-01-01T00:00:00" || click.Request.To != "2024-06-01T00:00:00" {
		t.Fatalf("click: %s", text)
	}

	callTool(t, session, "timescrub_set_mode", map[string]any{"mode": "dom-diff"})
	text = callTool(t, session, "timescrub_comparison", map[string]any{"wait": true})
	var cmp Comparison
	if err := json.Unmarshal([]byte(text), &cmp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cmp.Status != "ready" || cmp.Structural == nil || !cmp.Structural.To.Loaded {
		t.Fatalf("comparison: %s", text)
	}

	text = callTool(t, session, "timescrub_text_diff", map[string]any{})
	var td TextDiff
	if err := json.Unmarshal([]byte(text), &td); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if td.FromTimestamp != "20240101000000" {
		t.Fatalf("text diff: %s", text)
	}
}

func TestMCP_Bookmarks(t *testing.T) {
	_, session := mcpSession(t)

	callTool(t, session, "timescrub_open", map[string]any{"url": page, "current": "20240601000000"})
	text := callTool(t, session, "timescrub_bookmark_toggle", map[string]any{})
	if text != `{"bookmarked":true}` {
		t.Fatalf("toggle: got %s", text)
	}
	text = callTool(t, session, "timescrub_bookmarks", map[string]any{"url": page})
	var list []string
	if err := json.Unmarshal([]byte(text), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(list) != 1 || list[0] != "2024-06-01T00:00:00" {
		t.Fatalf("bookmarks: %v", list)
	}
}

func TestMCP_ToolErrors(t *testing.T) {
	_, session := mcpSession(t)
	ctx := context.Background()

	for _, call := range []struct {
		name string
		args map[string]any
	}{
		{"timescrub_click", map[string]any{"index": 9}},
		{"timescrub_step", map[string]any{"delta": 1}},
		{"timescrub_text_diff", map[string]any{}},
		{"timescrub_open", map[string]any{"url": "missing.example"}},
	} {
		result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: call.name, Arguments: call.args})
		if err != nil {
			t.Fatalf("CallTool(%s): %v", call.name, err)
		}
		if !result.IsError {
			t.Errorf("%s: expected tool error", call.name)
		}
	}
}
