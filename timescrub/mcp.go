package timescrub

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/timescrub/kit"
	"github.com/hazyhaar/timescrub/timescrub/internal/diffmode"
)

// RegisterMCP registers the timescrub tools on an MCP server.
func (e *Engine) RegisterMCP(srv *mcp.Server) {
	e.registerOpenTool(srv)
	e.registerStateTool(srv)
	e.registerStepTool(srv)
	e.registerClickTool(srv)
	e.registerToggleDiffTool(srv)
	e.registerSetModeTool(srv)
	e.registerComparisonTool(srv)
	e.registerTextDiffTool(srv)
	e.registerBookmarkToggleTool(srv)
	e.registerBookmarksTool(srv)
	e.registerResolveTool(srv)
}

// inputSchema builds a JSON Schema object with type "object".
func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (e *Engine) addTool(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	kit.RegisterMCPTool(srv, tool, kit.Logging(e.logger, tool.Name)(endpoint), decode)
}

type empty struct{}

// --- open ---

type openRequest struct {
	URL     string `json:"url"`
	Current string `json:"current,omitempty"`
}

func (e *Engine) registerOpenTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "timescrub_open",
		Description: "Load the snapshot timeline of a URL and select the snapshot at 'current'. Leaves diff mode.",
		InputSchema: inputSchema(map[string]any{
			"url":     map[string]any{"type": "string", "description": "Archived page URL"},
			"current": map[string]any{"type": "string", "description": "Timestamp of the snapshot being shown (compact or ISO)"},
		}, []string{"url"}),
	}
	e.addTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*openRequest)
		if r.URL == "" {
			return nil, errors.New("url is required")
		}
		return e.Open(ctx, r.URL, r.Current)
	}, kit.DecodeArgs[openRequest])
}

// --- state ---

func (e *Engine) registerStateTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "timescrub_state",
		Description: "Current selection: timeline length, selected index, diff target, mode and status.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	e.addTool(srv, tool, func(ctx context.Context, _ any) (any, error) {
		return e.Selection(ctx), nil
	}, kit.DecodeArgs[empty])
}

// --- step ---

type stepRequest struct {
	Delta int `json:"delta"`
}

func (e *Engine) registerStepTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "timescrub_step",
		Description: "Emit a navigation intent to the previous (-1) or next (1) snapshot. Disabled while comparing.",
		InputSchema: inputSchema(map[string]any{
			"delta": map[string]any{"type": "integer", "enum": []int{-1, 1}, "description": "-1 for previous, 1 for next"},
		}, []string{"delta"}),
	}
	e.addTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		in, ok := e.Step(ctx, req.(*stepRequest).Delta)
		if !ok {
			return nil, errors.New("cannot step: boundary, no selection, comparing or delta not -1/1")
		}
		return in, nil
	}, kit.DecodeArgs[stepRequest])
}

// --- click ---

type clickRequest struct {
	Index int `json:"index"`
}

func (e *Engine) registerClickTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name: "timescrub_click",
		Description: "Click the timeline tick at index. In navigation it emits a navigation intent; " +
			"while comparing the clicked snapshot becomes 'from' and the selected one 'to'.",
		InputSchema: inputSchema(map[string]any{
			"index": map[string]any{"type": "integer", "description": "Tick index, 0 is the oldest snapshot"},
		}, []string{"index"}),
	}
	e.addTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		return e.Click(ctx, req.(*clickRequest).Index)
	}, kit.DecodeArgs[clickRequest])
}

// --- diff mode ---

func (e *Engine) registerToggleDiffTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "timescrub_toggle_diff",
		Description: "Enter or leave diff mode. Entering starts without a comparison target.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	e.addTool(srv, tool, func(ctx context.Context, _ any) (any, error) {
		return e.ToggleDiff(ctx), nil
	}, kit.DecodeArgs[empty])
}

type setModeRequest struct {
	Mode string `json:"mode"`
}

func (e *Engine) registerSetModeTool(srv *mcp.Server) {
	modes := make([]any, len(diffmode.Modes))
	for i, m := range diffmode.Modes {
		modes[i] = string(m)
	}
	tool := &mcp.Tool{
		Name:        "timescrub_set_mode",
		Description: "Switch the diff sub-mode. The pair is kept; re-selecting a failed mode retries it.",
		InputSchema: inputSchema(map[string]any{
			"mode": map[string]any{"type": "string", "enum": modes},
		}, []string{"mode"}),
	}
	e.addTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		if err := e.SetMode(ctx, req.(*setModeRequest).Mode); err != nil {
			return nil, err
		}
		return e.Comparison(), nil
	}, kit.DecodeArgs[setModeRequest])
}

type comparisonRequest struct {
	Wait bool `json:"wait,omitempty"`
}

func (e *Engine) registerComparisonTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "timescrub_comparison",
		Description: "Active diff request and its artifact: surface view, pixel statistics and image, or structural sides.",
		InputSchema: inputSchema(map[string]any{
			"wait": map[string]any{"type": "boolean", "description": "Wait for the active request to settle first"},
		}, nil),
	}
	e.addTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		if req.(*comparisonRequest).Wait {
			if err := e.WaitContext(ctx); err != nil {
				return nil, err
			}
		}
		return e.Comparison(), nil
	}, kit.DecodeArgs[comparisonRequest])
}

func (e *Engine) registerTextDiffTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "timescrub_text_diff",
		Description: "Textual diff summary of the active pair, computed by the archive.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	e.addTool(srv, tool, func(ctx context.Context, _ any) (any, error) {
		return e.TextDiff(ctx)
	}, kit.DecodeArgs[empty])
}

// --- bookmarks ---

type bookmarkToggleRequest struct {
	URL       string `json:"url,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (e *Engine) registerBookmarkToggleTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "timescrub_bookmark_toggle",
		Description: "Toggle a bookmark. Without arguments it applies to the selected snapshot.",
		InputSchema: inputSchema(map[string]any{
			"url":       map[string]any{"type": "string"},
			"timestamp": map[string]any{"type": "string", "description": "Exact snapshot timestamp"},
		}, nil),
	}
	e.addTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*bookmarkToggleRequest)
		var (
			on  bool
			err error
		)
		switch {
		case r.URL == "" && r.Timestamp == "":
			on, err = e.ToggleBookmark(ctx)
		case r.URL == "" || r.Timestamp == "":
			return nil, errors.New("url and timestamp go together")
		default:
			on, err = e.ToggleBookmarkAt(ctx, r.URL, r.Timestamp)
		}
		if err != nil {
			return nil, err
		}
		return map[string]bool{"bookmarked": on}, nil
	}, kit.DecodeArgs[bookmarkToggleRequest])
}

type bookmarksRequest struct {
	URL string `json:"url"`
}

func (e *Engine) registerBookmarksTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "timescrub_bookmarks",
		Description: "List bookmarked snapshot timestamps of a URL in insertion order.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string"},
		}, []string{"url"}),
	}
	e.addTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		list, err := e.Bookmarks(ctx, req.(*bookmarksRequest).URL)
		if err != nil {
			return nil, err
		}
		if list == nil {
			list = []string{}
		}
		return list, nil
	}, kit.DecodeArgs[bookmarksRequest])
}

// --- resolve ---

type resolveRequest struct {
	URL string `json:"url"`
	At  string `json:"at"`
}

func (e *Engine) registerResolveTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "timescrub_resolve",
		Description: "Ask the archive for the snapshot nearest to a timestamp and its replay URL.",
		InputSchema: inputSchema(map[string]any{
			"url": map[string]any{"type": "string"},
			"at":  map[string]any{"type": "string", "description": "Requested timestamp (compact or ISO)"},
		}, []string{"url", "at"}),
	}
	e.addTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		r := req.(*resolveRequest)
		return e.Resolve(ctx, r.URL, r.At)
	}, kit.DecodeArgs[resolveRequest])
}
