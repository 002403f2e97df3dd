package sink

import (
	"context"

	"github.com/hazyhaar/timescrub/timescrub/event"
)

// Callback delivers events as in-process function calls, for hosts that
// embed the engine in the same binary. Any handler may be nil.
type Callback struct {
	OnIntent    func(ctx context.Context, in event.Intent) error
	OnSelection func(ctx context.Context, sel event.Selection) error
	OnRequest   func(ctx context.Context, req event.Request) error
	OnArtifact  func(ctx context.Context, art event.Artifact) error
}

func (c *Callback) SendIntent(ctx context.Context, in event.Intent) error {
	if c.OnIntent != nil {
		return c.OnIntent(ctx, in)
	}
	return nil
}

func (c *Callback) SendSelection(ctx context.Context, sel event.Selection) error {
	if c.OnSelection != nil {
		return c.OnSelection(ctx, sel)
	}
	return nil
}

func (c *Callback) SendRequest(ctx context.Context, req event.Request) error {
	if c.OnRequest != nil {
		return c.OnRequest(ctx, req)
	}
	return nil
}

func (c *Callback) SendArtifact(ctx context.Context, art event.Artifact) error {
	if c.OnArtifact != nil {
		return c.OnArtifact(ctx, art)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
