package sink

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/timescrub/timescrub/event"
)

// Router fans out events to all configured sinks. One sink error does not
// block the others; errors are logged and the first one is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

// Add appends a sink. Not safe for use concurrently with sends.
func (r *Router) Add(s Sink) {
	r.sinks = append(r.sinks, s)
}

func (r *Router) SendIntent(ctx context.Context, in event.Intent) error {
	return r.each("intent", func(s Sink) error { return s.SendIntent(ctx, in) })
}

func (r *Router) SendSelection(ctx context.Context, sel event.Selection) error {
	return r.each("selection", func(s Sink) error { return s.SendSelection(ctx, sel) })
}

func (r *Router) SendRequest(ctx context.Context, req event.Request) error {
	return r.each("request", func(s Sink) error { return s.SendRequest(ctx, req) })
}

func (r *Router) SendArtifact(ctx context.Context, art event.Artifact) error {
	return r.each("artifact", func(s Sink) error { return s.SendArtifact(ctx, art) })
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) each(kind string, send func(Sink) error) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := send(s); err != nil {
			r.logger.Warn("sink: send failed", "kind", kind, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
