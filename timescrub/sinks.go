package timescrub

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hazyhaar/timescrub/timescrub/event"
	"github.com/hazyhaar/timescrub/timescrub/internal/sink"
)

// Sink receives engine events: navigation intents, selection changes,
// active diff requests and artifact readiness.
//
// Artifact events of one request arrive in order and only while that
// request was active. A request event for a newer request may still
// precede the last artifact event of the previous one, so consumers keep
// the RequestID of the latest request event and drop artifacts that
// carry another.
type Sink = sink.Sink

// CallbackSink delivers events as in-process calls. Nil handlers are skipped.
type CallbackSink = sink.Callback

// NewStdoutSink writes events as JSON lines to w.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink POSTs events as JSON to url, retrying with backoff.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

func buildSinks(cfgs []SinkConfig, logger *slog.Logger) ([]Sink, error) {
	var out []Sink
	for i, sc := range cfgs {
		switch sc.Type {
		case "stdout":
			out = append(out, NewStdoutSink(os.Stdout))
		case "webhook":
			out = append(out, NewWebhookSink(sc.URL, logger))
		default:
			return nil, fmt.Errorf("timescrub: sinks[%d]: unknown type %q", i, sc.Type)
		}
	}
	return out, nil
}

func (e *Engine) emitIntent(in event.Intent) {
	_ = e.sinks.SendIntent(e.ctx, in)
}

func (e *Engine) emitSelection(sel event.Selection) {
	_ = e.sinks.SendSelection(e.ctx, sel)
}

func (e *Engine) emitRequest(req event.Request) {
	_ = e.sinks.SendRequest(e.ctx, req)
}

func (e *Engine) emitArtifact(art event.Artifact) {
	_ = e.sinks.SendArtifact(e.ctx, art)
}
