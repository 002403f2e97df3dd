// Package sink delivers engine events to the host UI.
package sink

import (
	"context"
	"time"

	"github.com/hazyhaar/timescrub/idgen"
	"github.com/hazyhaar/timescrub/timescrub/event"
)

// Sink is the output interface. Implementations deliver events to
// different backends (stdout, webhook, in-process callback). Artifacts are
// keyed by RequestID; consumers match them against the latest request.
type Sink interface {
	SendIntent(ctx context.Context, in event.Intent) error
	SendSelection(ctx context.Context, sel event.Selection) error
	SendRequest(ctx context.Context, req event.Request) error
	SendArtifact(ctx context.Context, art event.Artifact) error
	Close() error
}

// envelope is the serialised form shared by stdout and webhook sinks.
type envelope struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

func wrap(typ string, data any) envelope {
	return envelope{ID: idgen.Event(), Type: typ, At: time.Now().UTC(), Data: data}
}
