package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/hazyhaar/timescrub/timescrub/event"
)

// Stdout writes JSON lines to an io.Writer (default os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{enc: json.NewEncoder(w)}
}

func (s *Stdout) SendIntent(_ context.Context, in event.Intent) error {
	return s.write(wrap("intent", in))
}

func (s *Stdout) SendSelection(_ context.Context, sel event.Selection) error {
	return s.write(wrap("selection", sel))
}

func (s *Stdout) SendRequest(_ context.Context, req event.Request) error {
	return s.write(wrap("request", req))
}

func (s *Stdout) SendArtifact(_ context.Context, art event.Artifact) error {
	return s.write(wrap("artifact", art))
}

func (s *Stdout) Close() error { return nil }

func (s *Stdout) write(env envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(env)
}
