// Package diffmode owns the comparison state machine: the top-level
// Navigation/Comparing state, the sub-mode, the from/to pair and the single
// artifact slot of the active request. Every transition bumps a generation
// counter; pipeline results carry the generation they were started for and
// are dropped when it no longer matches.
package diffmode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/timescrub/idgen"
	"github.com/hazyhaar/timescrub/timescrub/internal/navigate"
	"github.com/hazyhaar/timescrub/timescrub/internal/timeline"
)

var (
	// ErrStale is returned when a result arrives for a superseded request.
	// Callers drop the result silently.
	ErrStale = errors.New("diffmode: stale result")

	// ErrNotComparing is returned by comparing-only operations in Navigation.
	ErrNotComparing = errors.New("diffmode: not comparing")

	// ErrNoTarget means no comparison target is chosen yet. Surfaces show a
	// "select a comparison target" placeholder instead of running pipelines.
	ErrNoTarget = errors.New("diffmode: no comparison target")
)

// Request is the active diff request.
type Request struct {
	ID         string
	URL        string
	From       timeline.Snapshot
	To         timeline.Snapshot
	Mode       Mode
	Generation uint64
}

// Key identifies the request content independently of its generation.
func (r Request) Key() string {
	return r.URL + "|" + r.From.CompactKey + "|" + r.To.CompactKey + "|" + string(r.Mode)
}

// Ticket authorises one pipeline run for a request. Its context is
// cancelled when the pair changes or comparison ends; a mode change only
// makes the ticket stale so a memoised render can still finish.
type Ticket struct {
	Request
	ctx context.Context
}

// Context returns the pair-scoped context of the run.
func (t Ticket) Context() context.Context { return t.ctx }

// Artifact is the content of the slot for the active request.
type Artifact struct {
	Request Request
	Payload any
	Err     error
	Partial bool // published progress, the pipeline is still running
}

// Coordinator is safe for concurrent use; pipelines complete from their
// own goroutines.
type Coordinator struct {
	mu       sync.Mutex
	state    State
	mode     Mode
	target   int
	url      string
	from, to *timeline.Snapshot
	gen      uint64
	reqID    string
	loading  bool
	settled  chan struct{} // closed when the loading run completes or is superseded
	artifact *Artifact

	base       context.Context
	pairCtx    context.Context
	pairCancel context.CancelFunc

	newID  func() string
	logger *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithIDGenerator sets the request ID generator. Default: idgen.Request.
func WithIDGenerator(gen func() string) Option {
	return func(c *Coordinator) { c.newID = gen }
}

// WithBaseContext sets the parent of every pair context.
func WithBaseContext(ctx context.Context) Option {
	return func(c *Coordinator) { c.base = ctx }
}

// WithMode sets the initial sub-mode. Default: side-by-side.
func WithMode(m Mode) Option {
	return func(c *Coordinator) { c.mode = m }
}

// New creates a Coordinator in Navigation state.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		mode:   SideBySide,
		target: -1,
		base:   context.Background(),
		newID:  idgen.Request,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Toggle flips between Navigation and Comparing and returns the new state.
func (c *Coordinator) Toggle() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Comparing {
		c.exitLocked()
	} else {
		c.enterLocked()
	}
	return c.state
}

// Enter switches to Comparing with no target and no pair.
func (c *Coordinator) Enter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enterLocked()
}

// Exit returns to Navigation, clearing the target, the pair and the artifact.
// It is a no-op in Navigation.
func (c *Coordinator) Exit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Comparing {
		c.exitLocked()
	}
}

func (c *Coordinator) enterLocked() {
	c.state = Comparing
	c.clearPairLocked()
	c.logger.Debug("diffmode: enter", "mode", c.mode)
}

func (c *Coordinator) exitLocked() {
	c.state = Navigation
	c.clearPairLocked()
	c.logger.Debug("diffmode: exit")
}

func (c *Coordinator) clearPairLocked() {
	c.target = -1
	c.url = ""
	c.from, c.to = nil, nil
	c.reqID = ""
	c.invalidateLocked()
	if c.pairCancel != nil {
		c.pairCancel()
		c.pairCtx, c.pairCancel = nil, nil
	}
}

func (c *Coordinator) invalidateLocked() {
	c.gen++
	c.artifact = nil
	c.loading = false
	c.settleLocked()
}

func (c *Coordinator) settleLocked() {
	if c.settled != nil {
		close(c.settled)
		c.settled = nil
	}
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Settled returns a channel closed once the run of the active request
// completes or the request is superseded. It is already closed when no
// run is in flight.
func (c *Coordinator) Settled() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settled == nil {
		return closedCh
	}
	return c.settled
}

// Click records a tick click while Comparing. The clicked snapshot becomes
// From and the selected snapshot becomes To; that order is kept even when
// the clicked snapshot is the later one.
func (c *Coordinator) Click(tl *timeline.Timeline, clicked, selected int) (Request, error) {
	from, ok := tl.At(clicked)
	if !ok {
		return Request{}, fmt.Errorf("%w: %d (len %d)", navigate.ErrIndexOutOfRange, clicked, tl.Len())
	}
	to, ok := tl.At(selected)
	if !ok {
		return Request{}, fmt.Errorf("diffmode: click: %w", navigate.ErrSelectionUnresolved)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Comparing {
		return Request{}, ErrNotComparing
	}

	c.clearPairLocked()
	c.target = clicked
	c.url = tl.URL
	c.from, c.to = &from, &to
	c.reqID = c.newID()
	c.pairCtx, c.pairCancel = context.WithCancel(c.base)
	c.logger.Debug("diffmode: pair", "from", from.CompactKey, "to", to.CompactKey, "mode", c.mode)
	return c.requestLocked(), nil
}

// SetMode changes the sub-mode. The pair is kept; the artifact of the
// previous mode is discarded. Re-selecting the current mode after a
// failure starts a fresh request, which is how users retry.
func (c *Coordinator) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	failed := c.artifact != nil && !c.artifact.Partial && c.artifact.Err != nil
	if m == c.mode && !failed {
		return nil
	}
	c.mode = m
	c.invalidateLocked()
	if c.from != nil {
		c.reqID = c.newID()
	}
	c.logger.Debug("diffmode: mode", "mode", m)
	return nil
}

func (c *Coordinator) requestLocked() Request {
	return Request{
		ID:         c.reqID,
		URL:        c.url,
		From:       *c.from,
		To:         *c.to,
		Mode:       c.mode,
		Generation: c.gen,
	}
}

// Active returns the active request, false without a pair.
func (c *Coordinator) Active() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Comparing || c.from == nil {
		return Request{}, false
	}
	return c.requestLocked(), true
}

// Begin marks the active request as loading and returns its ticket.
// ok is false when a run is already in flight or the slot is already
// filled; the caller then has nothing to start.
func (c *Coordinator) Begin() (t Ticket, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state != Comparing:
		return Ticket{}, false, ErrNotComparing
	case c.from == nil:
		return Ticket{}, false, ErrNoTarget
	case c.loading || c.artifact != nil:
		return Ticket{Request: c.requestLocked(), ctx: c.pairCtx}, false, nil
	}
	c.loading = true
	c.settled = make(chan struct{})
	return Ticket{Request: c.requestLocked(), ctx: c.pairCtx}, true, nil
}

// Publish stores partial progress for t. The slot stays loading.
func (c *Coordinator) Publish(t Ticket, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkLocked(t); err != nil {
		return err
	}
	c.artifact = &Artifact{Request: t.Request, Payload: payload, Partial: true}
	return nil
}

// Complete stores the final result for t and clears the loading flag.
func (c *Coordinator) Complete(t Ticket, payload any, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cerr := c.checkLocked(t); cerr != nil {
		return cerr
	}
	c.loading = false
	c.artifact = &Artifact{Request: t.Request, Payload: payload, Err: err}
	c.settleLocked()
	return nil
}

func (c *Coordinator) checkLocked(t Ticket) error {
	if t.Generation != c.gen || c.state != Comparing {
		c.logger.Debug("diffmode: stale result dropped",
			"request_id", t.ID, "generation", t.Generation, "active", c.gen)
		return ErrStale
	}
	return nil
}

// Artifact returns the slot content of the active request.
func (c *Coordinator) Artifact() (Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.artifact == nil {
		return Artifact{}, false
	}
	return *c.artifact, true
}

// Status summarises the slot for hosts.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state != Comparing:
		return StatusIdle
	case c.from == nil:
		return StatusPlaceholder
	case c.loading:
		return StatusLoading
	case c.artifact == nil:
		return StatusPending
	case c.artifact.Err != nil:
		return StatusFailed
	}
	return StatusReady
}

// State returns the top-level state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Comparing reports whether the state is Comparing.
func (c *Coordinator) Comparing() bool { return c.State() == Comparing }

// Mode returns the current sub-mode.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Target returns the diff target index, -1 when none is chosen.
func (c *Coordinator) Target() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Generation returns the current request generation.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}
