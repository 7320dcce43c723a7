// Package session drives one remote browsing session: starting it, running
// commands against it, folding streamed frames into the timeline and ending it.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/entrhq/webagent/pkg/logging"
	"github.com/entrhq/webagent/pkg/timeline"
	"github.com/entrhq/webagent/pkg/types"
	"github.com/entrhq/webagent/pkg/webagent"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("session")
	if err != nil {
		debugLog.Warnf("Failed to initialize session logger: %v", err)
	}
}

var (
	// ErrBusy is returned by Submit while another command is still running.
	ErrBusy = errors.New("a command is already running")
	// ErrNoSession is returned when an operation needs a started session and there is none.
	ErrNoSession = errors.New("no active session")
	// ErrSessionActive is returned by Start when a session is already starting, active or ending.
	ErrSessionActive = errors.New("a session is already in progress")
	// ErrInterrupted is returned by Start when End was called before the backend answered.
	ErrInterrupted = errors.New("session ended while starting")
)

// BrowserProvider creates and releases remote browser sessions.
type BrowserProvider interface {
	StartBrowserSession(ctx context.Context) (*webagent.BrowserSession, error)
	EndSession(ctx context.Context, sessionID string) error
}

// StepRunner runs goals inside a session and streams frames back.
type StepRunner interface {
	RunInitialSteps(ctx context.Context, req webagent.StepsRequest, onFrame webagent.FrameHandler) error
	RunAdditionalSteps(ctx context.Context, req webagent.StepsRequest, onFrame webagent.FrameHandler) error
}

// Backend is everything the controller needs from the automation service.
// *webagent.Client implements it.
type Backend interface {
	BrowserProvider
	StepRunner
}

// Logger is the logging surface the controller writes to.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// State is the lifecycle of the controller.
type State string

const (
	StateIdle     State = "idle"     // StateIdle has no session.
	StateStarting State = "starting" // StateStarting is waiting for the backend to create a browser.
	StateActive   State = "active"   // StateActive accepts commands.
	StateEnding   State = "ending"   // StateEnding is releasing the remote browser.
)

// Snapshot is a copy of the controller state for rendering.
type Snapshot struct {
	State   State
	Session types.Session
	Steps   []types.Step
	Busy    bool
}

// Controller owns the session and its timeline. It is safe for concurrent use.
type Controller struct {
	backend  Backend
	ids      timeline.IDSource
	log      Logger
	defaults webagent.StepsRequest

	mu       sync.Mutex
	state    State
	session  types.Session
	steps    []types.Step
	busy     bool
	gen      uint64
	onChange func(Snapshot)
}

// Option configures a Controller.
type Option func(*Controller)

// WithIDSource replaces the step id generator.
func WithIDSource(ids timeline.IDSource) Option {
	return func(c *Controller) {
		c.ids = ids
	}
}

// WithLogger replaces the package logger.
func WithLogger(l Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// WithStepDefaults sets the plan and model settings sent with every command.
// Goal, starting URL and session id are always filled in by the controller.
func WithStepDefaults(req webagent.StepsRequest) Option {
	return func(c *Controller) {
		c.defaults = req
	}
}

// NewController creates an idle controller.
func NewController(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		ids:     timeline.NewSequence(),
		log:     debugLog,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers fn to be called with a fresh snapshot after every mutation.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Busy reports whether a command is running.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Active reports whether a session is started.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateActive
}

// Start creates a remote browser session for startingURL. An empty URL is ignored.
func (c *Controller) Start(ctx context.Context, startingURL string) error {
	startingURL = strings.TrimSpace(startingURL)
	if startingURL == "" {
		return nil
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.state = StateStarting
	c.session = types.Session{StartingURL: startingURL}
	gen := c.gen
	c.mu.Unlock()
	c.notify()

	sess, err := c.backend.StartBrowserSession(ctx)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if err == nil {
			c.log.Infof("Session %s started after reset, releasing it", sess.SessionID)
			c.endRemote(ctx, sess.SessionID)
		}
		return ErrInterrupted
	}
	if err != nil {
		c.state = StateIdle
		c.session = types.Session{StartingURL: startingURL}
		c.mu.Unlock()
		c.log.Errorf("Failed to start session for %s: %v", startingURL, err)
		c.notify()
		return err
	}
	c.state = StateActive
	c.session = types.Session{
		SessionID:      sess.SessionID,
		StartingURL:    startingURL,
		LiveBrowserURL: sess.LiveBrowserURL,
		Started:        true,
	}
	c.mu.Unlock()
	c.log.Infof("Session %s active on %s", sess.SessionID, startingURL)
	c.notify()
	return nil
}

// Submit runs command in the active session and blocks until the backend stream ends.
//
// An empty command or a missing session is ignored. Only one command may run at
// a time; a second call returns ErrBusy. The user step is recorded before the
// backend is contacted, and frames are applied in arrival order.
func (c *Controller) Submit(ctx context.Context, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}

	c.mu.Lock()
	if c.state != StateActive || c.session.SessionID == "" {
		c.mu.Unlock()
		return nil
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	initial := len(c.steps) == 0
	c.steps = timeline.AppendUser(c.steps, command, c.ids)
	gen := c.gen
	req := c.defaults
	req.Goal = command
	req.StartingURL = c.session.StartingURL
	req.SessionID = c.session.SessionID
	c.mu.Unlock()
	c.notify()

	onFrame := func(raw []byte) {
		c.applyFrame(gen, raw)
	}

	var err error
	if initial {
		err = c.backend.RunInitialSteps(ctx, req, onFrame)
	} else {
		err = c.backend.RunAdditionalSteps(ctx, req, onFrame)
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if err != nil {
			c.log.Debugf("Command finished after session ended: %v", err)
		}
		return nil
	}
	c.busy = false
	if err != nil {
		c.steps = timeline.AppendError(c.steps, timeline.ErrorStepText, c.ids)
	}
	c.mu.Unlock()
	if err != nil {
		c.log.Errorf("Failed to execute command %q: %v", command, err)
	}
	c.notify()
	return err
}

func (c *Controller) applyFrame(gen uint64, raw []byte) {
	msg, err := timeline.Normalize(raw)
	if err != nil {
		c.log.Warnf("Dropping frame: %v", err)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.log.Debugf("Ignoring %s frame from ended session", msg.Type)
		return
	}
	c.steps = timeline.Apply(c.steps, msg, c.ids)
	c.mu.Unlock()
	c.notify()
}

// End tears the session down. It is safe to call at any time and never fails:
// the remote release is best-effort and local state is always cleared.
func (c *Controller) End(ctx context.Context) {
	c.mu.Lock()
	sessionID := c.session.SessionID
	c.state = StateEnding
	c.gen++
	c.session = types.Session{}
	c.steps = nil
	c.busy = false
	c.mu.Unlock()

	if sessionID != "" {
		c.notify()
		c.endRemote(ctx, sessionID)
	}

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) endRemote(ctx context.Context, sessionID string) {
	if err := c.backend.EndSession(ctx, sessionID); err != nil {
		c.log.Warnf("Failed to end session %s: %v", sessionID, err)
		return
	}
	c.log.Infof("Session %s ended", sessionID)
}

// RunExample starts a session on the example's URL and submits its title as the first command.
func (c *Controller) RunExample(ctx context.Context, ex types.Example) error {
	if err := c.Start(ctx, ex.URL); err != nil {
		return err
	}
	if !c.Active() {
		return ErrNoSession
	}
	return c.Submit(ctx, ex.Title)
}

func (c *Controller) snapshotLocked() Snapshot {
	steps := make([]types.Step, len(c.steps))
	copy(steps, c.steps)
	return Snapshot{
		State:   c.state,
		Session: c.session,
		Steps:   steps,
		Busy:    c.busy,
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onChange
	snap := c.snapshotLocked()
	c.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}
