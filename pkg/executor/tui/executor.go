// Package tui provides the playground executor: an interactive terminal UI
// around a session.Controller with a streamed timeline, the live browser
// address, push-to-talk voice input and an idle timeout.
//
// The TUI codebase is split into multiple files:
// - executor.go: Executor wiring and program lifecycle
// - model.go: Core model structure, messages and state
// - update.go: Bubble Tea Update function and message handling
// - view.go: Bubble Tea View function and timeline rendering
// - styles.go: Color schemes and styling
package tui

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/webagent/pkg/activity"
	"github.com/entrhq/webagent/pkg/logging"
	"github.com/entrhq/webagent/pkg/session"
	"github.com/entrhq/webagent/pkg/types"
	"github.com/entrhq/webagent/pkg/voice"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("tui")
	if err != nil {
		debugLog.Warnf("Failed to initialize tui logger: %v", err)
	}
}

const shutdownTimeout = 5 * time.Second

// Executor runs the playground for one controller.
type Executor struct {
	controller  *session.Controller
	command     *voice.CommandBuffer
	bridge      *voice.Bridge
	liveView    liveViewer
	examples    []types.Example
	startingURL string
	idleTimeout time.Duration

	mu      sync.Mutex
	program *tea.Program
}

// Option configures an Executor.
type Option func(*Executor)

// WithLiveView mirrors the live browser address into a local window.
func WithLiveView(v liveViewer) Option {
	return func(e *Executor) {
		e.liveView = v
	}
}

// WithExamples replaces the example commands on the start screen.
func WithExamples(examples []types.Example) Option {
	return func(e *Executor) {
		e.examples = examples
	}
}

// WithStartingURL pre-fills the starting URL.
func WithStartingURL(url string) Option {
	return func(e *Executor) {
		e.startingURL = url
	}
}

// WithIdleTimeout sets how long an active session may go without a key press.
func WithIdleTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.idleTimeout = d
	}
}

// NewExecutor creates a playground for controller.
func NewExecutor(controller *session.Controller, opts ...Option) *Executor {
	e := &Executor{
		controller:  controller,
		command:     voice.NewCommandBuffer(""),
		examples:    types.DefaultExamples,
		idleTimeout: activity.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Command is the buffer behind the command field. A voice bridge writes into it.
func (e *Executor) Command() *voice.CommandBuffer {
	return e.command
}

// AttachVoice enables push-to-talk. The bridge must have been created with
// Command(), voice.WithOnUpdate(e.OnTranscript) and
// voice.WithOnStateChange(e.OnVoiceState).
func (e *Executor) AttachVoice(bridge *voice.Bridge) {
	e.bridge = bridge
}

// OnTranscript forwards a transcript into the running program.
func (e *Executor) OnTranscript(t voice.Transcript, command string) {
	e.send(transcriptMsg{transcript: t, command: command})
}

// OnVoiceState forwards a capture state change the user did not ask for.
func (e *Executor) OnVoiceState(s voice.State) {
	e.send(voiceStateMsg{state: s})
}

func (e *Executor) send(msg tea.Msg) {
	e.mu.Lock()
	p := e.program
	e.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Run starts the TUI and blocks until the user exits. The session, the voice
// bridge and the live view are released before it returns.
func (e *Executor) Run(ctx context.Context) error {
	debugLog.Infof("Playground starting")

	m := newModel(ctx, e.controller, e.command, e.examples)
	m.urlInput.SetValue(e.startingURL)
	if e.bridge != nil {
		m.voice = e.bridge
	}
	if e.liveView != nil {
		m.liveView = e.liveView
	}

	monitor := activity.NewMonitor(e.controller, func() {
		debugLog.Infof("Session idle for %s, ending it", e.idleTimeout)
		e.controller.End(ctx)
		e.send(endDoneMsg{idle: true})
	}, activity.WithTimeout(e.idleTimeout))
	m.idle = monitor

	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	e.mu.Lock()
	e.program = program
	e.mu.Unlock()

	e.controller.OnChange(func(s session.Snapshot) {
		e.send(snapshotMsg(s))
	})
	monitor.Start()

	_, runErr := program.Run()

	e.mu.Lock()
	e.program = nil
	e.mu.Unlock()
	e.controller.OnChange(nil)
	monitor.Stop()
	e.shutdown(ctx)

	if runErr != nil {
		if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to run TUI program: %w", runErr)
	}
	return nil
}

func (e *Executor) shutdown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	e.controller.End(shutdownCtx)
	if e.bridge != nil {
		if err := e.bridge.Close(); err != nil {
			debugLog.Warnf("Failed to close voice bridge: %v", err)
		}
	}
	if e.liveView != nil {
		if err := e.liveView.Show(""); err != nil {
			debugLog.Warnf("Failed to close live view: %v", err)
		}
	}
	debugLog.Infof("Playground stopped")
}
