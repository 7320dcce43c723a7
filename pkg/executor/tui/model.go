package tui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/webagent/pkg/session"
	"github.com/entrhq/webagent/pkg/types"
	"github.com/entrhq/webagent/pkg/voice"
)

// sessionController is the part of session.Controller the model drives.
type sessionController interface {
	Start(ctx context.Context, startingURL string) error
	Submit(ctx context.Context, command string) error
	End(ctx context.Context)
	RunExample(ctx context.Context, ex types.Example) error
	Snapshot() session.Snapshot
}

// voiceToggle is the push-to-talk control. *voice.Bridge implements it.
type voiceToggle interface {
	Toggle(ctx context.Context) (voice.State, error)
}

// liveViewer mirrors the live browser address locally. *browser.LiveView implements it.
type liveViewer interface {
	Show(url string) error
}

// idleClock is the activity monitor as seen by the UI.
type idleClock interface {
	Touch()
	Remaining() time.Duration
}

// model represents the state of the TUI application.
type model struct {
	ctx      context.Context
	session  sessionController
	voice    voiceToggle
	command  *voice.CommandBuffer
	liveView liveViewer
	idle     idleClock
	copyText func(string) error

	// Start screen
	urlInput textinput.Model
	examples []types.Example
	selected int

	// Session screen
	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	snap       session.Snapshot
	starting   bool
	listening  bool
	voiceBusy  bool
	shownLive  string
	toast      toastNotification
	lastRender int

	width  int
	height int
	ready  bool
}

// snapshotMsg carries a controller snapshot into the update loop.
type snapshotMsg session.Snapshot

// startDoneMsg reports the end of Start or RunExample.
type startDoneMsg struct{ err error }

// submitDoneMsg reports the end of a command run.
type submitDoneMsg struct{ err error }

// endDoneMsg reports that the session was torn down.
type endDoneMsg struct{ idle bool }

// voiceMsg reports the result of a microphone toggle.
type voiceMsg struct {
	state voice.State
	err   error
}

// voiceStateMsg reports that capture stopped on its own.
type voiceStateMsg struct{ state voice.State }

// transcriptMsg carries the command text after a transcript was applied.
type transcriptMsg struct {
	transcript voice.Transcript
	command    string
}

// copyDoneMsg reports a clipboard write.
type copyDoneMsg struct {
	url string
	err error
}

// liveViewMsg reports a failed local live view update.
type liveViewMsg struct{ err error }

// tickMsg refreshes the idle countdown.
type tickMsg time.Time

// toastNotification represents a temporary notification message
type toastNotification struct {
	active    bool
	message   string
	details   string
	icon      string
	isError   bool
	showUntil time.Time
}

func newModel(ctx context.Context, ctrl sessionController, command *voice.CommandBuffer, examples []types.Example) *model {
	urlInput := textinput.New()
	urlInput.Placeholder = "https://google.com"
	urlInput.Prompt = "URL › "
	urlInput.Focus()

	input := textarea.New()
	input.Placeholder = "Type a command, or press Ctrl+T to speak..."
	input.ShowLineNumbers = false
	input.SetHeight(3)
	input.KeyMap.InsertNewline.SetKeys("alt+enter")
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = headerStyle

	if command == nil {
		command = voice.NewCommandBuffer("")
	}

	return &model{
		ctx:      ctx,
		session:  ctrl,
		copyText: clipboard.WriteAll,
		command:  command,
		urlInput: urlInput,
		examples: examples,
		input:    input,
		viewport: viewport.New(80, 10),
		spinner:  sp,
		snap:     session.Snapshot{State: session.StateIdle},
	}
}

// Init starts the spinner and the idle countdown.
func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *model) inSession() bool {
	return m.snap.State == session.StateActive
}
