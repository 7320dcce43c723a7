package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/webagent/pkg/session"
	"github.com/entrhq/webagent/pkg/types"
	"github.com/entrhq/webagent/pkg/voice"
)

type fakeController struct {
	mu        sync.Mutex
	snap      session.Snapshot
	starts    []string
	submits   []string
	examples  []types.Example
	ends      int
	startErr  error
	submitErr error
}

func (f *fakeController) Start(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, url)
	if f.startErr != nil {
		return f.startErr
	}
	f.snap = session.Snapshot{
		State:   session.StateActive,
		Session: types.Session{SessionID: "s-1", StartingURL: url, LiveBrowserURL: "https://live/1", Started: true},
	}
	return nil
}

func (f *fakeController) Submit(ctx context.Context, command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, command)
	return f.submitErr
}

func (f *fakeController) End(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends++
	f.snap = session.Snapshot{State: session.StateIdle}
}

func (f *fakeController) RunExample(ctx context.Context, ex types.Example) error {
	f.mu.Lock()
	f.examples = append(f.examples, ex)
	f.mu.Unlock()
	if err := f.Start(ctx, ex.URL); err != nil {
		return err
	}
	return f.Submit(ctx, ex.Title)
}

func (f *fakeController) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

type fakeVoice struct {
	toggles int
	state   voice.State
}

func (f *fakeVoice) Toggle(ctx context.Context) (voice.State, error) {
	f.toggles++
	if f.state == voice.StateListening {
		f.state = voice.StateReady
	} else {
		f.state = voice.StateListening
	}
	return f.state, nil
}

type fakeLiveView struct {
	shown []string
}

func (f *fakeLiveView) Show(url string) error {
	f.shown = append(f.shown, url)
	return nil
}

type fakeClock struct{ touches int }

func (f *fakeClock) Touch()                   { f.touches++ }
func (f *fakeClock) Remaining() time.Duration { return 42 * time.Second }

func newTestModel(t *testing.T) (*model, *fakeController) {
	t.Helper()
	ctrl := &fakeController{snap: session.Snapshot{State: session.StateIdle}}
	m := newModel(context.Background(), ctrl, voice.NewCommandBuffer(""), types.DefaultExamples)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, ctrl
}

// press sends a key and runs the resulting command chain, feeding messages back in.
func press(m *model, key tea.KeyMsg) {
	_, cmd := m.Update(key)
	drain(m, cmd)
}

func drain(m *model, cmd tea.Cmd) {
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			return
		}
		if _, ok := msg.(tea.BatchMsg); ok {
			return
		}
		_, cmd = m.Update(msg)
	}
}

func typeText(m *model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func enter() tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyEnter} }

func TestStartRequiresURL(t *testing.T) {
	m, ctrl := newTestModel(t)

	_, cmd := m.Update(enter())
	assert.Nil(t, cmd)
	assert.Empty(t, ctrl.starts)
}

func TestStartSession(t *testing.T) {
	m, ctrl := newTestModel(t)
	typeText(m, "https://example.com")

	press(m, enter())

	assert.Equal(t, []string{"https://example.com"}, ctrl.starts)
	assert.True(t, m.inSession())
	assert.False(t, m.starting)
	assert.Contains(t, m.View(), "https://live/1")
}

func TestStartFailureShowsToast(t *testing.T) {
	m, ctrl := newTestModel(t)
	ctrl.startErr = errors.New("backend down")
	typeText(m, "https://example.com")

	press(m, enter())

	assert.False(t, m.inSession())
	assert.True(t, m.toast.isError)
	assert.Contains(t, m.renderToast(), "backend down")
}

func TestSubmitClearsCommand(t *testing.T) {
	m, ctrl := newTestModel(t)
	typeText(m, "https://example.com")
	press(m, enter())

	typeText(m, "find a dining table")
	assert.Equal(t, "find a dining table", m.command.Text())

	press(m, enter())
	assert.Equal(t, []string{"find a dining table"}, ctrl.submits)
	assert.Empty(t, m.input.Value())
	assert.Empty(t, m.command.Text())
}

func TestSubmitWhileBusyIsRefused(t *testing.T) {
	m, ctrl := newTestModel(t)
	typeText(m, "https://example.com")
	press(m, enter())

	m.Update(snapshotMsg(session.Snapshot{State: session.StateActive, Busy: true}))
	typeText(m, "second")
	_, cmd := m.Update(enter())

	assert.Nil(t, cmd)
	assert.Empty(t, ctrl.submits)
	assert.Equal(t, "second", m.input.Value())
	assert.Contains(t, m.renderToast(), "already running")
}

func TestTimelineRendersSteps(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(snapshotMsg(session.Snapshot{
		State:   session.StateActive,
		Session: types.Session{SessionID: "s-1"},
		Busy:    true,
		Steps: []types.Step{
			{ID: "1", Action: "search", Status: types.StepStatusComplete, Source: types.StepSourceUser},
			{ID: "2", Action: "Looking at the page", Status: types.StepStatusComplete, MessageType: types.MessageTypeThinking, Source: types.StepSourceSystem},
			{ID: "3", Action: "click #buy", Status: types.StepStatusRunning, MessageType: types.MessageTypeAction, Source: types.StepSourceSystem},
		},
	}))

	view := m.View()
	assert.Contains(t, view, "You")
	assert.Contains(t, view, "Thinking")
	assert.Contains(t, view, "click #buy")
	assert.Contains(t, view, "running")
	assert.Contains(t, m.buildBusyLine(), "Action...")
}

func TestRenderTimelineEmpty(t *testing.T) {
	assert.Contains(t, renderTimeline(nil, 80), "No steps yet")
}

func TestStatusBadges(t *testing.T) {
	assert.Contains(t, statusBadge(types.StepStatusRunning), "running")
	assert.Contains(t, statusBadge(types.StepStatusComplete), "done")
	assert.Contains(t, statusBadge(types.StepStatusError), "error")
	assert.Contains(t, statusBadge(types.StepStatusPending), "pending")
}

func TestResetClearsCommandAndURL(t *testing.T) {
	m, ctrl := newTestModel(t)
	typeText(m, "https://example.com")
	press(m, enter())
	typeText(m, "half typed")

	press(m, tea.KeyMsg{Type: tea.KeyCtrlX})

	assert.Equal(t, 1, ctrl.ends)
	assert.False(t, m.inSession())
	assert.Empty(t, m.urlInput.Value())
	assert.Empty(t, m.input.Value())
	assert.Empty(t, m.command.Text())
}

func TestRunExample(t *testing.T) {
	m, ctrl := newTestModel(t)

	press(m, tea.KeyMsg{Type: tea.KeyCtrlE})

	require.Len(t, ctrl.examples, 1)
	assert.Equal(t, types.DefaultExamples[0], ctrl.examples[0])
	assert.Equal(t, []string{"Search dining table"}, ctrl.submits)
	assert.True(t, m.inSession())
	assert.False(t, m.starting)
}

func TestVoiceToggleAndTranscript(t *testing.T) {
	m, _ := newTestModel(t)
	v := &fakeVoice{}
	m.voice = v

	press(m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.True(t, m.listening)

	m.Update(transcriptMsg{transcript: voice.Transcript{Text: "hel"}, command: "ignored"})
	assert.Empty(t, m.input.Value())

	m.Update(transcriptMsg{transcript: voice.Transcript{IsFinal: true, SpeechFinal: true, Text: "hello"}, command: "hello"})
	assert.Equal(t, "hello", m.input.Value())

	press(m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.False(t, m.listening)
	assert.Equal(t, 2, v.toggles)
}

func TestVoiceStopsWhenRecorderExits(t *testing.T) {
	m, _ := newTestModel(t)
	m.voice = &fakeVoice{}

	press(m, tea.KeyMsg{Type: tea.KeyCtrlT})
	require.True(t, m.listening)

	m.Update(voiceStateMsg{state: voice.StateReady})
	assert.False(t, m.listening)
}

func TestVoiceNotConfigured(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Nil(t, cmd)
	assert.Contains(t, m.renderToast(), "not configured")
}

func TestCopyLiveURL(t *testing.T) {
	m, _ := newTestModel(t)
	var copied string
	m.copyText = func(s string) error { copied = s; return nil }

	typeText(m, "https://example.com")
	press(m, enter())
	press(m, tea.KeyMsg{Type: tea.KeyCtrlY})

	assert.Equal(t, "https://live/1", copied)
	assert.Contains(t, m.renderToast(), "Copied")
}

func TestLiveViewFollowsSession(t *testing.T) {
	m, _ := newTestModel(t)
	lv := &fakeLiveView{}
	m.liveView = lv

	typeText(m, "https://example.com")
	press(m, enter())
	press(m, tea.KeyMsg{Type: tea.KeyCtrlX})

	assert.Equal(t, []string{"https://live/1", ""}, lv.shown)
}

func TestKeysTouchIdleClock(t *testing.T) {
	m, _ := newTestModel(t)
	clock := &fakeClock{}
	m.idle = clock

	typeText(m, "https://example.com")
	press(m, enter())

	assert.Equal(t, 2, clock.touches)
	assert.Contains(t, m.buildSessionStatus(), "Idle in 42s")
}

func TestIdleEndShowsToast(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(endDoneMsg{idle: true})
	assert.Contains(t, m.renderToast(), "Session ended")
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "60s", formatRemaining(59600*time.Millisecond))
	assert.Equal(t, "0s", formatRemaining(0))
}
