package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/webagent/pkg/session"
	"github.com/entrhq/webagent/pkg/types"
	"github.com/entrhq/webagent/pkg/voice"
)

// Update handles all state updates for the TUI model.
//
// Controller calls block and notify through OnChange, which sends into the
// program, so they always run inside commands and never in Update itself.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowResize(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tick()

	case snapshotMsg:
		return m, m.applySnapshot(session.Snapshot(msg))

	case startDoneMsg:
		m.starting = false
		if msg.err != nil && !errors.Is(msg.err, session.ErrInterrupted) {
			debugLog.Warnf("Session start failed: %v", msg.err)
			m.showToast("Failed to start session", msg.err.Error(), "❌", true)
		}
		return m, m.applySnapshot(m.session.Snapshot())

	case submitDoneMsg:
		m.starting = false
		if msg.err != nil {
			if errors.Is(msg.err, session.ErrBusy) {
				m.showToast("A command is already running", "", "⏳", true)
			} else {
				m.showToast("Command failed", msg.err.Error(), "❌", true)
			}
		}
		return m, m.applySnapshot(m.session.Snapshot())

	case endDoneMsg:
		if msg.idle {
			m.showToast("Session ended", "No activity for a while", "💤", false)
		}
		return m, m.applySnapshot(m.session.Snapshot())

	case voiceMsg:
		m.voiceBusy = false
		if msg.err != nil {
			debugLog.Warnf("Microphone toggle failed: %v", msg.err)
			m.showToast("Microphone error", msg.err.Error(), "🎙", true)
		}
		m.listening = msg.state == voice.StateListening
		return m, nil

	case voiceStateMsg:
		m.listening = msg.state == voice.StateListening
		return m, nil

	case transcriptMsg:
		if msg.transcript.Committed() {
			m.input.SetValue(msg.command)
			m.input.CursorEnd()
		}
		return m, nil

	case copyDoneMsg:
		if msg.err != nil {
			m.showToast("Copy failed", msg.err.Error(), "📋", true)
		} else {
			m.showToast("Copied live browser URL", msg.url, "📋", false)
		}
		return m, nil

	case liveViewMsg:
		if msg.err != nil {
			debugLog.Warnf("Local live view failed: %v", msg.err)
			m.showToast("Live view unavailable", msg.err.Error(), "🌐", true)
		}
		return m, nil

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.idle != nil {
			m.idle.Touch()
		}
		return m.handleKeyPress(msg)
	}

	return m, nil
}

func (m *model) handleWindowResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.urlInput.Width = max(m.width-12, 10)
	m.input.SetWidth(max(m.width-8, 10))
	m.viewport.Width = max(m.width-4, 10)
	m.viewport.Height = m.calculateViewportHeight()
	m.ready = true
	m.refreshTimeline()
	return m, nil
}

// calculateViewportHeight computes the timeline height from the fixed chrome around it.
func (m *model) calculateViewportHeight() int {
	headerHeight := 3 // title + status bar + blank line
	inputHeight := m.input.Height() + 2
	footerHeight := 2 // busy line + help bar
	h := m.height - headerHeight - inputHeight - footerHeight
	if h < 5 {
		h = 5
	}
	return h
}

func (m *model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "ctrl+t":
		return m, m.toggleVoice()
	case "ctrl+x":
		return m, m.reset()
	}

	if m.inSession() {
		return m.handleSessionKey(msg)
	}
	return m.handleStartKey(msg)
}

func (m *model) handleStartKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		url := strings.TrimSpace(m.urlInput.Value())
		if url == "" || m.starting {
			return m, nil
		}
		m.starting = true
		return m, m.startCmd(url)
	case "up":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "down":
		if m.selected < len(m.examples)-1 {
			m.selected++
		}
		return m, nil
	case "ctrl+e":
		if len(m.examples) == 0 || m.starting {
			return m, nil
		}
		ex := m.examples[m.selected]
		m.starting = true
		m.urlInput.SetValue(ex.URL)
		return m, m.exampleCmd(ex)
	}

	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	return m, cmd
}

func (m *model) handleSessionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		if m.snap.Busy {
			m.showToast("A command is already running", "Wait for it to finish", "⏳", true)
			return m, nil
		}
		m.input.Reset()
		m.command.Clear()
		return m, m.submitCmd(text)
	case "ctrl+y":
		return m, m.copyCmd(m.snap.Session.LiveBrowserURL)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	oldHeight := m.input.Height()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.command.Set(m.input.Value())
	if m.ready && oldHeight != m.input.Height() {
		m.viewport.Height = m.calculateViewportHeight()
	}
	return m, cmd
}

// applySnapshot stores the controller state and syncs the timeline and live view.
func (m *model) applySnapshot(s session.Snapshot) tea.Cmd {
	m.snap = s
	switch s.State {
	case session.StateStarting:
		m.starting = true
	case session.StateActive:
		m.starting = false
	}
	m.refreshTimeline()

	live := s.Session.LiveBrowserURL
	if m.liveView == nil || live == m.shownLive {
		return nil
	}
	m.shownLive = live
	view := m.liveView
	return func() tea.Msg {
		return liveViewMsg{err: view.Show(live)}
	}
}

func (m *model) refreshTimeline() {
	m.viewport.SetContent(renderTimeline(m.snap.Steps, m.viewport.Width))
	if len(m.snap.Steps) != m.lastRender {
		m.viewport.GotoBottom()
		m.lastRender = len(m.snap.Steps)
	}
}

// reset ends the session and clears the command and starting URL.
func (m *model) reset() tea.Cmd {
	m.input.Reset()
	m.command.Clear()
	m.urlInput.Reset()
	m.starting = false
	ctrl, ctx := m.session, m.ctx
	return func() tea.Msg {
		ctrl.End(ctx)
		return endDoneMsg{}
	}
}

func (m *model) startCmd(url string) tea.Cmd {
	ctrl, ctx := m.session, m.ctx
	return func() tea.Msg {
		return startDoneMsg{err: ctrl.Start(ctx, url)}
	}
}

func (m *model) exampleCmd(ex types.Example) tea.Cmd {
	ctrl, ctx := m.session, m.ctx
	return func() tea.Msg {
		err := ctrl.RunExample(ctx, ex)
		if err != nil && !ctrlActive(ctrl) {
			return startDoneMsg{err: err}
		}
		return submitDoneMsg{err: err}
	}
}

func (m *model) submitCmd(text string) tea.Cmd {
	ctrl, ctx := m.session, m.ctx
	return func() tea.Msg {
		return submitDoneMsg{err: ctrl.Submit(ctx, text)}
	}
}

func (m *model) toggleVoice() tea.Cmd {
	if m.voice == nil {
		m.showToast("Voice input is not configured", "Set voice.api_key or DEEPGRAM_API_KEY", "🎙", true)
		return nil
	}
	if m.voiceBusy {
		return nil
	}
	m.voiceBusy = true
	v, ctx := m.voice, m.ctx
	return func() tea.Msg {
		state, err := v.Toggle(ctx)
		return voiceMsg{state: state, err: err}
	}
}

func (m *model) copyCmd(url string) tea.Cmd {
	if url == "" {
		m.showToast("No live browser URL yet", "", "📋", true)
		return nil
	}
	write := m.copyText
	return func() tea.Msg {
		return copyDoneMsg{url: url, err: write(url)}
	}
}

// showToast displays a toast notification to the user
func (m *model) showToast(message, details, icon string, isError bool) {
	m.toast = toastNotification{
		active:    true,
		message:   message,
		details:   details,
		icon:      icon,
		isError:   isError,
		showUntil: time.Now().Add(3 * time.Second),
	}
}

func ctrlActive(ctrl sessionController) bool {
	return ctrl.Snapshot().State == session.StateActive
}

func formatRemaining(d time.Duration) string {
	return fmt.Sprintf("%ds", int(d.Round(time.Second)/time.Second))
}
