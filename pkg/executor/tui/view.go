package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/webagent/pkg/session"
	"github.com/entrhq/webagent/pkg/types"
)

const title = "WebAgent Playground"

// View renders the entire TUI interface.
func (m *model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var body string
	if m.inSession() {
		body = lipgloss.JoinVertical(lipgloss.Left,
			headerStyle.Render(title),
			m.buildSessionStatus(),
			"",
			m.viewport.View(),
			m.buildBusyLine(),
			inputBoxStyle.Width(max(m.width-4, 10)).Render(m.input.View()),
			statusBarStyle.Render("Enter send • Alt+Enter new line • Ctrl+T mic • Ctrl+Y copy live URL • Ctrl+X reset • Ctrl+C quit"),
		)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left,
			headerStyle.Render(title),
			tipsStyle.Render("  Enter a starting URL to launch a browser session, or run an example."),
			"",
			m.buildStartScreen(),
		)
	}

	if toast := m.renderToast(); toast != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, toast)
	}
	return body
}

func (m *model) buildStartScreen() string {
	var b strings.Builder
	b.WriteString(inputBoxStyle.Width(max(m.width-4, 10)).Render(m.urlInput.View()))
	b.WriteString("\n")

	if m.starting || m.snap.State == session.StateStarting {
		fmt.Fprintf(&b, "  %s Starting browser session...\n", m.spinner.View())
	}
	if m.snap.State == session.StateEnding {
		fmt.Fprintf(&b, "  %s Ending session...\n", m.spinner.View())
	}

	if len(m.examples) > 0 {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("  Examples"))
		b.WriteString("\n")
		for i, ex := range m.examples {
			line := fmt.Sprintf("%s  %s", ex.Title, tipsStyle.Render(ex.URL))
			if i == m.selected {
				b.WriteString(selectedStyle.Render("  › ") + line)
			} else {
				b.WriteString("    " + line)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(statusBarStyle.Render("Enter start • ↑/↓ choose example • Ctrl+E run example • Ctrl+T mic • Ctrl+C quit"))
	return b.String()
}

func (m *model) buildSessionStatus() string {
	parts := []string{"Session " + m.snap.Session.SessionID}
	if live := m.snap.Session.LiveBrowserURL; live != "" {
		parts = append(parts, "Live "+linkStyle.Render(live))
	}
	if m.idle != nil {
		parts = append(parts, "Idle in "+formatRemaining(m.idle.Remaining()))
	}
	if m.listening {
		parts = append(parts, listeningStyle.Render("● Listening"))
	}
	return statusBarStyle.Render(strings.Join(parts, " • "))
}

func (m *model) buildBusyLine() string {
	if !m.snap.Busy {
		return ""
	}
	text := "Working..."
	for i := len(m.snap.Steps) - 1; i >= 0; i-- {
		if s := m.snap.Steps[i]; s.Status == types.StepStatusRunning {
			text = s.Label() + "..."
			break
		}
	}
	return lipgloss.NewStyle().Foreground(salmonPink).Padding(0, 2).Render(m.spinner.View() + " " + text)
}

// renderTimeline renders every step as a labelled block.
func renderTimeline(steps []types.Step, width int) string {
	if len(steps) == 0 {
		return tipsStyle.Render("  No steps yet. Type a command below.")
	}
	blocks := make([]string, 0, len(steps))
	for _, s := range steps {
		blocks = append(blocks, renderStep(s, width))
	}
	return strings.Join(blocks, "\n\n")
}

func renderStep(s types.Step, width int) string {
	label := labelStyle.Render(s.Label())
	if s.Source == types.StepSourceUser {
		label = userLabelStyle.Render(s.Label())
	}
	heading := label + " " + statusBadge(s.Status)

	body := actionStyle
	if width > 4 {
		body = body.Width(width - 2)
	}
	return heading + "\n" + body.Render(s.Action)
}

// renderToast renders a toast notification
func (m *model) renderToast() string {
	if !m.toast.active || time.Now().After(m.toast.showUntil) {
		return ""
	}

	content := fmt.Sprintf("%s %s", m.toast.icon, m.toast.message)
	if m.toast.details != "" {
		content += "\n" + m.toast.details
	}

	borderColor := salmonPink
	if m.toast.isError {
		borderColor = errorRed
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(max(m.width-4, 40)).
		Render(content)
}
