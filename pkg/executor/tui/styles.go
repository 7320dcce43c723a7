package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/webagent/pkg/types"
)

// Color Palette
// This is the single source of truth for all TUI colors.
var (
	salmonPink  = lipgloss.Color("#FFB3BA") // Soft pastel salmon pink - primary accent
	coralPink   = lipgloss.Color("#FFCCCB") // Lighter coral accent - user steps
	mintGreen   = lipgloss.Color("#A8E6CF") // Soft mint green - completed steps
	skyBlue     = lipgloss.Color("#A0C4FF") // Running steps and links
	errorRed    = lipgloss.Color("203")     // Failed steps and error toasts
	mutedGray   = lipgloss.Color("#6B7280") // Muted gray - secondary text
	brightWhite = lipgloss.Color("#F9FAFB") // Bright white - primary text
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	tipsStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	labelStyle = lipgloss.NewStyle().
			Foreground(brightWhite).
			Bold(true)

	userLabelStyle = lipgloss.NewStyle().
			Foreground(coralPink).
			Bold(true)

	actionStyle = lipgloss.NewStyle().
			Foreground(brightWhite).
			PaddingLeft(2)

	linkStyle = lipgloss.NewStyle().
			Foreground(skyBlue)

	selectedStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	listeningStyle = lipgloss.NewStyle().
			Foreground(errorRed).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(salmonPink).
			Padding(0, 1)

	badgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true)
)

// statusBadge renders the small colored tag next to a step heading.
func statusBadge(status types.StepStatus) string {
	switch status {
	case types.StepStatusRunning:
		return badgeStyle.Foreground(skyBlue).Render("● running")
	case types.StepStatusComplete:
		return badgeStyle.Foreground(mintGreen).Render("✓ done")
	case types.StepStatusError:
		return badgeStyle.Foreground(errorRed).Render("✗ error")
	default:
		return badgeStyle.Foreground(mutedGray).Render("○ pending")
	}
}
