package headless

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/webagent/pkg/types"
)

// ArtifactWriter handles writing execution artifacts
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
	}
}

// OutputDir is the directory artifacts are written to.
func (w *ArtifactWriter) OutputDir() string {
	return w.outputDir
}

// WriteAll writes every artifact format
func (w *ArtifactWriter) WriteAll(summary *ExecutionSummary) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := w.WriteExecutionJSON(summary); err != nil {
		return fmt.Errorf("failed to write execution JSON: %w", err)
	}

	if err := w.WriteSummaryMarkdown(summary); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}

	if err := w.WriteMetricsJSON(summary); err != nil {
		return fmt.Errorf("failed to write metrics JSON: %w", err)
	}

	return nil
}

// WriteExecutionJSON writes the full execution summary, timeline included, as JSON
func (w *ArtifactWriter) WriteExecutionJSON(summary *ExecutionSummary) error {
	path := filepath.Join(w.outputDir, "execution.json")

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution summary: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write execution JSON: %w", writeErr)
	}

	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *ExecutionSummary) error {
	path := filepath.Join(w.outputDir, "summary.md")

	var md strings.Builder

	md.WriteString("# WebAgent Headless Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", summary.Name))
	md.WriteString(fmt.Sprintf("**Starting URL:** %s\n\n", summary.StartingURL))
	if summary.SessionID != "" {
		md.WriteString(fmt.Sprintf("**Session:** %s\n\n", summary.SessionID))
	}
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", summary.Status))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", summary.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration))

	md.WriteString("## Result\n\n")
	if summary.Error != "" {
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", summary.Error))
	} else {
		md.WriteString("✅ **Success**\n\n")
	}

	if len(summary.Goals) > 0 {
		md.WriteString("## Goals\n\n")
		for i, goal := range summary.Goals {
			status := "✅"
			if goal.Status != statusSuccess {
				status = "❌"
			}
			md.WriteString(fmt.Sprintf("%s **%d. %s** (%d steps, %s)\n", status, i+1, goal.Goal, len(goal.Steps), goal.Duration.Round(time.Millisecond)))
			if goal.Error != "" {
				md.WriteString(fmt.Sprintf("   Error: %s\n", goal.Error))
			}
		}
		md.WriteString("\n")
	}

	if len(summary.Timeline) > 0 {
		md.WriteString("## Timeline\n\n")
		for _, step := range summary.Timeline {
			md.WriteString(fmt.Sprintf("- **%s** [%s] %s\n", step.Label(), step.Status, oneLine(step.Action)))
		}
		md.WriteString("\n")
	}

	md.WriteString("## Metrics\n\n")
	md.WriteString(fmt.Sprintf("- **Goals:** %d\n", summary.Metrics.Goals))
	md.WriteString(fmt.Sprintf("- **Goals Succeeded:** %d\n", summary.Metrics.GoalsSucceeded))
	md.WriteString(fmt.Sprintf("- **Steps:** %d\n", summary.Metrics.Steps))
	md.WriteString(fmt.Sprintf("- **Error Steps:** %d\n", summary.Metrics.ErrorSteps))

	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}

	return nil
}

// WriteMetricsJSON writes execution metrics as JSON
func (w *ArtifactWriter) WriteMetricsJSON(summary *ExecutionSummary) error {
	path := filepath.Join(w.outputDir, "metrics.json")

	data, err := json.MarshalIndent(summary.Metrics, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write metrics JSON: %w", writeErr)
	}

	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExecutionSummary contains a complete summary of a headless run
type ExecutionSummary struct {
	Name           string           `json:"name"`
	StartingURL    string           `json:"starting_url"`
	SessionID      string           `json:"session_id,omitempty"`
	LiveBrowserURL string           `json:"live_browser_url,omitempty"`
	Status         string           `json:"status"`
	Error          string           `json:"error,omitempty"`
	StartTime      time.Time        `json:"start_time"`
	EndTime        time.Time        `json:"end_time"`
	Duration       time.Duration    `json:"duration"`
	Goals          []GoalResult     `json:"goals"`
	Timeline       []types.Step     `json:"timeline"`
	Metrics        ExecutionMetrics `json:"metrics"`
}

// GoalResult is the outcome of one submitted goal
type GoalResult struct {
	Goal     string        `json:"goal"`
	Status   string        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	Steps    []types.Step  `json:"steps"`
}

// ExecutionMetrics contains execution metrics
type ExecutionMetrics struct {
	Goals          int `json:"goals"`
	GoalsSucceeded int `json:"goals_succeeded"`
	Steps          int `json:"steps"`
	ErrorSteps     int `json:"error_steps"`
}
