package headless

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/entrhq/webagent/pkg/types"
)

// LogLevel represents the logging verbosity level
type LogLevel int

const (
	// LogLevelQuiet shows only critical information (errors, warnings, final summary)
	LogLevelQuiet LogLevel = iota
	// LogLevelNormal shows standard execution progress (default)
	LogLevelNormal
	// LogLevelVerbose shows every timeline step as it arrives
	LogLevelVerbose
	// LogLevelDebug shows all internal details for debugging
	LogLevelDebug
)

// Logger prints run progress to the terminal
type Logger struct {
	level  LogLevel
	writer io.Writer

	// ANSI color codes
	colorReset     string
	colorCyan      string
	colorSalmon    string
	colorYellow    string
	colorRed       string
	colorGray      string
	colorBoldGreen string
	colorBoldRed   string
	colorBoldWhite string

	goalCount int
}

// NewLogger creates a logger writing to stdout
func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(level, os.Stdout)
}

// NewLoggerTo creates a logger writing to w
func NewLoggerTo(level LogLevel, w io.Writer) *Logger {
	return &Logger{
		level:          level,
		writer:         w,
		colorReset:     "\033[0m",
		colorCyan:      "\033[36m",
		colorSalmon:    "\033[38;5;217m", // Salmon pink #FFB3BA
		colorYellow:    "\033[33m",
		colorRed:       "\033[31m",
		colorGray:      "\033[90m",
		colorBoldGreen: "\033[1;32m",
		colorBoldRed:   "\033[1;31m",
		colorBoldWhite: "\033[1;37m",
	}
}

// Header prints a prominent header message
func (l *Logger) Header(message string) {
	if l.level >= LogLevelNormal {
		fmt.Fprintf(l.writer, "\n%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
		fmt.Fprintf(l.writer, "%s  %s%s\n", l.colorBoldWhite, message, l.colorReset)
		fmt.Fprintf(l.writer, "%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
	}
}

// Goal prints a numbered goal
func (l *Logger) Goal(goal string) {
	if l.level >= LogLevelNormal {
		l.goalCount++
		fmt.Fprintf(l.writer, "\n%s[%d] %s%s\n", l.colorCyan, l.goalCount, goal, l.colorReset)
	}
}

// Successf prints a success message with checkmark
func (l *Logger) Successf(format string, args ...interface{}) {
	if l.level >= LogLevelNormal {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(l.writer, "%s✓ %s%s\n", l.colorBoldGreen, msg, l.colorReset)
	}
}

// Infof prints an informational message
func (l *Logger) Infof(format string, args ...interface{}) {
	if l.level >= LogLevelNormal {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(l.writer, "%s%s%s\n", l.colorSalmon, msg, l.colorReset)
	}
}

// Warningf prints a warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.writer, "%s⚠ Warning: %s%s\n", l.colorYellow, msg, l.colorReset)
}

// Errorf prints an error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.writer, "%s✗ Error: %s%s\n", l.colorBoldRed, msg, l.colorReset)
}

// Debugf prints debug information (only in debug mode)
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.level >= LogLevelDebug {
		msg := fmt.Sprintf(format, args...)
		fmt.Fprintf(l.writer, "%s[DEBUG] %s%s\n", l.colorGray, msg, l.colorReset)
	}
}

// TimelineStep logs a finished step with formatting based on verbosity
func (l *Logger) TimelineStep(step types.Step) {
	switch l.level {
	case LogLevelQuiet:
		// Don't log individual steps in quiet mode
	case LogLevelNormal:
		fmt.Fprintf(l.writer, "%s  • %s%s\n", l.colorGray, step.Label(), l.colorReset)
	case LogLevelVerbose, LogLevelDebug:
		color := l.colorGray
		if step.Status == types.StepStatusError {
			color = l.colorRed
		}
		fmt.Fprintf(l.writer, "%s  • %s: %s%s\n", color, step.Label(), truncate(oneLine(step.Action), 200), l.colorReset)
	}
}

// Summary prints a final execution summary
func (l *Logger) Summary(summary *ExecutionSummary) {
	l.printSummaryHeader()
	l.printStatus(summary.Status)
	l.printRunAndDuration(summary)
	l.printMetrics(summary)
	l.printGoals(summary)
	l.printError(summary)
	l.printSummaryFooter()
}

func (l *Logger) printSummaryHeader() {
	fmt.Fprintln(l.writer)
	fmt.Fprintf(l.writer, "%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
	fmt.Fprintf(l.writer, "%s  EXECUTION SUMMARY%s\n", l.colorBoldWhite, l.colorReset)
	fmt.Fprintf(l.writer, "%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
}

func (l *Logger) printStatus(status string) {
	fmt.Fprint(l.writer, "  Status: ")
	switch status {
	case statusSuccess:
		fmt.Fprintf(l.writer, "%s✓ SUCCESS%s\n", l.colorBoldGreen, l.colorReset)
	case statusPartialSuccess:
		fmt.Fprintf(l.writer, "%s⚠ PARTIAL SUCCESS%s\n", l.colorYellow, l.colorReset)
	case statusFailed:
		fmt.Fprintf(l.writer, "%s✗ FAILED%s\n", l.colorBoldRed, l.colorReset)
	default:
		fmt.Fprintln(l.writer, status)
	}
}

func (l *Logger) printRunAndDuration(summary *ExecutionSummary) {
	fmt.Fprintf(l.writer, "  Run: %s\n", summary.Name)
	fmt.Fprintf(l.writer, "  Duration: %s\n", summary.Duration.Round(time.Second))
	if summary.LiveBrowserURL != "" {
		fmt.Fprintf(l.writer, "  Live browser: %s\n", summary.LiveBrowserURL)
	}
}

func (l *Logger) printMetrics(summary *ExecutionSummary) {
	fmt.Fprintf(l.writer, "\n  📊 Metrics:\n")
	fmt.Fprintf(l.writer, "    Goals: %d/%d succeeded\n", summary.Metrics.GoalsSucceeded, summary.Metrics.Goals)
	fmt.Fprintf(l.writer, "    Steps: %d\n", summary.Metrics.Steps)
	if summary.Metrics.ErrorSteps > 0 {
		fmt.Fprintf(l.writer, "    Error steps: %d\n", summary.Metrics.ErrorSteps)
	}
}

func (l *Logger) printGoals(summary *ExecutionSummary) {
	if l.level < LogLevelVerbose || len(summary.Goals) == 0 {
		return
	}

	fmt.Fprintf(l.writer, "\n  🎯 Goals:\n")
	for _, goal := range summary.Goals {
		if goal.Status == statusSuccess {
			fmt.Fprintf(l.writer, "%s    ✓ %s%s\n", l.colorBoldGreen, goal.Goal, l.colorReset)
		} else {
			fmt.Fprintf(l.writer, "%s    ✗ %s%s\n", l.colorBoldRed, goal.Goal, l.colorReset)
			if goal.Error != "" {
				fmt.Fprintf(l.writer, "%s      %s%s\n", l.colorGray, goal.Error, l.colorReset)
			}
		}
	}
}

func (l *Logger) printError(summary *ExecutionSummary) {
	if summary.Error == "" {
		return
	}

	fmt.Fprintln(l.writer)
	fmt.Fprintf(l.writer, "%s  Error Details:%s\n", l.colorBoldRed, l.colorReset)
	fmt.Fprintf(l.writer, "%s    %s%s\n", l.colorRed, summary.Error, l.colorReset)
}

func (l *Logger) printSummaryFooter() {
	fmt.Fprintf(l.writer, "%s%s%s\n", l.colorBoldWhite, strings.Repeat("=", 70), l.colorReset)
	fmt.Fprintln(l.writer)
}

// ParseLogLevel converts a string log level to LogLevel type
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "quiet":
		return LogLevelQuiet
	case "normal":
		return LogLevelNormal
	case "verbose":
		return LogLevelVerbose
	case "debug":
		return LogLevelDebug
	default:
		return LogLevelNormal
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
