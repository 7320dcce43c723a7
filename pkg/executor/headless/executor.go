package headless

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/webagent/pkg/logging"
	"github.com/entrhq/webagent/pkg/session"
	"github.com/entrhq/webagent/pkg/types"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("headless")
	if err != nil {
		debugLog.Warnf("Failed to initialize headless logger: %v", err)
	}
}

const (
	statusSuccess        = "success"
	statusFailed         = "failed"
	statusPartialSuccess = "partial_success"
)

const endTimeout = 10 * time.Second

// Controller is the part of session.Controller a headless run drives.
type Controller interface {
	Start(ctx context.Context, startingURL string) error
	Submit(ctx context.Context, command string) error
	End(ctx context.Context)
	Snapshot() session.Snapshot
	OnChange(fn func(session.Snapshot))
}

// Executor implements the headless mode executor
type Executor struct {
	controller     Controller
	config         *Config
	constraintMgr  *ConstraintManager
	artifactWriter *ArtifactWriter
	logger         *Logger

	mu        sync.Mutex
	logged    int
	violation error
	cancel    context.CancelFunc

	summary *ExecutionSummary
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger replaces the terminal logger built from the run's verbosity.
func WithLogger(l *Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// NewExecutor creates a new headless executor around a controller
func NewExecutor(ctrl Controller, config *Config, opts ...Option) (*Executor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	constraintMgr, err := NewConstraintManager(config.Constraints)
	if err != nil {
		return nil, fmt.Errorf("failed to create constraint manager: %w", err)
	}

	e := &Executor{
		controller:     ctrl,
		config:         config,
		constraintMgr:  constraintMgr,
		artifactWriter: NewArtifactWriter(config.Artifacts.OutputDir),
		logger:         NewLogger(ParseLogLevel(config.Logging.Verbosity)),
		summary: &ExecutionSummary{
			Name:        config.Name,
			StartingURL: config.StartingURL,
			Status:      "running",
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run starts one session, submits every goal in order and ends the session.
// The summary is returned even when the run fails.
func (e *Executor) Run(ctx context.Context) (*ExecutionSummary, error) {
	e.summary.StartTime = time.Now()
	e.logger.Header("WebAgent Headless Run: " + e.config.Name)
	debugLog.Infof("Starting headless run %q on %s with %d goals", e.config.Name, e.config.StartingURL, len(e.config.Goals))

	if err := e.constraintMgr.ValidateURL(e.config.StartingURL); err != nil {
		return e.finish(err)
	}

	execCtx := ctx
	var cancel context.CancelFunc
	if e.config.Constraints.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, e.config.Constraints.Timeout)
	} else {
		execCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	e.controller.OnChange(e.onChange)
	defer e.controller.OnChange(nil)

	e.logger.Infof("Starting browser session on %s", e.config.StartingURL)
	if err := e.controller.Start(execCtx, e.config.StartingURL); err != nil {
		return e.finish(fmt.Errorf("failed to start browser session: %w", err))
	}
	snap := e.controller.Snapshot()
	e.summary.SessionID = snap.Session.SessionID
	e.summary.LiveBrowserURL = snap.Session.LiveBrowserURL
	e.logger.Successf("Session %s started", snap.Session.SessionID)
	if snap.Session.LiveBrowserURL != "" {
		e.logger.Infof("Live browser: %s", snap.Session.LiveBrowserURL)
	}

	runErr := e.runGoals(execCtx)

	e.summary.Timeline = e.controller.Snapshot().Steps
	e.flush(e.summary.Timeline)

	endCtx, endCancel := context.WithTimeout(context.WithoutCancel(ctx), endTimeout)
	defer endCancel()
	e.controller.End(endCtx)

	return e.finish(runErr)
}

func (e *Executor) runGoals(ctx context.Context) error {
	for _, goal := range e.config.Goals {
		if err := e.constraintMgr.CheckTimeout(); err != nil {
			return err
		}
		if err := e.stopReason(ctx); err != nil {
			return err
		}

		e.logger.Goal(goal)
		result := e.runGoal(ctx, goal)
		e.summary.Goals = append(e.summary.Goals, result)

		if err := e.stopReason(ctx); err != nil {
			return err
		}
		if result.Status != statusSuccess {
			e.logger.Errorf("Goal failed: %s", result.Error)
			if e.config.StopOnError {
				return fmt.Errorf("stopped after failed goal %q", goal)
			}
			continue
		}
		e.logger.Successf("Goal completed in %s", result.Duration.Round(time.Millisecond))
	}
	return nil
}

func (e *Executor) runGoal(ctx context.Context, goal string) GoalResult {
	start := time.Now()
	before := len(e.controller.Snapshot().Steps)

	err := e.controller.Submit(ctx, goal)

	steps := e.controller.Snapshot().Steps
	if before > len(steps) {
		before = len(steps)
	}
	result := GoalResult{
		Goal:     goal,
		Status:   statusSuccess,
		Duration: time.Since(start),
		Steps:    append([]types.Step(nil), steps[before:]...),
	}

	if err != nil {
		result.Status = statusFailed
		result.Error = err.Error()
	}
	return result
}

// stopReason reports why the run cannot continue, if it cannot.
func (e *Executor) stopReason(ctx context.Context) error {
	e.mu.Lock()
	violation := e.violation
	e.mu.Unlock()
	if violation != nil {
		return violation
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &ConstraintViolation{
				Type:    ViolationTimeout,
				Message: fmt.Sprintf("execution timeout exceeded (%v)", e.config.Constraints.Timeout),
			}
		}
		return err
	}
	return nil
}

// onChange logs finished steps as they arrive and enforces the step limit.
func (e *Executor) onChange(s session.Snapshot) {
	if s.State != session.StateActive {
		return
	}
	if err := e.constraintMgr.RecordSteps(len(s.Steps)); err != nil {
		e.mu.Lock()
		first := e.violation == nil
		if first {
			e.violation = err
		}
		cancel := e.cancel
		e.mu.Unlock()
		if first {
			e.logger.Errorf("%v", err)
			debugLog.Warnf("Cancelling run: %v", err)
			if cancel != nil {
				cancel()
			}
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for e.logged < len(s.Steps) && s.Steps[e.logged].Status != types.StepStatusRunning {
		e.logStep(s.Steps[e.logged])
		e.logged++
	}
}

// flush logs steps left running when the run stopped.
func (e *Executor) flush(steps []types.Step) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ; e.logged < len(steps); e.logged++ {
		e.logStep(steps[e.logged])
	}
}

func (e *Executor) logStep(step types.Step) {
	if step.Source == types.StepSourceUser {
		return
	}
	e.logger.TimelineStep(step)
}

func (e *Executor) finish(runErr error) (*ExecutionSummary, error) {
	e.summary.EndTime = time.Now()
	e.summary.Duration = e.summary.EndTime.Sub(e.summary.StartTime)

	e.summary.Metrics = ExecutionMetrics{Goals: len(e.config.Goals), Steps: len(e.summary.Timeline)}
	for _, g := range e.summary.Goals {
		if g.Status == statusSuccess {
			e.summary.Metrics.GoalsSucceeded++
		}
	}
	for _, s := range e.summary.Timeline {
		if s.Status == types.StepStatusError {
			e.summary.Metrics.ErrorSteps++
		}
	}

	succeeded := e.summary.Metrics.GoalsSucceeded
	switch {
	case runErr == nil && succeeded == len(e.config.Goals):
		e.summary.Status = statusSuccess
	case succeeded > 0:
		e.summary.Status = statusPartialSuccess
	default:
		e.summary.Status = statusFailed
	}

	if runErr != nil {
		e.summary.Error = runErr.Error()
	} else if e.summary.Status != statusSuccess {
		e.summary.Error = fmt.Sprintf("%d of %d goals failed", len(e.config.Goals)-succeeded, len(e.config.Goals))
	}

	if e.config.Artifacts.Enabled {
		if err := e.artifactWriter.WriteAll(e.summary); err != nil {
			e.logger.Warningf("Failed to write artifacts: %v", err)
		} else {
			e.logger.Infof("Artifacts written to %s", e.artifactWriter.OutputDir())
		}
	}

	e.logger.Summary(e.summary)
	debugLog.Infof("Headless run %q finished: %s", e.config.Name, e.summary.Status)

	if e.summary.Status != statusSuccess {
		return e.summary, fmt.Errorf("headless run %s: %s", e.summary.Status, e.summary.Error)
	}
	return e.summary, nil
}
