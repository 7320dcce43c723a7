package headless

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

// ConstraintManager enforces safety limits during headless execution
type ConstraintManager struct {
	config *ConstraintConfig

	// Runtime state tracking
	stepsSeen int
	startTime time.Time

	// Pattern matching
	patternMatcher *PatternMatcher

	mu sync.RWMutex
}

// ConstraintViolation represents a constraint violation error
type ConstraintViolation struct {
	Type    ViolationType
	Message string
	Details map[string]interface{}
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("constraint violation (%s): %s", e.Type, e.Message)
}

// ViolationType identifies the type of constraint that was violated
type ViolationType string

const (
	ViolationURLPattern ViolationType = "url_pattern"
	ViolationStepLimit  ViolationType = "step_limit"
	ViolationTimeout    ViolationType = "timeout"
)

// NewConstraintManager creates a new constraint manager
func NewConstraintManager(config ConstraintConfig) (*ConstraintManager, error) {
	patternMatcher, err := NewPatternMatcher(config.AllowedURLs, config.DeniedURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern matcher: %w", err)
	}

	return &ConstraintManager{
		config:         &config,
		startTime:      time.Now(),
		patternMatcher: patternMatcher,
	}, nil
}

// ValidateURL checks a starting URL against the allow and deny lists
func (cm *ConstraintManager) ValidateURL(url string) error {
	if cm.patternMatcher.IsAllowed(url) {
		return nil
	}
	return &ConstraintViolation{
		Type:    ViolationURLPattern,
		Message: fmt.Sprintf("url '%s' does not match allowed patterns", url),
		Details: map[string]interface{}{
			"url":          url,
			"allowed_urls": cm.config.AllowedURLs,
			"denied_urls":  cm.config.DeniedURLs,
		},
	}
}

// RecordSteps records the timeline length and validates it against the step limit
func (cm *ConstraintManager) RecordSteps(total int) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if total > cm.stepsSeen {
		cm.stepsSeen = total
	}

	if cm.config.MaxSteps > 0 && cm.stepsSeen > cm.config.MaxSteps {
		return &ConstraintViolation{
			Type:    ViolationStepLimit,
			Message: fmt.Sprintf("maximum step count exceeded (%d)", cm.config.MaxSteps),
			Details: map[string]interface{}{
				"max_steps":  cm.config.MaxSteps,
				"steps_seen": cm.stepsSeen,
			},
		}
	}

	return nil
}

// CheckTimeout checks if execution has exceeded the timeout
func (cm *ConstraintManager) CheckTimeout() error {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.config.Timeout <= 0 {
		return nil // No timeout configured
	}

	elapsed := time.Since(cm.startTime)
	if elapsed > cm.config.Timeout {
		return &ConstraintViolation{
			Type:    ViolationTimeout,
			Message: fmt.Sprintf("execution timeout exceeded (%v)", cm.config.Timeout),
			Details: map[string]interface{}{
				"timeout": cm.config.Timeout,
				"elapsed": elapsed,
			},
		}
	}

	return nil
}

// GetCurrentState returns the current constraint state
func (cm *ConstraintManager) GetCurrentState() *ConstraintState {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return &ConstraintState{
		StepsSeen: cm.stepsSeen,
		Elapsed:   time.Since(cm.startTime),
	}
}

// ConstraintState represents the current state of constraint tracking
type ConstraintState struct {
	StepsSeen int
	Elapsed   time.Duration
}

// PatternMatcher handles glob pattern matching for URL access control.
// Patterns are compiled with '/' and '.' as separators, so "*" stays inside a
// host label or path segment and "**" crosses them.
type PatternMatcher struct {
	allowedPatterns []glob.Glob
	deniedPatterns  []glob.Glob
}

// NewPatternMatcher creates a new pattern matcher
func NewPatternMatcher(allowed, denied []string) (*PatternMatcher, error) {
	pm := &PatternMatcher{}

	for _, pattern := range allowed {
		g, err := glob.Compile(pattern, '/', '.')
		if err != nil {
			return nil, fmt.Errorf("invalid allowed pattern '%s': %w", pattern, err)
		}
		pm.allowedPatterns = append(pm.allowedPatterns, g)
	}

	for _, pattern := range denied {
		g, err := glob.Compile(pattern, '/', '.')
		if err != nil {
			return nil, fmt.Errorf("invalid denied pattern '%s': %w", pattern, err)
		}
		pm.deniedPatterns = append(pm.deniedPatterns, g)
	}

	return pm, nil
}

// IsAllowed returns true if the URL is allowed by the pattern rules
func (pm *PatternMatcher) IsAllowed(url string) bool {
	url = strings.TrimSpace(url)

	// Denied patterns take precedence
	for _, pattern := range pm.deniedPatterns {
		if pattern.Match(url) {
			return false
		}
	}

	// If no allowed patterns specified, allow all (except denied)
	if len(pm.allowedPatterns) == 0 {
		return true
	}

	for _, pattern := range pm.allowedPatterns {
		if pattern.Match(url) {
			return true
		}
	}

	return false
}
