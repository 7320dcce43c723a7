// Package browser provides local browser windows and the active-tab source.
//
// A Manager owns playwright-launched Chromium windows. It is used to show the
// backend's live browser view locally and, in panel mode, as the tab whose
// address becomes the automation starting URL.
package browser

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	DefaultMaxWindows      = 3
	DefaultIdleTimeout     = 30 * time.Minute
	DefaultCleanupInterval = time.Minute // DefaultCleanupInterval is how often StartCleanup looks for idle windows.
	DefaultViewportWidth   = 1280
	DefaultViewportHeight  = 800
	// DefaultTimeout is the page operation timeout in milliseconds.
	DefaultTimeout = 30000.0
)

// ErrNoWindow is returned when no local window is open.
var ErrNoWindow = errors.New("no browser window is open")

// TabSource reports the address of the tab the user is looking at.
type TabSource interface {
	ActiveTabURL(ctx context.Context) (string, error)
}

// StaticTab is a TabSource that always reports the same address.
type StaticTab string

// ActiveTabURL returns the fixed address.
func (s StaticTab) ActiveTabURL(ctx context.Context) (string, error) {
	url := strings.TrimSpace(string(s))
	if url == "" {
		return "", ErrNoWindow
	}
	return url, nil
}

// WindowOptions configures a new window.
type WindowOptions struct {
	// Headless runs the browser without a visible window.
	Headless bool

	// Viewport sets the initial viewport size.
	Viewport *Viewport

	// Timeout for page operations in milliseconds.
	Timeout float64
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil is one of "load", "domcontentloaded", "networkidle".
	WaitUntil string

	// Timeout in milliseconds (0 means default)
	Timeout float64
}

// WindowInfo describes an open window.
type WindowInfo struct {
	Name       string
	CurrentURL string
	Headless   bool
	CreatedAt  time.Time
	LastUsedAt time.Time
}
