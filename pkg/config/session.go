package config

import (
	"fmt"
	"sync"
	"time"
)

// SectionIDSession is the identifier for the playground session section
const SectionIDSession = "session"

// Where the playground gets its live browser from.
const (
	BrowserProviderRemote = "remote"
	BrowserProviderLocal  = "local"
)

// DefaultIdleTimeout ends an active session after this long without user activity.
const DefaultIdleTimeout = 60 * time.Second

// SessionSection configures the playground session lifecycle.
type SessionSection struct {
	IdleTimeout     time.Duration
	BrowserProvider string
	HeadlessBrowser bool
	mu              sync.RWMutex
}

// NewSessionSection creates a session section with default settings.
func NewSessionSection() *SessionSection {
	s := &SessionSection{}
	s.Reset()
	return s
}

func (s *SessionSection) ID() string    { return SectionIDSession }
func (s *SessionSection) Title() string { return "Session" }

func (s *SessionSection) Description() string {
	return "Idle timeout of playground sessions and whether the live browser is shown remotely or in a local window."
}

// Data returns the current configuration data.
func (s *SessionSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"idle_timeout":     s.IdleTimeout.String(),
		"browser_provider": s.BrowserProvider,
		"headless_browser": s.HeadlessBrowser,
	}
}

// SetData updates the configuration from the provided data.
func (s *SessionSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}
	idle, hasIdle, err := durationValue(data, "idle_timeout")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if hasIdle {
		s.IdleTimeout = idle
	}
	if v, ok := stringValue(data, "browser_provider"); ok && v != "" {
		s.BrowserProvider = v
	}
	if v, ok := boolValue(data, "headless_browser"); ok {
		s.HeadlessBrowser = v
	}
	return nil
}

// Validate validates the current configuration.
func (s *SessionSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive")
	}
	if !oneOf(s.BrowserProvider, BrowserProviderRemote, BrowserProviderLocal) {
		return fmt.Errorf("browser_provider must be remote or local, got %q", s.BrowserProvider)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *SessionSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IdleTimeout = DefaultIdleTimeout
	s.BrowserProvider = BrowserProviderRemote
	s.HeadlessBrowser = false
}

// GetIdleTimeout returns the configured idle timeout.
func (s *SessionSection) GetIdleTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.IdleTimeout
}

// UsesLocalBrowser reports whether the live view opens in a local playwright window.
func (s *SessionSection) UsesLocalBrowser() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.BrowserProvider == BrowserProviderLocal
}
