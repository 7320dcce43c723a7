package config

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/entrhq/webagent/pkg/webagent"
)

const (
	// SectionIDBackend is the identifier for the automation backend section
	SectionIDBackend = "backend"

	// DefaultRequestTimeout bounds request/response calls to the backend.
	DefaultRequestTimeout = 30 * time.Second
)

// BackendSection holds the address of the automation backend and how steps are streamed.
type BackendSection struct {
	BaseURL         string
	StreamTransport webagent.Transport
	RequestTimeout  time.Duration
	mu              sync.RWMutex
}

// NewBackendSection creates a backend section with default settings.
func NewBackendSection() *BackendSection {
	s := &BackendSection{}
	s.Reset()
	return s
}

func (s *BackendSection) ID() string    { return SectionIDBackend }
func (s *BackendSection) Title() string { return "Automation Backend" }

func (s *BackendSection) Description() string {
	return "Base URL of the web-agent backend, the step stream transport (sse or websocket) and the request timeout."
}

// Data returns the current configuration data.
func (s *BackendSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"base_url":         s.BaseURL,
		"stream_transport": string(s.StreamTransport),
		"request_timeout":  s.RequestTimeout.String(),
	}
}

// SetData updates the configuration from the provided data.
func (s *BackendSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}
	timeout, hasTimeout, err := durationValue(data, "request_timeout")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := stringValue(data, "base_url"); ok && v != "" {
		s.BaseURL = v
	}
	if v, ok := stringValue(data, "stream_transport"); ok && v != "" {
		s.StreamTransport = webagent.Transport(v)
	}
	if hasTimeout {
		s.RequestTimeout = timeout
	}
	return nil
}

// Validate checks the URL scheme, transport and timeout.
func (s *BackendSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", s.BaseURL)
	}
	if s.StreamTransport != webagent.TransportSSE && s.StreamTransport != webagent.TransportWebSocket {
		return fmt.Errorf("stream_transport must be %q or %q, got %q",
			webagent.TransportSSE, webagent.TransportWebSocket, s.StreamTransport)
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *BackendSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BaseURL = webagent.DefaultBaseURL
	s.StreamTransport = webagent.TransportSSE
	s.RequestTimeout = DefaultRequestTimeout
}

// GetBaseURL returns the configured base URL.
func (s *BackendSection) GetBaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.BaseURL
}

// SetBaseURL sets the base URL.
func (s *BackendSection) SetBaseURL(baseURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BaseURL = baseURL
}

// GetStreamTransport returns the configured transport.
func (s *BackendSection) GetStreamTransport() webagent.Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.StreamTransport
}

// GetRequestTimeout returns the configured request timeout.
func (s *BackendSection) GetRequestTimeout() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.RequestTimeout
}
