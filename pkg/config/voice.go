package config

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// SectionIDVoice is the identifier for the voice capture section
const SectionIDVoice = "voice"

// Transcription providers.
const (
	VoiceProviderDeepgram = "deepgram"
	VoiceProviderWhisper  = "whisper"
)

// Voice defaults.
const (
	DefaultVoiceModel        = "nova-2"
	DefaultUtteranceEndMs    = 3000
	DefaultSettleDelay       = 2500 * time.Millisecond
	DefaultKeepAliveInterval = 10 * time.Second
	defaultVoiceProvider     = VoiceProviderDeepgram
	defaultInterimResults    = true
	defaultSmartFormat       = true
	defaultFillerWords       = true
)

// VoiceSection configures push-to-talk transcription.
type VoiceSection struct {
	Provider          string
	APIKey            string
	Model             string
	Language          string
	InterimResults    bool
	SmartFormat       bool
	FillerWords       bool
	UtteranceEndMs    int
	SettleDelay       time.Duration
	KeepAliveInterval time.Duration
	// RecorderCommand is a shell-style command line producing raw 16 kHz mono PCM on stdout.
	RecorderCommand string
	mu              sync.RWMutex
}

// NewVoiceSection creates a voice section with default settings.
func NewVoiceSection() *VoiceSection {
	s := &VoiceSection{}
	s.Reset()
	return s
}

func (s *VoiceSection) ID() string    { return SectionIDVoice }
func (s *VoiceSection) Title() string { return "Voice Input" }

func (s *VoiceSection) Description() string {
	return "Transcription provider (deepgram or whisper), its API key and model, and microphone timing."
}

// Data returns the current configuration data.
func (s *VoiceSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"provider":            s.Provider,
		"api_key":             s.APIKey,
		"model":               s.Model,
		"language":            s.Language,
		"interim_results":     s.InterimResults,
		"smart_format":        s.SmartFormat,
		"filler_words":        s.FillerWords,
		"utterance_end_ms":    s.UtteranceEndMs,
		"settle_delay":        s.SettleDelay.String(),
		"keep_alive_interval": s.KeepAliveInterval.String(),
		"recorder_command":    s.RecorderCommand,
	}
}

// SetData updates the configuration from the provided data.
func (s *VoiceSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}
	utterance, hasUtterance, err := intValue(data, "utterance_end_ms")
	if err != nil {
		return err
	}
	settle, hasSettle, err := durationValue(data, "settle_delay")
	if err != nil {
		return err
	}
	keepAlive, hasKeepAlive, err := durationValue(data, "keep_alive_interval")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := stringValue(data, "provider"); ok && v != "" {
		s.Provider = strings.ToLower(v)
	}
	if v, ok := stringValue(data, "api_key"); ok {
		s.APIKey = v
	}
	if v, ok := stringValue(data, "model"); ok && v != "" {
		s.Model = v
	}
	if v, ok := stringValue(data, "language"); ok {
		s.Language = strings.TrimSpace(v)
	}
	if v, ok := boolValue(data, "interim_results"); ok {
		s.InterimResults = v
	}
	if v, ok := boolValue(data, "smart_format"); ok {
		s.SmartFormat = v
	}
	if v, ok := boolValue(data, "filler_words"); ok {
		s.FillerWords = v
	}
	if hasUtterance {
		s.UtteranceEndMs = utterance
	}
	if hasSettle {
		s.SettleDelay = settle
	}
	if hasKeepAlive {
		s.KeepAliveInterval = keepAlive
	}
	if v, ok := stringValue(data, "recorder_command"); ok {
		s.RecorderCommand = v
	}
	return nil
}

// Validate validates the current configuration. The API key is checked when
// voice is first activated, not here.
func (s *VoiceSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !oneOf(s.Provider, VoiceProviderDeepgram, VoiceProviderWhisper) {
		return fmt.Errorf("provider must be deepgram or whisper, got %q", s.Provider)
	}
	if s.UtteranceEndMs < 0 {
		return fmt.Errorf("utterance_end_ms must not be negative")
	}
	if s.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	if s.KeepAliveInterval <= 0 {
		return fmt.Errorf("keep_alive_interval must be positive")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *VoiceSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Provider = defaultVoiceProvider
	s.APIKey = ""
	s.Model = DefaultVoiceModel
	s.Language = ""
	s.InterimResults = defaultInterimResults
	s.SmartFormat = defaultSmartFormat
	s.FillerWords = defaultFillerWords
	s.UtteranceEndMs = DefaultUtteranceEndMs
	s.SettleDelay = DefaultSettleDelay
	s.KeepAliveInterval = DefaultKeepAliveInterval
	s.RecorderCommand = ""
}

// GetProvider returns the configured provider.
func (s *VoiceSection) GetProvider() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Provider
}

// GetAPIKey returns the configured API key.
func (s *VoiceSection) GetAPIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.APIKey
}

// RecorderArgs splits RecorderCommand on whitespace. Nil means the built-in recorder.
func (s *VoiceSection) RecorderArgs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	args := strings.Fields(s.RecorderCommand)
	if len(args) == 0 {
		return nil
	}
	return args
}
