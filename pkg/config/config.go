package config

import (
	"sync"
)

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// Initialize creates the global manager, registers the webagent sections and
// loads them from configPath (DefaultPath when empty).
func Initialize(configPath string) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	store, err := NewFileStore(configPath)
	if err != nil {
		return err
	}

	manager := NewManager(store)
	for _, section := range []Section{
		NewBackendSection(),
		NewAgentSection(),
		NewVoiceSection(),
		NewSessionSection(),
	} {
		if err := manager.RegisterSection(section); err != nil {
			return err
		}
	}

	if err := manager.LoadAll(); err != nil {
		return err
	}

	globalManager = manager
	return nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}

	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

func globalSection[T Section](id string) T {
	var zero T
	if !IsInitialized() {
		return zero
	}
	section, ok := Global().GetSection(id)
	if !ok {
		return zero
	}
	typed, ok := section.(T)
	if !ok {
		return zero
	}
	return typed
}

// GetBackend returns the backend section, or nil if config is not initialized.
func GetBackend() *BackendSection {
	return globalSection[*BackendSection](SectionIDBackend)
}

// GetAgent returns the agent section, or nil if config is not initialized.
func GetAgent() *AgentSection {
	return globalSection[*AgentSection](SectionIDAgent)
}

// GetVoice returns the voice section, or nil if config is not initialized.
func GetVoice() *VoiceSection {
	return globalSection[*VoiceSection](SectionIDVoice)
}

// GetSession returns the session section, or nil if config is not initialized.
func GetSession() *SessionSection {
	return globalSection[*SessionSection](SectionIDSession)
}
