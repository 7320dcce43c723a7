package config

import (
	"fmt"
	"sync"

	"github.com/entrhq/webagent/pkg/webagent"
)

// SectionIDAgent is the identifier for the agent parameters section
const SectionIDAgent = "agent"

// Defaults sent with automation requests.
const (
	DefaultModel           = "gpt-4o-mini"
	DefaultFeatures        = "axtree"
	DefaultBranchingFactor = 5
	DefaultStorageState    = "state.json"
	DefaultLogFolder       = "log"
)

// AgentSection holds the model parameters forwarded to the automation backend.
type AgentSection struct {
	Model           string
	Features        string
	ElementsFilter  string
	BranchingFactor int
	Plan            string
	StorageState    string
	LogFolder       string
	mu              sync.RWMutex
}

// NewAgentSection creates an agent section with default settings.
func NewAgentSection() *AgentSection {
	s := &AgentSection{}
	s.Reset()
	return s
}

func (s *AgentSection) ID() string    { return SectionIDAgent }
func (s *AgentSection) Title() string { return "Agent Parameters" }

func (s *AgentSection) Description() string {
	return "Model, features, elements filter and branching factor sent with every automation request."
}

// Data returns the current configuration data.
func (s *AgentSection) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"model":            s.Model,
		"features":         s.Features,
		"elements_filter":  s.ElementsFilter,
		"branching_factor": s.BranchingFactor,
		"plan":             s.Plan,
		"storage_state":    s.StorageState,
		"log_folder":       s.LogFolder,
	}
}

// SetData updates the configuration from the provided data.
func (s *AgentSection) SetData(data map[string]any) error {
	if data == nil {
		return nil
	}
	branching, hasBranching, err := intValue(data, "branching_factor")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := stringValue(data, "model"); ok && v != "" {
		s.Model = v
	}
	if v, ok := stringValue(data, "features"); ok {
		s.Features = v
	}
	if v, ok := stringValue(data, "elements_filter"); ok && v != "" {
		s.ElementsFilter = v
	}
	if hasBranching {
		s.BranchingFactor = branching
	}
	if v, ok := stringValue(data, "plan"); ok {
		s.Plan = v
	}
	if v, ok := stringValue(data, "storage_state"); ok {
		s.StorageState = v
	}
	if v, ok := stringValue(data, "log_folder"); ok {
		s.LogFolder = v
	}
	return nil
}

// Validate validates the current configuration.
func (s *AgentSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if !oneOf(s.ElementsFilter, webagent.ElementsFilterSOM, webagent.ElementsFilterVisibility, webagent.ElementsFilterNone) {
		return fmt.Errorf("elements_filter must be som, visibility or none, got %q", s.ElementsFilter)
	}
	if s.BranchingFactor < 1 {
		return fmt.Errorf("branching_factor must be at least 1, got %d", s.BranchingFactor)
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *AgentSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Model = DefaultModel
	s.Features = DefaultFeatures
	s.ElementsFilter = webagent.ElementsFilterSOM
	s.BranchingFactor = DefaultBranchingFactor
	s.Plan = ""
	s.StorageState = DefaultStorageState
	s.LogFolder = DefaultLogFolder
}

// SetModel sets the model name.
func (s *AgentSection) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Model = model
}
