package headless

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a headless run: one browser session and the goals sent to it
type Config struct {
	// Name shown in logs and artifacts
	Name string `yaml:"name" json:"name"`

	// Page the browser session opens on
	StartingURL string `yaml:"starting_url" json:"starting_url"`

	// Goals are submitted in order inside the same session
	Goals []string `yaml:"goals" json:"goals"`

	// Plan sent with every goal
	Plan string `yaml:"plan" json:"plan"`

	// Stop after the first failed goal instead of continuing
	StopOnError bool `yaml:"stop_on_error" json:"stop_on_error"`

	// Safety constraints
	Constraints ConstraintConfig `yaml:"constraints" json:"constraints"`

	// Artifacts configuration
	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ConstraintConfig defines safety constraints for headless execution
type ConstraintConfig struct {
	// Starting URL access control
	AllowedURLs []string `yaml:"allowed_urls" json:"allowed_urls"`
	DeniedURLs  []string `yaml:"denied_urls" json:"denied_urls"`

	// Resource limits
	MaxSteps int           `yaml:"max_steps" json:"max_steps"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	// Verbosity controls logging level: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// ArtifactConfig defines artifact generation configuration
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	c.StartingURL = strings.TrimSpace(c.StartingURL)
	if c.StartingURL == "" {
		return fmt.Errorf("starting_url is required")
	}

	goals := c.Goals[:0]
	for _, g := range c.Goals {
		if g = strings.TrimSpace(g); g != "" {
			goals = append(goals, g)
		}
	}
	c.Goals = goals
	if len(c.Goals) == 0 {
		return fmt.Errorf("at least one goal is required")
	}

	if c.Constraints.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	if c.Constraints.MaxSteps < 0 {
		return fmt.Errorf("max_steps cannot be negative")
	}

	if c.Name == "" {
		c.Name = c.Goals[0]
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}

	validLevels := map[string]bool{
		"quiet":   true,
		"normal":  true,
		"verbose": true,
		"debug":   true,
	}
	if !validLevels[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// DefaultConfig returns a default configuration suitable for most use cases
func DefaultConfig() *Config {
	return &Config{
		Constraints: ConstraintConfig{
			MaxSteps: 200,
			Timeout:  15 * time.Minute,
		},
		Artifacts: ArtifactConfig{
			Enabled:   true,
			OutputDir: ".webagent/artifacts",
		},
		Logging: LoggingConfig{
			Verbosity: "normal",
		},
	}
}

// LoadConfig reads a YAML run file on top of DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML run file on top of DefaultConfig and validates it.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse run file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run file: %w", err)
	}
	return cfg, nil
}
