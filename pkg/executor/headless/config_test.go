package headless

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: &Config{
				StartingURL: "https://google.com",
				Goals:       []string{"Search dining table"},
				Constraints: ConstraintConfig{MaxSteps: 10, Timeout: 5 * time.Minute},
			},
			wantErr: false,
		},
		{
			name:    "missing starting url",
			config:  &Config{Goals: []string{"x"}},
			wantErr: true,
		},
		{
			name:    "blank goals only",
			config:  &Config{StartingURL: "https://google.com", Goals: []string{"  ", ""}},
			wantErr: true,
		},
		{
			name: "negative timeout",
			config: &Config{
				StartingURL: "https://google.com",
				Goals:       []string{"x"},
				Constraints: ConstraintConfig{Timeout: -time.Minute},
			},
			wantErr: true,
		},
		{
			name: "negative max steps",
			config: &Config{
				StartingURL: "https://google.com",
				Goals:       []string{"x"},
				Constraints: ConstraintConfig{MaxSteps: -1},
			},
			wantErr: true,
		},
		{
			name: "invalid verbosity",
			config: &Config{
				StartingURL: "https://google.com",
				Goals:       []string{"x"},
				Logging:     LoggingConfig{Verbosity: "loud"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateFillsDefaults(t *testing.T) {
	cfg := &Config{
		StartingURL: "  https://google.com ",
		Goals:       []string{"", " Search dining table ", "Open first result"},
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://google.com", cfg.StartingURL)
	assert.Equal(t, []string{"Search dining table", "Open first result"}, cfg.Goals)
	assert.Equal(t, "Search dining table", cfg.Name)
	assert.Equal(t, "normal", cfg.Logging.Verbosity)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 200, config.Constraints.MaxSteps)
	assert.Equal(t, 15*time.Minute, config.Constraints.Timeout)
	assert.True(t, config.Artifacts.Enabled)
	assert.Equal(t, ".webagent/artifacts", config.Artifacts.OutputDir)
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
name: furniture
starting_url: https://google.com
plan: be quick
stop_on_error: true
goals:
  - Search dining table
  - Open the first result
constraints:
  allowed_urls: ["https://*.google.com/**"]
  denied_urls: ["**/admin/**"]
  max_steps: 50
  timeout: 2m
artifacts:
  enabled: false
logging:
  verbosity: verbose
`)

	cfg, err := ParseConfig(data)
	require.NoError(t, err)

	assert.Equal(t, "furniture", cfg.Name)
	assert.Equal(t, "be quick", cfg.Plan)
	assert.True(t, cfg.StopOnError)
	assert.Len(t, cfg.Goals, 2)
	assert.Equal(t, []string{"https://*.google.com/**"}, cfg.Constraints.AllowedURLs)
	assert.Equal(t, 50, cfg.Constraints.MaxSteps)
	assert.Equal(t, 2*time.Minute, cfg.Constraints.Timeout)
	assert.False(t, cfg.Artifacts.Enabled)
	assert.Equal(t, ".webagent/artifacts", cfg.Artifacts.OutputDir, "unset fields keep defaults")
	assert.Equal(t, "verbose", cfg.Logging.Verbosity)
}

func TestParseConfig_Errors(t *testing.T) {
	_, err := ParseConfig([]byte("goals: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse run file")

	_, err = ParseConfig([]byte("goals: [x]\n"))
	assert.ErrorContains(t, err, "starting_url is required")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("starting_url: https://google.com\ngoals: [Search]\n"), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Search"}, cfg.Goals)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read run file")
}
