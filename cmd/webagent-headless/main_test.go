package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRunConfig_InlineGoal(t *testing.T) {
	cfg, err := loadRunConfig(&CLIConfig{
		StartingURL: "https://google.com",
		Goal:        "Search dining table",
		Timeout:     time.Minute,
		OutputDir:   "out",
		Verbosity:   "quiet",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Search dining table"}, cfg.Goals)
	assert.Equal(t, "https://google.com", cfg.StartingURL)
	assert.Equal(t, time.Minute, cfg.Constraints.Timeout)
	assert.Equal(t, "out", cfg.Artifacts.OutputDir)
	assert.Equal(t, "quiet", cfg.Logging.Verbosity)
}

func TestLoadRunConfig_RunFileWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("starting_url: https://google.com\ngoals: [a, b]\n"), 0600))

	cfg, err := loadRunConfig(&CLIConfig{RunFile: path, StartingURL: "https://bing.com"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, cfg.Goals)
	assert.Equal(t, "https://bing.com", cfg.StartingURL)
}

func TestLoadRunConfig_Errors(t *testing.T) {
	_, err := loadRunConfig(&CLIConfig{})
	assert.ErrorContains(t, err, "either -run or -goal")

	_, err = loadRunConfig(&CLIConfig{Goal: "x"})
	assert.ErrorContains(t, err, "starting_url is required")

	_, err = loadRunConfig(&CLIConfig{Goal: "x", StartingURL: "https://google.com", Verbosity: "loud"})
	assert.Error(t, err)
}
