// Package main provides the WebAgent headless runner for unattended automation.
// It opens one remote browser session, submits the goals from a YAML run file and
// writes the resulting timeline as artifacts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	appconfig "github.com/entrhq/webagent/pkg/config"
	"github.com/entrhq/webagent/pkg/executor/headless"
	"github.com/entrhq/webagent/pkg/session"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	RunFile     string
	ConfigPath  string
	StartingURL string
	Goal        string
	BaseURL     string
	Transport   string
	Model       string
	Timeout     time.Duration
	OutputDir   string
	Verbosity   string
	ShowVersion bool
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("WebAgent Headless v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, config); err != nil {
		cancel()
		log.Printf("Execution failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	config := &CLIConfig{}

	flag.StringVar(&config.RunFile, "run", "", "Path to the run file (YAML)")
	flag.StringVar(&config.ConfigPath, "config", "", "Path to the client config file (default: ~/.webagent/config.json)")
	flag.StringVar(&config.StartingURL, "url", "", "Starting URL (required if no run file)")
	flag.StringVar(&config.Goal, "goal", "", "Single goal to run (required if no run file)")
	flag.StringVar(&config.BaseURL, "base-url", "", "Automation backend base URL (or set WEBAGENT_BASE_URL env var)")
	flag.StringVar(&config.Transport, "transport", "", "Step stream transport: sse or websocket")
	flag.StringVar(&config.Model, "model", "", "Model used by the web agent")
	flag.DurationVar(&config.Timeout, "timeout", 0, "Execution timeout (overrides the run file)")
	flag.StringVar(&config.OutputDir, "output", "", "Artifact directory (overrides the run file)")
	flag.StringVar(&config.Verbosity, "verbosity", "", "Logging verbosity: quiet, normal, verbose or debug")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "WebAgent Headless - unattended web automation runs\n\n")
		fmt.Fprintf(os.Stderr, "Usage: webagent-headless [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run with inline goal\n")
		fmt.Fprintf(os.Stderr, "  webagent-headless -url https://google.com -goal \"Search dining table\"\n\n")
		fmt.Fprintf(os.Stderr, "  # Run with a run file\n")
		fmt.Fprintf(os.Stderr, "  webagent-headless -run furniture.yaml -output ./artifacts\n\n")
	}

	flag.Parse()
	return config
}

// run executes the headless run
func run(ctx context.Context, cliConfig *CLIConfig) error {
	runConfig, err := loadRunConfig(cliConfig)
	if err != nil {
		return fmt.Errorf("failed to load run configuration: %w", err)
	}

	if initErr := appconfig.Initialize(cliConfig.ConfigPath); initErr != nil {
		return fmt.Errorf("failed to initialize configuration: %w", initErr)
	}

	settings, err := appconfig.Resolve(appconfig.Overrides{
		BaseURL:   cliConfig.BaseURL,
		Transport: cliConfig.Transport,
		Model:     cliConfig.Model,
	})
	if err != nil {
		return err
	}

	client := settings.NewClient()

	defaults := settings.Agent.StepDefaults()
	if runConfig.Plan != "" {
		defaults.Plan = runConfig.Plan
	}
	controller := session.NewController(client, session.WithStepDefaults(defaults))

	executor, err := headless.NewExecutor(controller, runConfig)
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}

	_, err = executor.Run(ctx)
	return err
}

// loadRunConfig reads the run file or builds a one-goal run from flags,
// then applies command-line overrides.
func loadRunConfig(cliConfig *CLIConfig) (*headless.Config, error) {
	var cfg *headless.Config
	if cliConfig.RunFile != "" {
		loaded, err := headless.LoadConfig(cliConfig.RunFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		if cliConfig.Goal == "" {
			return nil, fmt.Errorf("either -run or -goal must be specified")
		}
		cfg = headless.DefaultConfig()
		cfg.Goals = []string{cliConfig.Goal}
	}

	if cliConfig.StartingURL != "" {
		cfg.StartingURL = cliConfig.StartingURL
	}
	if cliConfig.Timeout > 0 {
		cfg.Constraints.Timeout = cliConfig.Timeout
	}
	if cliConfig.OutputDir != "" {
		cfg.Artifacts.OutputDir = cliConfig.OutputDir
	}
	if cliConfig.Verbosity != "" {
		cfg.Logging.Verbosity = cliConfig.Verbosity
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
