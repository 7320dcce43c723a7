// Package main provides the WebAgent terminal client.
// It talks to a web automation backend in one of two modes: a chat panel that
// sends one-shot automation requests for the active tab, and a playground that
// drives a remote browser session with a streamed timeline and voice input.
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

	"github.com/entrhq/webagent/pkg/browser"
	appconfig "github.com/entrhq/webagent/pkg/config"
	"github.com/entrhq/webagent/pkg/executor/cli"
	"github.com/entrhq/webagent/pkg/executor/tui"
	"github.com/entrhq/webagent/pkg/session"
	"github.com/entrhq/webagent/pkg/voice"
	"github.com/entrhq/webagent/pkg/voice/deepgram"
	"github.com/entrhq/webagent/pkg/voice/whisper"
	"github.com/entrhq/webagent/pkg/webagent"
)

const (
	version = "0.1.0" // Version of the WebAgent client

	modePanel      = "panel"
	modePlayground = "playground"

	panelWindowName = "panel"
)

// Config holds the application configuration
type Config struct {
	Mode            string
	ConfigPath      string
	StartingURL     string
	BaseURL         string
	Transport       string
	Model           string
	VoiceProvider   string
	VoiceAPIKey     string
	IdleTimeout     time.Duration
	BrowserProvider string
	ShowVersion     bool
}

func main() {
	config := parseFlags()

	if config.ShowVersion {
		fmt.Printf("WebAgent v%s\n", version)
		return
	}

	if err := config.validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	if runErr := run(ctx, config); runErr != nil {
		cancel()
		log.Fatalf("Application error: %v", runErr)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *Config {
	config := &Config{}

	flag.StringVar(&config.Mode, "mode", modePlayground, "Interface to run: panel or playground")
	flag.StringVar(&config.ConfigPath, "config", "", "Path to the config file (default: ~/.webagent/config.json or $WEBAGENT_CONFIG)")
	flag.StringVar(&config.StartingURL, "url", "", "Starting URL (panel: the active tab; playground: pre-filled)")
	flag.StringVar(&config.BaseURL, "base-url", "", "Automation backend base URL (or set WEBAGENT_BASE_URL env var)")
	flag.StringVar(&config.Transport, "transport", "", "Step stream transport: sse or websocket")
	flag.StringVar(&config.Model, "model", "", "Model used by the web agent")
	flag.StringVar(&config.VoiceProvider, "voice-provider", "", "Speech-to-text provider: deepgram or whisper")
	flag.StringVar(&config.VoiceAPIKey, "voice-key", "", "Speech-to-text API key (or set DEEPGRAM_API_KEY / OPENAI_API_KEY)")
	flag.DurationVar(&config.IdleTimeout, "idle-timeout", 0, "End an idle playground session after this long")
	flag.StringVar(&config.BrowserProvider, "browser", "", "Browser provider: remote or local (local opens a playwright window)")
	flag.BoolVar(&config.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "WebAgent - drive a web automation agent from the terminal\n\n")
		fmt.Fprintf(os.Stderr, "Usage: webagent [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  WEBAGENT_BASE_URL  Automation backend base URL\n")
		fmt.Fprintf(os.Stderr, "  WEBAGENT_CONFIG    Config file path\n")
		fmt.Fprintf(os.Stderr, "  DEEPGRAM_API_KEY   Deepgram key for voice input\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY     OpenAI key for whisper voice input\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  webagent                                        # Playground\n")
		fmt.Fprintf(os.Stderr, "  webagent -url https://google.com -browser local\n")
		fmt.Fprintf(os.Stderr, "  webagent -mode panel -url https://google.com\n")
		fmt.Fprintf(os.Stderr, "  webagent -transport websocket -voice-provider whisper\n")
	}

	flag.Parse()
	return config
}

// validate checks that the configuration is valid
func (c *Config) validate() error {
	if c.Mode != modePanel && c.Mode != modePlayground {
		return fmt.Errorf("invalid mode: %s (must be '%s' or '%s')", c.Mode, modePanel, modePlayground)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout cannot be negative")
	}
	return nil
}

func (c *Config) overrides() appconfig.Overrides {
	return appconfig.Overrides{
		BaseURL:         c.BaseURL,
		Transport:       c.Transport,
		Model:           c.Model,
		VoiceProvider:   c.VoiceProvider,
		VoiceAPIKey:     c.VoiceAPIKey,
		IdleTimeout:     c.IdleTimeout,
		BrowserProvider: c.BrowserProvider,
	}
}

// run executes the main application logic
func run(ctx context.Context, config *Config) error {
	if err := appconfig.Initialize(config.ConfigPath); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	settings, err := appconfig.Resolve(config.overrides())
	if err != nil {
		return err
	}

	client := settings.NewClient()

	if config.Mode == modePanel {
		return runPanel(ctx, config, settings, client)
	}
	return runPlayground(ctx, config, settings, client)
}

// runPanel executes the chat panel
func runPanel(ctx context.Context, config *Config, settings appconfig.Settings, client *webagent.Client) error {
	var tabs browser.TabSource = browser.StaticTab(config.StartingURL)

	if settings.BrowserProvider == appconfig.BrowserProviderLocal {
		manager := browser.NewManager()
		if err := manager.Initialize(); err != nil {
			return fmt.Errorf("failed to start local browser: %w", err)
		}
		manager.StartCleanup(browser.DefaultCleanupInterval)
		defer func() {
			if err := manager.Shutdown(); err != nil {
				log.Printf("Failed to shut down local browser: %v", err)
			}
		}()
		if config.StartingURL != "" {
			if _, err := manager.Open(panelWindowName, config.StartingURL, browser.WindowOptions{Headless: settings.HeadlessBrowser}); err != nil {
				return fmt.Errorf("failed to open %s: %w", config.StartingURL, err)
			}
		}
		tabs = manager
	}

	executor := cli.NewExecutor(client, tabs, cli.WithParams(settings.Agent))
	return executor.Run(ctx)
}

// runPlayground executes the playground TUI
func runPlayground(ctx context.Context, config *Config, settings appconfig.Settings, client *webagent.Client) error {
	controller := session.NewController(client, session.WithStepDefaults(settings.Agent.StepDefaults()))

	opts := []tui.Option{
		tui.WithStartingURL(config.StartingURL),
		tui.WithIdleTimeout(settings.IdleTimeout),
	}

	if settings.BrowserProvider == appconfig.BrowserProviderLocal {
		manager := browser.NewManager()
		manager.StartCleanup(browser.DefaultCleanupInterval)
		defer func() {
			if err := manager.Shutdown(); err != nil {
				log.Printf("Failed to shut down local browser: %v", err)
			}
		}()
		opts = append(opts, tui.WithLiveView(browser.NewLiveView(manager, settings.HeadlessBrowser)))
	}

	executor := tui.NewExecutor(controller, opts...)

	if connect := voiceConnector(settings.Voice); connect != nil {
		bridge := voice.NewBridge(
			voice.NewCommandMicrophone(settings.Voice.RecorderArgs),
			connect,
			executor.Command(),
			voice.WithSettleDelay(settings.Voice.SettleDelay),
			voice.WithKeepAliveInterval(settings.Voice.KeepAliveInterval),
			voice.WithOnUpdate(executor.OnTranscript),
			voice.WithOnStateChange(executor.OnVoiceState),
		)
		executor.AttachVoice(bridge)
	}

	return executor.Run(ctx)
}

// voiceConnector builds the transcription connector, or nil when voice input has no key.
func voiceConnector(v appconfig.VoiceParams) voice.Connector {
	if v.APIKey == "" {
		return nil
	}

	if v.Provider == appconfig.VoiceProviderWhisper {
		var opts []whisper.Option
		if v.Model != "" && v.Model != appconfig.DefaultVoiceModel {
			opts = append(opts, whisper.WithModel(v.Model))
		}
		if v.Language != "" {
			opts = append(opts, whisper.WithLanguage(v.Language))
		}
		return whisper.Connector(v.APIKey, opts...)
	}

	cfg := deepgram.DefaultConfig()
	cfg.APIKey = v.APIKey
	cfg.Model = v.Model
	cfg.Language = v.Language
	cfg.InterimResults = v.InterimResults
	cfg.SmartFormat = v.SmartFormat
	cfg.FillerWords = v.FillerWords
	cfg.UtteranceEndMs = v.UtteranceEndMs
	return deepgram.Connector(cfg, nil)
}
