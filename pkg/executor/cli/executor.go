// Package cli provides the panel executor: a line-oriented chat where every
// message becomes one automation request against the active tab.
//
// Example usage:
//
//	client := webagent.NewClient(webagent.DefaultBaseURL)
//	executor := cli.NewExecutor(client, browser.StaticTab("https://google.com"),
//	    cli.WithParams(settings.Agent),
//	)
//	if err := executor.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/entrhq/webagent/pkg/browser"
	"github.com/entrhq/webagent/pkg/config"
	"github.com/entrhq/webagent/pkg/logging"
	"github.com/entrhq/webagent/pkg/webagent"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("cli")
	if err != nil {
		debugLog.Warnf("Failed to initialize cli logger: %v", err)
	}
}

// AssistantName prefixes every reply.
const AssistantName = "LiteWebAgent"

// ErrNoActiveTab is reported when the tab source has no address.
var ErrNoActiveTab = errors.New("no active tab URL found")

// Automator runs one-shot automation requests. *webagent.Client implements it.
type Automator interface {
	Automate(ctx context.Context, cfg webagent.AutomationConfig) (*webagent.AutomationResponse, error)
}

// Executor is a CLI-based executor for the one-shot automation endpoint.
type Executor struct {
	automator Automator
	tabs      browser.TabSource
	params    config.AgentParams
	reader    *bufio.Reader
	writer    io.Writer
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*Executor)

// WithParams sets the model settings sent with every request.
func WithParams(p config.AgentParams) ExecutorOption {
	return func(e *Executor) {
		e.params = p
	}
}

// WithReader sets a custom input reader (default is os.Stdin).
func WithReader(r io.Reader) ExecutorOption {
	return func(e *Executor) {
		e.reader = bufio.NewReader(r)
	}
}

// WithWriter sets a custom output writer (default is os.Stdout).
func WithWriter(w io.Writer) ExecutorOption {
	return func(e *Executor) {
		e.writer = w
	}
}

// NewExecutor creates a panel executor reading the starting URL from tabs.
func NewExecutor(automator Automator, tabs browser.TabSource, opts ...ExecutorOption) *Executor {
	e := &Executor{
		automator: automator,
		tabs:      tabs,
		params: config.AgentParams{
			Model:           config.DefaultModel,
			Features:        config.DefaultFeatures,
			ElementsFilter:  webagent.ElementsFilterSOM,
			BranchingFactor: config.DefaultBranchingFactor,
			StorageState:    config.DefaultStorageState,
			LogFolder:       config.DefaultLogFolder,
		},
		reader: bufio.NewReader(os.Stdin),
		writer: os.Stdout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Params returns the current model settings.
func (e *Executor) Params() config.AgentParams {
	return e.params
}

// Run reads messages until EOF, "exit" or "quit", or until ctx is canceled.
func (e *Executor) Run(ctx context.Context) error {
	fmt.Fprintln(e.writer, AssistantName)
	fmt.Fprintln(e.writer, "A powerful LLM-based web agent. Type a goal and press Enter.")
	fmt.Fprintln(e.writer, "Commands: /settings, /model, /features, /filter, /branching. Type 'exit' to quit.")
	fmt.Fprintln(e.writer)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprint(e.writer, "> ")
		input, err := e.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read input: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		input = strings.TrimSpace(input)
		switch {
		case input == "exit" || input == "quit":
			return nil
		case strings.HasPrefix(input, "/"):
			e.handleCommand(input)
		case input != "":
			e.Send(ctx, input)
		}

		if eof {
			return nil
		}
	}
}

// Send runs goal against the active tab and prints the reply or the error.
func (e *Executor) Send(ctx context.Context, goal string) {
	reply, err := e.automate(ctx, goal)
	if err != nil {
		debugLog.Errorf("Automation failed: %v", err)
		fmt.Fprintf(e.writer, "❌ Error: %v\n", err)
		return
	}
	fmt.Fprintf(e.writer, "%s: %s\n", AssistantName, reply)
}

func (e *Executor) automate(ctx context.Context, goal string) (string, error) {
	startingURL, err := e.tabs.ActiveTabURL(ctx)
	if err != nil || strings.TrimSpace(startingURL) == "" {
		if err != nil {
			debugLog.Warnf("Active tab lookup failed: %v", err)
		}
		return "", ErrNoActiveTab
	}

	debugLog.Infof("Automating %q on %s", goal, startingURL)
	resp, err := e.automator.Automate(ctx, e.params.AutomationConfig(startingURL, goal))
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (e *Executor) handleCommand(input string) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(input, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "settings":
		e.printSettings()
	case "model":
		if arg == "" {
			fmt.Fprintln(e.writer, "Usage: /model <name>")
			return
		}
		e.params.Model = arg
		fmt.Fprintf(e.writer, "Model set to %s\n", arg)
	case "features":
		e.params.Features = arg
		fmt.Fprintf(e.writer, "Features set to %q\n", arg)
	case "filter":
		switch arg {
		case webagent.ElementsFilterSOM, webagent.ElementsFilterVisibility, webagent.ElementsFilterNone:
			e.params.ElementsFilter = arg
			fmt.Fprintf(e.writer, "Elements filter set to %s\n", arg)
		default:
			fmt.Fprintln(e.writer, "Usage: /filter som|visibility|none")
		}
	case "branching":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			fmt.Fprintln(e.writer, "Usage: /branching <positive number>")
			return
		}
		e.params.BranchingFactor = n
		fmt.Fprintf(e.writer, "Branching factor set to %d\n", n)
	default:
		fmt.Fprintf(e.writer, "Unknown command: /%s\n", name)
	}
}

func (e *Executor) printSettings() {
	fmt.Fprintf(e.writer, "Model:            %s\n", e.params.Model)
	fmt.Fprintf(e.writer, "Features:         %s\n", e.params.Features)
	fmt.Fprintf(e.writer, "Elements filter:  %s\n", e.params.ElementsFilter)
	fmt.Fprintf(e.writer, "Branching factor: %d\n", e.params.BranchingFactor)
}
