// Package webagent is the client for the web-agent automation backend.
package webagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/entrhq/webagent/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("webagent")
	if err != nil {
		debugLog.Warnf("Failed to initialize webagent logger: %v", err)
	}
}

// DefaultBaseURL is where the automation backend listens by default.
const DefaultBaseURL = "http://localhost:5001"

const defaultTimeout = 30 * time.Second

// Endpoint paths, relative to the base URL.
const (
	PathAutomate            = "/automate"
	PathStartBrowserSession = "/start-browser-session"
	PathInitialSteps        = "/initial-steps"
	PathAdditionalSteps     = "/additional-steps"
	PathEndSession          = "/end-session"
	PathWSInitialSteps      = "/ws/initial-steps"
	PathWSAdditionalSteps   = "/ws/additional-steps"
)

// Transport selects how step frames are streamed back.
type Transport string

const (
	TransportSSE       Transport = "sse"       // TransportSSE reads server-sent events or newline-delimited JSON.
	TransportWebSocket Transport = "websocket" // TransportWebSocket reads one frame per text message.
)

// ErrIncompleteSession is returned when the backend starts a session but omits its id or live URL.
var ErrIncompleteSession = errors.New("browser session response is missing session_id or live_browser_url")

// FrameHandler receives each raw frame in arrival order.
type FrameHandler func(raw []byte)

// Client talks to the automation backend.
type Client struct {
	baseURL   string
	http      *http.Client
	stream    *http.Client
	transport Transport
	dialer    *websocket.Dialer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for request/response calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithStreamClient sets the client used for streaming calls. It should have no overall timeout.
func WithStreamClient(hc *http.Client) Option {
	return func(c *Client) {
		c.stream = hc
	}
}

// WithTimeout sets the timeout of request/response calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// WithTransport selects SSE or WebSocket streaming for step runs.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		if t != "" {
			c.transport = t
		}
	}
}

// WithDialer sets the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: defaultTimeout},
		stream:    &http.Client{},
		transport: TransportSSE,
		dialer:    websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Automate runs a one-shot automation and returns the backend's message.
func (c *Client) Automate(ctx context.Context, cfg AutomationConfig) (*AutomationResponse, error) {
	if cfg.AgentType == "" {
		cfg.AgentType = AgentTypePrompt
	}
	var out AutomationResponse
	if err := c.doJSON(ctx, http.MethodPost, PathAutomate, cfg, &out); err != nil {
		return nil, fmt.Errorf("failed to run automation: %w", err)
	}
	return &out, nil
}

// StartBrowserSession asks the backend for a new remote browser.
func (c *Client) StartBrowserSession(ctx context.Context) (*BrowserSession, error) {
	var out BrowserSession
	if err := c.doJSON(ctx, http.MethodPost, PathStartBrowserSession, struct{}{}, &out); err != nil {
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	if out.SessionID == "" || out.LiveBrowserURL == "" {
		return nil, ErrIncompleteSession
	}
	debugLog.Infof("Started browser session %s (live view %s)", out.SessionID, out.LiveBrowserURL)
	return &out, nil
}

// RunInitialSteps runs the first goal of a session, streaming frames to onFrame until the backend finishes.
func (c *Client) RunInitialSteps(ctx context.Context, req StepsRequest, onFrame FrameHandler) error {
	if err := c.runSteps(ctx, PathInitialSteps, PathWSInitialSteps, req, onFrame); err != nil {
		return fmt.Errorf("failed to run initial steps: %w", err)
	}
	return nil
}

// RunAdditionalSteps runs a follow-up goal in an existing session.
func (c *Client) RunAdditionalSteps(ctx context.Context, req StepsRequest, onFrame FrameHandler) error {
	if err := c.runSteps(ctx, PathAdditionalSteps, PathWSAdditionalSteps, req, onFrame); err != nil {
		return fmt.Errorf("failed to run additional steps: %w", err)
	}
	return nil
}

// EndSession releases the remote browser session.
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	if err := c.doJSON(ctx, http.MethodPost, PathEndSession, endSessionRequest{SessionID: sessionID}, nil); err != nil {
		return fmt.Errorf("failed to end session %s: %w", sessionID, err)
	}
	debugLog.Infof("Ended browser session %s", sessionID)
	return nil
}

func (c *Client) runSteps(ctx context.Context, httpPath, wsPath string, req StepsRequest, onFrame FrameHandler) error {
	if onFrame == nil {
		onFrame = func([]byte) {}
	}
	if c.transport == TransportWebSocket {
		return c.streamWebSocket(ctx, wsPath, req, onFrame)
	}
	return c.streamHTTP(ctx, httpPath, req, onFrame)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// APIError is a non-2xx reply from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// AsAPIError returns the *APIError wrapped in err, or nil.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload)
	for _, msg := range []string{payload.Error, payload.Detail, payload.Message} {
		if msg != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: msg}
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
}
