// Package deepgram streams audio to Deepgram's live transcription API.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/entrhq/webagent/pkg/logging"
	"github.com/entrhq/webagent/pkg/voice"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("deepgram")
	if err != nil {
		debugLog.Warnf("Failed to initialize deepgram logger: %v", err)
	}
}

// DefaultEndpoint is the live transcription URL.
const DefaultEndpoint = "wss://api.deepgram.com/v1/listen"

const writeWait = 10 * time.Second

// ErrMissingAPIKey is returned by Dial without a key.
var ErrMissingAPIKey = errors.New("deepgram api key is required")

// Config holds the live transcription options.
type Config struct {
	APIKey         string
	Endpoint       string
	Model          string
	Language       string
	InterimResults bool
	SmartFormat    bool
	FillerWords    bool
	UtteranceEndMs int

	// Raw audio settings. Leave Encoding empty for containerized audio.
	Encoding   string
	SampleRate int
	Channels   int
}

// DefaultConfig returns the options the playground has always used.
func DefaultConfig() Config {
	return Config{
		Endpoint:       DefaultEndpoint,
		Model:          "nova-2",
		InterimResults: true,
		SmartFormat:    true,
		FillerWords:    true,
		UtteranceEndMs: 3000,
		Encoding:       "linear16",
		SampleRate:     16000,
		Channels:       1,
	}
}

// URL returns the listen URL with the configuration as query parameters.
func (c Config) URL() (string, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}

	q := u.Query()
	if c.Model != "" {
		q.Set("model", c.Model)
	}
	if c.Language != "" {
		q.Set("language", c.Language)
	}
	q.Set("interim_results", strconv.FormatBool(c.InterimResults))
	q.Set("smart_format", strconv.FormatBool(c.SmartFormat))
	q.Set("filler_words", strconv.FormatBool(c.FillerWords))
	if c.UtteranceEndMs > 0 {
		q.Set("utterance_end_ms", strconv.Itoa(c.UtteranceEndMs))
	}
	if c.Encoding != "" {
		q.Set("encoding", c.Encoding)
		if c.SampleRate > 0 {
			q.Set("sample_rate", strconv.Itoa(c.SampleRate))
		}
		if c.Channels > 0 {
			q.Set("channels", strconv.Itoa(c.Channels))
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Conn is a live transcription connection. It implements voice.Transcriber.
type Conn struct {
	conn        *websocket.Conn
	transcripts chan voice.Transcript

	writeMu   sync.Mutex
	closeOnce sync.Once
	closing   chan struct{}
	done      chan struct{}
}

// Connector returns a voice.Connector dialing with cfg.
func Connector(cfg Config, dialer *websocket.Dialer) voice.Connector {
	return func(ctx context.Context) (voice.Transcriber, error) {
		return Dial(ctx, cfg, dialer)
	}
}

// Dial opens a live transcription connection.
func Dial(ctx context.Context, cfg Config, dialer *websocket.Dialer) (*Conn, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	target, err := cfg.URL()
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Token "+cfg.APIKey)

	ws, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to connect to deepgram (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("failed to connect to deepgram: %w", err)
	}

	c := &Conn{
		conn:        ws,
		transcripts: make(chan voice.Transcript, 64),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	go c.readLoop()
	debugLog.Infof("Connected to %s", cfg.Endpoint)
	return c, nil
}

// Send writes one chunk of audio.
func (c *Conn) Send(chunk []byte) error {
	return c.write(websocket.BinaryMessage, chunk)
}

// KeepAlive tells the service the connection is still wanted while no audio is flowing.
func (c *Conn) KeepAlive() error {
	return c.write(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
}

// Transcripts delivers results until the connection closes.
func (c *Conn) Transcripts() <-chan voice.Transcript {
	return c.transcripts
}

// Close asks the service to flush and close, then tears the socket down.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		_ = c.write(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
		_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

		select {
		case <-c.done:
		case <-time.After(writeWait):
		}
		err = c.conn.Close()
		<-c.done
	})
	return err
}

func (c *Conn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// liveMessage is the subset of a streaming response the client reads.
type liveMessage struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
	Description string `json:"description"`
}

func (c *Conn) readLoop() {
	defer close(c.done)
	defer close(c.transcripts)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				debugLog.Warnf("Connection closed: %v", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		t, ok, err := decodeTranscript(data)
		if err != nil {
			debugLog.Warnf("Dropping message: %v", err)
			continue
		}
		if !ok {
			continue
		}
		select {
		case c.transcripts <- t:
		case <-c.closing:
			return
		}
	}
}

func decodeTranscript(data []byte) (voice.Transcript, bool, error) {
	var msg liveMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return voice.Transcript{}, false, fmt.Errorf("failed to decode message: %w", err)
	}
	switch msg.Type {
	case "Results":
	case "Error":
		return voice.Transcript{}, false, fmt.Errorf("service error: %s", msg.Description)
	default:
		debugLog.Debugf("Ignoring %s message", msg.Type)
		return voice.Transcript{}, false, nil
	}

	t := voice.Transcript{IsFinal: msg.IsFinal, SpeechFinal: msg.SpeechFinal}
	if len(msg.Channel.Alternatives) > 0 {
		t.Text = msg.Channel.Alternatives[0].Transcript
	}
	return t, true, nil
}
