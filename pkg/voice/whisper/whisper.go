// Package whisper transcribes buffered audio with the OpenAI audio API.
//
// It is a batch fallback for voice.Transcriber: audio collected while the
// microphone is open is transcribed when the bridge goes quiet (the first
// keep-alive after capture stops), when the buffer reaches its limit, or on Close.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/entrhq/webagent/pkg/logging"
	"github.com/entrhq/webagent/pkg/voice"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("whisper")
	if err != nil {
		debugLog.Warnf("Failed to initialize whisper logger: %v", err)
	}
}

const (
	// DefaultModel is the transcription model.
	DefaultModel = openai.AudioModelWhisper1

	defaultSampleRate = 16000
	defaultChannels   = 1
	// 30 seconds of 16 kHz mono 16-bit audio.
	defaultFlushBytes = 30 * defaultSampleRate * 2
	requestTimeout    = 60 * time.Second
)

// Transcriber buffers raw PCM and emits one final transcript per flushed segment.
type Transcriber struct {
	client     openai.Client
	model      openai.AudioModel
	language   string
	sampleRate int
	channels   int
	flushBytes int
	opts       []option.RequestOption

	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool

	jobs        chan []byte
	transcripts chan voice.Transcript
	done        chan struct{}
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithModel sets the transcription model.
func WithModel(model string) Option {
	return func(t *Transcriber) {
		if model != "" {
			t.model = openai.AudioModel(model)
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible API.
func WithBaseURL(baseURL string) Option {
	return func(t *Transcriber) {
		if baseURL != "" {
			t.opts = append(t.opts, option.WithBaseURL(baseURL))
		}
	}
}

// WithRequestOptions passes extra options to the OpenAI client.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(t *Transcriber) {
		t.opts = append(t.opts, opts...)
	}
}

// WithLanguage hints the spoken language (ISO-639-1).
func WithLanguage(lang string) Option {
	return func(t *Transcriber) {
		t.language = lang
	}
}

// WithFormat describes the raw PCM written to Send.
func WithFormat(sampleRate, channels int) Option {
	return func(t *Transcriber) {
		if sampleRate > 0 {
			t.sampleRate = sampleRate
		}
		if channels > 0 {
			t.channels = channels
		}
	}
}

// WithFlushBytes sets how much audio is buffered before a transcription is forced.
func WithFlushBytes(n int) Option {
	return func(t *Transcriber) {
		if n > 0 {
			t.flushBytes = n
		}
	}
}

// New creates a transcriber. An empty apiKey falls back to OPENAI_API_KEY.
func New(apiKey string, opts ...Option) (*Transcriber, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (provide via config or OPENAI_API_KEY environment variable)")
	}

	t := &Transcriber{
		model:       DefaultModel,
		sampleRate:  defaultSampleRate,
		channels:    defaultChannels,
		flushBytes:  defaultFlushBytes,
		jobs:        make(chan []byte, 4),
		transcripts: make(chan voice.Transcript, 16),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		t.opts = append([]option.RequestOption{option.WithBaseURL(base)}, t.opts...)
	}
	t.client = openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, t.opts...)...)

	go t.worker()
	return t, nil
}

// Connector adapts New to voice.Connector.
func Connector(apiKey string, opts ...Option) voice.Connector {
	return func(ctx context.Context) (voice.Transcriber, error) {
		return New(apiKey, opts...)
	}
}

// Send buffers a chunk of audio.
func (t *Transcriber) Send(chunk []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return voice.ErrClosed
	}
	t.buf.Write(chunk)
	if t.buf.Len() >= t.flushBytes {
		t.flushLocked()
	}
	return nil
}

// KeepAlive flushes buffered audio. The bridge calls it whenever the microphone is closed.
func (t *Transcriber) KeepAlive() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return voice.ErrClosed
	}
	t.flushLocked()
	return nil
}

// Transcripts delivers one final transcript per segment.
func (t *Transcriber) Transcripts() <-chan voice.Transcript {
	return t.transcripts
}

// Close transcribes what is left and waits for pending requests.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		<-t.done
		return nil
	}
	t.flushLocked()
	t.closed = true
	close(t.jobs)
	t.mu.Unlock()

	<-t.done
	return nil
}

func (t *Transcriber) flushLocked() {
	if t.buf.Len() == 0 {
		return
	}
	pcm := make([]byte, t.buf.Len())
	copy(pcm, t.buf.Bytes())
	t.buf.Reset()
	t.jobs <- pcm
}

func (t *Transcriber) worker() {
	defer close(t.done)
	defer close(t.transcripts)

	for pcm := range t.jobs {
		text, err := t.transcribe(pcm)
		if err != nil {
			debugLog.Errorf("Transcription failed: %v", err)
			continue
		}
		t.transcripts <- voice.Transcript{IsFinal: true, SpeechFinal: true, Text: text}
	}
}

func (t *Transcriber) transcribe(pcm []byte) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(encodeWAV(pcm, t.sampleRate, t.channels)), "speech.wav", "audio/wav"),
		Model: t.model,
	}
	if t.language != "" {
		params.Language = openai.String(t.language)
	}

	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe %d bytes: %w", len(pcm), err)
	}
	debugLog.Debugf("Transcribed %d bytes", len(pcm))
	return strings.TrimSpace(resp.Text), nil
}
