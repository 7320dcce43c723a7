// Package voice feeds spoken commands into the command field.
//
// A Bridge owns one Microphone and one Transcriber connection. Audio flows from
// the microphone to the transcriber while listening; final transcripts are
// appended to a CommandBuffer.
package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrClosed is returned by operations on a closed Bridge.
var ErrClosed = errors.New("voice bridge is closed")

// Transcript is one recognition result.
type Transcript struct {
	IsFinal     bool
	SpeechFinal bool
	Text        string
}

// Committed reports whether the transcript should be written to the command field.
func (t Transcript) Committed() bool {
	return t.IsFinal && t.SpeechFinal && strings.TrimSpace(t.Text) != ""
}

// Transcriber is a live connection to a speech-to-text service.
//
// Transcripts must be closed once Close returns or the connection drops.
type Transcriber interface {
	Send(chunk []byte) error
	KeepAlive() error
	Transcripts() <-chan Transcript
	Close() error
}

// Connector opens a transcription connection.
type Connector func(ctx context.Context) (Transcriber, error)

// Microphone captures audio.
type Microphone interface {
	// Setup prepares the device. It runs once, before the first Open.
	Setup(ctx context.Context) error
	// Open starts capturing. The returned channel is closed when capture ends.
	Open(ctx context.Context) (<-chan []byte, error)
	// Stop ends the current capture. Stopping a closed microphone is a no-op.
	Stop() error
}

// CommandBuffer is the text of the command field shared between the user and the bridge.
type CommandBuffer struct {
	mu   sync.Mutex
	text string
}

// NewCommandBuffer returns a buffer holding text.
func NewCommandBuffer(text string) *CommandBuffer {
	return &CommandBuffer{text: text}
}

// Text returns the current command.
func (b *CommandBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Set replaces the command.
func (b *CommandBuffer) Set(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
}

// Clear empties the command.
func (b *CommandBuffer) Clear() {
	b.Set("")
}

// Append adds text separated by a single space and returns the new command.
func (b *CommandBuffer) Append(text string) string {
	text = strings.TrimSpace(text)
	b.mu.Lock()
	defer b.mu.Unlock()
	if text == "" {
		return b.text
	}
	if strings.TrimSpace(b.text) == "" {
		b.text = text
	} else {
		b.text = strings.TrimRight(b.text, " ") + " " + text
	}
	return b.text
}
