package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// DefaultRecorderCommand records 16 kHz mono 16-bit PCM to stdout.
var DefaultRecorderCommand = []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "raw"}

// chunkSize is 100ms of 16 kHz mono 16-bit audio.
const chunkSize = 3200

// CommandMicrophone captures audio from an external recorder process writing raw audio to stdout.
type CommandMicrophone struct {
	argv []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	chunks chan []byte
	done   chan struct{}
}

// NewCommandMicrophone returns a microphone running argv. An empty argv uses DefaultRecorderCommand.
func NewCommandMicrophone(argv []string) *CommandMicrophone {
	if len(argv) == 0 {
		argv = DefaultRecorderCommand
	}
	return &CommandMicrophone{argv: append([]string(nil), argv...)}
}

// Setup checks that the recorder binary can be found.
func (m *CommandMicrophone) Setup(ctx context.Context) error {
	if _, err := exec.LookPath(m.argv[0]); err != nil {
		return fmt.Errorf("recorder %q not found: %w", m.argv[0], err)
	}
	return nil
}

// Open starts the recorder and streams its output in fixed-size chunks.
func (m *CommandMicrophone) Open(ctx context.Context) (<-chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd != nil {
		return nil, errors.New("microphone is already open")
	}

	cmd := exec.Command(m.argv[0], m.argv[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach to recorder output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}

	chunks := make(chan []byte, 16)
	done := make(chan struct{})
	m.cmd = cmd
	m.chunks = chunks
	m.done = done

	go func() {
		defer close(done)
		defer close(chunks)
		buf := make([]byte, chunkSize)
		for {
			n, err := io.ReadFull(stdout, buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	return chunks, nil
}

// Stop kills the recorder and waits for it to exit.
func (m *CommandMicrophone) Stop() error {
	m.mu.Lock()
	cmd, chunks, done := m.cmd, m.chunks, m.done
	m.cmd, m.chunks, m.done = nil, nil, nil
	m.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	// Drain so the reader goroutine is not blocked on a full channel.
	for range chunks {
	}
	<-done
	_ = cmd.Wait()
	return nil
}
