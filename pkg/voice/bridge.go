package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/webagent/pkg/logging"
)

var debugLog *logging.Logger

func init() {
	var err error
	debugLog, err = logging.NewLogger("voice")
	if err != nil {
		debugLog.Warnf("Failed to initialize voice logger: %v", err)
	}
}

const (
	// DefaultSettleDelay is the pause after first-time microphone setup.
	DefaultSettleDelay = 2500 * time.Millisecond
	// DefaultKeepAliveInterval is how often an idle connection is pinged.
	DefaultKeepAliveInterval = 10 * time.Second
)

// State is the lifecycle of a Bridge.
type State string

const (
	StateUninitialized State = "uninitialized" // StateUninitialized has never been activated.
	StateReady         State = "ready"         // StateReady is set up with the microphone closed.
	StateListening     State = "listening"     // StateListening streams audio to the transcriber.
	StateStopped       State = "stopped"       // StateStopped is closed for good.
)

// Bridge connects a microphone to a transcriber and writes final transcripts into a CommandBuffer.
type Bridge struct {
	mic      Microphone
	connect  Connector
	command  *CommandBuffer
	onUpdate func(Transcript, string)
	onState  func(State)

	settleDelay       time.Duration
	keepAliveInterval time.Duration
	sleep             func(ctx context.Context, d time.Duration) error

	// opMu serializes Toggle and Close; mu guards the fields below.
	opMu sync.Mutex
	mu   sync.Mutex

	state     State
	setupDone bool
	conn      Transcriber
	stopPump  chan struct{}
	stopAlive chan struct{}
	pumpWG    sync.WaitGroup
	wg        sync.WaitGroup
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithSettleDelay sets the pause after first-time setup.
func WithSettleDelay(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d >= 0 {
			b.settleDelay = d
		}
	}
}

// WithKeepAliveInterval sets the heartbeat period while the microphone is closed.
func WithKeepAliveInterval(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		if d > 0 {
			b.keepAliveInterval = d
		}
	}
}

// WithOnUpdate registers fn to receive every transcript together with the command text after it was applied.
func WithOnUpdate(fn func(t Transcript, command string)) BridgeOption {
	return func(b *Bridge) {
		b.onUpdate = fn
	}
}

// WithOnStateChange registers fn to learn when capture stops without a Toggle,
// such as when the recorder exits.
func WithOnStateChange(fn func(State)) BridgeOption {
	return func(b *Bridge) {
		b.onState = fn
	}
}

// NewBridge creates an uninitialized bridge writing into command.
func NewBridge(mic Microphone, connect Connector, command *CommandBuffer, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		mic:               mic,
		connect:           connect,
		command:           command,
		settleDelay:       DefaultSettleDelay,
		keepAliveInterval: DefaultKeepAliveInterval,
		sleep:             sleepContext,
		state:             StateUninitialized,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Listening reports whether audio is being captured.
func (b *Bridge) Listening() bool {
	return b.State() == StateListening
}

// Toggle starts listening, or stops if already listening, and returns the new state.
//
// The first activation sets the microphone up and waits for the settle delay.
// Stopping keeps the transcription connection open for the next activation.
func (b *Bridge) Toggle(ctx context.Context) (State, error) {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	switch b.State() {
	case StateStopped:
		return StateStopped, ErrClosed
	case StateListening:
		b.stopListening()
		return b.State(), nil
	}

	if !b.setupDone {
		if err := b.mic.Setup(ctx); err != nil {
			return b.State(), fmt.Errorf("failed to set up microphone: %w", err)
		}
		if err := b.sleep(ctx, b.settleDelay); err != nil {
			return b.State(), err
		}
		b.setupDone = true
		b.setState(StateReady)
	}

	if err := b.ensureConnection(ctx); err != nil {
		return b.State(), err
	}

	chunks, err := b.mic.Open(ctx)
	if err != nil {
		return b.State(), fmt.Errorf("failed to open microphone: %w", err)
	}

	stop := make(chan struct{})
	b.mu.Lock()
	b.stopPump = stop
	b.state = StateListening
	conn := b.conn
	b.mu.Unlock()

	b.pumpWG.Add(1)
	go b.pump(conn, chunks, stop)

	debugLog.Debugf("Listening")
	return StateListening, nil
}

// Close stops capture, ends the keep-alive heartbeat and closes the transcription connection.
func (b *Bridge) Close() error {
	b.opMu.Lock()
	defer b.opMu.Unlock()

	if b.State() == StateStopped {
		return nil
	}
	if b.State() == StateListening {
		b.stopListening()
	}

	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	if b.stopAlive != nil {
		close(b.stopAlive)
		b.stopAlive = nil
	}
	b.state = StateStopped
	b.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	b.wg.Wait()
	return err
}

func (b *Bridge) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *Bridge) ensureConnection(ctx context.Context) error {
	b.mu.Lock()
	open := b.conn != nil
	b.mu.Unlock()
	if open {
		return nil
	}

	conn, err := b.connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect transcriber: %w", err)
	}

	stop := make(chan struct{})
	b.mu.Lock()
	b.conn = conn
	b.stopAlive = stop
	b.mu.Unlock()

	b.wg.Add(2)
	go b.readTranscripts(conn)
	go b.keepAlive(conn, stop)
	return nil
}

func (b *Bridge) stopListening() {
	if err := b.mic.Stop(); err != nil {
		debugLog.Warnf("Failed to stop microphone: %v", err)
	}

	b.mu.Lock()
	stop := b.stopPump
	b.stopPump = nil
	b.state = StateReady
	conn := b.conn
	b.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	b.pumpWG.Wait()

	// The microphone is closed again: heartbeat right away, then on the ticker.
	if conn != nil {
		if err := conn.KeepAlive(); err != nil {
			debugLog.Warnf("Keep-alive failed: %v", err)
		}
	}
	debugLog.Debugf("Stopped listening")
}

func (b *Bridge) pump(conn Transcriber, chunks <-chan []byte, stop <-chan struct{}) {
	defer b.pumpWG.Done()
	for {
		select {
		case <-stop:
			return
		case chunk, ok := <-chunks:
			if !ok {
				b.microphoneClosed(conn, stop)
				return
			}
			if err := conn.Send(chunk); err != nil {
				debugLog.Warnf("Failed to send audio: %v", err)
				b.microphoneClosed(conn, stop)
				return
			}
		}
	}
}

// microphoneClosed returns the bridge to Ready when capture ends without a
// Toggle. A concurrent stopListening owns the transition instead.
func (b *Bridge) microphoneClosed(conn Transcriber, stop <-chan struct{}) {
	b.mu.Lock()
	if b.stopPump != stop {
		b.mu.Unlock()
		return
	}
	b.stopPump = nil
	b.state = StateReady
	b.mu.Unlock()

	debugLog.Warnf("Microphone closed while listening")
	if err := b.mic.Stop(); err != nil {
		debugLog.Warnf("Failed to stop microphone: %v", err)
	}
	if err := conn.KeepAlive(); err != nil {
		debugLog.Warnf("Keep-alive failed: %v", err)
	}
	if b.onState != nil {
		b.onState(StateReady)
	}
}

func (b *Bridge) readTranscripts(conn Transcriber) {
	defer b.wg.Done()
	for t := range conn.Transcripts() {
		command := b.command.Text()
		if t.Committed() {
			command = b.command.Append(t.Text)
		}
		if b.onUpdate != nil {
			b.onUpdate(t, command)
		}
	}

	// Connection dropped on its own: forget it so the next activation redials.
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == conn {
		debugLog.Infof("Transcription connection closed by peer")
		b.conn = nil
		if b.stopAlive != nil {
			close(b.stopAlive)
			b.stopAlive = nil
		}
	}
}

func (b *Bridge) keepAlive(conn Transcriber, stop <-chan struct{}) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if b.Listening() {
				continue
			}
			if err := conn.KeepAlive(); err != nil {
				debugLog.Warnf("Keep-alive failed: %v", err)
			}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
