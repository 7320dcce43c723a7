// Package timeline turns backend frames into the ordered step list shown to the user.
package timeline

import (
	"encoding/json"
	"fmt"

	"github.com/entrhq/webagent/pkg/types"
)

// Message is a frame reduced to what the timeline needs.
type Message struct {
	Type        types.MessageType
	DisplayText string
}

// ParseError reports a frame that could not be decoded. Callers log and drop it.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed frame %q: %v", truncate(e.Raw, 120), e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Normalize decodes one raw frame into a Message.
func Normalize(raw []byte) (Message, error) {
	var frame types.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Message{}, &ParseError{Raw: string(raw), Err: err}
	}
	return FromFrame(frame), nil
}

// FromFrame converts an already decoded frame.
func FromFrame(frame types.Frame) Message {
	msg := Message{Type: frame.Type}
	if frame.Payload != nil {
		msg.DisplayText = frame.Payload.DisplayText()
	} else if frame.Type.IsTerminal() {
		msg.DisplayText = types.CompletionFallbackText
	}
	return msg
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
