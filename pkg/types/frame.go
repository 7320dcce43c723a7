package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType is the discriminator of a backend frame.
type MessageType string

const (
	MessageTypeStatus        MessageType = "status"         // MessageTypeStatus is a free-form progress update.
	MessageTypeBrowser       MessageType = "browser"        // MessageTypeBrowser reports browser navigation.
	MessageTypeThinking      MessageType = "thinking"       // MessageTypeThinking carries the agent's reasoning.
	MessageTypeToolCalls     MessageType = "tool_calls"     // MessageTypeToolCalls lists tools the agent decided to call.
	MessageTypeToolExecution MessageType = "tool_execution" // MessageTypeToolExecution reports a tool being executed.
	MessageTypeToolResult    MessageType = "tool_result"    // MessageTypeToolResult carries a structured tool result.
	MessageTypeAction        MessageType = "action"         // MessageTypeAction reports a browser action.
	MessageTypeComplete      MessageType = "complete"       // MessageTypeComplete terminates a step run.
)

// CompletionFallbackText is shown when a completion carries no message content.
const CompletionFallbackText = "Task completed"

var knownTypes = map[MessageType]bool{
	MessageTypeStatus:        true,
	MessageTypeBrowser:       true,
	MessageTypeThinking:      true,
	MessageTypeToolCalls:     true,
	MessageTypeToolExecution: true,
	MessageTypeToolResult:    true,
	MessageTypeAction:        true,
	MessageTypeComplete:      true,
}

// Known reports whether t is one of the documented frame types.
func (t MessageType) Known() bool {
	return knownTypes[t]
}

// IsTerminal reports whether a frame of this type ends a run without producing a step.
func (t MessageType) IsTerminal() bool {
	return t == MessageTypeComplete
}

// Label returns the heading shown above a step of this type.
func (t MessageType) Label() string {
	switch t {
	case MessageTypeStatus:
		return "Status Update"
	case MessageTypeBrowser:
		return "Browser"
	case MessageTypeThinking:
		return "Thinking"
	case MessageTypeToolCalls:
		return "Tool Calls"
	case MessageTypeToolExecution:
		return "Executing"
	case MessageTypeToolResult:
		return "Result"
	case MessageTypeAction:
		return "Action"
	default:
		return "System"
	}
}

// Payload is the typed body of a frame. Each frame type decodes into exactly one variant.
type Payload interface {
	DisplayText() string
	isPayload()
}

// TextPayload is the body of every plain-text frame type.
type TextPayload struct {
	Text string
}

func (p TextPayload) DisplayText() string { return p.Text }
func (TextPayload) isPayload()            {}

// ToolResultPayload is the body of a tool_result frame.
type ToolResultPayload struct {
	ToolCallID string `json:"tool_call_id,omitempty"`
	Role       string `json:"role,omitempty"`
	Name       string `json:"name,omitempty"`
	Content    string `json:"content"`
}

func (p ToolResultPayload) DisplayText() string { return p.Content }
func (ToolResultPayload) isPayload()            {}

// CompletionMessage is the message nested in a completion choice.
type CompletionMessage struct {
	Content string `json:"content"`
	Role    string `json:"role,omitempty"`
}

// CompletionChoice is one element of a completion response.
type CompletionChoice struct {
	FinishReason string            `json:"finish_reason,omitempty"`
	Index        int               `json:"index"`
	Message      CompletionMessage `json:"message"`
}

// CompletionPayload is the body of a complete frame.
type CompletionPayload struct {
	Response []CompletionChoice `json:"response"`
}

// DisplayText returns the first choice's content, or CompletionFallbackText.
func (p CompletionPayload) DisplayText() string {
	if len(p.Response) > 0 && p.Response[0].Message.Content != "" {
		return p.Response[0].Message.Content
	}
	return CompletionFallbackText
}

func (CompletionPayload) isPayload() {}

// Frame is one message pushed by the automation backend: {"type": ..., "message": ...}.
type Frame struct {
	Type    MessageType
	Payload Payload
}

// ErrMissingType is returned when a frame has no type tag.
var ErrMissingType = errors.New("frame has no type")

type rawFrame struct {
	Type    MessageType     `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
}

// UnmarshalJSON decodes the frame and its payload according to the type tag.
func (f *Frame) UnmarshalJSON(data []byte) error {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Type == "" {
		return ErrMissingType
	}

	payload, err := decodePayload(raw.Type, raw.Message)
	if err != nil {
		return err
	}

	f.Type = raw.Type
	f.Payload = payload
	return nil
}

// MarshalJSON encodes the frame back into its wire shape.
func (f Frame) MarshalJSON() ([]byte, error) {
	var body interface{}
	switch p := f.Payload.(type) {
	case nil:
	case TextPayload:
		body = p.Text
	default:
		body = p
	}
	return json.Marshal(struct {
		Type    MessageType `json:"type"`
		Message interface{} `json:"message,omitempty"`
	}{Type: f.Type, Message: body})
}

func decodePayload(t MessageType, msg json.RawMessage) (Payload, error) {
	switch t {
	case MessageTypeToolResult:
		if !isObject(msg) {
			return nil, fmt.Errorf("tool_result payload must be an object")
		}
		var p ToolResultPayload
		if err := json.Unmarshal(msg, &p); err != nil {
			return nil, fmt.Errorf("failed to decode tool_result payload: %w", err)
		}
		return p, nil

	case MessageTypeComplete:
		// A completion that cannot be read still terminates the run; it falls back
		// to the default text.
		var p CompletionPayload
		if isObject(msg) {
			if err := json.Unmarshal(msg, &p); err != nil {
				return CompletionPayload{}, nil
			}
		}
		return p, nil
	}

	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return nil, fmt.Errorf("%s frame has no message", t)
	}

	var text string
	if err := json.Unmarshal(msg, &text); err == nil {
		return TextPayload{Text: text}, nil
	}
	if !t.Known() {
		return nil, fmt.Errorf("unknown frame type %q with non-text message", t)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, msg); err != nil {
		return nil, fmt.Errorf("failed to compact %s payload: %w", t, err)
	}
	return TextPayload{Text: compact.String()}, nil
}

func isObject(msg json.RawMessage) bool {
	trimmed := bytes.TrimSpace(msg)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// NewTextFrame builds a plain-text frame.
func NewTextFrame(t MessageType, text string) Frame {
	return Frame{Type: t, Payload: TextPayload{Text: text}}
}

// NewToolResultFrame builds a tool_result frame with the given content.
func NewToolResultFrame(content string) Frame {
	return Frame{Type: MessageTypeToolResult, Payload: ToolResultPayload{Role: "tool", Content: content}}
}

// NewCompleteFrame builds a complete frame whose first choice carries content.
func NewCompleteFrame(content string) Frame {
	return Frame{
		Type: MessageTypeComplete,
		Payload: CompletionPayload{Response: []CompletionChoice{{
			FinishReason: "stop",
			Message:      CompletionMessage{Content: content, Role: "assistant"},
		}}},
	}
}
