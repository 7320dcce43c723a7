package types

// StepStatus is the lifecycle state of a timeline step.
type StepStatus string

const (
	StepStatusPending  StepStatus = "pending"  // StepStatusPending is a step that has not started.
	StepStatusRunning  StepStatus = "running"  // StepStatusRunning is the step the backend is currently working on.
	StepStatusComplete StepStatus = "complete" // StepStatusComplete is a finished step.
	StepStatusError    StepStatus = "error"    // StepStatusError is a step that reports a failure.
)

// StepSource tells who produced a step.
type StepSource string

const (
	StepSourceUser   StepSource = "user"   // StepSourceUser marks a command typed or spoken by the user.
	StepSourceSystem StepSource = "system" // StepSourceSystem marks a step reported by the backend or the client.
)

// Step is one entry in the automation timeline.
type Step struct {
	ID          string      `json:"id"`
	Action      string      `json:"action"`
	Status      StepStatus  `json:"status"`
	MessageType MessageType `json:"type,omitempty"`
	Source      StepSource  `json:"source"`
}

// Label returns the heading for the step: "You" for user steps, the message-type label otherwise.
func (s Step) Label() string {
	if s.Source == StepSourceUser {
		return "You"
	}
	return s.MessageType.Label()
}
