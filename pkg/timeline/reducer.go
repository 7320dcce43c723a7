package timeline

import (
	"github.com/entrhq/webagent/pkg/types"
)

// ErrorStepText is the action of the step added when a command fails to run.
const ErrorStepText = "Error executing command"

// Apply folds one message into steps and returns the new list. The input slice is never modified.
//
// Every running step is closed first. A terminal message stops there; any other
// message is appended as a new running system step.
func Apply(steps []types.Step, msg Message, ids IDSource) []types.Step {
	out := closeRunning(steps, 1)
	if msg.Type.IsTerminal() {
		return out
	}
	return append(out, types.Step{
		ID:          ids.Next(),
		Action:      msg.DisplayText,
		Status:      types.StepStatusRunning,
		MessageType: msg.Type,
		Source:      types.StepSourceSystem,
	})
}

// ApplyAll folds msgs into steps in order.
func ApplyAll(steps []types.Step, msgs []Message, ids IDSource) []types.Step {
	for _, m := range msgs {
		steps = Apply(steps, m, ids)
	}
	return steps
}

// AppendUser appends a command entered by the user. Running steps are left alone.
func AppendUser(steps []types.Step, text string, ids IDSource) []types.Step {
	out := make([]types.Step, len(steps), len(steps)+1)
	copy(out, steps)
	return append(out, types.Step{
		ID:     ids.Next(),
		Action: text,
		Status: types.StepStatusComplete,
		Source: types.StepSourceUser,
	})
}

// AppendError closes running steps and appends a system error step.
func AppendError(steps []types.Step, text string, ids IDSource) []types.Step {
	out := closeRunning(steps, 1)
	return append(out, types.Step{
		ID:     ids.Next(),
		Action: text,
		Status: types.StepStatusError,
		Source: types.StepSourceSystem,
	})
}

// Running returns the step currently running, if any.
func Running(steps []types.Step) (types.Step, bool) {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Status == types.StepStatusRunning {
			return steps[i], true
		}
	}
	return types.Step{}, false
}

func closeRunning(steps []types.Step, extra int) []types.Step {
	out := make([]types.Step, len(steps), len(steps)+extra)
	for i, s := range steps {
		if s.Status == types.StepStatusRunning {
			s.Status = types.StepStatusComplete
		}
		out[i] = s
	}
	return out
}
