package timeline

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/webagent/pkg/types"
)

type counterIDs struct{ n int }

func (c *counterIDs) Next() string {
	c.n++
	return fmt.Sprintf("step-%d", c.n)
}

func mustNormalize(t *testing.T, raw string) Message {
	t.Helper()
	msg, err := Normalize([]byte(raw))
	require.NoError(t, err)
	return msg
}

func TestWorkedExample(t *testing.T) {
	ids := &counterIDs{}
	var steps []types.Step

	steps = Apply(steps, mustNormalize(t, `{"type":"thinking","message":"Looking at page"}`), ids)
	require.Len(t, steps, 1)
	assert.Equal(t, types.StepStatusRunning, steps[0].Status)
	assert.Equal(t, "Looking at page", steps[0].Action)

	steps = Apply(steps, mustNormalize(t, `{"type":"tool_result","message":{"content":"Clicked button"}}`), ids)
	require.Len(t, steps, 2)
	assert.Equal(t, types.StepStatusComplete, steps[0].Status)
	assert.Equal(t, types.StepStatusRunning, steps[1].Status)
	assert.Equal(t, "Clicked button", steps[1].Action)
	assert.Equal(t, types.MessageTypeToolResult, steps[1].MessageType)
	assert.Equal(t, types.StepSourceSystem, steps[1].Source)

	steps = Apply(steps, mustNormalize(t, `{"type":"complete","message":{"response":[{"message":{"content":"Done"}}]}}`), ids)
	require.Len(t, steps, 2)
	for _, s := range steps {
		assert.Equal(t, types.StepStatusComplete, s.Status)
	}
}

func TestSequenceWithoutComplete(t *testing.T) {
	kinds := []types.MessageType{
		types.MessageTypeStatus,
		types.MessageTypeBrowser,
		types.MessageTypeThinking,
		types.MessageTypeToolCalls,
		types.MessageTypeToolExecution,
		types.MessageTypeAction,
	}

	for n := 1; n <= len(kinds); n++ {
		t.Run(fmt.Sprintf("%d messages", n), func(t *testing.T) {
			ids := &counterIDs{}
			var steps []types.Step
			for i := 0; i < n; i++ {
				steps = Apply(steps, Message{Type: kinds[i], DisplayText: fmt.Sprintf("m%d", i)}, ids)
			}

			require.Len(t, steps, n)
			for i, s := range steps {
				if i == n-1 {
					assert.Equal(t, types.StepStatusRunning, s.Status)
				} else {
					assert.Equal(t, types.StepStatusComplete, s.Status)
				}
			}
		})
	}
}

func TestCompleteNeverChangesCount(t *testing.T) {
	ids := &counterIDs{}
	complete := Message{Type: types.MessageTypeComplete, DisplayText: "Done"}

	assert.Empty(t, Apply(nil, complete, ids))

	steps := []types.Step{
		{ID: "a", Status: types.StepStatusRunning, Source: types.StepSourceSystem},
		{ID: "b", Status: types.StepStatusError, Source: types.StepSourceSystem},
		{ID: "c", Status: types.StepStatusRunning, Source: types.StepSourceSystem},
	}
	out := Apply(steps, complete, ids)
	require.Len(t, out, 3)
	assert.Equal(t, types.StepStatusComplete, out[0].Status)
	assert.Equal(t, types.StepStatusError, out[1].Status)
	assert.Equal(t, types.StepStatusComplete, out[2].Status)
	assert.Equal(t, 0, ids.n, "complete must not consume an id")
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	steps := []types.Step{{ID: "a", Status: types.StepStatusRunning}}
	_ = Apply(steps, Message{Type: types.MessageTypeAction, DisplayText: "x"}, &counterIDs{})
	assert.Equal(t, types.StepStatusRunning, steps[0].Status)
}

func TestOneByOneEqualsFold(t *testing.T) {
	msgs := []Message{
		{Type: types.MessageTypeThinking, DisplayText: "plan"},
		{Type: types.MessageTypeToolCalls, DisplayText: "click"},
		{Type: types.MessageTypeComplete, DisplayText: "Done"},
		{Type: types.MessageTypeStatus, DisplayText: "again"},
		{Type: types.MessageTypeToolResult, DisplayText: "ok"},
	}

	var oneByOne []types.Step
	ids := &counterIDs{}
	for _, m := range msgs {
		oneByOne = Apply(oneByOne, m, ids)
	}

	folded := ApplyAll(nil, msgs, &counterIDs{})
	assert.Equal(t, oneByOne, folded)
}

func TestMalformedFrameLeavesStepsUnchanged(t *testing.T) {
	steps := []types.Step{{ID: "a", Action: "hi", Status: types.StepStatusRunning}}
	before := append([]types.Step(nil), steps...)

	_, err := Normalize([]byte("not json at all"))
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "not json at all", perr.Raw)
	assert.Equal(t, before, steps)
}

func TestNormalizeMissingTypeUnwraps(t *testing.T) {
	_, err := Normalize([]byte(`{"message":"x"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrMissingType)
}

func TestAppendUserAndError(t *testing.T) {
	ids := &counterIDs{}
	steps := AppendUser(nil, "find a table", ids)
	require.Len(t, steps, 1)
	assert.Equal(t, types.StepSourceUser, steps[0].Source)
	assert.Equal(t, types.StepStatusComplete, steps[0].Status)
	assert.Empty(t, steps[0].MessageType)

	steps = Apply(steps, Message{Type: types.MessageTypeThinking, DisplayText: "hmm"}, ids)
	steps = AppendError(steps, ErrorStepText, ids)
	require.Len(t, steps, 3)
	assert.Equal(t, types.StepStatusComplete, steps[1].Status)
	assert.Equal(t, types.StepStatusError, steps[2].Status)
	assert.Equal(t, ErrorStepText, steps[2].Action)

	_, running := Running(steps)
	assert.False(t, running)
}

func TestSequenceUniqueUnderFrozenClock(t *testing.T) {
	frozen := time.Unix(1700000000, 0)
	seq := &Sequence{now: func() time.Time { return frozen }}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := seq.Next()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.True(t, seen["1700000000000000000-1"])
}
