package reasoning

import (
	"context"
	"strings"
	"testing"

	"github.com/dyluth/raid/internal/llmprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTools struct {
	response string
}

func (f fakeTools) Execute(_ context.Context, name string, _ map[string]interface{}) string {
	if name == "" {
		return "Error: tool '' not found"
	}
	return f.response
}

func TestEngine_ControlFlavour_StraightDispatch(t *testing.T) {
	provider := llmprovider.NewScriptedProvider(
		`{"thought": "need a profile", "action": {"tool": "discover_profiles", "parameters": {}}}`,
		`{"thought": "dispatching", "action": {"tool": "dispatch", "parameters": {"profile": "calculator_agent", "prompt": "Compute 15% of 85"}}}`,
		`{"thought": "done", "action": {"tool": "conclude_success", "parameters": {"summary": "12.75"}}}`,
	)
	engine := &Engine{
		Flavour:      FlavourControl,
		Provider:     provider,
		Tools:        fakeTools{response: "calculator_agent"},
		MaxSteps:     10,
		SystemPrompt: "you are the control agent",
	}
	rc := NewContext("task-1", "Compute 15% of 85")
	engine.Run(context.Background(), rc)

	assert.Equal(t, StatusCompleted, rc.Status)
	assert.Contains(t, rc.FinalResult, "12.75")
	assert.Len(t, rc.Steps, 3)
}

func TestEngine_WorkerFlavour_FinalAnswerField(t *testing.T) {
	provider := llmprovider.NewScriptedProvider(
		`{"thought": "computed it", "final_answer": "12.75"}`,
	)
	engine := &Engine{
		Flavour:      FlavourWorker,
		Provider:     provider,
		Tools:        fakeTools{response: "n/a"},
		MaxSteps:     10,
		SystemPrompt: "you are a worker",
	}
	rc := NewContext("task-1", "compute 15% of 85")
	engine.Run(context.Background(), rc)

	assert.Equal(t, StatusCompleted, rc.Status)
	assert.Equal(t, "12.75", rc.FinalResult)
}

func TestEngine_WorkerFlavour_ParseFailureIsStrict(t *testing.T) {
	provider := llmprovider.NewScriptedProvider("not json at all")
	engine := &Engine{
		Flavour:  FlavourWorker,
		Provider: provider,
		Tools:    fakeTools{},
		MaxSteps: 1,
	}
	rc := NewContext("task-1", "goal")
	engine.Run(context.Background(), rc)

	require.Len(t, rc.Steps, 1)
	assert.Contains(t, rc.Steps[0].Observation, "Error")
	// Worker strict failure is recorded as an observation, not a terminal synthesis.
	assert.Equal(t, StatusFailed, rc.Status) // max steps (1) exhausted after the error step
}

func TestEngine_ControlFlavour_TolerantFallback_DirectAnswer(t *testing.T) {
	provider := llmprovider.NewScriptedProvider("The tip is $12.75.")
	engine := &Engine{
		Flavour:  FlavourControl,
		Provider: provider,
		Tools:    fakeTools{},
		MaxSteps: 5,
	}
	rc := NewContext("task-1", "what is the tip")
	engine.Run(context.Background(), rc)

	assert.Equal(t, StatusCompleted, rc.Status)
	assert.Equal(t, "The tip is $12.75.", rc.FinalResult)
}

func TestEngine_ControlFlavour_TolerantFallback_Clarification(t *testing.T) {
	provider := llmprovider.NewScriptedProvider(
		"What do you need to know about this?",
		`{"thought": "ok", "action": {"tool": "conclude_success", "parameters": {"summary": "done"}}}`,
	)
	engine := &Engine{
		Flavour:  FlavourControl,
		Provider: provider,
		Tools:    fakeTools{response: "profiles listed"},
		MaxSteps: 5,
	}
	rc := NewContext("task-1", "goal")
	engine.Run(context.Background(), rc)

	require.GreaterOrEqual(t, len(rc.Steps), 1)
	assert.Equal(t, "discover_profiles", rc.Steps[0].Action.Tool)
}

func TestEngine_ZeroMaxSteps_FailsImmediately(t *testing.T) {
	engine := &Engine{Flavour: FlavourControl, Provider: llmprovider.NewScriptedProvider(), Tools: fakeTools{}, MaxSteps: 0}
	rc := NewContext("task-1", "goal")
	engine.Run(context.Background(), rc)

	assert.Equal(t, StatusFailed, rc.Status)
	assert.Equal(t, "max steps", rc.FinalResult)
	assert.Empty(t, rc.Steps)
}

func TestEngine_StepCapExhausted(t *testing.T) {
	provider := llmprovider.NewScriptedProvider(
		`{"thought": "t1", "action": {"tool": "noop", "parameters": {}}}`,
		`{"thought": "t2", "action": {"tool": "noop", "parameters": {}}}`,
	)
	engine := &Engine{Flavour: FlavourControl, Provider: provider, Tools: fakeTools{response: "ok"}, MaxSteps: 2}
	rc := NewContext("task-1", "goal")
	engine.Run(context.Background(), rc)

	assert.Equal(t, StatusFailed, rc.Status)
	assert.Equal(t, "max steps", rc.FinalResult)
	assert.Len(t, rc.Steps, 2)
}

func TestReasoningContext_StepMonotonicity(t *testing.T) {
	rc := NewContext("task-1", "goal")
	require.NoError(t, rc.appendStep(ReasoningStep{Thought: "a"}))
	require.NoError(t, rc.appendStep(ReasoningStep{Thought: "b"}))
	assert.Equal(t, 1, rc.Steps[0].StepNumber)
	assert.Equal(t, 2, rc.Steps[1].StepNumber)
}

func TestReasoningContext_TerminalImmutability(t *testing.T) {
	rc := NewContext("task-1", "goal")
	rc.conclude(StatusCompleted, "done")
	err := rc.appendStep(ReasoningStep{Thought: "late"})
	require.Error(t, err)
	assert.Len(t, rc.Steps, 0)
}

func TestTruncate_BoundaryBehavior(t *testing.T) {
	exact := strings.Repeat("a", TruncationCap)
	assert.Equal(t, exact, truncate(exact))

	over := strings.Repeat("a", TruncationCap+1)
	truncated := truncate(over)
	assert.Contains(t, truncated, truncationMarker)
	assert.True(t, len(truncated) < len(over))
}

func TestToolNotFound_ObservationNotCrash(t *testing.T) {
	provider := llmprovider.NewScriptedProvider(
		`{"thought": "try", "action": {"tool": "", "parameters": {}}}`,
	)
	engine := &Engine{Flavour: FlavourControl, Provider: provider, Tools: fakeTools{}, MaxSteps: 1}
	rc := NewContext("task-1", "goal")
	engine.Run(context.Background(), rc)
	require.Len(t, rc.Steps, 1)
	assert.Contains(t, rc.Steps[0].Observation, "not found")
}
