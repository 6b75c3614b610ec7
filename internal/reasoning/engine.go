package reasoning

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dyluth/raid/internal/llmprovider"
)

// Flavour distinguishes the control and worker reasoning loops, which
// share the same step machine but differ in their tolerant-fallback and
// terminator semantics (spec.md §4.5).
type Flavour int

const (
	FlavourControl Flavour = iota
	FlavourWorker
)

// TruncationCap is the default observation-length cap in units (bytes),
// per spec.md §4.5 step 5 and §8's boundary test.
const TruncationCap = 15000

const truncationMarker = "... [OUTPUT TRUNCATED] ..."

// ToolExecutor resolves a tool/meta-tool name to its execution, always
// returning observation text rather than an error — a missing tool
// yields the fixed "Error: tool '<name>' not found" text (spec.md
// §4.5.1), never a crash.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, parameters map[string]interface{}) string
}

// Engine drives one reasoning loop flavour over a ReasoningContext.
type Engine struct {
	Flavour      Flavour
	Provider     llmprovider.Provider
	Tools        ToolExecutor
	MaxSteps     int
	SystemPrompt string
	ModelOptions map[string]interface{}
}

// Run executes the step loop to completion: either a terminal action is
// reached, or MaxSteps is exhausted and the context is marked failed
// with "max steps" (spec.md §4.5 step 6). A MaxSteps of 0 makes the
// context immediately fail (spec.md §8 boundary behaviour).
func (e *Engine) Run(ctx context.Context, rc *ReasoningContext) {
	if e.MaxSteps <= 0 {
		rc.conclude(StatusFailed, "max steps")
		return
	}

	for rc.StepCount() < e.MaxSteps {
		if rc.Status != StatusInProgress {
			return
		}
		if err := e.step(ctx, rc); err != nil {
			// Failure while building the very first step fails the
			// context outright; later steps degrade to an observation
			// (spec.md §4.5 failure semantics).
			if rc.StepCount() == 0 {
				rc.conclude(StatusFailed, err.Error())
			}
			return
		}
	}

	if rc.Status == StatusInProgress {
		rc.conclude(StatusFailed, "max steps")
	}
}

func (e *Engine) step(ctx context.Context, rc *ReasoningContext) error {
	transcript := e.buildTranscript(rc)

	raw, err := e.Provider.Complete(ctx, transcript, e.ModelOptions)
	if err != nil {
		step := ReasoningStep{
			Thought:     "model invocation failed",
			Observation: fmt.Sprintf("Error: %s", err),
		}
		if appendErr := rc.appendStep(step); appendErr != nil {
			return appendErr
		}
		return nil
	}

	resp, ok := parseModelResponse(raw)
	if !ok {
		return e.handleParseFailure(rc, raw)
	}

	// final_answer may arrive either as the dedicated top-level field
	// (worker flavour shorthand) or as an ordinary action named
	// "final_answer".
	if e.Flavour == FlavourWorker && resp.FinalAnswer != nil {
		step := ReasoningStep{Thought: resp.Thought}
		if err := rc.appendStep(step); err != nil {
			return err
		}
		rc.conclude(StatusCompleted, *resp.FinalAnswer)
		return nil
	}

	if resp.Action == nil {
		return e.handleParseFailure(rc, raw)
	}

	if e.isTerminal(resp.Action) {
		step := ReasoningStep{Thought: resp.Thought, Action: resp.Action}
		if err := rc.appendStep(step); err != nil {
			return err
		}
		e.conclude(rc, resp.Action)
		return nil
	}

	observation := e.Tools.Execute(ctx, resp.Action.Tool, resp.Action.Parameters)
	observation = truncate(observation)

	step := ReasoningStep{Thought: resp.Thought, Action: resp.Action, Observation: observation}
	return rc.appendStep(step)
}

func (e *Engine) isTerminal(a *Action) bool {
	switch e.Flavour {
	case FlavourControl:
		return a.Tool == "conclude_success" || a.Tool == "conclude_failure"
	case FlavourWorker:
		return a.Tool == "final_answer"
	default:
		return false
	}
}

func (e *Engine) conclude(rc *ReasoningContext, a *Action) {
	switch a.Tool {
	case "conclude_success":
		rc.conclude(StatusCompleted, stringParam(a.Parameters, "summary"))
	case "conclude_failure":
		rc.conclude(StatusFailed, stringParam(a.Parameters, "reason"))
	case "final_answer":
		rc.conclude(StatusCompleted, stringParam(a.Parameters, "answer"))
	}
}

func stringParam(params map[string]interface{}, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

// handleParseFailure implements spec.md §4.5 step 3: control flavour
// gets a tolerant fallback; worker flavour records an error observation
// and continues.
func (e *Engine) handleParseFailure(rc *ReasoningContext, raw string) error {
	if e.Flavour == FlavourWorker {
		step := ReasoningStep{
			Thought:     "failed to parse model response as JSON",
			Observation: fmt.Sprintf("Error: could not parse response: %s", raw),
		}
		return rc.appendStep(step)
	}

	action := tolerantFallback(raw)
	if action.Tool == "conclude_success" || action.Tool == "conclude_failure" {
		step := ReasoningStep{Thought: raw, Action: &action}
		if err := rc.appendStep(step); err != nil {
			return err
		}
		e.conclude(rc, &action)
		return nil
	}

	observation := e.Tools.Execute(context.Background(), action.Tool, action.Parameters)
	observation = truncate(observation)
	step := ReasoningStep{Thought: raw, Action: &action, Observation: observation}
	return rc.appendStep(step)
}

// tolerantFallback synthesizes a control-flavour action from unparseable
// raw model text (spec.md §4.5 step 3).
func tolerantFallback(raw string) Action {
	if isDirectAnswer(raw) {
		return Action{Tool: "conclude_success", Parameters: map[string]interface{}{"summary": raw}}
	}
	if needsMoreInfo(raw) {
		return Action{Tool: "discover_profiles", Parameters: map[string]interface{}{}}
	}
	return Action{Tool: "discover_profiles", Parameters: map[string]interface{}{}}
}

func truncate(observation string) string {
	if len(observation) <= TruncationCap {
		return observation
	}
	half := (TruncationCap - len(truncationMarker)) / 2
	return observation[:half] + truncationMarker + observation[len(observation)-half:]
}

func (e *Engine) buildTranscript(rc *ReasoningContext) []llmprovider.Message {
	messages := []llmprovider.Message{
		{Role: llmprovider.RoleSystem, Content: e.SystemPrompt},
		{Role: llmprovider.RoleUser, Content: rc.Goal},
	}

	for i, step := range rc.StepsSnapshot() {
		assistant, err := encodeStepAsAssistant(step)
		if err != nil {
			slog.Warn("failed to encode step for transcript", "component", "reasoning", "step", i+1, "error", err)
			continue
		}
		messages = append(messages, llmprovider.Message{Role: llmprovider.RoleAssistant, Content: assistant})
		if step.Observation != "" {
			messages = append(messages, llmprovider.Message{Role: llmprovider.RoleUser, Content: "Observation: " + step.Observation})
		}
	}

	if len(rc.Steps) >= 1 {
		messages = append(messages, llmprovider.Message{Role: llmprovider.RoleUser, Content: "What's your next thought?"})
	}

	return messages
}
