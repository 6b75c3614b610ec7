package reasoning

import "encoding/json"

// encodeStepAsAssistant reconstructs a prior step's assistant message as
// the same JSON shape the model itself would have produced, so the
// transcript stays self-consistent (spec.md §4.5 step 1).
func encodeStepAsAssistant(step ReasoningStep) (string, error) {
	payload := map[string]interface{}{"thought": step.Thought}
	if step.Action != nil {
		payload["action"] = step.Action
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
