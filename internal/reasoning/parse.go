package reasoning

import (
	"encoding/json"
	"regexp"
	"strings"
)

// parsedResponse is the three acceptable JSON shapes a model response
// can take (spec.md §4.5 step 2), merged into one struct: the parser
// fills FinalAnswer for either flavour, but only the worker flavour's
// engine treats it as a final answer.
type parsedResponse struct {
	Thought     string                 `json:"thought"`
	Action      *Action                `json:"action,omitempty"`
	FinalAnswer *string                `json:"final_answer,omitempty"`
}

var fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
var bareJSONPattern = regexp.MustCompile(`(?s)\{.*\}`)

// parseModelResponse tries strict parse → fenced ```json``` extract →
// first bare {...} span, in that order (spec.md §4.5 step 2).
func parseModelResponse(raw string) (parsedResponse, bool) {
	var resp parsedResponse

	if err := json.Unmarshal([]byte(raw), &resp); err == nil && resp.Thought != "" {
		return resp, true
	}

	if m := fencedJSONPattern.FindStringSubmatch(raw); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &resp); err == nil {
			return resp, true
		}
	}

	if m := bareJSONPattern.FindString(raw); m != "" {
		if err := json.Unmarshal([]byte(m), &resp); err == nil {
			return resp, true
		}
	}

	return parsedResponse{}, false
}

var (
	directAnswerPrefixes = []string{"the answer is", "result:", "solution:"}
	mathExpressionRegex  = regexp.MustCompile(`\d+(\.\d+)?\s*[-+*/%]\s*\d+(\.\d+)?`)
	clarificationTerms   = []string{"?", "what", "which", "how", "need to know", "clarify", "specify"}
)

// isDirectAnswer detects a direct numeric/currency answer pattern,
// grounded on the original control ReAct engine's _is_direct_answer
// heuristic.
func isDirectAnswer(text string) bool {
	lower := strings.ToLower(text)
	if strings.ContainsAny(text, "$%") {
		return true
	}
	if strings.Contains(lower, "tip") || strings.Contains(lower, "percent") {
		return true
	}
	for _, prefix := range directAnswerPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return mathExpressionRegex.MatchString(text)
}

// needsMoreInfo detects a clarification-seeking pattern, grounded on the
// original's _needs_more_info heuristic.
func needsMoreInfo(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range clarificationTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
