package profile

import (
	"fmt"
	"strings"
)

// RoleTemplate is a built-in, parameterized system-prompt template used
// to instantiate a dynamic profile for a goal that has no matching
// static profile.
type RoleTemplate struct {
	Name           string
	Specialization string
	Tools          []string
	promptFormat   string
}

// SystemPrompt renders the template's system prompt for a given goal.
func (r RoleTemplate) SystemPrompt(goal string) string {
	return fmt.Sprintf(r.promptFormat, r.Specialization, goal)
}

// Built-in role templates, grounded on the five roles the original
// implementation registers by default (config/dynamic_subagent.py).
var roleTemplates = map[string]RoleTemplate{
	"data_analyst": {
		Name:           "data_analyst",
		Specialization: "data analysis, statistics, and pattern recognition",
		Tools:          []string{"calculator", "read_file"},
		promptFormat: "You are a data analyst specializing in %s. " +
			"Your current task: %s. Break the task into concrete analytical " +
			"steps, show your work, and quantify your conclusions wherever " +
			"possible.",
	},
	"financial_analyst": {
		Name:           "financial_analyst",
		Specialization: "financial analysis, budgeting, and cost modeling",
		Tools:          []string{"calculator"},
		promptFormat: "You are a financial analyst specializing in %s. " +
			"Your current task: %s. State all monetary figures precisely " +
			"and show the calculation that produced each one.",
	},
	"research_analyst": {
		Name:           "research_analyst",
		Specialization: "research, investigation, and exploratory synthesis",
		Tools:          []string{"read_file", "list_files"},
		promptFormat: "You are a research analyst specializing in %s. " +
			"Your current task: %s. Gather relevant information before " +
			"concluding, and cite which sources informed your answer.",
	},
	"problem_solver": {
		Name:           "problem_solver",
		Specialization: "general-purpose problem decomposition and solving",
		Tools:          []string{"calculator", "run_bash_command"},
		promptFormat: "You are a problem solver specializing in %s. " +
			"Your current task: %s. Decompose the problem into the smallest " +
			"steps that make progress verifiable.",
	},
	"quality_analyst": {
		Name:           "quality_analyst",
		Specialization: "verification, validation, and accuracy checking",
		Tools:          []string{"calculator", "read_file"},
		promptFormat: "You are a quality analyst specializing in %s. " +
			"Your current task: %s. Verify every claim against available " +
			"evidence before accepting it, and flag anything you cannot " +
			"confirm.",
	},
}

// RoleTemplateNames lists the built-in role identifiers, in a stable
// order, for callers that need to enumerate them (e.g. the CLI or a
// decision-matrix system prompt).
func RoleTemplateNames() []string {
	return []string{"data_analyst", "financial_analyst", "research_analyst", "problem_solver", "quality_analyst"}
}

// LookupRoleTemplate returns the named built-in role template.
func LookupRoleTemplate(name string) (RoleTemplate, bool) {
	t, ok := roleTemplates[name]
	return t, ok
}

// keyword → role map used by SuggestRole, grounded on the original's
// suggest_role_for_task deterministic keyword table.
var roleKeywords = []struct {
	role     string
	keywords []string
}{
	{"financial_analyst", []string{"money", "cost", "price", "budget", "profit", "discount"}},
	{"data_analyst", []string{"data", "statistics", "analysis", "trend", "pattern"}},
	{"research_analyst", []string{"research", "investigate", "study", "explore"}},
	{"quality_analyst", []string{"quality", "verify", "validate", "check", "accurate"}},
}

// SuggestRole applies the deterministic keyword map to the lower-cased
// goal text, defaulting to problem_solver when nothing matches.
func SuggestRole(goalText string) string {
	lower := strings.ToLower(goalText)
	for _, entry := range roleKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.role
			}
		}
	}
	return "problem_solver"
}
