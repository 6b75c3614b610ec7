// Package llmprovider defines the model-provider capability the
// reasoning loop engine depends on. spec.md §1 treats the model
// provider as an external, async request/response capability; this
// package defines the boundary interface, a deterministic test double,
// and the OpenAI and Ollama HTTP backends selected by NewProvider.
package llmprovider

import "context"

// Provider is the capability the reasoning loop invokes once per step to
// turn a transcript into a raw model response string. Implementations
// own retries, credentials, and rate limiting; the reasoning engine only
// ever sees Complete's return value or its error.
type Provider interface {
	Complete(ctx context.Context, messages []Message, options map[string]interface{}) (string, error)
}

// Message is one transcript entry, matching the system/user/assistant
// roles the reasoning loop builds per spec.md §4.5 step 1.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
