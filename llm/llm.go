// Package llm defines the narrow client contract the rest of the
// repository uses to talk to a language model. Core logic depends only
// on Client, so tests run against in-memory stubs.
package llm

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model           string
	ReasoningEffort string
	Messages        []Message
}

// Response carries the model output. Truncated is set when the provider
// ran out of output tokens; Text may still hold a usable partial answer.
type Response struct {
	Text      string
	Truncated bool
}

type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
