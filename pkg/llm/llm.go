package llm

import (
	"context"
	"errors"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoChoices indicates the completion API returned no choices.
	ErrNoChoices = errors.New("completion returned no choices")
)

// Message roles. These map onto the chat message types of the backing API.
const (
	RoleSystem = "system"
	RoleHuman  = "human"
	RoleAI     = "ai"
)

// Message is a single chat message.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest describes one chat-completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Completion is the result of a chat-completion call.
type Completion struct {
	Content string
	Model   string
	Usage   Usage
}

// Completer generates chat completions.
//
// The learning subsystem consumes this interface; Client is the production
// implementation.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}
