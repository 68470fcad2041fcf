// Package llm defines the chat completion interface used for transcript
// polishing and fusion.
//
// The pipeline only ever needs a single-turn system+user exchange with a
// text answer, so the interface is deliberately narrow. Backends live in
// subpackages (openai for the real API, mock for tests).
package llm

import "context"

// Request describes a single-turn chat completion.
type Request struct {
	// System is the system prompt establishing the task.
	System string
	// User is the user message content.
	User string
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens caps the completion length. Zero means the backend default.
	MaxTokens int
}

// Completer produces a chat completion for a Request.
type Completer interface {
	// Complete returns the assistant's text answer. An empty completion is
	// an error, never an empty string with nil error.
	Complete(ctx context.Context, req Request) (string, error)
}
