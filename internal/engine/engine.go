// Package engine defines the inference engine consumed by the worker. The
// protocol core treats the engine as a black box: load a model, generate text
// for a prompt pair with an optional per-token callback, reset session state
// between requests.
package engine

import (
	"context"
	"math"
)

// UnlimitedTokens is the sentinel budget meaning "generate until the model
// stops naturally".
const UnlimitedTokens = math.MaxInt32

// TokenSink receives each decoded text fragment as it is produced. A nil
// sink disables streaming.
type TokenSink func(piece string)

// Request carries one generation request into the engine.
type Request struct {
	// SystemPrompt may be empty, in which case the system framing is omitted
	// from the constructed prompt.
	SystemPrompt string

	// UserPrompt is the user's message.
	UserPrompt string

	// MaxTokens is the token budget. Use UnlimitedTokens for no budget.
	MaxTokens int
}

// Result is the outcome of a generation. On mid-generation failure the
// partial text produced so far is still returned alongside the error.
type Result struct {
	// Text is the full (or partial, on error) generated text.
	Text string

	// Tokens is the number of fragments emitted.
	Tokens int
}

// Engine generates text. Implementations are not safe for concurrent
// Generate calls; the worker issues at most one at a time.
type Engine interface {
	// Generate produces text for the request, invoking sink once per decoded
	// fragment when sink is non-nil.
	Generate(ctx context.Context, req *Request, sink TokenSink) (*Result, error)

	// ResetSession clears per-conversation state. The worker calls it after
	// every request/response cycle regardless of success.
	ResetSession() error

	// Close releases the engine's resources.
	Close() error
}

// NormalizeMaxTokens maps the protocol's "zero means unlimited" convention
// onto the engine's sentinel. Negative budgets are rejected upstream and
// never reach this layer.
func NormalizeMaxTokens(n int) int {
	if n == 0 {
		return UnlimitedTokens
	}
	return n
}
