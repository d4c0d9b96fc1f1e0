// Package llm implements the model router: a capability-indexed fallback
// chain across provider adapters with structured-output validation, cost
// accounting, and per-call audit logging.
package llm

import (
	"context"
	"time"
)

// Request is the uniform shape every provider adapter accepts.
type Request struct {
	Prompt       string
	SystemPrompt string
	ModelID      string // optional; adapter falls back to its default
	Temperature  float64
	MaxTokens    int
	Action       string
	Strategy     string
}

// Response is the uniform shape every provider adapter returns.
type Response struct {
	Content   string
	Provider  string
	ModelID   string
	TokensIn  *int
	TokensOut *int
	LatencyMS int64
	CostUSD   *float64
	Action    string
	Strategy  string
	Timestamp time.Time
}

// Provider is the capability set every adapter satisfies: plain and
// structured completion, plus runtime enable/disable for rate-limit
// back-off. Implementations are looked up by name through a small
// registry, not via a type switch, per the "dynamic dispatch over
// providers" design guidance.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
	CompleteStructured(ctx context.Context, req Request, schemaName string, schema map[string]interface{}) (map[string]interface{}, Response, error)
	Enabled() bool
	Disable(reason string)
	Enable()
}
