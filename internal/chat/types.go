// Package chat abstracts the external reasoning call: given a system
// instruction and conversation turns, a provider returns the reply text.
package chat

import "context"

// Message is one conversation turn passed to the provider.
type Message struct {
	Role    string `json:"role"` // user, model
	Content string `json:"content"`
}

// Request is the provider-agnostic generation request.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Temperature *float32
}

// Result carries the generated reply.
type Result struct {
	Message Message
	Model   string
}

// Provider generates a reply for a conversation. Implementations must
// respect ctx cancellation; the dispatch queue bounds every call with a
// per-job timeout.
type Provider interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
