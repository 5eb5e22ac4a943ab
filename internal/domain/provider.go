package domain

import "context"

// LLMProvider is a chat-completion backend. Implementations map their
// wire formats onto the neutral ChatRequest/ChatResponse types and
// translate transport failures into domain errors.
type LLMProvider interface {
	Name() string
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// HealthChecker reports whether a provider is currently reachable.
// Providers that cannot cheaply probe themselves simply don't implement
// this.
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}
