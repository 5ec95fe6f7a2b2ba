package llm

import "context"

// Provider makes one synchronous generation call for a fully rendered prompt.
// Implementations do not retry.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ModelName() string
}
