package llm

import (
	"context"
)

// LLMClient is the narrow generation capability the arbitration path needs.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
