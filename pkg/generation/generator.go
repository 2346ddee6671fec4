// Package generation is the boundary to the model-generation service.
// Failures here are ordinary action/evaluator failures; they are never
// retried by the persistence resilience layer, which wraps storage only.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
)

// Request carries a rendered context to the model-generation service.
type Request struct {
	Model        string
	SystemPrompt string
	Prompt       string
	Temperature  float64
	MaxTokens    int
}

// Generator produces free-text content from a rendered context.
type Generator interface {
	Complete(ctx context.Context, req Request) (string, error)
	Provider() string
}

// NewGenerator builds a provider-backed generator.
func NewGenerator(provider, apiKey string) (Generator, error) {
	switch provider {
	case "openai":
		return NewOpenAIGenerator(apiKey), nil
	case "anthropic":
		return NewAnthropicGenerator(apiKey), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", provider)
	}
}

// CompleteJSON asks the generator for structured output, validates it
// against the given JSON schema, and unmarshals it into out.
func CompleteJSON(ctx context.Context, g Generator, req Request, schema string, out interface{}) error {
	raw, err := g.Complete(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to generate structured content: %w", err)
	}

	cleaned := stripCodeFence(raw)
	if err := ValidateAgainstSchema(schema, cleaned); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("failed to decode structured content: %w", err)
	}
	return nil
}
