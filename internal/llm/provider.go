package llm

import "context"

// Provider adapts the canonical completion request to one vendor's API.
// The gateway resolves the tier to a concrete model before delegating;
// transport concerns (retry, backoff, timeouts) belong to the adapter.
type Provider interface {
	// Name returns the provider identifier (e.g. "anthropic").
	Name() string
	// Complete sends a completion request against the given model.
	Complete(ctx context.Context, model string, req CompletionRequest) (*CompletionResponse, error)
}

// Embedder adapts text embedding to one vendor's API. Embedders are
// registered independently of completion providers.
type Embedder interface {
	// Name returns the provider identifier.
	Name() string
	// Embed returns one vector per input text.
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
}
