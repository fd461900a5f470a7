package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ConfigurationError reports a gateway wiring mistake: a missing provider
// adapter or an incomplete tier-to-model mapping. Never retried.
type ConfigurationError struct {
	Provider string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("llm configuration error for provider %q: %s", e.Provider, e.Reason)
}

// ValidationError reports a malformed completion request. It is the
// caller's bug: surfaced immediately, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid completion request: " + e.Reason
}

// ModelSet maps the three tiers to concrete model identifiers for one
// provider.
type ModelSet struct {
	Fast     string
	Standard string
	Advanced string
}

// complete reports whether every tier has a model.
func (m ModelSet) complete() bool {
	return m.Fast != "" && m.Standard != "" && m.Advanced != ""
}

func (m ModelSet) resolve(t Tier) string {
	switch t {
	case TierFast:
		return m.Fast
	case TierAdvanced:
		return m.Advanced
	default:
		return m.Standard
	}
}

// defaultModelSets holds compiled-in tier mappings for known providers.
// A provider absent from this table must be registered with a fully
// explicit ModelSet.
var defaultModelSets = map[string]ModelSet{
	"anthropic": {
		Fast:     "claude-haiku-4-5-20251001",
		Standard: "claude-sonnet-4-5-20250929",
		Advanced: "claude-opus-4-1-20250805",
	},
	"openai": {
		Fast:     "gpt-4o-mini",
		Standard: "gpt-4o",
		Advanced: "gpt-4",
	},
	"google": {
		Fast:     "gemini-3-flash-preview",
		Standard: "gemini-3-pro-preview",
		Advanced: "gemini-3-pro-preview",
	},
}

// Gateway is the provider-agnostic completion front door. It validates
// requests, resolves the tier to a concrete model, and delegates transport
// to the provider adapter. It holds no retry logic of its own.
type Gateway struct {
	defaultProvider string
	providers       map[string]Provider
	models          map[string]ModelSet
	embedders       map[string]Embedder
	embedModels     map[string]string
}

// NewGateway creates a gateway whose Complete calls target the named
// default provider unless overridden per call.
func NewGateway(defaultProvider string) *Gateway {
	return &Gateway{
		defaultProvider: defaultProvider,
		providers:       make(map[string]Provider),
		models:          make(map[string]ModelSet),
		embedders:       make(map[string]Embedder),
		embedModels:     make(map[string]string),
	}
}

// RegisterProvider adds a completion adapter. Empty tiers in models are
// filled from the compiled-in defaults; a provider with no defaults must
// supply all three tiers explicitly or registration fails.
func (g *Gateway) RegisterProvider(p Provider, models ModelSet) error {
	name := p.Name()
	defaults, hasDefaults := defaultModelSets[name]
	if models.Fast == "" {
		models.Fast = defaults.Fast
	}
	if models.Standard == "" {
		models.Standard = defaults.Standard
	}
	if models.Advanced == "" {
		models.Advanced = defaults.Advanced
	}
	if !models.complete() {
		if !hasDefaults {
			return &ConfigurationError{Provider: name, Reason: "no default models; fast, standard, and advanced must all be set"}
		}
		return &ConfigurationError{Provider: name, Reason: "incomplete tier-to-model mapping"}
	}
	g.providers[name] = p
	g.models[name] = models
	return nil
}

// RegisterEmbedder adds an embedding adapter, independent of completion
// registration.
func (g *Gateway) RegisterEmbedder(e Embedder, model string) error {
	if model == "" {
		return &ConfigurationError{Provider: e.Name(), Reason: "embedding model must be set"}
	}
	g.embedders[e.Name()] = e
	g.embedModels[e.Name()] = model
	return nil
}

// Complete runs a completion against the default provider.
func (g *Gateway) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return g.CompleteWith(ctx, g.defaultProvider, req)
}

// CompleteWith runs a completion against a specific provider.
func (g *Gateway) CompleteWith(ctx context.Context, provider string, req CompletionRequest) (*CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, &ValidationError{Reason: "at least one message is required"}
	}
	if req.MaxTokens < 0 {
		return nil, &ValidationError{Reason: "max tokens must be positive"}
	}

	p, ok := g.providers[provider]
	if !ok {
		return nil, &ConfigurationError{Provider: provider, Reason: "provider not registered"}
	}
	model := g.models[provider].resolve(req.Tier)

	start := time.Now()
	resp, err := p.Complete(ctx, model, req)
	if err != nil {
		return nil, err
	}
	resp.LatencyMS = time.Since(start).Milliseconds()
	if resp.Model == "" {
		resp.Model = model
	}
	if req.JSONMode {
		resp.Content = StripCodeFences(resp.Content)
	}
	return resp, nil
}

// Embed runs an embedding call against the named provider's embedder.
func (g *Gateway) Embed(ctx context.Context, provider string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, &ValidationError{Reason: "at least one text is required"}
	}
	e, ok := g.embedders[provider]
	if !ok {
		return nil, &ConfigurationError{Provider: provider, Reason: "embedder not registered"}
	}
	return e.Embed(ctx, g.embedModels[provider], texts)
}

// fenceRe matches a leading markdown code fence with an optional language tag.
var fenceRe = regexp.MustCompile("^```[a-zA-Z0-9]*\\s*\n?")

// StripCodeFences removes markdown fence wrapping from model output.
// Providers asked for JSON-only output are not fully reliable about
// omitting the fences.
func StripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = fenceRe.ReplaceAllString(trimmed, "")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
