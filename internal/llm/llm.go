// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm adapts hosted generation and embedding APIs to the two
// operations the pipeline needs: Generate and Embed. Clients are created
// once by the caller and are safe for concurrent use.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/Stellven/KBSkills/pkg/types"
)

// Provider names.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Embedder turns texts into fixed-length vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// NewGenerator builds the generator selected by cfg.Provider.
func NewGenerator(ctx context.Context, cfg types.LLMConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for %s", providerOrDefault(cfg.Provider))
	}
	switch providerOrDefault(cfg.Provider) {
	case ProviderGemini:
		return NewGeminiGenerator(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAIGenerator(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicGenerator(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q: use gemini, openai, or anthropic", cfg.Provider)
	}
}

// NewEmbedder builds the embedder selected by cfg.Provider.
func NewEmbedder(ctx context.Context, cfg types.EmbeddingConfig) (Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for %s embeddings", providerOrDefault(cfg.Provider))
	}
	switch providerOrDefault(cfg.Provider) {
	case ProviderGemini:
		return NewGeminiEmbedder(ctx, cfg)
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q: use gemini or openai", cfg.Provider)
	}
}

func providerOrDefault(p string) string {
	if p = strings.ToLower(strings.TrimSpace(p)); p == "" {
		return ProviderGemini
	}
	return p
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
