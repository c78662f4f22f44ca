// Package llmprovider builds the language model used by the orchestration
// layer from provider configuration. openai, anthropic and ollama go through
// iris; gemini goes through the Google genai SDK.
package llmprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/petal-labs/iris/providers"
	// Auto-register common providers.
	_ "github.com/petal-labs/iris/providers/anthropic"
	_ "github.com/petal-labs/iris/providers/ollama"
	_ "github.com/petal-labs/iris/providers/openai"
	"google.golang.org/genai"

	"github.com/petal-labs/petaltools/orchestrate"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

var defaultModels = map[string]string{
	ProviderOpenAI:    "gpt-4o-2024-05-13",
	ProviderAnthropic: "claude-3-5-haiku-latest",
	ProviderOllama:    "llama3.2",
	ProviderGemini:    "gemini-2.0-flash",
}

// Config selects and tunes one provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	Temperature *float64
	MaxTokens   *int
}

// DefaultModel returns the model used when Config.Model is empty.
func DefaultModel(provider string) string {
	return defaultModels[normalizeProvider(provider)]
}

// RequiresKey reports whether the provider needs an API key.
func RequiresKey(provider string) bool {
	return normalizeProvider(provider) != ProviderOllama
}

// New returns the model for cfg. A provider that needs a key but has none
// yields a nil model and no error so callers can run without orchestration.
func New(ctx context.Context, cfg Config) (orchestrate.Model, error) {
	name := normalizeProvider(cfg.Provider)
	if RequiresKey(name) && strings.TrimSpace(cfg.APIKey) == "" {
		return nil, nil
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModels[name]
	}

	if name == ProviderGemini {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}
		return &genaiModel{
			generate:    client.Models.GenerateContent,
			model:       model,
			temperature: cfg.Temperature,
			maxTokens:   cfg.MaxTokens,
		}, nil
	}

	provider, err := providers.Create(name, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("creating provider %q: %w", name, err)
	}
	return &irisModel{
		chat:        provider,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func normalizeProvider(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProviderOpenAI
	}
	return name
}
