package llmprovider

import (
	"context"
	"testing"
)

func TestNewWithoutKeyReturnsNilModel(t *testing.T) {
	for _, provider := range []string{"", "openai", "anthropic", "gemini"} {
		model, err := New(context.Background(), Config{Provider: provider})
		if err != nil {
			t.Fatalf("New(%q) error = %v", provider, err)
		}
		if model != nil {
			t.Fatalf("New(%q) = %T, want nil without an API key", provider, model)
		}
	}
}

func TestNewIrisProvider(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantModel string
	}{
		{name: "default provider", cfg: Config{APIKey: "test-key"}, wantModel: "gpt-4o-2024-05-13"},
		{name: "case-insensitive", cfg: Config{Provider: "Anthropic", APIKey: "test-key"}, wantModel: "claude-3-5-haiku-latest"},
		{name: "explicit model", cfg: Config{Provider: "openai", APIKey: "test-key", Model: "gpt-test"}, wantModel: "gpt-test"},
		{name: "ollama needs no key", cfg: Config{Provider: "ollama"}, wantModel: "llama3.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := New(context.Background(), tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			im, ok := model.(*irisModel)
			if !ok {
				t.Fatalf("New() = %T, want *irisModel", model)
			}
			if im.model != tt.wantModel {
				t.Fatalf("model = %q, want %q", im.model, tt.wantModel)
			}
		})
	}
}

func TestNewGeminiProvider(t *testing.T) {
	model, err := New(context.Background(), Config{Provider: "gemini", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	gm, ok := model.(*genaiModel)
	if !ok {
		t.Fatalf("New() = %T, want *genaiModel", model)
	}
	if gm.model != DefaultModel("gemini") {
		t.Fatalf("model = %q, want %q", gm.model, DefaultModel("gemini"))
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), Config{Provider: "definitely-not-a-provider", APIKey: "k"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
