// Package ai clusters harvested records with an LLM. It is pure
// post-processing: nothing here feeds back into extraction.
package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/use-agent/jobharvest/config"
)

// Provider names accepted in AIConfig.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Classifier sends one classification prompt and returns the raw model text,
// which is expected to hold a JSON object.
type Classifier interface {
	Classify(ctx context.Context, system, prompt string) (string, error)
	Close() error
}

// NewClassifier builds the classifier for cfg.Provider.
func NewClassifier(ctx context.Context, cfg config.AIConfig) (Classifier, error) {
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(&http.Client{Timeout: cfg.Timeout}, cfg.APIKey, cfg.Model, cfg.BaseURL)
	case ProviderGemini, "":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
