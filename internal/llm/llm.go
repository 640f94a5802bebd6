// Package llm wires the configured model provider to the generation and
// embedding interfaces used by the pipeline.
package llm

import (
	"context"
	"fmt"

	"quizforge/internal/config"
	"quizforge/internal/gemini"
	"quizforge/internal/index"
	"quizforge/internal/logger"
)

// Generator produces a JSON text response for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Provider bundles a generator and an embedder from one backend.
type Provider struct {
	Name      string
	Generator Generator
	Embedder  index.Embedder
	close     func() error
}

func (p *Provider) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// New builds the provider selected by cfg.Provider.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Provider, error) {
	log = log.With("service", "llm", "provider", cfg.Provider)

	switch cfg.Provider {
	case config.ProviderOllama:
		gen, err := NewOllamaGenerator(cfg.Ollama.URL, cfg.ModelName, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		emb, err := NewOllamaEmbedder(cfg.Ollama.URL, cfg.EmbeddingModelName)
		if err != nil {
			return nil, err
		}
		log.Info("provider ready", "model", cfg.ModelName, "embedding_model", cfg.EmbeddingModelName, "url", cfg.Ollama.URL)
		return &Provider{Name: cfg.Provider, Generator: gen, Embedder: emb}, nil

	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, gemini.Options{
			APIKey:         cfg.Gemini.APIKey,
			Model:          cfg.ModelName,
			EmbeddingModel: cfg.EmbeddingModelName,
			Temperature:    float32(cfg.Temperature),
		})
		if err != nil {
			return nil, err
		}
		log.Info("provider ready", "model", cfg.ModelName, "embedding_model", cfg.EmbeddingModelName)
		return &Provider{Name: cfg.Provider, Generator: client, Embedder: client, close: client.Close}, nil

	case config.ProviderOpenAI:
		client := NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.ModelName, cfg.EmbeddingModelName, float32(cfg.Temperature))
		log.Info("provider ready", "model", cfg.ModelName, "embedding_model", cfg.EmbeddingModelName)
		return &Provider{Name: cfg.Provider, Generator: client, Embedder: client}, nil
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}
