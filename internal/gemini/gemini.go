package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	// ModelName is the default Gemini generation model.
	ModelName = "gemini-2.0-flash"
	// EmbeddingModelName is the default Gemini embedding model.
	EmbeddingModelName = "text-embedding-004"
	// maxBatch is the largest batch BatchEmbedContents accepts.
	maxBatch = 100
)

// Client wraps the Gemini client for JSON generation and embeddings.
type Client struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	embedModel *genai.EmbeddingModel
}

// Options configure NewClient. Empty model names fall back to the defaults.
type Options struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	Temperature    float32
	Endpoint       string // overrides the API endpoint, used by tests
}

// NewClient creates a new Gemini client
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable not set")
	}
	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.Endpoint))
	}

	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	modelName := opts.Model
	if modelName == "" {
		modelName = ModelName
	}
	embedName := opts.EmbeddingModel
	if embedName == "" {
		embedName = EmbeddingModelName
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(opts.Temperature)

	return &Client{
		client:     client,
		model:      model,
		embedModel: client.EmbeddingModel(embedName),
	}, nil
}

// Close closes the Gemini client
func (c *Client) Close() error {
	return c.client.Close()
}

// Generate sends prompt and returns the concatenated text of the first
// candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return candidateText(resp)
}

func candidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no content generated")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// EmbedDocuments embeds texts in batches, preserving order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return embedInBatches(ctx, texts, maxBatch, func(ctx context.Context, chunk []string) ([][]float32, error) {
		batch := c.embedModel.NewBatch()
		for _, t := range chunk {
			batch.AddContent(genai.Text(t))
		}
		res, err := c.embedModel.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, err
		}
		vectors := make([][]float32, len(res.Embeddings))
		for i, e := range res.Embeddings {
			if e != nil {
				vectors[i] = e.Values
			}
		}
		return vectors, nil
	})
}

// embedInBatches calls embed on consecutive slices of at most size texts and
// checks that each call returns one vector per text.
func embedInBatches(ctx context.Context, texts []string, size int, embed func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vectors, err := embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch: %w", err)
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("embedding batch returned %d vectors for %d texts", len(vectors), end-start)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

// EmbedQuery embeds a single query text.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	res, err := c.embedModel.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return embeddingValues(res)
}

func embeddingValues(res *genai.EmbedContentResponse) ([]float32, error) {
	if res == nil || res.Embedding == nil {
		return nil, errors.New("no embedding returned")
	}
	return res.Embedding.Values, nil
}
