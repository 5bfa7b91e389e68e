package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"newslens/internal/domain"
	"newslens/internal/logging"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = openai.SmallEmbedding3
	// DefaultDimension is the vector size produced by the default model.
	DefaultDimension = 1536
)

// ErrNoAPIKey is returned when the OpenAI API key is not set.
var ErrNoAPIKey = errors.New("OPENAI_API_KEY not set")

// Config configures the OpenAI embeddings client.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
	BatchSize int
}

// Client is an OpenAI embeddings client implementing domain.Embedder.
type Client struct {
	api       *openai.Client
	model     openai.EmbeddingModel
	dimension int
	batchSize int
	logger    *zap.Logger
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfig, ErrNoAPIKey)
	}
	model := openai.EmbeddingModel(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	dim := cfg.Dimension
	if dim <= 0 {
		dim = DefaultDimension
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 32
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{Timeout: t}

	return &Client{
		api:       openai.NewClientWithConfig(apiCfg),
		model:     model,
		dimension: dim,
		batchSize: batch,
		logger:    logging.OrNop(logger).Named("embedder"),
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedDocuments embeds texts in batches, preserving input order.
func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vecs, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	c.logger.Debug("embedding batch", zap.Int("size", len(batch)), zap.String("model", string(c.model)))
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: batch,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings failed: %w", err)
	}
	if len(resp.Data) != len(batch) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(batch))
	}
	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != c.dimension {
			return nil, fmt.Errorf("openai embeddings: got dimension %d, expected %d", len(d.Embedding), c.dimension)
		}
		vecs[i] = d.Embedding
	}
	return vecs, nil
}
