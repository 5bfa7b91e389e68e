package hashing

import (
	"context"
	"hash/fnv"
	"math"

	"newslens/internal/textproc"
)

// Embedder implements feature hashing over word tokens. Every token is
// hashed into one of dimension buckets with a hash-derived sign, weighted
// by sublinear term frequency and L2-normalized. It needs no corpus and no
// network, so its vectors can go straight into a fixed-dimension index.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder producing vectors of the given size.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = 512
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the hashed embedding for the given text. Text without
// word tokens, such as a "* * *" section break, maps to the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := textproc.Tokens(text)
	if len(tokens) == 0 {
		return make([]float32, e.dimension), nil
	}
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	vec := make([]float64, e.dimension)
	for tok, count := range tf {
		idx, sign := e.bucket(tok)
		vec[idx] += sign * (1 + math.Log(float64(count)))
	}
	// L2 normalize
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, e.dimension)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// EmbedDocuments embeds each text in order.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Embedder) bucket(token string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(e.dimension)), sign
}
