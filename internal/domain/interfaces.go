package domain

import "context"

// Document represents the extracted text of a single web article.
type Document struct {
	ID      string
	Source  string
	Title   string
	Content string
}

// Chunk is a bounded-length part of a document used for indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Source     string
	Text       string
	Index      int
}

// Record is a chunk together with its embedding, as stored in the index.
type Record struct {
	ID     string
	Chunk  Chunk
	Vector []float32
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// Answer is the synthesized reply to a question.
type Answer struct {
	Text    string
	Sources []string
}

// Metric is the distance function an index ranks by.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricDot       Metric = "dot"
	MetricEuclidean Metric = "euclidean"
)

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	switch m {
	case MetricCosine, MetricDot, MetricEuclidean:
		return true
	}
	return false
}

// IndexSpec describes the index to (re)create.
type IndexSpec struct {
	Name      string
	Dimension int
	Metric    Metric
	Cloud     string
	Region    string
}

// Loader fetches web resources and extracts their text.
// Failed URLs are reported individually and excluded from the documents.
type Loader interface {
	Load(ctx context.Context, urls []string) ([]Document, []error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into a fixed-dimension vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Index is a handle to a live remote index.
type Index interface {
	Name() string
	Replaced() bool
	Upsert(ctx context.Context, records []Record) error
	Query(ctx context.Context, vector []float32, k int) ([]SearchResult, error)
}

// IndexManager owns the lifecycle of the session's index.
type IndexManager interface {
	Rebuild(ctx context.Context, spec IndexSpec) (Index, error)
}

// Synthesizer answers a question from retrieved chunks.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, results []SearchResult) (Answer, error)
}
