package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"newslens/internal/domain"
)

var (
	// ErrNotFound is returned by providers for an unknown index.
	ErrNotFound = errors.New("index not found")
	// ErrAlreadyExists is returned by providers when creating an index that exists.
	ErrAlreadyExists = errors.New("index already exists")
)

// IndexStatus is what a provider reports about an index.
type IndexStatus struct {
	Ready     bool
	Dimension int
	Metric    domain.Metric
}

// Provider is the contract of a remote vector index service.
type Provider interface {
	ListIndexes(ctx context.Context) ([]string, error)
	DeleteIndex(ctx context.Context, name string) error
	CreateIndex(ctx context.Context, spec domain.IndexSpec) error
	DescribeIndex(ctx context.Context, name string) (IndexStatus, error)
	Upsert(ctx context.Context, name string, records []domain.Record) error
	SimilaritySearch(ctx context.Context, name string, vector []float32, k int) ([]domain.SearchResult, error)
}

// RecordID derives a stable point ID for a chunk from its source and position,
// so re-ingesting an article overwrites its previous points.
func RecordID(c domain.Chunk) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", c.Source, c.Index))).String()
}

// ValidateSpec checks an index spec before any remote call is made.
func ValidateSpec(spec domain.IndexSpec) error {
	if spec.Name == "" {
		return errors.New("index name is required")
	}
	if spec.Dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", spec.Dimension)
	}
	if !spec.Metric.Valid() {
		return fmt.Errorf("unknown metric %q", spec.Metric)
	}
	return nil
}
