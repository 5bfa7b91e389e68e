// Package memory is an in-process vector index provider using brute-force
// similarity. It is used for offline runs and tests.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"newslens/internal/domain"
	"newslens/internal/vectorstore"
)

// Provider keeps named indexes in memory.
type Provider struct {
	mu             sync.RWMutex
	provisionDelay time.Duration
	now            func() time.Time
	indexes        map[string]*index
}

type index struct {
	spec      domain.IndexSpec
	createdAt time.Time
	records   []domain.Record
	byID      map[string]int
}

// Option configures a Provider.
type Option func(*Provider)

// WithProvisionDelay makes new indexes report ready only after d has passed.
func WithProvisionDelay(d time.Duration) Option {
	return func(p *Provider) { p.provisionDelay = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// NewProvider creates an empty provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		now:     time.Now,
		indexes: make(map[string]*index),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ListIndexes returns index names in sorted order.
func (p *Provider) ListIndexes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.indexes))
	for name := range p.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (p *Provider) DeleteIndex(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.indexes[name]; !ok {
		return fmt.Errorf("%w: %s", vectorstore.ErrNotFound, name)
	}
	delete(p.indexes, name)
	return nil
}

// CreateIndex adds an empty index. Its provisioning delay starts now.
func (p *Provider) CreateIndex(ctx context.Context, spec domain.IndexSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := vectorstore.ValidateSpec(spec); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.indexes[spec.Name]; ok {
		return fmt.Errorf("%w: %s", vectorstore.ErrAlreadyExists, spec.Name)
	}
	p.indexes[spec.Name] = &index{
		spec:      spec,
		createdAt: p.now(),
		byID:      make(map[string]int),
	}
	return nil
}

// DescribeIndex reports the index ready once the provisioning delay has passed.
func (p *Provider) DescribeIndex(ctx context.Context, name string) (vectorstore.IndexStatus, error) {
	if err := ctx.Err(); err != nil {
		return vectorstore.IndexStatus{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	idx, ok := p.indexes[name]
	if !ok {
		return vectorstore.IndexStatus{}, fmt.Errorf("%w: %s", vectorstore.ErrNotFound, name)
	}
	return vectorstore.IndexStatus{
		Ready:     p.ready(idx),
		Dimension: idx.spec.Dimension,
		Metric:    idx.spec.Metric,
	}, nil
}

func (p *Provider) ready(idx *index) bool {
	return !p.now().Before(idx.createdAt.Add(p.provisionDelay))
}

// Upsert inserts records, replacing any with the same ID.
func (p *Provider) Upsert(ctx context.Context, name string, records []domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.indexes[name]
	if !ok {
		return fmt.Errorf("%w: %s", vectorstore.ErrNotFound, name)
	}
	if !p.ready(idx) {
		return fmt.Errorf("index %s is still provisioning", name)
	}
	for _, r := range records {
		if len(r.Vector) != idx.spec.Dimension {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(r.Vector), idx.spec.Dimension)
		}
	}
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		if i, ok := idx.byID[r.ID]; ok {
			idx.records[i] = r
			continue
		}
		idx.byID[r.ID] = len(idx.records)
		idx.records = append(idx.records, r)
	}
	return nil
}

// SimilaritySearch ranks every record against vector. Scores are
// similarities for cosine and dot, and distances for euclidean.
func (p *Provider) SimilaritySearch(ctx context.Context, name string, vector []float32, k int) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	idx, ok := p.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", vectorstore.ErrNotFound, name)
	}
	if len(vector) != idx.spec.Dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(vector), idx.spec.Dimension)
	}

	results := make([]domain.SearchResult, len(idx.records))
	for i, r := range idx.records {
		results[i] = domain.SearchResult{Chunk: r.Chunk, Score: score(idx.spec.Metric, r.Vector, vector)}
	}
	asc := idx.spec.Metric == domain.MetricEuclidean
	sort.SliceStable(results, func(i, j int) bool {
		if asc {
			return results[i].Score < results[j].Score
		}
		return results[i].Score > results[j].Score
	})
	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func score(metric domain.Metric, a, b []float32) float32 {
	switch metric {
	case domain.MetricDot:
		return dot(a, b)
	case domain.MetricEuclidean:
		var sum float64
		for i := range a {
			d := float64(a[i] - b[i])
			sum += d * d
		}
		return float32(math.Sqrt(sum))
	default:
		na, nb := math.Sqrt(float64(dot(a, a))), math.Sqrt(float64(dot(b, b)))
		if na == 0 || nb == 0 {
			return 0
		}
		return float32(float64(dot(a, b)) / (na * nb))
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
