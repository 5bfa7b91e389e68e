package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"newslens/internal/domain"
	"newslens/internal/logging"
)

// State is the lifecycle state of an index handle.
type State int

const (
	StateAbsent State = iota
	StateProvisioning
	StateReady
)

func (s State) String() string {
	switch s {
	case StateProvisioning:
		return "provisioning"
	case StateReady:
		return "ready"
	default:
		return "absent"
	}
}

// Options tunes the manager.
type Options struct {
	ReadyTimeout    time.Duration
	PollInterval    time.Duration
	UpsertBatchSize int
}

// Manager owns the lifecycle of the single index tracked per session:
// delete-then-create on rebuild, readiness wait, and the handle used for
// writes and reads.
type Manager struct {
	provider Provider
	opts     Options
	logger   *zap.Logger

	mu      sync.Mutex
	current *Index
}

// NewManager creates a manager over a provider.
func NewManager(provider Provider, opts Options, logger *zap.Logger) *Manager {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.UpsertBatchSize <= 0 {
		opts.UpsertBatchSize = 100
	}
	return &Manager{
		provider: provider,
		opts:     opts,
		logger:   logging.OrNop(logger).Named("index"),
	}
}

// Current returns the live index handle, or nil.
func (m *Manager) Current() *Index {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Rebuild deletes any index with the spec's name, creates a fresh one and
// waits until the provider reports it ready. The previous handle, if any,
// becomes absent. Failures are reported as domain.ErrIndexProvisioning.
func (m *Manager) Rebuild(ctx context.Context, spec domain.IndexSpec) (domain.Index, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexProvisioning, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.setState(StateAbsent)
		m.current = nil
	}

	names, err := m.provider.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list indexes: %w", domain.ErrIndexProvisioning, err)
	}
	replaced := slices.Contains(names, spec.Name)
	if replaced {
		if err := m.provider.DeleteIndex(ctx, spec.Name); err != nil {
			return nil, fmt.Errorf("%w: delete %q: %w", domain.ErrIndexProvisioning, spec.Name, err)
		}
		m.logger.Info("deleted existing index", zap.String("index", spec.Name))
	}

	idx := &Index{
		manager:  m,
		spec:     spec,
		replaced: replaced,
		state:    StateProvisioning,
	}
	if err := m.provider.CreateIndex(ctx, spec); err != nil {
		return nil, fmt.Errorf("%w: create %q: %w", domain.ErrIndexProvisioning, spec.Name, err)
	}
	m.logger.Info("created index, waiting for readiness",
		zap.String("index", spec.Name),
		zap.Int("dimension", spec.Dimension),
		zap.String("metric", string(spec.Metric)),
	)

	start := time.Now()
	if err := m.waitReady(ctx, spec.Name); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexProvisioning, err)
	}
	idx.setState(StateReady)
	m.current = idx
	m.logger.Info("index ready", zap.String("index", spec.Name), zap.Duration("waited", time.Since(start)))
	return idx, nil
}

// waitReady polls DescribeIndex at a fixed interval until the index is
// ready, the ready timeout elapses, or ctx is canceled.
func (m *Manager) waitReady(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		status, err := m.provider.DescribeIndex(ctx, name)
		switch {
		case err != nil:
			lastErr = err
			m.logger.Debug("describe index failed", zap.String("index", name), zap.Error(err))
		case status.Ready:
			return nil
		}
		select {
		case <-ctx.Done():
			err := fmt.Errorf("index %q not ready after %s: %w", name, m.opts.ReadyTimeout, ctx.Err())
			if lastErr != nil {
				err = errors.Join(err, lastErr)
			}
			return err
		case <-ticker.C:
		}
	}
}

func (m *Manager) isCurrent(idx *Index) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current == idx
}

// Index is a handle to one built index. It accepts queries only after a
// successful upsert and only while it is the manager's current index.
type Index struct {
	manager  *Manager
	spec     domain.IndexSpec
	replaced bool

	mu        sync.RWMutex
	state     State
	populated bool
}

// Name returns the index name.
func (i *Index) Name() string { return i.spec.Name }

// Spec returns the spec the index was built with.
func (i *Index) Spec() domain.IndexSpec { return i.spec }

// Replaced reports whether building this index deleted an older one.
func (i *Index) Replaced() bool { return i.replaced }

// State returns the handle's lifecycle state.
func (i *Index) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

func (i *Index) setState(s State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = s
}

func (i *Index) live() bool {
	return i.State() == StateReady && i.manager.isCurrent(i)
}

// Upsert writes records in batches. Rejections are reported as
// domain.ErrIndexWrite.
func (i *Index) Upsert(ctx context.Context, records []domain.Record) error {
	if !i.live() {
		return fmt.Errorf("%w: %w", domain.ErrIndexWrite, domain.ErrIndexNotReady)
	}
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Vector) != i.spec.Dimension {
			return fmt.Errorf("%w: record %s has dimension %d, index %q expects %d",
				domain.ErrIndexWrite, r.ID, len(r.Vector), i.spec.Name, i.spec.Dimension)
		}
	}

	size := i.manager.opts.UpsertBatchSize
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		if err := i.manager.provider.Upsert(ctx, i.spec.Name, records[start:end]); err != nil {
			return fmt.Errorf("%w: upsert into %q: %w", domain.ErrIndexWrite, i.spec.Name, err)
		}
	}
	i.mu.Lock()
	i.populated = true
	i.mu.Unlock()
	i.manager.logger.Info("records upserted", zap.String("index", i.spec.Name), zap.Int("count", len(records)))
	return nil
}

// Query returns the k records nearest to vector. k <= 0 means 4.
func (i *Index) Query(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	i.mu.RLock()
	populated := i.populated
	i.mu.RUnlock()
	if !populated || !i.live() {
		return nil, domain.ErrIndexNotReady
	}
	if k <= 0 {
		k = 4
	}
	res, err := i.manager.provider.SimilaritySearch(ctx, i.spec.Name, vector, k)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", i.spec.Name, err)
	}
	return res, nil
}
