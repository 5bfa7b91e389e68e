// Package service runs the build and ask actions of a session.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"newslens/internal/domain"
	"newslens/internal/logging"
	"newslens/internal/vectorstore"
)

// MaxURLs is the number of articles a single build accepts.
const MaxURLs = 3

// Progress messages, emitted in this order by Build.
const (
	MsgIndexDeleted   = "Deleted existing index..."
	MsgIndexCreated   = "Created new index..."
	MsgLoadingStarted = "Data loading...started..."
	MsgSplitStarted   = "Text splitter...started..."
	MsgEmbedStarted   = "Embedding vectors started building..."
	MsgUploaded       = "Vectors uploaded to index..."
)

// NotReadyMessage is shown when a question is asked before a build.
const NotReadyMessage = "Please process URLs first by clicking the 'Process URLs' button."

var (
	ErrNoURLs        = errors.New("no URLs provided")
	ErrTooManyURLs   = fmt.Errorf("more than %d URLs provided", MaxURLs)
	ErrEmptyQuestion = errors.New("question is empty")
	ErrNoDocuments   = errors.New("no documents could be loaded")
)

// Options holds the per-controller settings.
type Options struct {
	Index domain.IndexSpec
	TopK  int
}

// Controller wires the pipeline components. It holds no session state.
type Controller struct {
	loader   domain.Loader
	chunker  domain.Chunker
	embedder domain.Embedder
	indexes  domain.IndexManager
	synth    domain.Synthesizer
	opts     Options
	logger   *zap.Logger
}

// NewController creates a controller. A non-positive TopK means 4.
func NewController(
	loader domain.Loader,
	chunker domain.Chunker,
	embedder domain.Embedder,
	indexes domain.IndexManager,
	synth domain.Synthesizer,
	opts Options,
	logger *zap.Logger,
) *Controller {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	return &Controller{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		indexes:  indexes,
		synth:    synth,
		opts:     opts,
		logger:   logging.OrNop(logger).Named("controller"),
	}
}

// Build rebuilds the index from the given URLs. Blank entries are ignored.
// URLs that fail to load are returned as warnings; the build continues with
// the rest. On any error the session is left unbuilt.
func (c *Controller) Build(ctx context.Context, s *Session, urls []string, progress func(string)) ([]error, error) {
	if progress == nil {
		progress = func(string) {}
	}
	cleaned := nonBlank(urls)
	if len(cleaned) == 0 {
		return nil, ErrNoURLs
	}
	if len(cleaned) > MaxURLs {
		return nil, ErrTooManyURLs
	}

	start := time.Now()
	s.reset()

	idx, err := c.indexes.Rebuild(ctx, c.opts.Index)
	if err != nil {
		return nil, err
	}
	if idx.Replaced() {
		progress(MsgIndexDeleted)
	}
	progress(MsgIndexCreated)

	progress(MsgLoadingStarted)
	docs, warnings := c.loader.Load(ctx, cleaned)
	if len(docs) == 0 {
		return warnings, fmt.Errorf("%w: %w", domain.ErrLoad, ErrNoDocuments)
	}

	progress(MsgSplitStarted)
	var chunks []domain.Chunk
	for _, d := range docs {
		cs, err := c.chunker.Chunk(d)
		if err != nil {
			return warnings, fmt.Errorf("split %s: %w", d.Source, err)
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return warnings, fmt.Errorf("%w: %w", domain.ErrLoad, ErrNoDocuments)
	}

	progress(MsgEmbedStarted)
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return warnings, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return warnings, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	records := make([]domain.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = domain.Record{ID: vectorstore.RecordID(ch), Chunk: ch, Vector: vectors[i]}
	}
	if err := idx.Upsert(ctx, records); err != nil {
		return warnings, err
	}
	progress(MsgUploaded)

	s.set(idx)
	c.logger.Info("build finished",
		zap.String("index", idx.Name()),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("failed_urls", len(warnings)),
		zap.Duration("took", time.Since(start)),
	)
	return warnings, nil
}

// Ask answers a question from the session's index. A synthesis error may
// come with a partial answer that is still worth showing.
func (c *Controller) Ask(ctx context.Context, s *Session, question string) (domain.Answer, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return domain.Answer{}, ErrEmptyQuestion
	}
	idx := s.Index()
	if idx == nil {
		return domain.Answer{}, domain.ErrIndexNotReady
	}

	vec, err := c.embedder.Embed(ctx, q)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("embed question: %w", err)
	}
	results, err := idx.Query(ctx, vec, c.opts.TopK)
	if err != nil {
		return domain.Answer{}, err
	}
	c.logger.Debug("retrieved", zap.Int("results", len(results)))

	answer, err := c.synth.Synthesize(ctx, q, results)
	if err != nil {
		c.logger.Warn("synthesis failed", zap.Error(err))
	}
	return answer, err
}

func nonBlank(urls []string) []string {
	var out []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}
