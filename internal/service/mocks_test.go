package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"newslens/internal/domain"
)

type mockLoader struct{ mock.Mock }

func (m *mockLoader) Load(ctx context.Context, urls []string) ([]domain.Document, []error) {
	args := m.Called(ctx, urls)
	docs, _ := args.Get(0).([]domain.Document)
	errs, _ := args.Get(1).([]error)
	return docs, errs
}

type mockChunker struct{ mock.Mock }

func (m *mockChunker) Chunk(d domain.Document) ([]domain.Chunk, error) {
	args := m.Called(d)
	chunks, _ := args.Get(0).([]domain.Chunk)
	return chunks, args.Error(1)
}

type mockEmbedder struct{ mock.Mock }

func (m *mockEmbedder) Name() string   { return "mock" }
func (m *mockEmbedder) Dimension() int { return 2 }

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	vec, _ := args.Get(0).([]float32)
	return vec, args.Error(1)
}

func (m *mockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if fn, ok := args.Get(0).(func(context.Context, []string) [][]float32); ok {
		return fn(ctx, texts), args.Error(1)
	}
	vecs, _ := args.Get(0).([][]float32)
	return vecs, args.Error(1)
}

type mockManager struct{ mock.Mock }

func (m *mockManager) Rebuild(ctx context.Context, spec domain.IndexSpec) (domain.Index, error) {
	args := m.Called(ctx, spec)
	idx, _ := args.Get(0).(domain.Index)
	return idx, args.Error(1)
}

type mockIndex struct {
	mock.Mock
	replaced bool
}

func (m *mockIndex) Name() string   { return "news-lens-chatbot" }
func (m *mockIndex) Replaced() bool { return m.replaced }

func (m *mockIndex) Upsert(ctx context.Context, records []domain.Record) error {
	return m.Called(ctx, records).Error(0)
}

func (m *mockIndex) Query(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	args := m.Called(ctx, vector, k)
	res, _ := args.Get(0).([]domain.SearchResult)
	return res, args.Error(1)
}

type mockSynth struct{ mock.Mock }

func (m *mockSynth) Synthesize(ctx context.Context, question string, results []domain.SearchResult) (domain.Answer, error) {
	args := m.Called(ctx, question, results)
	return args.Get(0).(domain.Answer), args.Error(1)
}
