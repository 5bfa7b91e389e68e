package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"newslens/internal/chunker"
	"newslens/internal/domain"
)

const article1 = "https://a.example/article1"

var testSpec = domain.IndexSpec{Name: "news-lens-chatbot", Dimension: 2, Metric: domain.MetricCosine}

type fixture struct {
	loader   *mockLoader
	chunker  *mockChunker
	embedder *mockEmbedder
	manager  *mockManager
	index    *mockIndex
	synth    *mockSynth
	ctrl     *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		loader:   &mockLoader{},
		chunker:  &mockChunker{},
		embedder: &mockEmbedder{},
		manager:  &mockManager{},
		index:    &mockIndex{},
		synth:    &mockSynth{},
	}
	f.ctrl = NewController(f.loader, f.chunker, f.embedder, f.manager, f.synth, Options{Index: testSpec}, nil)
	t.Cleanup(func() {
		mock.AssertExpectationsForObjects(t, f.loader, f.chunker, f.embedder, f.manager, f.index, f.synth)
	})
	return f
}

// expectBuild sets up a successful build of a single one-chunk article.
func (f *fixture) expectBuild() {
	doc := domain.Document{ID: "d1", Source: article1, Content: "Event X occurred in Paris."}
	chunk := domain.Chunk{DocumentID: "d1", ChunkID: "d1:0", Source: article1, Text: doc.Content}
	f.manager.On("Rebuild", mock.Anything, testSpec).Return(f.index, nil).Once()
	f.loader.On("Load", mock.Anything, []string{article1}).Return([]domain.Document{doc}, nil).Once()
	f.chunker.On("Chunk", doc).Return([]domain.Chunk{chunk}, nil).Once()
	f.embedder.On("EmbedDocuments", mock.Anything, []string{doc.Content}).Return([][]float32{{1, 0}}, nil).Once()
	f.index.On("Upsert", mock.Anything, mock.MatchedBy(func(rs []domain.Record) bool {
		return len(rs) == 1 && rs[0].Chunk == chunk && rs[0].ID != ""
	})).Return(nil).Once()
}

func TestBuildEmptyURLsMakesNoCalls(t *testing.T) {
	f := newFixture(t)
	s := NewSession()

	out := f.ctrl.Handle(context.Background(), s, Input{URLs: []string{"", "  ", ""}, Build: true})

	assert.False(t, s.Built())
	assert.Empty(t, out.Progress)
	assert.Equal(t, []string{"Please enter at least one URL."}, out.Warnings)
	f.manager.AssertNotCalled(t, "Rebuild", mock.Anything, mock.Anything)
	f.loader.AssertNotCalled(t, "Load", mock.Anything, mock.Anything)
	f.embedder.AssertNotCalled(t, "EmbedDocuments", mock.Anything, mock.Anything)
	f.index.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestBuildTooManyURLs(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.Build(context.Background(), NewSession(), []string{"a", "b", "c", "d"}, nil)
	assert.ErrorIs(t, err, ErrTooManyURLs)
}

func TestBuildThenAsk(t *testing.T) {
	f := newFixture(t)
	f.expectBuild()
	results := []domain.SearchResult{{Chunk: domain.Chunk{Source: article1, Text: "Event X occurred in Paris."}, Score: 0.9}}
	f.embedder.On("Embed", mock.Anything, "Where did event X occur?").Return([]float32{1, 0}, nil).Once()
	f.index.On("Query", mock.Anything, []float32{1, 0}, 4).Return(results, nil).Once()
	f.synth.On("Synthesize", mock.Anything, "Where did event X occur?", results).
		Return(domain.Answer{Text: "Event X occurred in Paris.", Sources: []string{article1}}, nil).Once()

	s := NewSession()
	var streamed []string
	out := f.ctrl.Handle(context.Background(), s, Input{
		URLs:     []string{article1, "", ""},
		Build:    true,
		Question: " Where did event X occur? ",
		Progress: func(m string) { streamed = append(streamed, m) },
	})

	assert.True(t, s.Built())
	assert.Equal(t, []string{MsgIndexCreated, MsgLoadingStarted, MsgSplitStarted, MsgEmbedStarted, MsgUploaded}, out.Progress)
	assert.Equal(t, out.Progress, streamed)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, "Event X occurred in Paris.", out.Answer)
	assert.Equal(t, []string{article1}, out.Sources)
}

func TestBuildReportsDeletedIndex(t *testing.T) {
	f := newFixture(t)
	f.index.replaced = true
	f.expectBuild()

	var msgs []string
	_, err := f.ctrl.Build(context.Background(), NewSession(), []string{article1}, func(m string) { msgs = append(msgs, m) })
	require.NoError(t, err)
	assert.Equal(t, []string{MsgIndexDeleted, MsgIndexCreated}, msgs[:2])
}

func TestBuildKeepsGoingOnLoadErrors(t *testing.T) {
	f := newFixture(t)
	doc := domain.Document{ID: "d1", Source: article1, Content: "Event X occurred in Paris."}
	loadErr := &domain.LoadError{URL: "https://bad.example", Err: errors.New("404 Not Found")}
	f.manager.On("Rebuild", mock.Anything, testSpec).Return(f.index, nil)
	f.loader.On("Load", mock.Anything, []string{article1, "https://bad.example"}).Return([]domain.Document{doc}, []error{loadErr})
	f.chunker.On("Chunk", doc).Return([]domain.Chunk{{Source: article1, Text: doc.Content}}, nil)
	f.embedder.On("EmbedDocuments", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)
	f.index.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	s := NewSession()
	out := f.ctrl.Handle(context.Background(), s, Input{URLs: []string{article1, "https://bad.example"}, Build: true})
	assert.True(t, s.Built())
	assert.Equal(t, []string{loadErr.Error()}, out.Warnings)
}

func TestBuildAllURLsFail(t *testing.T) {
	f := newFixture(t)
	loadErr := &domain.LoadError{URL: article1, Err: errors.New("timeout")}
	f.manager.On("Rebuild", mock.Anything, testSpec).Return(f.index, nil)
	f.loader.On("Load", mock.Anything, []string{article1}).Return(nil, []error{loadErr})

	s := NewSession()
	warnings, err := f.ctrl.Build(context.Background(), s, []string{article1}, nil)
	assert.ErrorIs(t, err, domain.ErrLoad)
	assert.ErrorIs(t, err, ErrNoDocuments)
	assert.Equal(t, []error{loadErr}, warnings)
	assert.False(t, s.Built())
}

func TestBuildFailureResetsSession(t *testing.T) {
	f := newFixture(t)
	f.expectBuild()
	s := NewSession()
	_, err := f.ctrl.Build(context.Background(), s, []string{article1}, nil)
	require.NoError(t, err)
	require.True(t, s.Built())

	f.manager.On("Rebuild", mock.Anything, testSpec).Return(nil, domain.ErrIndexProvisioning).Once()
	_, err = f.ctrl.Build(context.Background(), s, []string{article1}, nil)
	assert.ErrorIs(t, err, domain.ErrIndexProvisioning)
	assert.False(t, s.Built())
}

func TestBuildUpsertRejected(t *testing.T) {
	f := newFixture(t)
	doc := domain.Document{ID: "d1", Source: article1, Content: "Event X occurred in Paris."}
	f.manager.On("Rebuild", mock.Anything, testSpec).Return(f.index, nil)
	f.loader.On("Load", mock.Anything, []string{article1}).Return([]domain.Document{doc}, nil)
	f.chunker.On("Chunk", doc).Return([]domain.Chunk{{Source: article1, Text: doc.Content}}, nil)
	f.embedder.On("EmbedDocuments", mock.Anything, mock.Anything).Return([][]float32{{1, 0}}, nil)
	f.index.On("Upsert", mock.Anything, mock.Anything).Return(domain.ErrIndexWrite)

	s := NewSession()
	out := f.ctrl.Handle(context.Background(), s, Input{URLs: []string{article1}, Build: true})
	assert.False(t, s.Built())
	assert.NotContains(t, out.Progress, MsgUploaded)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "index write error")
}

func TestAskBeforeBuild(t *testing.T) {
	f := newFixture(t)
	out := f.ctrl.Handle(context.Background(), NewSession(), Input{Question: "What happened?"})
	assert.Equal(t, []string{NotReadyMessage}, out.Warnings)
	assert.Empty(t, out.Answer)
	assert.Nil(t, out.Sources)
}

func TestAskEmptyQuestion(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.Ask(context.Background(), NewSession(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)

	out := f.ctrl.Handle(context.Background(), NewSession(), Input{Question: " "})
	assert.Equal(t, Output{}, out)
}

func TestAskEmptySources(t *testing.T) {
	f := newFixture(t)
	f.expectBuild()
	s := NewSession()
	_, err := f.ctrl.Build(context.Background(), s, []string{article1}, nil)
	require.NoError(t, err)

	f.embedder.On("Embed", mock.Anything, "q").Return([]float32{0, 1}, nil)
	f.index.On("Query", mock.Anything, []float32{0, 1}, 4).Return([]domain.SearchResult{}, nil)
	f.synth.On("Synthesize", mock.Anything, "q", []domain.SearchResult{}).Return(domain.Answer{Text: "I don't know."}, nil)

	out := f.ctrl.Handle(context.Background(), s, Input{Question: "q"})
	assert.Equal(t, "I don't know.", out.Answer)
	assert.Empty(t, out.Sources)
	assert.Empty(t, out.Warnings)
}

func TestAskDegradedSynthesis(t *testing.T) {
	f := newFixture(t)
	f.expectBuild()
	s := NewSession()
	_, err := f.ctrl.Build(context.Background(), s, []string{article1}, nil)
	require.NoError(t, err)

	f.embedder.On("Embed", mock.Anything, "q").Return([]float32{1, 0}, nil)
	f.index.On("Query", mock.Anything, []float32{1, 0}, 4).Return([]domain.SearchResult{}, nil)
	f.synth.On("Synthesize", mock.Anything, "q", []domain.SearchResult{}).
		Return(domain.Answer{Text: "Paris."}, domain.ErrSynthesis)

	out := f.ctrl.Handle(context.Background(), s, Input{Question: "q"})
	assert.Equal(t, "Paris.", out.Answer)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "synthesis error")
}

func TestBuildWithRealChunker(t *testing.T) {
	f := newFixture(t)
	ctrl := NewController(f.loader, chunker.NewRecursive(chunker.WithMaxChars(20)), f.embedder, f.manager, f.synth, Options{Index: testSpec}, nil)
	doc := domain.Document{ID: "d1", Source: article1, Content: "Event X occurred in Paris. It was reported today."}
	f.manager.On("Rebuild", mock.Anything, testSpec).Return(f.index, nil)
	f.loader.On("Load", mock.Anything, []string{article1}).Return([]domain.Document{doc}, nil)
	f.embedder.On("EmbedDocuments", mock.Anything, mock.MatchedBy(func(texts []string) bool { return len(texts) > 1 })).
		Return(func(_ context.Context, texts []string) [][]float32 {
			out := make([][]float32, len(texts))
			for i := range out {
				out[i] = []float32{1, float32(i)}
			}
			return out
		}, nil)
	var upserted []domain.Record
	f.index.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		upserted = args.Get(1).([]domain.Record)
	}).Return(nil)

	_, err := ctrl.Build(context.Background(), NewSession(), []string{article1}, nil)
	require.NoError(t, err)
	var joined string
	for _, r := range upserted {
		assert.Equal(t, article1, r.Chunk.Source)
		joined += r.Chunk.Text
	}
	assert.Equal(t, doc.Content, joined)
}

func TestEventXScenario(t *testing.T) {
	f := newFixture(t)
	ctrl := NewController(f.loader, chunker.NewRecursive(), f.embedder, f.manager, f.synth, Options{Index: testSpec}, nil)

	const text = "Event X occurred in Paris. It was reported today."
	doc := domain.Document{ID: "d1", Source: article1, Content: text}
	f.manager.On("Rebuild", mock.Anything, testSpec).Return(f.index, nil).Once()
	f.loader.On("Load", mock.Anything, []string{article1}).Return([]domain.Document{doc}, nil).Once()
	f.embedder.On("EmbedDocuments", mock.Anything, []string{text}).Return([][]float32{{1, 0}}, nil).Once()
	var upserted []domain.Record
	f.index.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		upserted = args.Get(1).([]domain.Record)
	}).Return(nil).Once()

	results := []domain.SearchResult{{Chunk: domain.Chunk{Source: article1, Text: text}, Score: 1}}
	f.embedder.On("Embed", mock.Anything, "What happened?").Return([]float32{1, 0}, nil).Once()
	f.index.On("Query", mock.Anything, []float32{1, 0}, 4).Return(results, nil).Once()
	f.synth.On("Synthesize", mock.Anything, "What happened?", results).
		Return(domain.Answer{Text: "Event X occurred in Paris.", Sources: []string{article1}}, nil).Once()

	s := NewSession()
	out := ctrl.Handle(context.Background(), s, Input{
		URLs:     []string{article1, "", ""},
		Build:    true,
		Question: "What happened?",
	})

	require.Len(t, upserted, 1)
	assert.Equal(t, text, upserted[0].Chunk.Text)
	assert.Equal(t, article1, upserted[0].Chunk.Source)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, "Event X occurred in Paris.", out.Answer)
	assert.Equal(t, []string{article1}, out.Sources)
}
