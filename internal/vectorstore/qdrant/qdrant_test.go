package qdrant

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"newslens/internal/domain"
	"newslens/internal/vectorstore"
)

func TestPointRoundTrip(t *testing.T) {
	chunk := domain.Chunk{
		DocumentID: "doc1",
		ChunkID:    "doc1:2",
		Source:     "https://news.example/a",
		Text:       "Event X occurred in Paris.",
		Index:      2,
	}
	rec := domain.Record{ID: vectorstore.RecordID(chunk), Chunk: chunk, Vector: []float32{0.1, 0.2}}

	p := toPoint(rec)
	assert.Equal(t, rec.ID, p.GetId().GetUuid())
	assert.Equal(t, chunk, chunkFromPayload(p.GetPayload()))
}

func TestChunkFromPayloadMissingKeys(t *testing.T) {
	assert.Equal(t, domain.Chunk{Text: "only text"}, chunkFromPayload(map[string]*qdrant.Value{
		payloadText: stringValue("only text"),
	}))
}

func TestDistanceMapping(t *testing.T) {
	for _, m := range []domain.Metric{domain.MetricCosine, domain.MetricDot, domain.MetricEuclidean} {
		assert.Equal(t, m, metric(distance(m)))
	}
	assert.Equal(t, qdrant.Distance_Cosine, distance(""))
}

func TestCheckPlacement(t *testing.T) {
	cfg := Config{Cloud: "aws", Region: "us-east-1"}
	assert.NoError(t, checkPlacement(cfg, domain.IndexSpec{Cloud: "AWS", Region: "us-east-1"}))
	assert.NoError(t, checkPlacement(Config{}, domain.IndexSpec{Cloud: "gcp", Region: "europe-west1"}))
	assert.ErrorIs(t, checkPlacement(cfg, domain.IndexSpec{Cloud: "gcp"}), ErrPlacementMismatch)
	assert.ErrorIs(t, checkPlacement(cfg, domain.IndexSpec{Cloud: "aws", Region: "eu-west-1"}), ErrPlacementMismatch)
}

func TestCreateIndexRefusesOtherRegion(t *testing.T) {
	p := &Provider{cfg: Config{Cloud: "aws", Region: "us-east-1"}}
	err := p.CreateIndex(context.Background(), domain.IndexSpec{
		Name: "news", Dimension: 4, Metric: domain.MetricCosine, Cloud: "aws", Region: "ap-south-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPlacementMismatch)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil, "x"))
	assert.ErrorIs(t, mapError(status.Error(codes.NotFound, "missing"), "x"), vectorstore.ErrNotFound)
	assert.ErrorIs(t, mapError(status.Error(codes.AlreadyExists, "dup"), "x"), vectorstore.ErrAlreadyExists)

	other := errors.New("boom")
	assert.Same(t, other, mapError(other, "x"))
}
