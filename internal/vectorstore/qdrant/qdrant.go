// Package qdrant implements the vector index provider on a Qdrant cluster
// over gRPC. Indexes map to collections.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"newslens/internal/domain"
	"newslens/internal/logging"
	"newslens/internal/vectorstore"
)

// ErrPlacementMismatch is returned when an index is requested in a cloud or
// region other than the one the cluster runs in.
var ErrPlacementMismatch = errors.New("requested placement does not match cluster")

const (
	payloadText       = "text"
	payloadSource     = "source"
	payloadDocumentID = "document_id"
	payloadChunkID    = "chunk_id"
	payloadIndex      = "index"
)

// Config holds the cluster address, credentials and placement.
type Config struct {
	Host    string
	Port    int
	APIKey  string
	UseTLS  bool
	Cloud   string
	Region  string
	Timeout time.Duration
}

// Provider talks to a single Qdrant cluster.
type Provider struct {
	client *qdrant.Client
	cfg    Config
	logger *zap.Logger
}

// NewProvider connects to Qdrant and checks the connection.
func NewProvider(ctx context.Context, cfg Config, logger *zap.Logger) (*Provider, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: qdrant host is required", domain.ErrConfig)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	qc := &qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		APIKey: cfg.APIKey,
	}
	if !cfg.UseTLS {
		qc.GrpcOptions = append(qc.GrpcOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	client, err := qdrant.NewClient(qc)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	p := &Provider{client: client, cfg: cfg, logger: logging.OrNop(logger).Named("qdrant")}

	hctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if _, err := client.HealthCheck(hctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("qdrant health check %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	p.logger.Info("qdrant connection established", zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
	return p, nil
}

// Close closes the gRPC connection.
func (p *Provider) Close() error {
	return p.client.Close()
}

// ListIndexes returns the collection names.
func (p *Provider) ListIndexes(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return p.client.ListCollections(ctx)
}

// DeleteIndex drops a collection.
func (p *Provider) DeleteIndex(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	return mapError(p.client.DeleteCollection(ctx, name), name)
}

// CreateIndex creates a collection. Cloud and region in spec must match the
// cluster's when both are known.
func (p *Provider) CreateIndex(ctx context.Context, spec domain.IndexSpec) error {
	if err := checkPlacement(p.cfg, spec); err != nil {
		return err
	}
	if err := vectorstore.ValidateSpec(spec); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	err := p.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: spec.Name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(spec.Dimension),
			Distance: distance(spec.Metric),
		}),
	})
	return mapError(err, spec.Name)
}

// DescribeIndex reports a collection as ready once its status is green.
func (p *Provider) DescribeIndex(ctx context.Context, name string) (vectorstore.IndexStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	info, err := p.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return vectorstore.IndexStatus{}, mapError(err, name)
	}
	params := info.GetConfig().GetParams().GetVectorsConfig().GetParams()
	return vectorstore.IndexStatus{
		Ready:     info.GetStatus() == qdrant.CollectionStatus_Green,
		Dimension: int(params.GetSize()),
		Metric:    metric(params.GetDistance()),
	}, nil
}

// Upsert writes points and waits for the write to be applied.
func (p *Provider) Upsert(ctx context.Context, name string, records []domain.Record) error {
	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = toPoint(r)
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	_, err := p.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	return mapError(err, name)
}

// SimilaritySearch returns the k nearest points with their payloads.
func (p *Provider) SimilaritySearch(ctx context.Context, name string, vector []float32, k int) ([]domain.SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	res, err := p.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, mapError(err, name)
	}
	out := make([]domain.SearchResult, 0, len(res))
	for _, sp := range res {
		out = append(out, domain.SearchResult{Chunk: chunkFromPayload(sp.GetPayload()), Score: sp.GetScore()})
	}
	return out, nil
}

func checkPlacement(cfg Config, spec domain.IndexSpec) error {
	if spec.Cloud != "" && cfg.Cloud != "" && !strings.EqualFold(spec.Cloud, cfg.Cloud) {
		return fmt.Errorf("%w: cloud %q, cluster runs on %q", ErrPlacementMismatch, spec.Cloud, cfg.Cloud)
	}
	if spec.Region != "" && cfg.Region != "" && !strings.EqualFold(spec.Region, cfg.Region) {
		return fmt.Errorf("%w: region %q, cluster runs in %q", ErrPlacementMismatch, spec.Region, cfg.Region)
	}
	return nil
}

func mapError(err error, name string) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.NotFound:
			return fmt.Errorf("%w: %s", vectorstore.ErrNotFound, name)
		case codes.AlreadyExists:
			return fmt.Errorf("%w: %s", vectorstore.ErrAlreadyExists, name)
		}
	}
	return err
}

func distance(m domain.Metric) qdrant.Distance {
	switch m {
	case domain.MetricDot:
		return qdrant.Distance_Dot
	case domain.MetricEuclidean:
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

func metric(d qdrant.Distance) domain.Metric {
	switch d {
	case qdrant.Distance_Dot:
		return domain.MetricDot
	case qdrant.Distance_Euclid:
		return domain.MetricEuclidean
	case qdrant.Distance_Cosine:
		return domain.MetricCosine
	}
	return ""
}

func toPoint(r domain.Record) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(r.ID),
		Vectors: qdrant.NewVectors(r.Vector...),
		Payload: map[string]*qdrant.Value{
			payloadText:       stringValue(r.Chunk.Text),
			payloadSource:     stringValue(r.Chunk.Source),
			payloadDocumentID: stringValue(r.Chunk.DocumentID),
			payloadChunkID:    stringValue(r.Chunk.ChunkID),
			payloadIndex:      {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(r.Chunk.Index)}},
		},
	}
}

func stringValue(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func chunkFromPayload(payload map[string]*qdrant.Value) domain.Chunk {
	return domain.Chunk{
		Text:       payload[payloadText].GetStringValue(),
		Source:     payload[payloadSource].GetStringValue(),
		DocumentID: payload[payloadDocumentID].GetStringValue(),
		ChunkID:    payload[payloadChunkID].GetStringValue(),
		Index:      int(payload[payloadIndex].GetIntegerValue()),
	}
}
