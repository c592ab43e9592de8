package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/avenhq/supportd/internal/config"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("supportd.vectorstore.qdrant")

// Index is the vector index contract consumed by the retrieval pipeline
// and the ingestion pipeline.
type Index interface {
	// Query returns the topK nearest neighbors with payloads.
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)

	// Upsert writes points into the collection.
	Upsert(ctx context.Context, points []Point) error

	// EnsureCollection creates the configured collection if missing.
	EnsureCollection(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// QdrantIndex is an Index implementation using Qdrant's native gRPC client.
//
// gRPC (port 6334) is used rather than the HTTP REST API: binary protobuf
// encoding avoids the REST payload limits that break large ingestion
// batches.
type QdrantIndex struct {
	client *qdrant.Client
	cfg    config.QdrantConfig
}

// NewQdrantIndex creates a QdrantIndex and verifies connectivity.
func NewQdrantIndex(cfg config.QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, cfg.Port)
	}
	if cfg.VectorSize == 0 {
		return nil, fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	if err := ValidateCollectionName(cfg.Collection); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	idx := &QdrantIndex{client: client, cfg: cfg}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.healthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	return idx, nil
}

// Close closes the Qdrant gRPC connection.
func (i *QdrantIndex) Close() error {
	if i.client != nil {
		return i.client.Close()
	}
	return nil
}

func (i *QdrantIndex) healthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantIndex.HealthCheck")
	defer span.End()

	if _, err := i.client.HealthCheck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// Query returns the topK nearest neighbors with payload metadata.
func (i *QdrantIndex) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Query")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", i.cfg.Collection),
		attribute.Int("top_k", topK),
	)

	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	points, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", i.cfg.Collection, err)
	}

	matches := make([]Match, len(points))
	for n, point := range points {
		match := Match{Score: point.Score}
		if point.Payload != nil {
			match.Metadata = make(map[string]interface{}, len(point.Payload))
			for k, v := range point.Payload {
				switch val := v.Kind.(type) {
				case *qdrant.Value_StringValue:
					match.Metadata[k] = val.StringValue
					if k == "id" {
						match.ID = val.StringValue
					}
				case *qdrant.Value_IntegerValue:
					match.Metadata[k] = val.IntegerValue
				case *qdrant.Value_DoubleValue:
					match.Metadata[k] = val.DoubleValue
				case *qdrant.Value_BoolValue:
					match.Metadata[k] = val.BoolValue
				}
			}
		}
		matches[n] = match
	}

	span.SetAttributes(attribute.Int("match_count", len(matches)))
	span.SetStatus(codes.Ok, "success")
	return matches, nil
}

// Upsert writes points into the configured collection.
func (i *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	ctx, span := tracer.Start(ctx, "QdrantIndex.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", i.cfg.Collection),
		attribute.Int("point_count", len(points)),
	)

	if len(points) == 0 {
		return ErrEmptyPoints
	}

	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	qdrantPoints := make([]*qdrant.PointStruct, len(points))
	for n, p := range points {
		payload := make(map[string]*qdrant.Value, len(p.Metadata)+1)
		payload["id"] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: p.ID}}
		for k, v := range p.Metadata {
			switch val := v.(type) {
			case string:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
			case int:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
			case int64:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
			case float64:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
			case bool:
				payload[k] = &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
			}
		}

		// Qdrant point ids must be UUIDs; the original id is preserved in
		// the payload for retrieval.
		var pointID *qdrant.PointId
		if _, err := uuid.Parse(p.ID); err == nil {
			pointID = qdrant.NewIDUUID(p.ID)
		} else {
			pointID = qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.ID)).String())
		}

		qdrantPoints[n] = &qdrant.PointStruct{
			Id:      pointID,
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}

	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.cfg.Collection,
		Points:         qdrantPoints,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting %d points: %w", len(points), err)
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// EnsureCollection creates the configured collection if it does not exist.
func (i *QdrantIndex) EnsureCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantIndex.EnsureCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", i.cfg.Collection))

	ctx, cancel := context.WithTimeout(ctx, i.cfg.Timeout)
	defer cancel()

	exists, err := i.client.CollectionExists(ctx, i.cfg.Collection)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("checking collection %s: %w", i.cfg.Collection, err)
	}
	if exists {
		return nil
	}

	err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: i.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     i.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("creating collection %s: %w", i.cfg.Collection, err)
	}

	span.SetStatus(codes.Ok, "created")
	return nil
}
