package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/vectorDB"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var logger *logger_i.Logger
var quadrantInstance *qdrant.Client
var once sync.Once

type ClientHolder struct {
	QObj *qdrant.Client
}

func GetQuadrantClient(ctx context.Context) *ClientHolder {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		res := newClient(ctx)
		if res != nil {
			quadrantInstance = res
			go closeQdrant(ctx, quadrantInstance)
		}
	})

	if quadrantInstance == nil {
		return nil
	}
	return &ClientHolder{
		QObj: quadrantInstance,
	}
}

func newClient(ctx context.Context) *qdrant.Client {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     config.GetString("QDRANT_HOST", config.QdrantHost),
		Port:     config.GetInt("QDRANT_PORT", config.QdrantGrpcPort),
		APIKey:   config.GetString("QDRANT_API_KEY", ""),
		UseTLS:   config.GetBool("QDRANT_USE_TLS", config.QdrantUseTLS),
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate", "error", err)
		return nil
	}

	// fail at startup rather than on the first index build
	if _, err := client.ListCollections(ctx); err != nil {
		logger.Error("qdrant unreachable", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	if err := qi.Close(); err != nil {
		logger.Error("could not close Qdrant", "error", err)
	}
	logger.Info("Closed Qdrant")
}

func collectionName(identity docModel.DocumentIdentity) string {
	return config.IndexCollectionPrefix + identity.StorageKey()
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func (db *ClientHolder) Exists(ctx context.Context, identity docModel.DocumentIdentity) (bool, error) {
	return db.QObj.CollectionExists(ctx, collectionName(identity))
}

// Load checks the collection holds every point its build wrote and reads the
// build time from one of them. A short count is a build that died half way.
func (db *ClientHolder) Load(ctx context.Context, identity docModel.DocumentIdentity) (vectorDB.Index, error) {
	name := collectionName(identity)

	count, err := db.QObj.Count(ctx, &qdrant.CountPoints{
		CollectionName: name,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, ragErrors.New(ragErrors.IndexLoadFailed, "counting points in "+name, err)
	}
	if count == 0 {
		return nil, ragErrors.New(ragErrors.IndexLoadFailed, name+" is empty", nil)
	}

	points, err := db.QObj.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: name,
		Limit:          qdrant.PtrOf(uint32(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil || len(points) == 0 {
		return nil, ragErrors.New(ragErrors.IndexLoadFailed, "reading "+name, err)
	}
	payload := points[0].GetPayload()
	if err := checkComplete(name, identity.Key(), count, payload); err != nil {
		return nil, err
	}

	return &collectionIndex{
		db:      db,
		name:    name,
		key:     identity.Key(),
		builtAt: time.Unix(payload["built_at"].GetIntegerValue(), 0).UTC(),
		size:    int(count),
	}, nil
}

func checkComplete(name string, key string, count uint64, payload map[string]*qdrant.Value) error {
	if payload["identity"].GetStringValue() != key {
		return ragErrors.New(ragErrors.IndexLoadFailed, name+" belongs to another identity", nil)
	}
	if total := payload["total"].GetIntegerValue(); total <= 0 || uint64(total) != count {
		return ragErrors.New(ragErrors.IndexLoadFailed, fmt.Sprintf("%s holds %d of %d points", name, count, total), nil)
	}
	return nil
}

func (db *ClientHolder) Save(ctx context.Context, identity docModel.DocumentIdentity, chunks []docModel.Chunk, vectors [][]float32) (vectorDB.Index, error) {
	loggr := logger.WithTrace(ctx)

	if len(chunks) == 0 || len(chunks) != len(vectors) {
		return nil, fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	name := collectionName(identity)

	if err := db.Drop(ctx, identity); err != nil {
		return nil, err
	}
	if err := createCollection(ctx, db.QObj, name, uint64(len(vectors[0]))); err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", name, err)
	}

	builtAt := time.Now().UTC()
	for start := 0; start < len(chunks); start += config.QdrantUpsertBatchSize {
		end := min(start+config.QdrantUpsertBatchSize, len(chunks))
		if err := db.upsertBatch(ctx, name, identity.Key(), builtAt, len(chunks), chunks[start:end], vectors[start:end]); err != nil {
			if dropErr := db.Drop(context.WithoutCancel(ctx), identity); dropErr != nil {
				loggr.Error("could not drop partial index", "collection", name, "error", dropErr)
			}
			return nil, err
		}
	}

	loggr.Debug("index saved", "collection", name, "points", len(chunks))
	return &collectionIndex{db: db, name: name, key: identity.Key(), builtAt: builtAt, size: len(chunks)}, nil
}

func (db *ClientHolder) Drop(ctx context.Context, identity docModel.DocumentIdentity) error {
	name := collectionName(identity)
	exists, err := db.QObj.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", name, err)
	}
	if !exists {
		return nil
	}
	if err := db.QObj.DeleteCollection(ctx, name); err != nil && !isNotFound(err) {
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}
	return nil
}

func (db *ClientHolder) upsertBatch(ctx context.Context, name string, key string, builtAt time.Time, total int, chunks []docModel.Chunk, vectors [][]float32) error {
	qdrantPoints := make([]*qdrant.PointStruct, len(chunks))

	for i, chunk := range chunks {
		qdrantPoints[i] = &qdrant.PointStruct{
			// sequence numbers are unique per document, so a re-upsert overwrites
			Id:      qdrant.NewIDNum(uint64(chunk.Sequence)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"content":  chunk.Text,
				"source":   chunk.Source,
				"sequence": chunk.Sequence,
				"offset":   chunk.Offset,
				"page_num": chunk.PageNum,
				"identity": key,
				"built_at": builtAt.Unix(),
				"total":    total,
			}),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         qdrantPoints,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func createCollection(ctx context.Context, client *qdrant.Client, name string, dimension uint64) error {
	if name == "" {
		return errors.New("empty collection name")
	}
	if dimension == 0 {
		return errors.New("zero vector dimension")
	}

	return client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
