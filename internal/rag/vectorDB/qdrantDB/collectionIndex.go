package qdrantDB

import (
	"context"
	"time"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/qdrant/go-client/qdrant"
)

// collectionIndex is the handle for one identity's collection.
type collectionIndex struct {
	db      *ClientHolder
	name    string
	key     string
	builtAt time.Time
	size    int
}

func (c *collectionIndex) Key() string        { return c.key }
func (c *collectionIndex) BuiltAt() time.Time { return c.builtAt }
func (c *collectionIndex) Size() int          { return c.size }

func (c *collectionIndex) Search(ctx context.Context, vector []float32, k int) ([]docModel.ScoredChunk, error) {
	loggr := logger.WithTrace(ctx)

	result, err := c.db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.name,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Error querying Qdrant", "collection", c.name, "error", err)
		return nil, err
	}

	matches := make([]docModel.ScoredChunk, 0, len(result))
	for _, hit := range result {
		p := hit.GetPayload()
		matches = append(matches, docModel.ScoredChunk{
			Chunk: docModel.Chunk{
				Text:     p["content"].GetStringValue(),
				Source:   p["source"].GetStringValue(),
				Sequence: int(p["sequence"].GetIntegerValue()),
				Offset:   int(p["offset"].GetIntegerValue()),
				PageNum:  int(p["page_num"].GetIntegerValue()),
			},
			Score: hit.GetScore(),
		})
	}

	loggr.Debug("Found matches", "collection", c.name, "count", len(matches))
	return matches, nil
}
