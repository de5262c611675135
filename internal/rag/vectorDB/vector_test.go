package vectorDB

import (
	"context"
	"testing"
	"time"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
)

func TestMemoryIndex_Search(t *testing.T) {
	chunks := []docModel.Chunk{{Text: "a", Sequence: 0}, {Text: "b", Sequence: 1}, {Text: "c", Sequence: 2}, {Text: "zero", Sequence: 3}}
	vectors := [][]float32{{1, 0}, {0.7, 0.7}, {0, 1}, {0, 0}}
	idx := NewMemoryIndex("k", time.Now(), chunks, vectors)

	hits, err := idx.Search(context.Background(), []float32{1, 0.1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Chunk.Text != "a" || hits[1].Chunk.Text != "b" {
		t.Errorf("unexpected ranking %q, %q", hits[0].Chunk.Text, hits[1].Chunk.Text)
	}
	if hits[0].Score < hits[1].Score {
		t.Errorf("hits should be sorted by score")
	}

	all, _ := idx.Search(context.Background(), []float32{1, 0.1}, 0)
	if len(all) != 4 {
		t.Errorf("k=0 should return every chunk, got %d", len(all))
	}
	if all[3].Score != 0 {
		t.Errorf("zero vector should score 0, got %v", all[3].Score)
	}
}

func TestMemoryIndex_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	idx := NewMemoryIndex("k", time.Now(), nil, nil)
	if _, err := idx.Search(ctx, []float32{1}, 1); err == nil {
		t.Error("expected an error on a cancelled context")
	}
}
