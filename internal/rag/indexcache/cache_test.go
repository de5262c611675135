package indexcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/ingest"
	"github.com/akolanti/DocuSense/internal/rag/vectorDB"
	"github.com/akolanti/DocuSense/internal/rag/vectorDB/localDB"
)

type mockExtractor struct {
	calls       atomic.Int32
	extractFunc func(ctx context.Context, ref string) ([]docModel.Page, error)
}

func (m *mockExtractor) Extract(ctx context.Context, ref string) ([]docModel.Page, error) {
	m.calls.Add(1)
	return m.extractFunc(ctx, ref)
}

type mockEmbedder struct {
	batches atomic.Int32
}

func (m *mockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (m *mockEmbedder) BatchEmbedding(ctx context.Context, chunks []string, isHuge bool) ([][]float32, error) {
	m.batches.Add(1)
	out := make([][]float32, len(chunks))
	for i := range out {
		out[i] = []float32{1, float32(i)}
	}
	return out, nil
}

func pagesOf(text string) func(ctx context.Context, ref string) ([]docModel.Page, error) {
	return func(ctx context.Context, ref string) ([]docModel.Page, error) {
		return []docModel.Page{{Number: 1, Content: text}}, nil
	}
}

func newTestCache(t *testing.T, ex *mockExtractor, emb *mockEmbedder, root string) *Cache {
	t.Helper()
	return New(ex, ingest.Chunker{Size: 50, Overlap: 5}, emb, localDB.New(root))
}

var alice = docModel.NewIdentity("alice", "/docs/handbook.pdf", "legal")

func TestGetOrBuild_Idempotent(t *testing.T) {
	ex := &mockExtractor{extractFunc: pagesOf("Leave policy. Employees get twenty days of leave each year.")}
	emb := &mockEmbedder{}
	c := newTestCache(t, ex, emb, t.TempDir())

	first, err := c.GetOrBuild(context.Background(), alice)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	second, err := c.GetOrBuild(context.Background(), alice)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}

	if first != second {
		t.Error("expected the same index handle for repeated calls")
	}
	if ex.calls.Load() != 1 {
		t.Errorf("expected 1 extraction, got %d", ex.calls.Load())
	}
	if emb.batches.Load() != 1 {
		t.Errorf("expected 1 embedding pass, got %d", emb.batches.Load())
	}
}

func TestGetOrBuild_ConcurrentCallersShareOneBuild(t *testing.T) {
	release := make(chan struct{})
	ex := &mockExtractor{extractFunc: func(ctx context.Context, ref string) ([]docModel.Page, error) {
		<-release
		return []docModel.Page{{Number: 1, Content: "Shared content for every caller."}}, nil
	}}
	emb := &mockEmbedder{}
	c := newTestCache(t, ex, emb, t.TempDir())

	const n = 20
	results := make([]vectorDB.Index, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrBuild(context.Background(), alice)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Fatalf("caller %d got a different handle", i)
		}
	}
	if ex.calls.Load() != 1 || emb.batches.Load() != 1 {
		t.Errorf("expected one build, got %d extractions and %d embedding batches", ex.calls.Load(), emb.batches.Load())
	}
}

func TestGetOrBuild_DifferentIdentitiesDoNotBlock(t *testing.T) {
	release := make(chan struct{})
	ex := &mockExtractor{extractFunc: func(ctx context.Context, ref string) ([]docModel.Page, error) {
		if ref == "/docs/slow.pdf" {
			<-release
		}
		return []docModel.Page{{Number: 1, Content: "content of " + ref}}, nil
	}}
	c := newTestCache(t, ex, &mockEmbedder{}, t.TempDir())
	defer close(release)

	go func() { _, _ = c.GetOrBuild(context.Background(), docModel.NewIdentity("alice", "/docs/slow.pdf", "")) }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := c.GetOrBuild(ctx, docModel.NewIdentity("alice", "/docs/fast.pdf", "")); err != nil {
		t.Fatalf("fast document should not wait for the slow one: %v", err)
	}
}

func TestGetOrBuild_ReusesPersistedIndex(t *testing.T) {
	root := t.TempDir()
	ex := &mockExtractor{extractFunc: pagesOf("Persisted once, loaded later.")}

	if _, err := newTestCache(t, ex, &mockEmbedder{}, root).GetOrBuild(context.Background(), alice); err != nil {
		t.Fatal(err)
	}

	// a fresh process sees the file on disk
	emb := &mockEmbedder{}
	idx, err := newTestCache(t, ex, emb, root).GetOrBuild(context.Background(), alice)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if idx.Size() == 0 {
		t.Error("loaded index is empty")
	}
	if ex.calls.Load() != 1 || emb.batches.Load() != 0 {
		t.Errorf("persisted index should be reused, got %d extractions %d embeddings", ex.calls.Load(), emb.batches.Load())
	}
}

func TestGetOrBuild_CorruptIndexRebuiltOnce(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, alice.StorageKey())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	ex := &mockExtractor{extractFunc: pagesOf("Fresh content after corruption.")}
	emb := &mockEmbedder{}
	if _, err := newTestCache(t, ex, emb, root).GetOrBuild(context.Background(), alice); err != nil {
		t.Fatalf("expected rebuild to succeed, got %v", err)
	}
	if ex.calls.Load() != 1 || emb.batches.Load() != 1 {
		t.Errorf("expected exactly one rebuild, got %d extractions %d embeddings", ex.calls.Load(), emb.batches.Load())
	}
}

func TestGetOrBuild_BuildFailure(t *testing.T) {
	ex := &mockExtractor{extractFunc: func(ctx context.Context, ref string) ([]docModel.Page, error) {
		return nil, ragErrors.New(ragErrors.SourceUnavailable, ref, nil)
	}}
	c := newTestCache(t, ex, &mockEmbedder{}, t.TempDir())

	_, err := c.GetOrBuild(context.Background(), alice)
	if !errors.Is(err, ragErrors.ErrIndexBuildFailed) {
		t.Fatalf("expected IndexBuildFailed, got %v", err)
	}
	if !errors.Is(err, ragErrors.ErrSourceUnavailable) {
		t.Errorf("the extraction cause should stay visible, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("a failed build must not be cached")
	}

	if _, err := c.GetOrBuild(context.Background(), alice); err == nil {
		t.Error("expected the retry to fail too")
	}
	if ex.calls.Load() != 2 {
		t.Errorf("failures are not cached, expected 2 extractions, got %d", ex.calls.Load())
	}
}

func TestGetOrBuild_CallerCancelDoesNotAbortBuild(t *testing.T) {
	release := make(chan struct{})
	ex := &mockExtractor{extractFunc: func(ctx context.Context, ref string) ([]docModel.Page, error) {
		<-release
		return []docModel.Page{{Number: 1, Content: "Built after the first caller left."}}, nil
	}}
	c := newTestCache(t, ex, &mockEmbedder{}, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrBuild(ctx, alice)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for c.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Len() != 1 {
		t.Fatal("build should finish and be cached after the caller left")
	}
	if _, err := c.GetOrBuild(context.Background(), alice); err != nil {
		t.Fatal(err)
	}
	if ex.calls.Load() != 1 {
		t.Errorf("expected a single extraction, got %d", ex.calls.Load())
	}
}

func TestInvalidate(t *testing.T) {
	ex := &mockExtractor{extractFunc: pagesOf("Version one of the document.")}
	emb := &mockEmbedder{}
	c := newTestCache(t, ex, emb, t.TempDir())

	if _, err := c.GetOrBuild(context.Background(), alice); err != nil {
		t.Fatal(err)
	}
	if err := c.Invalidate(context.Background(), alice); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if _, err := c.GetOrBuild(context.Background(), alice); err != nil {
		t.Fatal(err)
	}
	if ex.calls.Load() != 2 {
		t.Errorf("expected a rebuild after invalidation, got %d extractions", ex.calls.Load())
	}
}

func TestGetOrBuild_InvalidIdentity(t *testing.T) {
	c := newTestCache(t, &mockExtractor{}, &mockEmbedder{}, t.TempDir())
	_, err := c.GetOrBuild(context.Background(), docModel.NewIdentity("", "x.pdf", ""))
	if !errors.Is(err, ragErrors.ErrInvalidInput) {
		t.Errorf("expected InvalidInput, got %v", err)
	}
}

func TestInvalidate_DuringBuildIsNotLost(t *testing.T) {
	var text atomic.Value
	text.Store("Old version text of the document.")
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	ex := &mockExtractor{}
	ex.extractFunc = func(ctx context.Context, ref string) ([]docModel.Page, error) {
		if ex.calls.Load() == 1 {
			entered <- struct{}{}
			<-release
		}
		return []docModel.Page{{Number: 1, Content: text.Load().(string)}}, nil
	}
	root := t.TempDir()
	c := newTestCache(t, ex, &mockEmbedder{}, root)

	done := make(chan error, 1)
	go func() {
		_, err := c.GetOrBuild(context.Background(), alice)
		done <- err
	}()
	<-entered

	text.Store("New version text of the document.")
	if err := c.Invalidate(context.Background(), alice); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight build failed: %v", err)
	}

	idx, err := c.GetOrBuild(context.Background(), alice)
	if err != nil {
		t.Fatal(err)
	}
	if ex.calls.Load() != 2 {
		t.Fatalf("expected a fresh build after invalidation, got %d extractions", ex.calls.Load())
	}
	hits, err := idx.Search(context.Background(), []float32{1, 0}, 1)
	if err != nil || len(hits) == 0 {
		t.Fatalf("search failed: %v", err)
	}
	if !strings.Contains(hits[0].Chunk.Text, "New version") {
		t.Errorf("stale index served after invalidation: %q", hits[0].Chunk.Text)
	}

	// a new process must not load the old build from disk either
	idx, err = newTestCache(t, ex, &mockEmbedder{}, root).GetOrBuild(context.Background(), alice)
	if err != nil {
		t.Fatal(err)
	}
	hits, _ = idx.Search(context.Background(), []float32{1, 0}, 1)
	if len(hits) == 0 || !strings.Contains(hits[0].Chunk.Text, "New version") {
		t.Errorf("persisted index is stale: %+v", hits)
	}
}
