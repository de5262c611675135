package indexcache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/metrics"
	"github.com/akolanti/DocuSense/internal/rag/embedding"
	"github.com/akolanti/DocuSense/internal/rag/ingest"
	"github.com/akolanti/DocuSense/internal/rag/vectorDB"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"golang.org/x/sync/singleflight"
)

type Extractor interface {
	Extract(ctx context.Context, ref string) ([]docModel.Page, error)
}

type Entry struct {
	Key     string
	Index   vectorDB.Index
	BuiltAt time.Time
}

// Cache hands out one index per identity. The map lock only guards lookups;
// builds are gated per key by the singleflight group, so documents never wait
// on each other.
type Cache struct {
	extractor    Extractor
	chunker      ingest.Chunker
	embedder     embedding.Embedder
	store        vectorDB.IndexStore
	buildTimeout time.Duration

	mu      sync.RWMutex
	entries map[string]*Entry
	gen     map[string]uint64
	group   singleflight.Group

	// held while a build persists and while Invalidate drops, so a build
	// started before an invalidation never writes over it
	persistMu sync.Mutex
}

func New(extractor Extractor, chunker ingest.Chunker, embedder embedding.Embedder, store vectorDB.IndexStore) *Cache {
	return &Cache{
		extractor:    extractor,
		chunker:      chunker,
		embedder:     embedder,
		store:        store,
		buildTimeout: config.IndexBuildTimeout,
		entries:      make(map[string]*Entry),
		gen:          make(map[string]uint64),
	}
}

func (c *Cache) lookup(key string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// GetOrBuild returns the cached index, the persisted one, or builds it. The
// build outlives the caller that started it; a caller whose context ends only
// stops waiting.
func (c *Cache) GetOrBuild(ctx context.Context, identity docModel.DocumentIdentity) (vectorDB.Index, error) {
	if !identity.Valid() {
		return nil, ragErrors.New(ragErrors.InvalidInput, "owner and document are required", nil)
	}
	key := identity.Key()

	if e, ok := c.lookup(key); ok {
		metrics.IndexCacheHit("memory")
		return e.Index, nil
	}

	startGen := c.generation(key)
	ch := c.group.DoChan(key+"#"+strconv.FormatUint(startGen, 10), func() (any, error) {
		if e, ok := c.lookup(key); ok {
			return e, nil
		}

		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.buildTimeout)
		defer cancel()

		idx, err := c.loadOrBuild(buildCtx, identity, startGen)
		if err != nil {
			return nil, err
		}
		e := &Entry{Key: key, Index: idx, BuiltAt: idx.BuiltAt()}

		c.mu.Lock()
		if c.gen[key] == startGen {
			c.entries[key] = e
		}
		c.mu.Unlock()
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Entry).Index, nil
	}
}

func (c *Cache) generation(key string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen[key]
}

func (c *Cache) loadOrBuild(ctx context.Context, identity docModel.DocumentIdentity, startGen uint64) (vectorDB.Index, error) {
	logger := logger_i.FromContext(ctx, "index cache").With("identity", identity.Key())

	exists, err := c.store.Exists(ctx, identity)
	if err != nil {
		metrics.IndexBuilt(false)
		return nil, ragErrors.New(ragErrors.IndexBuildFailed, "checking persisted index", err)
	}

	if exists {
		idx, err := c.store.Load(ctx, identity)
		if err == nil {
			metrics.IndexCacheHit("persisted")
			logger.Debug("loaded persisted index", "chunks", idx.Size(), "builtAt", idx.BuiltAt())
			return idx, nil
		}
		logger.Warn("persisted index unreadable, rebuilding", "error", err)
		if dropErr := c.store.Drop(ctx, identity); dropErr != nil {
			metrics.IndexBuilt(false)
			return nil, ragErrors.New(ragErrors.IndexLoadFailed, "dropping unreadable index", dropErr)
		}
	}

	idx, err := c.build(ctx, identity, startGen, logger)
	metrics.IndexBuilt(err == nil)
	return idx, err
}

func (c *Cache) build(ctx context.Context, identity docModel.DocumentIdentity, startGen uint64, logger *logger_i.Logger) (vectorDB.Index, error) {
	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("index_build", time.Since(start)) }()

	pages, err := c.extractor.Extract(ctx, identity.DocumentRef)
	if err != nil {
		return nil, ragErrors.New(ragErrors.IndexBuildFailed, "extraction", err)
	}

	chunks := c.chunker.PrepareChunks(pages, identity.DocumentRef)
	if len(chunks) == 0 {
		return nil, ragErrors.New(ragErrors.IndexBuildFailed, "no chunks", ragErrors.ErrNoReadableContent)
	}

	metrics.EmbeddingPass()
	vectors, err := ingest.EmbedChunks(ctx, chunks, c.embedder)
	if err != nil {
		return nil, ragErrors.New(ragErrors.IndexBuildFailed, "embedding", err)
	}

	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if c.generation(identity.Key()) != startGen {
		// invalidated mid build: serve the waiters, keep storage clean
		logger.Info("index invalidated during build, not persisting")
		return vectorDB.NewMemoryIndex(identity.Key(), time.Now().UTC(), chunks, vectors), nil
	}

	idx, err := c.store.Save(ctx, identity, chunks, vectors)
	if err != nil {
		return nil, ragErrors.New(ragErrors.IndexBuildFailed, "persisting", err)
	}

	logger.Info("index built", "pages", len(pages), "chunks", len(chunks), "took", time.Since(start))
	return idx, nil
}

// Invalidate forgets the identity's index and drops the persisted copy. A build
// already in flight still completes for its waiters but is neither cached nor
// persisted, and later callers start a fresh build.
func (c *Cache) Invalidate(ctx context.Context, identity docModel.DocumentIdentity) error {
	key := identity.Key()
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	dropErr := c.store.Drop(ctx, identity)

	c.mu.Lock()
	delete(c.entries, key)
	c.gen[key]++
	c.mu.Unlock()

	if dropErr != nil {
		return ragErrors.New(ragErrors.Internal, "dropping persisted index", dropErr)
	}
	return nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
