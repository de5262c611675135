package localDB

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/vectorDB"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"github.com/bytedance/sonic"
)

const indexFile = "index.json"

type persistedIndex struct {
	Identity  string           `json:"identity"`
	BuiltAt   time.Time        `json:"built_at"`
	Dimension int              `json:"dimension"`
	Chunks    []docModel.Chunk `json:"chunks"`
	Vectors   [][]float32      `json:"vectors"`
}

// Store keeps one index file per identity under root/<storage key>/.
type Store struct {
	root string
}

func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) path(identity docModel.DocumentIdentity) string {
	return filepath.Join(s.root, identity.StorageKey(), indexFile)
}

func (s *Store) Exists(ctx context.Context, identity docModel.DocumentIdentity) (bool, error) {
	_, err := os.Stat(s.path(identity))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Store) Load(ctx context.Context, identity docModel.DocumentIdentity) (vectorDB.Index, error) {
	raw, err := os.ReadFile(s.path(identity))
	if err != nil {
		return nil, ragErrors.New(ragErrors.IndexLoadFailed, "reading index file", err)
	}

	var p persistedIndex
	if err := sonic.ConfigStd.Unmarshal(raw, &p); err != nil {
		return nil, ragErrors.New(ragErrors.IndexLoadFailed, "decoding index file", err)
	}
	if err := validate(p, identity); err != nil {
		return nil, ragErrors.New(ragErrors.IndexLoadFailed, "invalid index file", err)
	}
	return vectorDB.NewMemoryIndex(p.Identity, p.BuiltAt, p.Chunks, p.Vectors), nil
}

func validate(p persistedIndex, identity docModel.DocumentIdentity) error {
	if p.Identity != identity.Key() {
		return fmt.Errorf("index belongs to %q", p.Identity)
	}
	if len(p.Chunks) == 0 || len(p.Chunks) != len(p.Vectors) {
		return fmt.Errorf("%d chunks for %d vectors", len(p.Chunks), len(p.Vectors))
	}
	for i, v := range p.Vectors {
		if len(v) != p.Dimension || p.Dimension == 0 {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), p.Dimension)
		}
	}
	return nil
}

// Save writes to a temp file and renames it so a crash never leaves a half
// written index behind.
func (s *Store) Save(ctx context.Context, identity docModel.DocumentIdentity, chunks []docModel.Chunk, vectors [][]float32) (vectorDB.Index, error) {
	logger := logger_i.FromContext(ctx, "localDB")

	if len(chunks) == 0 || len(chunks) != len(vectors) {
		return nil, fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}
	p := persistedIndex{
		Identity:  identity.Key(),
		BuiltAt:   time.Now().UTC(),
		Dimension: len(vectors[0]),
		Chunks:    chunks,
		Vectors:   vectors,
	}
	raw, err := sonic.ConfigStd.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encoding index: %w", err)
	}

	dir := filepath.Dir(s.path(identity))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, indexFile+".*")
	if err != nil {
		return nil, fmt.Errorf("creating index temp file: %w", err)
	}
	_, err = tmp.Write(raw)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), s.path(identity))
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("writing index: %w", err)
	}

	logger.Debug("index saved", "identity", identity.Key(), "chunks", len(chunks), "dir", dir)
	return vectorDB.NewMemoryIndex(p.Identity, p.BuiltAt, chunks, vectors), nil
}

func (s *Store) Drop(ctx context.Context, identity docModel.DocumentIdentity) error {
	return os.RemoveAll(filepath.Dir(s.path(identity)))
}
