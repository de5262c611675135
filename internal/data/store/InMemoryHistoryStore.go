package store

import (
	"context"
	"slices"
	"sync"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
)

type InMemoryHistoryStore struct {
	mu      sync.RWMutex
	records map[string][]docModel.HistoryRecord
}

func InitInMemoryHistoryStore() *InMemoryHistoryStore {
	return &InMemoryHistoryStore{records: make(map[string][]docModel.HistoryRecord)}
}

func (h *InMemoryHistoryStore) Log(ctx context.Context, record docModel.HistoryRecord) error {
	key := historyKey(record.OwnerId, record.DocumentRef)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[key] = append(h.records[key], stamp(record))
	return nil
}

func (h *InMemoryHistoryStore) List(ctx context.Context, ownerId string, documentRef string) ([]docModel.HistoryRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.records[historyKey(ownerId, docModel.NormalizeRef(documentRef))]), nil
}
