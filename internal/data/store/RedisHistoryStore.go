package store

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/data/redisStore"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"github.com/bytedance/sonic"
)

// RedisHistoryStore keeps one list of answered questions per owner and
// document, oldest first.
type RedisHistoryStore struct {
	store  *redisStore.Store
	ttl    time.Duration
	logger *logger_i.Logger
}

func GetRedisHistoryStore(ctx context.Context) (*RedisHistoryStore, error) {
	s, err := redisStore.GetRedisStore(ctx, config.RedisHistoryStore)
	if err != nil {
		return nil, err
	}
	return NewRedisHistoryStore(s), nil
}

func NewRedisHistoryStore(s *redisStore.Store) *RedisHistoryStore {
	return &RedisHistoryStore{
		store:  s,
		ttl:    config.GetDuration("REDIS_HISTORY_TTL", config.RedisHistoryStoreTTL),
		logger: logger_i.NewLogger("HistoryStore"),
	}
}

func historyKey(ownerId string, documentRef string) string {
	return "history:" + ownerId + "::" + documentRef
}

func stamp(record docModel.HistoryRecord) docModel.HistoryRecord {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	return record
}

func (s *RedisHistoryStore) Log(ctx context.Context, record docModel.HistoryRecord) error {
	data, err := sonic.ConfigStd.Marshal(stamp(record))
	if err != nil {
		return fmt.Errorf("encoding history record: %w", err)
	}
	if err := s.store.ListAppend(ctx, historyKey(record.OwnerId, record.DocumentRef), data, s.ttl); err != nil {
		return fmt.Errorf("saving history record: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) List(ctx context.Context, ownerId string, documentRef string) ([]docModel.HistoryRecord, error) {
	log := s.logger.WithTrace(ctx).With("ownerId", ownerId)

	raw, err := s.store.ListGetAll(ctx, historyKey(ownerId, docModel.NormalizeRef(documentRef)))
	if err != nil && !s.store.IsNil(err) {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	records := make([]docModel.HistoryRecord, 0, len(raw))
	for _, r := range raw {
		var rec docModel.HistoryRecord
		if err := sonic.ConfigStd.UnmarshalFromString(r, &rec); err != nil {
			log.Warn("skipping unreadable history record", "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}
