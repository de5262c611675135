package memory

import (
	"context"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/data/redisStore"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"github.com/bytedance/sonic"
)

// RedisStore keeps turns as a JSON list per identity, so memory survives a
// restart. GetOrCreate returns a snapshot of the newest window.
type RedisStore struct {
	store  *redisStore.Store
	window int
	ttl    time.Duration
	logger *logger_i.Logger
}

func NewRedisStore(store *redisStore.Store) *RedisStore {
	return &RedisStore{
		store:  store,
		window: config.GetInt("MEMORY_WINDOW", config.MemoryWindow),
		ttl:    config.RedisMessageStoreTTL,
		logger: logger_i.NewLogger("MemoryStore"),
	}
}

func memoryKey(identity docModel.DocumentIdentity) string {
	return "memory:" + identity.Key()
}

func (s *RedisStore) GetOrCreate(ctx context.Context, identity docModel.DocumentIdentity) (*Conversation, error) {
	log := s.logger.WithTrace(ctx).With("identity", identity.Key())

	raw, err := s.store.ListGetLast(ctx, memoryKey(identity), s.window)
	if err != nil && !s.store.IsNil(err) {
		log.Error("reading conversation", "error", err)
		return nil, ragErrors.New(ragErrors.Internal, "reading conversation memory", err)
	}

	turns := make([]docModel.Turn, 0, len(raw))
	for _, r := range raw {
		var t docModel.Turn
		if err := sonic.ConfigStd.UnmarshalFromString(r, &t); err != nil {
			log.Warn("skipping unreadable turn", "error", err)
			continue
		}
		turns = append(turns, t)
	}
	return newConversation(identity.Key(), turns), nil
}

func (s *RedisStore) Append(ctx context.Context, identity docModel.DocumentIdentity, question, answer string) error {
	data, err := sonic.ConfigStd.Marshal(docModel.Turn{Question: question, Answer: answer, At: time.Now().UTC()})
	if err != nil {
		return ragErrors.New(ragErrors.Internal, "encoding turn", err)
	}
	if err := s.store.ListAppend(ctx, memoryKey(identity), data, s.ttl); err != nil {
		s.logger.WithTrace(ctx).Error("saving turn", "identity", identity.Key(), "error", err)
		return ragErrors.New(ragErrors.Internal, "saving conversation turn", err)
	}
	return nil
}
