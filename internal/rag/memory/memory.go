package memory

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
)

// Store keeps the question/answer turns of one conversation per document
// identity. Appends to the same identity are applied in call order.
type Store interface {
	GetOrCreate(ctx context.Context, identity docModel.DocumentIdentity) (*Conversation, error)
	Append(ctx context.Context, identity docModel.DocumentIdentity, question, answer string) error
}

type Conversation struct {
	Key string

	mu    sync.Mutex
	turns []docModel.Turn
}

func newConversation(key string, turns []docModel.Turn) *Conversation {
	return &Conversation{Key: key, turns: turns}
}

func (c *Conversation) append(question, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, docModel.Turn{Question: question, Answer: answer, At: time.Now().UTC()})
}

// Recent returns a copy of the last n turns, oldest first. n <= 0 returns all.
func (c *Conversation) Recent(n int) []docModel.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := 0
	if n > 0 && len(c.turns) > n {
		from = len(c.turns) - n
	}
	out := make([]docModel.Turn, len(c.turns)-from)
	copy(out, c.turns[from:])
	return out
}

func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// InMemoryStore lives for the process. The map lock covers lookup and insert
// only; each conversation serializes its own appends.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string]*Conversation)}
}

func (s *InMemoryStore) GetOrCreate(ctx context.Context, identity docModel.DocumentIdentity) (*Conversation, error) {
	key := identity.Key()

	s.mu.RLock()
	c, ok := s.conversations[key]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.conversations[key]; ok {
		return c, nil
	}
	c = newConversation(key, nil)
	s.conversations[key] = c
	return c, nil
}

func (s *InMemoryStore) Append(ctx context.Context, identity docModel.DocumentIdentity, question, answer string) error {
	c, err := s.GetOrCreate(ctx, identity)
	if err != nil {
		return err
	}
	c.append(question, answer)
	return nil
}
