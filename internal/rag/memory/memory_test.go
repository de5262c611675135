package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/akolanti/DocuSense/internal/data/redisStore"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var bob = docModel.NewIdentity("bob", "/docs/lease.pdf", "legal")

func TestInMemoryStore_AppendVisibleToNextCall(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.Append(ctx, bob, "Who signed?", "Both tenants."); err != nil {
		t.Fatal(err)
	}
	c, err := s.GetOrCreate(ctx, bob)
	if err != nil {
		t.Fatal(err)
	}
	turns := c.Recent(0)
	if len(turns) != 1 || turns[0].Question != "Who signed?" || turns[0].Answer != "Both tenants." {
		t.Errorf("unexpected turns: %+v", turns)
	}
}

func TestInMemoryStore_SameHandle(t *testing.T) {
	s := NewInMemoryStore()
	a, _ := s.GetOrCreate(context.Background(), bob)
	b, _ := s.GetOrCreate(context.Background(), bob)
	if a != b {
		t.Error("expected one conversation per identity")
	}
	other, _ := s.GetOrCreate(context.Background(), docModel.NewIdentity("carol", "/docs/lease.pdf", ""))
	if other == a {
		t.Error("different owners must not share a conversation")
	}
}

func TestInMemoryStore_OrderFollowsAppendOrder(t *testing.T) {
	s := NewInMemoryStore()
	for i := 0; i < 10; i++ {
		_ = s.Append(context.Background(), bob, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}
	c, _ := s.GetOrCreate(context.Background(), bob)
	recent := c.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(recent))
	}
	for i, want := range []string{"q7", "q8", "q9"} {
		if recent[i].Question != want {
			t.Errorf("turn %d = %s; want %s", i, recent[i].Question, want)
		}
	}
}

func TestInMemoryStore_RecentIsACopy(t *testing.T) {
	s := NewInMemoryStore()
	_ = s.Append(context.Background(), bob, "q", "a")
	c, _ := s.GetOrCreate(context.Background(), bob)
	turns := c.Recent(0)
	turns[0].Answer = "changed"
	if c.Recent(0)[0].Answer != "a" {
		t.Error("Recent must not expose internal state")
	}
}

func TestInMemoryStore_ConcurrentAppends(t *testing.T) {
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Append(context.Background(), bob, fmt.Sprint(i), "x")
		}(i)
	}
	wg.Wait()
	c, _ := s.GetOrCreate(context.Background(), bob)
	if c.Len() != 100 {
		t.Errorf("expected 100 turns, got %d", c.Len())
	}
}

func newRedisMemory(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(redisStore.NewTestStore(client)), mr
}

func TestRedisStore_WindowAndOrder(t *testing.T) {
	s, mr := newRedisMemory(t)
	s.window = 2
	ctx := context.Background()

	for _, q := range []string{"first", "second", "third"} {
		if err := s.Append(ctx, bob, q, "answer to "+q); err != nil {
			t.Fatal(err)
		}
	}

	c, err := s.GetOrCreate(ctx, bob)
	if err != nil {
		t.Fatal(err)
	}
	turns := c.Recent(0)
	if len(turns) != 2 || turns[0].Question != "second" || turns[1].Question != "third" {
		t.Errorf("unexpected window: %+v", turns)
	}
	if ttl := mr.TTL(memoryKey(bob)); ttl <= 0 {
		t.Errorf("expected a TTL on the memory key, got %v", ttl)
	}
}

func TestRedisStore_EmptyConversation(t *testing.T) {
	s, _ := newRedisMemory(t)
	c, err := s.GetOrCreate(context.Background(), bob)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Errorf("expected an empty conversation, got %d turns", c.Len())
	}
}

func TestRedisStore_SkipsUnreadableTurns(t *testing.T) {
	s, mr := newRedisMemory(t)
	if _, err := mr.RPush(memoryKey(bob), "not json"); err != nil {
		t.Fatal(err)
	}
	_ = s.Append(context.Background(), bob, "q", "a")

	c, err := s.GetOrCreate(context.Background(), bob)
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 {
		t.Errorf("expected the garbage entry to be skipped, got %d turns", c.Len())
	}
}
