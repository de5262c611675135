package store

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

var inMemLogger = logger_i.NewLogger("InMem JobStore")

type storedJob struct {
	job     jobModel.Job
	savedAt time.Time
}

// InMemoryJobStore is the fallback when Redis is down. Entries expire after
// the same TTL the Redis store uses.
type InMemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]storedJob
	ttl  time.Duration
	now  func() time.Time
}

func InitInMemoryJobStore() *InMemoryJobStore {
	return &InMemoryJobStore{
		jobs: make(map[string]storedJob),
		ttl:  config.GetDuration("REDIS_JOB_TTL", config.RedisJobStoreTTL),
		now:  time.Now,
	}
}

func (s *InMemoryJobStore) SaveJob(ctx context.Context, j jobModel.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.Id] = storedJob{job: j, savedAt: s.now()}
	s.pruneLocked()
	inMemLogger.WithTrace(ctx).Debug("saved job", "jobId", j.Id, "status", j.Status)
	return nil
}

func (s *InMemoryJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.jobs[jobId]
	if !ok || s.expired(stored) {
		return jobModel.Job{}, false
	}
	return stored.job, true
}

func (s *InMemoryJobStore) DeleteJob(ctx context.Context, jobId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobId)
}

func (s *InMemoryJobStore) expired(stored storedJob) bool {
	return s.ttl > 0 && s.now().Sub(stored.savedAt) > s.ttl
}

func (s *InMemoryJobStore) pruneLocked() {
	for id, stored := range s.jobs {
		if s.expired(stored) {
			delete(s.jobs, id)
		}
	}
}
