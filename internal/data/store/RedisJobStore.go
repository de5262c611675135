package store

import (
	"context"
	"fmt"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/data/redisStore"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"github.com/bytedance/sonic"
)

type RedisJobStore struct {
	store  *redisStore.Store
	logger *logger_i.Logger
}

func GetRedisJobStore(ctx context.Context) (*RedisJobStore, error) {
	s, err := redisStore.GetRedisStore(ctx, config.RedisJobStore)
	if err != nil {
		return nil, err
	}
	return NewRedisJobStore(s), nil
}

func NewRedisJobStore(s *redisStore.Store) *RedisJobStore {
	return &RedisJobStore{
		store:  s,
		logger: logger_i.NewLogger("JobStore"),
	}
}

func jobKey(id string) string {
	return "job:" + id
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job jobModel.Job) error {
	log := s.logger.WithTrace(ctx).With("jobId", job.Id)
	data, err := sonic.ConfigStd.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job %s: %w", job.Id, err)
	}

	if err = s.store.Set(ctx, jobKey(job.Id), data, config.GetDuration("REDIS_JOB_TTL", config.RedisJobStoreTTL)); err != nil {
		return err
	}
	log.Debug("saved job to redis", "status", job.Status, "step", job.CurrentStep)
	return nil
}

func (s *RedisJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	var job jobModel.Job
	log := s.logger.WithTrace(ctx).With("jobId", jobId)

	val, err := s.store.Get(ctx, jobKey(jobId))
	if s.store.IsNil(err) {
		return job, false
	} else if err != nil {
		log.Error("reading job", "error", err)
		return job, false
	}

	if err = sonic.ConfigStd.UnmarshalFromString(val, &job); err != nil {
		log.Error("decoding job", "error", err)
		return job, false
	}
	return job, true
}

func (s *RedisJobStore) DeleteJob(ctx context.Context, jobID string) {
	if err := s.store.Del(ctx, jobKey(jobID)); err != nil {
		s.logger.WithTrace(ctx).Error("deleting job from redis", "jobId", jobID, "error", err)
		return
	}
	s.logger.WithTrace(ctx).Debug("job deleted from redis", "jobId", jobID)
}
