package job

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/akolanti/DocuSense/internal/adapter/utils"
	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/metrics"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

type Service struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	HistoryStore      jobModel.HistoryStore
	logger            *logger_i.Logger
}

type ServiceConfig struct {
	JobChannel        chan jobModel.Job
	RequestCount      int64
	DispatcherChannel chan bool
	JobStore          jobModel.JobStore
	HistoryStore      jobModel.HistoryStore
}

func InitJobService(cfg ServiceConfig) *Service {
	return &Service{
		JobChannel:        cfg.JobChannel,
		RequestCount:      cfg.RequestCount,
		DispatcherChannel: cfg.DispatcherChannel,
		JobStore:          cfg.JobStore,
		HistoryStore:      cfg.HistoryStore,
		logger:            logger_i.NewLogger("JobService"),
	}
}

// Enqueue saves a new job and hands it to the worker pool. Every
// RequestsPerNewWorkerCount jobs the dispatcher is asked for another worker.
func (s *Service) Enqueue(ctx context.Context, jobType jobModel.JobType, identity docModel.DocumentIdentity, payload jobModel.JobPayload) (jobModel.Job, error) {
	traceId, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	newJob := jobModel.Job{
		Id:          utils.GetNewUUID(),
		TraceId:     traceId,
		JobType:     jobType,
		Identity:    identity,
		JobPayload:  payload,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.JobInit,
	}

	if err := s.JobStore.SaveJob(ctx, newJob); err != nil {
		return jobModel.Job{}, ragErrors.New(ragErrors.Internal, "saving job", err)
	}

	select {
	case s.JobChannel <- newJob:
	case <-ctx.Done():
		return jobModel.Job{}, ctx.Err()
	}
	metrics.IncrementJobsInQueue()

	if atomic.AddInt64(&s.RequestCount, 1)%config.RequestsPerNewWorkerCount == 0 {
		select {
		case s.DispatcherChannel <- true:
			metrics.StartDispatcherSignalCount()
		default:
		}
	}
	s.logger.WithTrace(ctx).Info("job queued", "jobId", newJob.Id, "jobType", jobType, "identity", identity.Key())
	return newJob, nil
}

// GetJob only returns jobs that belong to ownerId.
func (s *Service) GetJob(ctx context.Context, jobId string, ownerId string) (jobModel.Job, error) {
	j, found := s.JobStore.GetJob(ctx, jobId)
	if !found || j.Identity.OwnerId != ownerId {
		return jobModel.Job{}, ragErrors.New(ragErrors.NotFound, "job "+jobId, nil)
	}
	return j, nil
}
