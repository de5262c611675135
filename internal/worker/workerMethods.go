package worker

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	jobmodel "github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/metrics"
)

func executeJob(job jobmodel.Job) {
	start := time.Now()
	ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, job.TraceId)
	log := logger.WithTrace(ctx).With("jobId", job.Id, "jobType", job.JobType)
	log.Debug("Processing job")

	saveJobState(ctx, job, jobmodel.JobStatusRunning)

	step := func(st jobmodel.InternalStatus) {
		job.CurrentStep = st
		saveJobState(ctx, job, jobmodel.JobStatusRunning)
	}
	job = process(ctx, job, step)

	job.EndTime = time.Now()
	saveJobState(ctx, job, job.Status)
	metrics.CaptureJobMetrics(string(job.Status), time.Since(start))
	log.Debug("Job done", "status", job.Status)
}

// process keeps a panicking job from taking its worker down; the job is
// stored as an internal error instead.
func process(ctx context.Context, job jobmodel.Job, step func(jobmodel.InternalStatus)) (out jobmodel.Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithTrace(ctx).Error("Job panicked", "jobId", job.Id, "panic", r)
			out = job
			out.Status = jobmodel.JobStatusError
			out.CurrentStep = jobmodel.Error
			out.Error = jobmodel.JobError{
				Code:    http.StatusInternalServerError,
				Kind:    string(ragErrors.Internal),
				Message: "job stopped unexpectedly",
				Retry:   true,
			}
		}
	}()
	return _ragService.ProcessJob(ctx, job, step)
}

func removeWorker(reason string) {
	atomic.AddInt64(&currentWorkerCount, -1)
	releaseWorker(reason)
}

// tryRetire takes one worker off the count unless that would drop the pool
// below minWorkerCount.
func tryRetire() bool {
	for {
		count := atomic.LoadInt64(&currentWorkerCount)
		if count <= atomic.LoadInt64(&minWorkerCount) {
			return false
		}
		if atomic.CompareAndSwapInt64(&currentWorkerCount, count, count-1) {
			return true
		}
	}
}

func releaseWorker(reason string) {
	metrics.DecrementActiveWorkerCount()
	logger.Info("Removed worker", "reason", reason, "workerCount", atomic.LoadInt64(&currentWorkerCount))
	workerWaitGroup.Done()
}

func saveJobState(ctx context.Context, job jobmodel.Job, jobStatus jobmodel.JobStatus) {
	job.Status = jobStatus
	if err := _jobService.JobStore.SaveJob(ctx, job); err != nil {
		logger.WithTrace(ctx).Error("Failed to update job state", "jobId", job.Id, "error", err)
	}
}
