package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/metrics"
	"github.com/akolanti/DocuSense/internal/rag/documents"
	"github.com/akolanti/DocuSense/internal/rag/vectorDB"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

/*
Service is the only thing the worker pool talks to. The concrete service is
unexported so workers never reach the index cache or the model registry
directly, and tests swap the whole thing for a mock.
*/

// Service runs one queued document job to completion.
type Service interface {
	ProcessJob(ctx context.Context, job jobModel.Job, step documents.StepFunc) jobModel.Job
}

type IndexBuilder interface {
	GetOrBuild(ctx context.Context, identity docModel.DocumentIdentity) (vectorDB.Index, error)
}

type DocumentOps interface {
	Summarize(ctx context.Context, identity docModel.DocumentIdentity, ratio float64, step documents.StepFunc) (documents.Summary, error)
	Translate(ctx context.Context, identity docModel.DocumentIdentity, language string, step documents.StepFunc) (documents.Translation, error)
	Extract(ctx context.Context, identity docModel.DocumentIdentity, step documents.StepFunc) (documents.Extraction, error)
}

type service struct {
	indexes   IndexBuilder
	documents DocumentOps
	timeout   time.Duration
	logger    *logger_i.Logger
}

func NewService(indexes IndexBuilder, docs DocumentOps) Service {
	return &service{
		indexes:   indexes,
		documents: docs,
		timeout:   config.GetDuration("JOB_TIMEOUT", config.JobTimeout),
		logger:    logger_i.NewLogger("RAG Service"),
	}
}

func (s *service) ProcessJob(ctx context.Context, job jobModel.Job, step documents.StepFunc) jobModel.Job {
	log := s.logger.WithTrace(ctx).With("jobId", job.Id, "jobType", job.JobType, "identity", job.Identity.Key())

	processContext, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if !job.Identity.Valid() {
		return s.jobError(log, job, ragErrors.New(ragErrors.InvalidInput, "owner and document are required", nil))
	}

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("job_"+string(job.JobType), time.Since(start)) }()

	var err error
	switch job.JobType {
	case jobModel.JobTypeIndex:
		job, err = s.executeIndexStep(processContext, log, job, step)
	case jobModel.JobTypeSummarize:
		job, err = s.executeSummarizeStep(processContext, job, step)
	case jobModel.JobTypeTranslate:
		job, err = s.executeTranslateStep(processContext, job, step)
	case jobModel.JobTypeExtract:
		job, err = s.executeExtractStep(processContext, job, step)
	default:
		err = ragErrors.New(ragErrors.InvalidInput, fmt.Sprintf("unsupported job type %q", job.JobType), nil)
	}
	if err != nil {
		return s.jobError(log, job, err)
	}
	log.Info("job finished", "took", time.Since(start))
	return returnOutput(job)
}
