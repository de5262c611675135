package rag

import (
	"context"
	"errors"

	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/documents"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

func returnOutput(job jobModel.Job) jobModel.Job {
	job.CurrentStep = jobModel.Complete
	job.Status = jobModel.JobStatusComplete
	job.Error = jobModel.JobError{}
	return job
}

// retryable kinds are the ones a later attempt can plausibly fix.
func retryable(kind ragErrors.Kind) bool {
	switch kind {
	case ragErrors.ModelUnavailable, ragErrors.ModelInferenceFailed, ragErrors.IndexBuildFailed,
		ragErrors.IndexLoadFailed, ragErrors.SearchUnavailable, ragErrors.Internal:
		return true
	}
	return false
}

func (s *service) jobError(log *logger_i.Logger, job jobModel.Job, err error) jobModel.Job {
	kind := ragErrors.KindOf(err)
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ragErrors.Internal
	}
	log.Error("job failed", "kind", kind, "step", job.CurrentStep, "error", err)

	job.Error = jobModel.JobError{
		Code:    ragErrors.HTTPStatus(kind),
		Kind:    string(kind),
		Message: ragErrors.MessageOf(err),
		Retry:   retryable(kind),
	}
	job.Status = jobModel.JobStatusError
	job.CurrentStep = jobModel.Error
	return job
}

// track keeps job.CurrentStep in line with what the document service reports.
func track(job *jobModel.Job, step documents.StepFunc) documents.StepFunc {
	return func(st jobModel.InternalStatus) {
		job.CurrentStep = st
		if step != nil {
			step(st)
		}
	}
}

func (s *service) executeIndexStep(ctx context.Context, log *logger_i.Logger, job jobModel.Job, step documents.StepFunc) (jobModel.Job, error) {
	track(&job, step)(jobModel.IndexCall)
	idx, err := s.indexes.GetOrBuild(ctx, job.Identity)
	if err != nil {
		return job, err
	}
	job.JobPayload.ChunkCount = idx.Size()
	log.Debug("index ready", "chunks", idx.Size(), "builtAt", idx.BuiltAt())
	return job, nil
}

func (s *service) executeSummarizeStep(ctx context.Context, job jobModel.Job, step documents.StepFunc) (jobModel.Job, error) {
	track(&job, step)(jobModel.IndexCall)
	sum, err := s.documents.Summarize(ctx, job.Identity, job.JobPayload.Ratio, track(&job, step))
	if err != nil {
		return job, err
	}
	job.JobPayload.Summary = sum.Text
	job.JobPayload.OriginalWords = sum.OriginalWords
	job.JobPayload.SummaryWords = sum.SummaryWords
	job.JobPayload.ChunkCount = sum.Chunks
	return job, nil
}

func (s *service) executeTranslateStep(ctx context.Context, job jobModel.Job, step documents.StepFunc) (jobModel.Job, error) {
	track(&job, step)(jobModel.IndexCall)
	tr, err := s.documents.Translate(ctx, job.Identity, job.JobPayload.Language, track(&job, step))
	if err != nil {
		return job, err
	}
	job.JobPayload.Language = tr.Language
	job.JobPayload.Translation = tr.Text
	job.JobPayload.ChunkCount = tr.Sections
	return job, nil
}

func (s *service) executeExtractStep(ctx context.Context, job jobModel.Job, step documents.StepFunc) (jobModel.Job, error) {
	track(&job, step)(jobModel.IndexCall)
	ex, err := s.documents.Extract(ctx, job.Identity, track(&job, step))
	if err != nil {
		return job, err
	}
	job.Identity.Domain = ex.Domain
	job.JobPayload.Fields = ex.Fields
	return job, nil
}
