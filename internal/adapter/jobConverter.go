package adapter

import (
	"fmt"

	"github.com/akolanti/DocuSense/internal/api"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/answer"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Kind:    job.Error.Kind,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	return api.JobResponse{
		Id:          job.Id,
		JobType:     string(job.JobType),
		Status:      string(job.Status),
		CurrentStep: string(job.CurrentStep),
		Document:    job.Identity.DocumentRef,
		Domain:      string(job.Identity.Domain),
		Result:      toJobResult(job),
		Error:       errorPtr,
		StartTime:   job.CreatedTime,
		EndTime:     job.EndTime,
	}
}

// toJobResult is nil until the job has completed.
func toJobResult(job jobModel.Job) *api.JobResult {
	if job.Status != jobModel.JobStatusComplete {
		return nil
	}
	p := job.JobPayload
	return &api.JobResult{
		Summary:       p.Summary,
		OriginalWords: p.OriginalWords,
		SummaryWords:  p.SummaryWords,
		Language:      p.Language,
		Translation:   p.Translation,
		Fields:        p.Fields,
		ChunkCount:    p.ChunkCount,
	}
}

func ToErrorResponse(err error, traceId string) (int, api.ErrorResponse) {
	kind := ragErrors.KindOf(err)
	return ragErrors.HTTPStatus(kind), api.ErrorResponse{
		Kind:    string(kind),
		Message: ragErrors.MessageOf(err),
		TraceId: traceId,
	}
}

func ToChatResponse(res answer.Result) api.ChatResponse {
	sources := make([]api.Source, 0, len(res.Sources))
	for _, s := range res.Sources {
		sources = append(sources, api.Source(s))
	}
	out := api.ChatResponse{
		Answer:       res.Answer,
		FallbackUsed: res.FallbackUsed,
		Sources:      sources,
	}
	if res.FallbackUsed {
		out.Reason = res.Decision.Reason
	}
	return out
}

func ToHistoryResponse(documentRef string, records []docModel.HistoryRecord) api.HistoryResponse {
	items := make([]api.HistoryItem, 0, len(records))
	for _, r := range records {
		items = append(items, api.HistoryItem{
			Question:  r.Question,
			Answer:    r.Answer,
			Domain:    string(r.Domain),
			Fallback:  r.Fallback,
			CreatedAt: r.CreatedAt,
		})
	}
	return api.HistoryResponse{Document: documentRef, Records: items}
}

func ToStreamEvent(f docModel.Fragment) api.StreamEvent {
	ev := api.StreamEvent{Text: f.Text, Fallback: f.Fallback}
	if f.Kind == docModel.FragmentError {
		ev.Kind = string(ragErrors.KindOf(f.Err))
		ev.Message = ragErrors.MessageOf(f.Err)
	}
	return ev
}
