package jobModel

import (
	"context"
	"time"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
)

type JobStatus string
type InternalStatus string

type JobType string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusError    JobStatus = "Error"

	JobInit        InternalStatus = "Init"
	IndexCall      InternalStatus = "Index"
	ChunkModelCall InternalStatus = "ChunkModel"
	MergeCall      InternalStatus = "Merge"
	ValidateCall   InternalStatus = "Validate"
	Error          InternalStatus = "Error"
	Complete       InternalStatus = "Complete"

	JobTypeIndex     JobType = "Index"
	JobTypeSummarize JobType = "Summarize"
	JobTypeTranslate JobType = "Translate"
	JobTypeExtract   JobType = "Extract"
)

type Job struct {
	Id          string                    `json:"id"`
	TraceId     string                    `json:"trace_id"`
	JobType     JobType                   `json:"job_type"`
	Identity    docModel.DocumentIdentity `json:"identity"`
	JobPayload  JobPayload                `json:"job_payload"`
	Error       JobError                  `json:"error,omitempty"`
	CreatedTime time.Time                 `json:"created_time"`
	EndTime     time.Time                 `json:"end_time,omitempty"`
	Status      JobStatus                 `json:"status"`
	CurrentStep InternalStatus            `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

// JobPayload holds the parameters on the way in and the result on the way out.
type JobPayload struct {
	Ratio    float64 `json:"ratio,omitempty"`
	Language string  `json:"language,omitempty"`

	Summary       string         `json:"summary,omitempty"`
	OriginalWords int            `json:"original_words,omitempty"`
	SummaryWords  int            `json:"summary_words,omitempty"`
	Translation   string         `json:"translation,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
	ChunkCount    int            `json:"chunk_count,omitempty"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}

// HistoryStore is the write-mostly record of answered questions.
type HistoryStore interface {
	Log(ctx context.Context, record docModel.HistoryRecord) error
	List(ctx context.Context, ownerId string, documentRef string) ([]docModel.HistoryRecord, error)
}
