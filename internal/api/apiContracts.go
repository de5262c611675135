package api

import "time"

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Kind    string `json:"kind" example:"InvalidInput"`
	Message string `json:"message" example:"document is required"`
	TraceId string `json:"trace_id,omitempty" example:"1f0c7c55-8d4e-4a53-9a4b-1f7e0e5c2c11"`
}

type JobResponse struct {
	Id          string            `json:"id" example:"job_cz109"`
	JobType     string            `json:"job_type" example:"Summarize"`
	Status      string            `json:"status" example:"RUNNING"`
	CurrentStep string            `json:"current_step" example:"ChunkModel"`
	Document    string            `json:"document" example:"uploaded_docs/dana/lease.pdf"`
	Domain      string            `json:"domain,omitempty" example:"legal"`
	Result      *JobResult        `json:"result,omitempty"`
	Error       *JobOutgoingError `json:"error,omitempty"`
	StartTime   time.Time         `json:"start_time"`
	EndTime     time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"502"`
	Kind    string `json:"kind" example:"ModelInferenceFailed"`
	Message string `json:"message" example:"summarizing chunk 3"`
	Retry   bool   `json:"can_retry" example:"true"`
}

type JobResult struct {
	Summary       string         `json:"summary,omitempty"`
	OriginalWords int            `json:"original_words,omitempty"`
	SummaryWords  int            `json:"summary_words,omitempty"`
	Language      string         `json:"language,omitempty"`
	Translation   string         `json:"translation,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
	ChunkCount    int            `json:"chunk_count,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type Source struct {
	Source   string  `json:"source"`
	Page     int     `json:"page"`
	Sequence int     `json:"sequence"`
	Score    float32 `json:"score"`
}

type ChatResponse struct {
	Answer       string   `json:"answer"`
	FallbackUsed bool     `json:"fallback_used"`
	Reason       string   `json:"weak_reason,omitempty"`
	Sources      []Source `json:"sources"`
}

type UploadResponse struct {
	DocumentRef string `json:"document_ref" example:"uploaded_docs/dana/1712-lease.pdf"`
	Size        int64  `json:"size"`
}

type HistoryItem struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Domain    string    `json:"domain"`
	Fallback  bool      `json:"fallback_used"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Document string        `json:"document"`
	Records  []HistoryItem `json:"records"`
}

// StreamEvent is the data of one server-sent event on /chat/stream.
type StreamEvent struct {
	Text     string `json:"text,omitempty"`
	Fallback bool   `json:"fallback_used,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Message  string `json:"message,omitempty"`
}

// requests---------------------

type DocumentRequest struct {
	Document string `json:"document" validate:"required" example:"uploaded_docs/dana/lease.pdf"`
	Domain   string `json:"domain,omitempty" example:"legal"`
}

type ChatRequest struct {
	DocumentRequest
	Question string `json:"question" validate:"required" example:"When does the lease end?"`
}

type SummarizeRequest struct {
	DocumentRequest
	Ratio float64 `json:"ratio" example:"0.3"`
}

type TranslateRequest struct {
	DocumentRequest
	Language string `json:"language" validate:"required" example:"French"`
}
