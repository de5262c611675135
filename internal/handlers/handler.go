package handlers

import (
	"context"
	"sync"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/rag/answer"
	"github.com/akolanti/DocuSense/pkg/logger_i"
)

var (
	handlerInstance *Handler //private singleton
	once            sync.Once
	logRH           = logger_i.NewLogger("RequestHandler")
)

// Answerer is the question-answering side of the service.
type Answerer interface {
	Answer(ctx context.Context, question string, identity docModel.DocumentIdentity) (answer.Result, error)
	StreamAnswer(ctx context.Context, question string, identity docModel.DocumentIdentity) (<-chan docModel.Fragment, error)
	DropIndex(ctx context.Context, identity docModel.DocumentIdentity) error
}

// JobQueue is the async side: long document jobs and their status.
type JobQueue interface {
	Enqueue(ctx context.Context, jobType jobModel.JobType, identity docModel.DocumentIdentity, payload jobModel.JobPayload) (jobModel.Job, error)
	GetJob(ctx context.Context, jobId string, ownerId string) (jobModel.Job, error)
}

type Handler struct {
	answers   Answerer
	jobs      JobQueue
	history   jobModel.HistoryStore
	uploadDir string
	blobHosts []string
}

type Deps struct {
	Answers Answerer
	Jobs    JobQueue
	History jobModel.HistoryStore
}

func InitHandler(deps Deps) {
	once.Do(func() {
		handlerInstance = newHandler(deps)
		logRH.Info("Request handlers ready", "uploadDir", handlerInstance.uploadDir)
	})
}

func newHandler(deps Deps) *Handler {
	return &Handler{
		answers:   deps.Answers,
		jobs:      deps.Jobs,
		history:   deps.History,
		uploadDir: config.GetString("UPLOAD_DIR", config.UploadDir),
		blobHosts: config.BlobAllowedHosts(),
	}
}

// H exposes the singleton for routing and tests that wire their own.
func H() *Handler {
	return handlerInstance
}
