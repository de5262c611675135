package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/akolanti/DocuSense/internal/adapter"
	"github.com/akolanti/DocuSense/internal/adapter/utils"
	"github.com/akolanti/DocuSense/internal/api"
	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/jobModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/documents"
	"github.com/akolanti/DocuSense/internal/rag/ingest"
)

// GetHandler godoc
// @Summary      Liveness probe
// @Tags         Health
// @Success      200
// @Router       /healthz [get]
func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// UploadHandler godoc
// @Summary      Upload a document
// @Description  Saves a PDF, DOCX, ODT, RTF, TXT, MD or image file in the caller's upload folder and returns the reference to use with every other endpoint.
// @Tags         Documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        document  formData  file  true  "The file to upload"
// @Success      201  {object}  api.UploadResponse
// @Failure      400  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /documents/upload [post]
func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	maxSize := int64(config.GetInt("MAX_UPLOAD_SIZE", config.MaxUploadSize))
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		WriteError(w, r, invalid("file too large or not a multipart form"))
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteError(w, r, invalid("could not read the document field"))
		return
	}
	defer fileReader.Close()

	name := filepath.Base(fileMetadata.Filename)
	if !ingest.Supported(name) {
		WriteError(w, r, invalid(fmt.Sprintf("unsupported document type %q", filepath.Ext(name))))
		return
	}

	targetDir := h.ownerDir(ownerOf(r.Context()))
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		WriteError(w, r, ragErrors.New(ragErrors.Internal, "storage error", err))
		return
	}

	target := filepath.Join(targetDir, fmt.Sprintf("%d-%s", time.Now().UnixNano(), name))
	destination, err := os.Create(target)
	if err != nil {
		WriteError(w, r, ragErrors.New(ragErrors.Internal, "storage error", err))
		return
	}
	defer destination.Close()

	size, err := io.Copy(destination, fileReader)
	if err != nil {
		_ = os.Remove(target)
		WriteError(w, r, ragErrors.New(ragErrors.Internal, "write error", err))
		return
	}
	logRH.WithTrace(r.Context()).Info("document uploaded", "path", target, "bytes", size)
	writeJsonResponse(w, http.StatusCreated, api.UploadResponse{DocumentRef: target, Size: size})
}

// IndexHandler godoc
// @Summary      Build or reuse the vector index of a document
// @Description  Queues an index job. Building an index that already exists is a no-op.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        request  body      api.DocumentRequest  true  "Document and domain"
// @Success      202      {object}  api.InitJobResponse
// @Failure      400      {object}  api.ErrorResponse
// @Router       /documents/index [post]
func (h *Handler) IndexHandler(w http.ResponseWriter, r *http.Request) {
	var req api.DocumentRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	h.enqueue(w, r, jobModel.JobTypeIndex, req, jobModel.JobPayload{})
}

// DropIndexHandler godoc
// @Summary      Drop the vector index of a document
// @Description  The next question or index job rebuilds it from the source.
// @Tags         Documents
// @Accept       json
// @Param        request  body  api.DocumentRequest  true  "Document"
// @Success      204
// @Failure      400  {object}  api.ErrorResponse
// @Router       /documents/index [delete]
func (h *Handler) DropIndexHandler(w http.ResponseWriter, r *http.Request) {
	var req api.DocumentRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	identity, err := h.identity(r.Context(), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := h.answers.DropIndex(r.Context(), identity); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChatHandler godoc
// @Summary      Ask a question about a document
// @Description  Answers from the document. A weak answer triggers one web search and a regenerated answer.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        request  body      api.ChatRequest  true  "Document, domain and question"
// @Success      200      {object}  api.ChatResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      422      {object}  api.ErrorResponse
// @Failure      502      {object}  api.ErrorResponse
// @Router       /chat [post]
func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	identity, err := h.identity(r.Context(), req.DocumentRequest)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	res, err := h.answers.Answer(r.Context(), req.Question, identity)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToChatResponse(res))
}

// SummarizeHandler godoc
// @Summary      Summarize a document
// @Description  Queues a summary job. ratio must be strictly between 0.05 and 1, default 0.3.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        request  body      api.SummarizeRequest  true  "Document and ratio"
// @Success      202      {object}  api.InitJobResponse
// @Failure      400      {object}  api.ErrorResponse
// @Router       /summarize [post]
func (h *Handler) SummarizeHandler(w http.ResponseWriter, r *http.Request) {
	var req api.SummarizeRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.Ratio == 0 {
		req.Ratio = config.DefaultSummaryRatio
	}
	if err := documents.ValidateRatio(req.Ratio); err != nil {
		WriteError(w, r, err)
		return
	}
	h.enqueue(w, r, jobModel.JobTypeSummarize, req.DocumentRequest, jobModel.JobPayload{Ratio: req.Ratio})
}

// TranslateHandler godoc
// @Summary      Translate a document
// @Description  Queues a translation job into English, French, German, Spanish, Hindi, Chinese or Arabic.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        request  body      api.TranslateRequest  true  "Document and target language"
// @Success      202      {object}  api.InitJobResponse
// @Failure      400      {object}  api.ErrorResponse
// @Router       /translate [post]
func (h *Handler) TranslateHandler(w http.ResponseWriter, r *http.Request) {
	var req api.TranslateRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	language, err := documents.CanonicalLanguage(req.Language)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	h.enqueue(w, r, jobModel.JobTypeTranslate, req.DocumentRequest, jobModel.JobPayload{Language: language})
}

// ExtractHandler godoc
// @Summary      Extract structured fields
// @Description  Queues an extraction job. The fields depend on the document's domain.
// @Tags         Documents
// @Accept       json
// @Produce      json
// @Param        request  body      api.DocumentRequest  true  "Document and domain"
// @Success      202      {object}  api.InitJobResponse
// @Failure      400      {object}  api.ErrorResponse
// @Router       /extract [post]
func (h *Handler) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	var req api.DocumentRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	h.enqueue(w, r, jobModel.JobTypeExtract, req, jobModel.JobPayload{})
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, jobType jobModel.JobType, req api.DocumentRequest, payload jobModel.JobPayload) {
	identity, err := h.identity(r.Context(), req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	queued, err := h.jobs.Enqueue(r.Context(), jobType, identity, payload)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(queued.Id))
}

// GetStatusHandler godoc
// @Summary      Get job status
// @Description  Returns the status, current step and, once complete, the result of a job.
// @Tags         Job Status
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.JobResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /status/{id} [get]
func (h *Handler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	id := utils.GetChiURLParam(r, "id")
	if id == "" {
		WriteError(w, r, invalid("job id is required"))
		return
	}
	found, err := h.jobs.GetJob(r.Context(), id, ownerOf(r.Context()))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(found))
}

// HistoryHandler godoc
// @Summary      List answered questions for a document
// @Tags         Chat
// @Produce      json
// @Param        document  query     string  true  "Document reference"
// @Success      200       {object}  api.HistoryResponse
// @Failure      400       {object}  api.ErrorResponse
// @Router       /history [get]
func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identity(r.Context(), api.DocumentRequest{Document: r.URL.Query().Get("document")})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	records, err := h.history.List(r.Context(), identity.OwnerId, identity.DocumentRef)
	if err != nil {
		WriteError(w, r, ragErrors.New(ragErrors.Internal, "reading history", err))
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToHistoryResponse(identity.DocumentRef, records))
}
