package handlers

import (
	"fmt"
	"net/http"

	"github.com/akolanti/DocuSense/internal/adapter"
	"github.com/akolanti/DocuSense/internal/api"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/bytedance/sonic"
)

// ChatStreamHandler godoc
// @Summary      Ask a question and stream the answer
// @Description  Server-sent events: token, retract (discard the text so far, a fallback answer follows), done (the full final answer) or error. Failures before the first token are plain JSON errors.
// @Tags         Chat
// @Accept       json
// @Produce      text/event-stream
// @Param        request  body      api.ChatRequest  true  "Document, domain and question"
// @Success      200      {object}  api.StreamEvent
// @Failure      400      {object}  api.ErrorResponse
// @Failure      502      {object}  api.ErrorResponse
// @Router       /chat/stream [post]
func (h *Handler) ChatStreamHandler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, ragErrors.New(ragErrors.Internal, "streaming unsupported", nil))
		return
	}

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

	fragments, err := h.answers.StreamAnswer(r.Context(), req.Question, identity)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := logRH.WithTrace(r.Context()).With("identity", identity.Key())
	// a client that went away cancels the request context, and the
	// orchestrator closes the channel without a terminal fragment
	for f := range fragments {
		if err := writeEvent(w, f); err != nil {
			log.Warn("stream write failed", "error", err)
			continue
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, f docModel.Fragment) error {
	data, err := sonic.ConfigStd.Marshal(adapter.ToStreamEvent(f))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.Kind, data)
	return err
}
