package handlers

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/akolanti/DocuSense/internal/adapter"
	"github.com/akolanti/DocuSense/internal/api"
	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/domain/docModel"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
	"github.com/akolanti/DocuSense/internal/rag/ingest/blob"
	"github.com/bytedance/sonic"
)

const maxJSONBody = 1 << 20

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := sonic.ConfigStd.NewEncoder(w).Encode(data); err != nil {
		// headers are gone, nothing left but logging
		logRH.Error("Error encoding response", "error", err)
	}
}

func traceOf(ctx context.Context) string {
	trace, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return trace
}

func ownerOf(ctx context.Context) string {
	owner, _ := ctx.Value(config.OWNER_ID_KEY).(string)
	return owner
}

// WriteError turns any error into the JSON error contract.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code, body := adapter.ToErrorResponse(err, traceOf(r.Context()))
	if code >= http.StatusInternalServerError {
		logRH.WithTrace(r.Context()).Error("request failed", "path", r.URL.Path, "kind", body.Kind, "error", err)
	} else {
		logRH.WithTrace(r.Context()).Warn("request rejected", "path", r.URL.Path, "kind", body.Kind, "message", body.Message)
	}
	writeJsonResponse(w, code, body)
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, kind string, message string, traceId string) {
	writeJsonResponse(w, httpCode, api.ErrorResponse{Kind: kind, Message: message, TraceId: traceId})
}

func invalid(message string) error {
	return ragErrors.New(ragErrors.InvalidInput, message, nil)
}

func decodeBody(r *http.Request, dst any) error {
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logRH.Error("Couldn't close the request body", "error", err)
		}
	}(r.Body)
	if err := sonic.ConfigStd.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst); err != nil {
		return ragErrors.New(ragErrors.InvalidInput, "malformed JSON body", err)
	}
	return nil
}

var unsafeOwnerChars = regexp.MustCompile(`[^A-Za-z0-9_.@-]`)

// ownerDir is the owner's folder under the upload root.
func (h *Handler) ownerDir(owner string) string {
	safe := strings.Trim(unsafeOwnerChars.ReplaceAllString(owner, "_"), ".")
	if safe == "" {
		safe = "_"
	}
	return filepath.Join(h.uploadDir, safe)
}

func (h *Handler) identity(ctx context.Context, req api.DocumentRequest) (docModel.DocumentIdentity, error) {
	return h.ResolveIdentity(ownerOf(ctx), req)
}

// ResolveIdentity validates the requested document and builds the identity.
// Local documents must live in the owner's upload folder; URLs must point at
// an allowed blob host.
func (h *Handler) ResolveIdentity(owner string, req api.DocumentRequest) (docModel.DocumentIdentity, error) {
	if owner == "" {
		return docModel.DocumentIdentity{}, ragErrors.New(ragErrors.InvalidInput, "no owner on the request", nil)
	}
	ref := strings.TrimSpace(req.Document)
	if ref == "" {
		return docModel.DocumentIdentity{}, invalid("document is required")
	}
	if docModel.IsRemoteRef(ref) {
		if !blob.HostAllowed(ref, h.blobHosts) {
			return docModel.DocumentIdentity{}, invalid("document host is not an allowed blob store")
		}
	} else {
		resolved, err := h.localDocument(owner, ref)
		if err != nil {
			return docModel.DocumentIdentity{}, err
		}
		ref = resolved
	}
	return docModel.NewIdentity(owner, ref, req.Domain), nil
}

func (h *Handler) localDocument(owner string, ref string) (string, error) {
	root, err := filepath.Abs(h.ownerDir(owner))
	if err != nil {
		return "", ragErrors.New(ragErrors.Internal, "resolving upload folder", err)
	}
	path, err := filepath.Abs(ref)
	if err != nil {
		return "", invalid("bad document path")
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ragErrors.New(ragErrors.NotFound, "document "+ref, nil)
	}
	return path, nil
}
