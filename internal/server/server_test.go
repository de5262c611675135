package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/akolanti/DocuSense/internal/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestRoutes(t *testing.T) {
	t.Setenv("NO_AUTH_BYPASS", "false")
	t.Setenv("JWT_SECRET", "route-secret")
	handlers.InitHandler(handlers.Deps{})

	var mcpHits int
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { mcpHits++ })

	r := chi.NewRouter()
	registerRoutes(r, handlers.H(), mcp)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"health is public", http.MethodGet, "/healthz", http.StatusOK},
		{"chat needs a token", http.MethodPost, "/chat", http.StatusUnauthorized},
		{"stream needs a token", http.MethodPost, "/chat/stream", http.StatusUnauthorized},
		{"status needs a token", http.MethodGet, "/status/abc", http.StatusUnauthorized},
		{"drop index needs a token", http.MethodDelete, "/documents/index", http.StatusUnauthorized},
		{"old ingest route is gone", http.MethodPost, "/ingest", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/chat", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(`{}`))
			req.RemoteAddr = "10.1.0.1:5000"
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
	req.RemoteAddr = "10.1.0.2:5000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, mcpHits, "mcp handler is behind bearer auth")
}
