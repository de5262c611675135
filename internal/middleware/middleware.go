package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/akolanti/DocuSense/internal/metrics"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"github.com/go-chi/chi/v5"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
	traceId    string
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

// Wrap runs trace, rate limit and auth before next, and records the status.
func Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		re := processRequest(requestResponseStruct{req: r, writer: rec})

		if !re.badRequest.isBadRequest {
			next(rec, re.req)
		}

		metrics.HttpRequestsTotal.WithLabelValues(routeOf(r), strconv.Itoa(rec.Status)).Inc()
		re.logger.Debug("Request done", "path", r.URL.Path, "status", rec.Status, "took", time.Since(start))
	}
}

// WrapPublic only injects the trace id. Used for probes.
func WrapPublic(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		re := injectTrace(requestResponseStruct{req: r, writer: w, logger: logger_i.NewLogger("middleware")})
		next(w, re.req)
	}
}

// routeOf keeps the metric label to the route pattern, not the raw path.
func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

func processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = logger_i.NewLogger("middleware")
	for _, step := range []func(requestResponseStruct) requestResponseStruct{injectTrace, rateLimiter, authenticate} {
		re = step(re)
		if re.badRequest.isBadRequest {
			handleBadRequest(re)
			return re
		}
	}
	re.logger.Debug("New request", "method", re.req.Method, "path", re.req.URL.Path)
	return re
}
