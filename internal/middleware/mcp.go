package middleware

import (
	"net/http"
	"strconv"

	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/metrics"
	"github.com/akolanti/DocuSense/pkg/logger_i"
	"github.com/modelcontextprotocol/go-sdk/auth"
)

// WrapMCP applies trace and rate limit; auth is the MCP SDK's bearer check
// backed by the same JWT secret.
func WrapMCP(next http.Handler) http.Handler {
	if !config.GetBool("NO_AUTH_BYPASS", config.NoAuthBypass) {
		next = auth.RequireBearerToken(VerifyMCPToken, nil)(next)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &metrics.HttpStatusRecorder{ResponseWriter: w, Status: http.StatusOK}
		re := requestResponseStruct{req: r, writer: rec, logger: logger_i.NewLogger("middleware")}
		for _, step := range []func(requestResponseStruct) requestResponseStruct{injectTrace, rateLimiter} {
			re = step(re)
			if re.badRequest.isBadRequest {
				handleBadRequest(re)
				break
			}
		}
		if !re.badRequest.isBadRequest {
			next.ServeHTTP(rec, re.req)
		}
		metrics.HttpRequestsTotal.WithLabelValues("/mcp", strconv.Itoa(rec.Status)).Inc()
	})
}
