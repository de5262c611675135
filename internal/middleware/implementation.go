package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/akolanti/DocuSense/internal/adapter/utils"
	"github.com/akolanti/DocuSense/internal/config"
	"github.com/akolanti/DocuSense/internal/handlers"
	"github.com/akolanti/DocuSense/internal/domain/ragErrors"
)

func injectTrace(re requestResponseStruct) requestResponseStruct {
	req := re.req
	if req == nil {
		re.badRequest = failureStruct{isBadRequest: true, httpCode: http.StatusBadRequest, errorMessage: "request is empty"}
		return re
	}
	trace := req.Header.Get("X-Trace-Id")
	if trace == "" {
		trace = utils.GetNewUUID()
	}
	re.logger = re.logger.With("traceId", trace)
	ctx := context.WithValue(req.Context(), config.TRACE_ID_KEY, trace)
	re.writer.Header().Set("X-Trace-Id", trace)
	re.req = req.WithContext(ctx)
	re.traceId = trace
	return re
}

// authenticate puts the verified owner id on the request context.
func authenticate(re requestResponseStruct) requestResponseStruct {
	owner := config.DevOwnerId
	if !config.GetBool("NO_AUTH_BYPASS", config.NoAuthBypass) {
		var err error
		owner, err = OwnerFromToken(re.req.Header.Get("Authorization"), []byte(config.JWTSecret()))
		if err != nil {
			re.logger.Warn("Unauthorized request", "error", err)
			re.badRequest = failureStruct{isBadRequest: true, httpCode: http.StatusUnauthorized, errorMessage: "invalid or missing bearer token"}
			return re
		}
	} else {
		re.logger.Warn("auth bypass is on, every request acts as " + owner)
	}
	re.logger = re.logger.With("ownerId", owner)
	re.req = re.req.WithContext(context.WithValue(re.req.Context(), config.OWNER_ID_KEY, owner))
	return re
}

func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func rateLimiter(re requestResponseStruct) requestResponseStruct {
	ip := clientIP(re.req)
	if !limiterInstance.GetLimiter(ip).Allow() {
		re.logger.Warn("Rate limit exceeded", "ip", ip)
		re.badRequest = failureStruct{
			isBadRequest: true,
			httpCode:     http.StatusTooManyRequests,
			errorMessage: "rate limit exceeded",
		}
	}
	return re
}

func handleBadRequest(re requestResponseStruct) {
	re.logger.Warn("Bad request", "httpCode", re.badRequest.httpCode, "errorMessage", re.badRequest.errorMessage, "ip", clientIP(re.req))
	kind := string(ragErrors.InvalidInput)
	switch re.badRequest.httpCode {
	case http.StatusUnauthorized:
		kind = "Unauthorized"
	case http.StatusTooManyRequests:
		kind = "RateLimited"
	}
	handlers.WriteErrorResponse(re.writer, re.badRequest.httpCode, kind, re.badRequest.errorMessage, re.traceId)
}
