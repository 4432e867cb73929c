package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	callerKey    contextKey = "caller"
)

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerMiddleware resolves the caller identity from the X-Caller-Address
// header. Authentication is delegated to the fronting proxy; the engine only
// needs the already-verified address.
func callerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get("X-Caller-Address"))
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing_caller", "X-Caller-Address is required", requestIDFromContext(r.Context()))
			return
		}
		if !common.IsHexAddress(raw) {
			writeError(w, http.StatusBadRequest, "invalid_caller", "X-Caller-Address is not a valid address", requestIDFromContext(r.Context()))
			return
		}
		ctx := context.WithValue(r.Context(), callerKey, common.HexToAddress(raw))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", requestIDFromContext(r.Context())),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}

func requestIDFromContext(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey).(string); ok {
		return value
	}
	return ""
}

func callerFromContext(ctx context.Context) common.Address {
	if value, ok := ctx.Value(callerKey).(common.Address); ok {
		return value
	}
	return common.Address{}
}
