package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/telemetry"
)

type contextKey string

const contextKeyRequestID contextKey = "bandeira_request_id"

// RequestIDHeader is read from requests and echoed on responses
const RequestIDHeader = "X-Request-ID"

// RequestID propagates the caller's request id or generates one
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the id set by RequestID, or ""
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// AccessLog logs one line per request
func AccessLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", RequestIDFromContext(r.Context())),
			}
			if r.URL.Path == "/health" {
				logger.Debug("HTTP request", fields...)
				return
			}
			logger.Info("HTTP request", fields...)
		})
	}
}

// Trace wraps each request in a span named after its route pattern
func Trace(provider telemetry.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := provider.StartSpan(r.Context(), "http.request",
				telemetry.WithAttributes(
					telemetry.String("http.method", r.Method),
					telemetry.String("request.id", RequestIDFromContext(r.Context())),
				),
			)
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// the pattern is only known once chi has routed the request
			if rctx := chi.RouteContext(ctx); rctx != nil {
				span.SetAttributes(telemetry.String("http.route", rctx.RoutePattern()))
			}
			span.SetAttributes(telemetry.Int("http.status_code", ww.Status()))
		})
	}
}
