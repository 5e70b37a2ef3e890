package server

import (
	"time"

	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/telemetry"
)

// Option configures the Server
type Option func(*Server)

// WithLogger sets the logger used for access logs and handler errors
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTelemetry wraps every request in a span
func WithTelemetry(provider telemetry.Provider) Option {
	return func(s *Server) {
		if provider != nil {
			s.telemetry = provider
		}
	}
}

// WithMetrics mounts GET /admin/metrics
func WithMetrics(source MetricsSource) Option {
	return func(s *Server) {
		s.metrics = source
	}
}

// WithWebhookSecret enables HMAC-SHA256 verification of webhook bodies.
// An empty secret accepts unsigned webhooks.
func WithWebhookSecret(secret string) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

// WithServiceInfo sets the name and version reported by GET /
func WithServiceInfo(name, version string) Option {
	return func(s *Server) {
		s.name = name
		s.version = version
	}
}

// WithClock replaces time.Now for response timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}
