package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/telemetry"
)

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithTelemetry sets the telemetry provider
func WithTelemetry(p telemetry.Provider) Option {
	return func(s *Service) {
		s.telemetry = p
	}
}
