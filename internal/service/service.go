package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/domain"
	"github.com/OrlandoBitencourt/bandeira/internal/evaluator"
	"github.com/OrlandoBitencourt/bandeira/internal/telemetry"
)

// FlagStore is the cache-aside view of flags the service works against.
type FlagStore interface {
	Read(ctx context.Context, name string) (*domain.FeatureFlag, error)
	ReadAuthoritative(ctx context.Context, name string) (*domain.FeatureFlag, error)
	Write(ctx context.Context, flag domain.FeatureFlag) error
	Remove(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]domain.FeatureFlag, error)
}

// CreateRequest holds the fields of a new flag
type CreateRequest struct {
	Name              string `json:"name"`
	Enabled           bool   `json:"enabled"`
	RolloutPercentage int    `json:"rolloutPercentage"`
	Description       string `json:"description"`
}

// Evaluation is the answer to "is the flag on for this user"
type Evaluation struct {
	FlagName string                    `json:"flagName"`
	UserID   string                    `json:"userId"`
	Enabled  bool                      `json:"enabled"`
	Reason   domain.EvaluationStrategy `json:"reason"`
}

// Service implements flag management and evaluation on top of a FlagStore.
// It holds no per-request state. Concurrent updates to one flag are
// last-write-wins; Version is observational.
type Service struct {
	store     FlagStore
	evaluator *evaluator.Evaluator
	now       func() time.Time
	logger    *zap.Logger
	telemetry telemetry.Provider
}

// New creates a new Service
func New(store FlagStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		evaluator: evaluator.New(),
		now:       time.Now,
		logger:    zap.NewNop(),
		telemetry: telemetry.NewNoOp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new flag at version 1
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.FeatureFlag, error) {
	now := s.now().UTC()
	flag := domain.FeatureFlag{
		Name:              req.Name,
		Enabled:           req.Enabled,
		RolloutPercentage: req.RolloutPercentage,
		Description:       req.Description,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := flag.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.store.Exists(ctx, flag.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.NewAlreadyExistsError("flag", flag.Name)
	}

	if err := s.store.Write(ctx, flag); err != nil {
		return nil, err
	}

	s.logger.Info("Flag created",
		zap.String("flag", flag.Name),
		zap.Bool("enabled", flag.Enabled),
		zap.Int("rollout", flag.RolloutPercentage),
	)
	return &flag, nil
}

// Get returns a flag, possibly from the cache
func (s *Service) Get(ctx context.Context, name string) (*domain.FeatureFlag, error) {
	return s.store.Read(ctx, name)
}

// List returns every flag sorted by name
func (s *Service) List(ctx context.Context) ([]domain.FeatureFlag, error) {
	return s.store.List(ctx)
}

// Update applies a partial update. Version and UpdatedAt move only when a
// field actually changes, but the flag is always written back so the cache
// is refreshed.
func (s *Service) Update(ctx context.Context, name string, update domain.FlagUpdate) (*domain.FeatureFlag, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}

	// the authoritative copy, so a stale cache entry never seeds the version
	flag, err := s.store.ReadAuthoritative(ctx, name)
	if err != nil {
		return nil, err
	}

	changed := flag.Apply(update)
	if changed {
		flag.Version++
		flag.UpdatedAt = s.now().UTC()
	}

	if err := s.store.Write(ctx, *flag); err != nil {
		return nil, err
	}

	s.logger.Info("Flag updated",
		zap.String("flag", flag.Name),
		zap.Bool("changed", changed),
		zap.Int64("version", flag.Version),
	)
	return flag, nil
}

// Delete removes a flag
func (s *Service) Delete(ctx context.Context, name string) error {
	exists, err := s.store.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return domain.NewNotFoundError("flag", name)
	}

	if err := s.store.Remove(ctx, name); err != nil {
		return err
	}

	s.logger.Info("Flag deleted", zap.String("flag", name))
	return nil
}

// Evaluate reports whether the flag is on for userID
func (s *Service) Evaluate(ctx context.Context, name, userID string) (*Evaluation, error) {
	if userID == "" {
		return nil, domain.NewValidationErrorWithFields("userId is required", map[string]string{
			"userId": "must not be empty",
		})
	}

	start := time.Now()

	flag, err := s.store.Read(ctx, name)
	if err != nil {
		return nil, err
	}

	result := s.evaluator.Evaluate(*flag, userID)
	s.telemetry.RecordEvaluation(ctx, flag.Name, string(result.Strategy), result.Enabled, time.Since(start))
	s.logger.Debug("Flag evaluated",
		zap.String("flag", flag.Name),
		zap.String("user", userID),
		zap.Bool("enabled", result.Enabled),
		zap.String("reason", result.Detail),
	)

	return &Evaluation{
		FlagName: flag.Name,
		UserID:   userID,
		Enabled:  result.Enabled,
		Reason:   result.Strategy,
	}, nil
}
