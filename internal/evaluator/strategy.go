package evaluator

import (
	"github.com/OrlandoBitencourt/bandeira/internal/domain"
)

// StrategyDeterminer determines the evaluation strategy for a flag
type StrategyDeterminer struct{}

// NewStrategyDeterminer creates a new strategy determiner
func NewStrategyDeterminer() *StrategyDeterminer {
	return &StrategyDeterminer{}
}

// Determine classifies which rule decides evaluations of flag.
// Only StrategyPercentage needs the user's bucket.
func (s *StrategyDeterminer) Determine(flag domain.FeatureFlag) domain.EvaluationStrategy {
	// Rule 1: the master switch dominates the rollout
	if !flag.Enabled {
		return domain.StrategyDisabled
	}

	// Rule 2: boundaries never hash
	if flag.RolloutPercentage >= 100 {
		return domain.StrategyFullRollout
	}
	if flag.RolloutPercentage <= 0 {
		return domain.StrategyNoRollout
	}

	return domain.StrategyPercentage
}

// GetStrategyReason returns a human-readable explanation of a strategy
func (s *StrategyDeterminer) GetStrategyReason(strategy domain.EvaluationStrategy) string {
	switch strategy {
	case domain.StrategyDisabled:
		return "flag is disabled"
	case domain.StrategyFullRollout:
		return "rollout is 100%"
	case domain.StrategyNoRollout:
		return "rollout is 0%"
	default:
		return "user bucket compared against rollout percentage"
	}
}
