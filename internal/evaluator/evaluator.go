package evaluator

import (
	"github.com/cespare/xxhash/v2"

	"github.com/OrlandoBitencourt/bandeira/internal/domain"
)

// BucketCount is the number of buckets users are spread over.
const BucketCount = 100

// Result is the outcome of a single evaluation
type Result struct {
	Enabled  bool
	Strategy domain.EvaluationStrategy
	Bucket   int // -1 when the strategy never hashed the user
	Detail   string
}

// Evaluator evaluates flags for users. It holds no state and is safe for
// concurrent use.
type Evaluator struct {
	determiner *StrategyDeterminer
}

// New creates a new evaluator
func New() *Evaluator {
	return &Evaluator{
		determiner: NewStrategyDeterminer(),
	}
}

var std = New()

// Evaluate evaluates a flag for userID and reports which rule decided it
func (e *Evaluator) Evaluate(flag domain.FeatureFlag, userID string) Result {
	strategy := e.determiner.Determine(flag)
	detail := e.determiner.GetStrategyReason(strategy)

	switch strategy {
	case domain.StrategyDisabled, domain.StrategyNoRollout:
		return Result{Enabled: false, Strategy: strategy, Bucket: -1, Detail: detail}
	case domain.StrategyFullRollout:
		return Result{Enabled: true, Strategy: strategy, Bucket: -1, Detail: detail}
	}

	b := Bucket(flag.Name, userID)
	return Result{
		Enabled:  b < flag.RolloutPercentage,
		Strategy: strategy,
		Bucket:   b,
		Detail:   detail,
	}
}

// Evaluate answers "is flag on for userID". It is pure and total: the same
// flag fields and user id always produce the same answer in every process.
func Evaluate(flag domain.FeatureFlag, userID string) bool {
	return std.Evaluate(flag, userID).Enabled
}

// Bucket maps (name, userID) to [0, BucketCount). The hash input is
// name + ":" + userID so a user lands in independent buckets per flag.
// The hash family must not change for the lifetime of a deployment or
// users would move between buckets.
func Bucket(name, userID string) int {
	return int(xxhash.Sum64String(name+":"+userID) % BucketCount)
}
