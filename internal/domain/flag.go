package domain

import (
	"fmt"
	"time"
)

// MaxNameLength bounds flag names so they stay usable as cache keys and file names.
const MaxNameLength = 128

// FeatureFlag represents a boolean toggle with a percentage-based rollout
type FeatureFlag struct {
	Name              string    `json:"name"`
	Enabled           bool      `json:"enabled"`
	RolloutPercentage int       `json:"rolloutPercentage"`
	Description       string    `json:"description"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// FlagUpdate carries a partial update. Nil fields are left unchanged.
type FlagUpdate struct {
	Enabled           *bool   `json:"enabled,omitempty"`
	RolloutPercentage *int    `json:"rolloutPercentage,omitempty"`
	Description       *string `json:"description,omitempty"`
}

// EvaluationStrategy names the rule that decided an evaluation
type EvaluationStrategy string

const (
	StrategyDisabled    EvaluationStrategy = "disabled"     // master switch is off
	StrategyFullRollout EvaluationStrategy = "full_rollout" // 100%, no hashing
	StrategyNoRollout   EvaluationStrategy = "no_rollout"   // 0%, no hashing
	StrategyPercentage  EvaluationStrategy = "percentage"   // bucketed by user
)

// Validate validates the flag configuration
func (f *FeatureFlag) Validate() error {
	fields := map[string]string{}

	switch {
	case f.Name == "":
		fields["name"] = "flag name is required"
	case len(f.Name) > MaxNameLength:
		fields["name"] = fmt.Sprintf("flag name must be at most %d characters", MaxNameLength)
	}

	if err := validateRollout(f.RolloutPercentage); err != "" {
		fields["rolloutPercentage"] = err
	}

	if len(fields) > 0 {
		return NewValidationErrorWithFields("invalid feature flag", fields)
	}
	return nil
}

// Validate validates the partial update
func (u FlagUpdate) Validate() error {
	if u.RolloutPercentage == nil {
		return nil
	}
	if err := validateRollout(*u.RolloutPercentage); err != "" {
		return NewValidationErrorWithFields("invalid flag update", map[string]string{
			"rolloutPercentage": err,
		})
	}
	return nil
}

// Apply overwrites the fields present in u and reports whether any value changed.
// Version and timestamps are left to the caller.
func (f *FeatureFlag) Apply(u FlagUpdate) bool {
	changed := false

	if u.Enabled != nil && *u.Enabled != f.Enabled {
		f.Enabled = *u.Enabled
		changed = true
	}

	if u.RolloutPercentage != nil && *u.RolloutPercentage != f.RolloutPercentage {
		f.RolloutPercentage = *u.RolloutPercentage
		changed = true
	}

	if u.Description != nil && *u.Description != f.Description {
		f.Description = *u.Description
		changed = true
	}

	return changed
}

func validateRollout(p int) string {
	if p < 0 || p > 100 {
		return "rollout percentage must be between 0 and 100"
	}
	return ""
}
