package synthesis

import (
	"time"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
)

// Verdicts from a beta concept's trial review.
const (
	verdictPromote = "promote"
	verdictRetire  = "retire"
)

type lifecycleConfig struct {
	TrialWindow       time.Duration
	MinTrialDecisions int
	RetireCooldown    time.Duration
}

// reviewVerdict decides a beta concept's fate once its trial window has
// passed. Promotion needs real trials, a non-negative mean outcome, and no
// fairness regression; everything else retires. A concept the population
// never took to is not held in beta indefinitely; the signature cooldown
// lets the pattern earn another trial later.
func reviewVerdict(trialDecisions int64, outcomeValues []float64, fairnessPassed bool, cfg lifecycleConfig) (string, string) {
	if trialDecisions < int64(cfg.MinTrialDecisions) {
		return verdictRetire, "insufficient_trials"
	}
	if len(outcomeValues) == 0 {
		return verdictRetire, "no_outcome_evidence"
	}
	var sum float64
	for _, v := range outcomeValues {
		sum += v
	}
	if sum/float64(len(outcomeValues)) < 0 {
		return verdictRetire, "negative_outcome_correlation"
	}
	if !fairnessPassed {
		return verdictRetire, "fairness_regression"
	}
	return verdictPromote, "trial_passed"
}

// retirementCooldown builds the cooldown row that blocks re-synthesis of a
// retired concept's signature.
func retirementCooldown(spec *types.ActionSpec, now time.Time, cfg lifecycleConfig) *types.ConceptCooldown {
	if spec == nil || spec.ProvenanceSignature == "" {
		return nil
	}
	return &types.ConceptCooldown{
		Signature:       spec.ProvenanceSignature,
		RetiredActionID: spec.ID,
		Until:           now.UTC().Add(cfg.RetireCooldown),
	}
}
