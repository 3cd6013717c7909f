package synthesis

import (
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
)

func TestReviewVerdict_PromotionNeedsEveryGate(t *testing.T) {
	cfg := lifecycleConfig{
		TrialWindow:       14 * 24 * time.Hour,
		MinTrialDecisions: 20,
		RetireCooldown:    30 * 24 * time.Hour,
	}
	positive := []float64{1, 1, -1, 1}

	verdict, reason := reviewVerdict(25, positive, true, cfg)
	if verdict != verdictPromote || reason != "trial_passed" {
		t.Fatalf("expected promotion, got %s/%s", verdict, reason)
	}

	verdict, reason = reviewVerdict(19, positive, true, cfg)
	if verdict != verdictRetire || reason != "insufficient_trials" {
		t.Fatalf("expected retirement for thin trials, got %s/%s", verdict, reason)
	}

	verdict, reason = reviewVerdict(25, nil, true, cfg)
	if verdict != verdictRetire || reason != "no_outcome_evidence" {
		t.Fatalf("expected retirement without outcomes, got %s/%s", verdict, reason)
	}

	verdict, reason = reviewVerdict(25, []float64{-1, -1, 1}, true, cfg)
	if verdict != verdictRetire || reason != "negative_outcome_correlation" {
		t.Fatalf("expected retirement on negative mean, got %s/%s", verdict, reason)
	}

	// A zero mean is non-negative and promotes.
	verdict, _ = reviewVerdict(25, []float64{1, -1}, true, cfg)
	if verdict != verdictPromote {
		t.Fatalf("zero outcome mean must still promote, got %s", verdict)
	}

	verdict, reason = reviewVerdict(25, positive, false, cfg)
	if verdict != verdictRetire || reason != "fairness_regression" {
		t.Fatalf("expected retirement on fairness regression, got %s/%s", verdict, reason)
	}
}

func TestRetirementCooldown_BlocksSignature(t *testing.T) {
	cfg := lifecycleConfig{RetireCooldown: 30 * 24 * time.Hour}
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	spec := &types.ActionSpec{
		ID:                  uuid.New(),
		ProvenanceSignature: "ab12cd34ef56ab78",
	}

	cd := retirementCooldown(spec, now, cfg)
	if cd == nil || cd.Signature != spec.ProvenanceSignature {
		t.Fatalf("cooldown must carry the signature, got %+v", cd)
	}
	if cd.RetiredActionID != spec.ID {
		t.Fatalf("cooldown must reference the retired action")
	}
	if want := now.Add(30 * 24 * time.Hour); !cd.Until.Equal(want) {
		t.Fatalf("expected cooldown until %v, got %v", want, cd.Until)
	}

	if retirementCooldown(&types.ActionSpec{ID: uuid.New()}, now, cfg) != nil {
		t.Fatalf("specs without provenance never cool down")
	}
}
