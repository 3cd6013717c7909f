package constraint

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/domain/catalog"
	"github.com/yungbote/rewardcore-backend/internal/domain/signals"
)

func spec(key, rewardType, intensity, status string) *catalog.ActionSpec {
	return &catalog.ActionSpec{
		ID:         uuid.New(),
		Key:        key,
		Title:      key,
		RewardType: rewardType,
		Intensity:  intensity,
		Status:     status,
	}
}

func TestEligible_PrecedenceOrder(t *testing.T) {
	f := NewFilter()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	// Retired, on cooldown, and rule-gated all at once; under a fraud block
	// only fraud_hold may be the logged predicate.
	a := spec("conflicted", catalog.RewardTypePoints, catalog.IntensityHigh, catalog.ActionStatusRetired)
	a.CooldownSeconds = 3600
	a.Rule = datatypes.JSON([]byte(`{"all":[{"feature":"avg_capability","op":"gte","value":0.99}]}`))
	last := now.Add(-time.Minute)

	res := f.Eligible(Input{
		Fraud:   &signals.FraudAssessment{Tier: signals.FraudTierBlock, Risk: 0.9},
		Stats:   map[uuid.UUID]*catalog.UserActionStat{a.ID: {ActionID: a.ID, LastSelectedAt: &last}},
		Catalog: []*catalog.ActionSpec{a},
		Now:     now,
	})
	if len(res.Eligible) != 0 || len(res.Exclusions) != 1 {
		t.Fatalf("expected single exclusion, got %+v", res)
	}
	if res.Exclusions[0].Predicate != PredicateFraudHold {
		t.Fatalf("fraud_hold outranks everything, got %s", res.Exclusions[0].Predicate)
	}

	// Without fraud, lifecycle is next ahead of rule and cooldown.
	res = f.Eligible(Input{
		Stats:   map[uuid.UUID]*catalog.UserActionStat{a.ID: {ActionID: a.ID, LastSelectedAt: &last}},
		Catalog: []*catalog.ActionSpec{a},
		Now:     now,
	})
	if res.Exclusions[0].Predicate != PredicateLifecycle {
		t.Fatalf("expected lifecycle, got %s", res.Exclusions[0].Predicate)
	}

	a.Status = catalog.ActionStatusActive
	res = f.Eligible(Input{
		Stats:   map[uuid.UUID]*catalog.UserActionStat{a.ID: {ActionID: a.ID, LastSelectedAt: &last}},
		Catalog: []*catalog.ActionSpec{a},
		Now:     now,
	})
	if res.Exclusions[0].Predicate != PredicateEligibility {
		t.Fatalf("expected eligibility_rule, got %s", res.Exclusions[0].Predicate)
	}

	a.Rule = nil
	res = f.Eligible(Input{
		Stats:   map[uuid.UUID]*catalog.UserActionStat{a.ID: {ActionID: a.ID, LastSelectedAt: &last}},
		Catalog: []*catalog.ActionSpec{a},
		Now:     now,
	})
	if res.Exclusions[0].Predicate != PredicateCooldown {
		t.Fatalf("expected cooldown, got %s", res.Exclusions[0].Predicate)
	}
}

func TestEligible_ReviewTierAndUsageHealth(t *testing.T) {
	f := NewFilter()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	points := spec("points", catalog.RewardTypePoints, catalog.IntensityLow, catalog.ActionStatusActive)
	badge := spec("badge", catalog.RewardTypeSkillBadge, catalog.IntensityLow, catalog.ActionStatusActive)
	streak := spec("streak", catalog.RewardTypeStreakBonus, catalog.IntensityLow, catalog.ActionStatusActive)

	// Review tier holds monetary grants but lets a badge through.
	res := f.Eligible(Input{
		Fraud:   &signals.FraudAssessment{Tier: signals.FraudTierReview, Risk: 0.6},
		Catalog: []*catalog.ActionSpec{points, badge},
		Now:     now,
	})
	if len(res.Eligible) != 1 || res.Eligible[0].Key != "badge" {
		t.Fatalf("review tier filtering wrong: %+v", res)
	}
	if res.Exclusions[0].Predicate != PredicateFraudHold {
		t.Fatalf("expected fraud_hold, got %s", res.Exclusions[0].Predicate)
	}

	// High usage severity gates the streak but not the badge.
	res = f.Eligible(Input{
		Wellbeing: &signals.WellbeingAssessment{Severity: 0.8, Status: signals.WellbeingStatusOverCap},
		Catalog:   []*catalog.ActionSpec{streak, badge},
		Now:       now,
	})
	if len(res.Eligible) != 1 || res.Eligible[0].Key != "badge" {
		t.Fatalf("usage health filtering wrong: %+v", res)
	}
	if res.Exclusions[0].Predicate != PredicateUsageHealth {
		t.Fatalf("expected usage_health, got %s", res.Exclusions[0].Predicate)
	}
}

func TestEligible_DailyCapAndPenalties(t *testing.T) {
	f := NewFilter()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	today := now.Truncate(24 * time.Hour)

	capped := spec("capped", catalog.RewardTypePoints, catalog.IntensityLow, catalog.ActionStatusActive)
	fresh := spec("fresh", catalog.RewardTypeSocialRecognition, catalog.IntensityLow, catalog.ActionStatusActive)

	res := f.Eligible(Input{
		Stats: map[uuid.UUID]*catalog.UserActionStat{
			capped.ID: {ActionID: capped.ID, GrantDay: &today, GrantsInDay: f.DailyGrantCap},
			fresh.ID:  {ActionID: fresh.ID, GrantDay: &today, GrantsInDay: 1},
		},
		RecentTypes: []string{catalog.RewardTypeSocialRecognition},
		Catalog:     []*catalog.ActionSpec{capped, fresh},
		Now:         now,
	})
	if len(res.Eligible) != 1 || res.Eligible[0].Key != "fresh" {
		t.Fatalf("daily cap filtering wrong: %+v", res)
	}
	if res.Exclusions[0].Predicate != PredicateDailyCap {
		t.Fatalf("expected daily_grant_cap, got %s", res.Exclusions[0].Predicate)
	}

	// One same-day grant plus a repeat of the latest reward type.
	want := f.FatigueStep + f.RepeatTypePenalty
	if got := res.Penalties[fresh.ID]; math.Abs(got-want) > 1e-9 {
		t.Fatalf("penalty: got %v want %v", got, want)
	}

	// Penalties never exclude: a heavily penalized action stays eligible.
	res = f.Eligible(Input{
		FairnessPressure: map[uuid.UUID]float64{fresh.ID: 10},
		Catalog:          []*catalog.ActionSpec{fresh},
		Now:              now,
	})
	if len(res.Eligible) != 1 {
		t.Fatalf("penalized action must stay eligible")
	}
	if got := res.Penalties[fresh.ID]; got != maxPenalty {
		t.Fatalf("penalty must clamp at %v, got %v", maxPenalty, got)
	}
}

func TestVeto_FreshSignalsOnly(t *testing.T) {
	f := NewFilter()
	chosen := spec("chosen", catalog.RewardTypePoints, catalog.IntensityLow, catalog.ActionStatusActive)

	if p, _ := f.Veto(chosen, Input{}); p != "" {
		t.Fatalf("clean input must not veto, got %s", p)
	}
	p, _ := f.Veto(chosen, Input{Fraud: &signals.FraudAssessment{Tier: signals.FraudTierBlock, Risk: 0.95}})
	if p != PredicateFraudHold {
		t.Fatalf("expected fraud_hold veto, got %q", p)
	}
	chosen.Status = catalog.ActionStatusRetired
	if p, _ := f.Veto(chosen, Input{}); p != PredicateLifecycle {
		t.Fatalf("expected lifecycle veto, got %q", p)
	}
}
