package profile

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/encoding"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

func TestDerive_BadgeNeedsStrengthAndConsistency(t *testing.T) {
	s := sequence.NewState()
	s.CapPeak[encoding.DimCreativity] = 0.90
	s.CapConf[encoding.DimCreativity] = 0.85

	d := Derive(s, nil, DefaultBadgeRules())
	if len(d.Badges) != 1 {
		t.Fatalf("expected one badge, got %d", len(d.Badges))
	}
	b := d.Badges[0]
	if b.Key != "exemplar_creativity" || b.Label != "Exemplar: Creativity" {
		t.Fatalf("unexpected badge identity: %+v", b)
	}
	if b.Rarity != 0.10 {
		t.Fatalf("rarity = 1 - strength: got %v", b.Rarity)
	}
	if b.Prestige != 90 {
		t.Fatalf("prestige = strength*100: got %d", b.Prestige)
	}
	if d.Prestige != 90 {
		t.Fatalf("profile prestige sums contributions: got %d", d.Prestige)
	}

	// Both gates are strict: sitting exactly on a threshold earns nothing.
	s.CapPeak[encoding.DimCreativity] = 0.80
	if d := Derive(s, nil, DefaultBadgeRules()); len(d.Badges) != 0 {
		t.Fatalf("strength at threshold must not earn")
	}
	s.CapPeak[encoding.DimCreativity] = 0.90
	s.CapConf[encoding.DimCreativity] = 0.80
	if d := Derive(s, nil, DefaultBadgeRules()); len(d.Badges) != 0 {
		t.Fatalf("consistency at threshold must not earn")
	}
}

func TestDerive_MonotoneFromPeaks(t *testing.T) {
	s := sequence.NewState()
	s.CapPeak[encoding.DimPersistence] = 0.88
	s.CapConf[encoding.DimPersistence] = 0.90
	s.CapMean[encoding.DimPersistence] = 0.85

	before := Derive(s, nil, DefaultBadgeRules())

	// A struggle phase drags the mean down; the peak and accrued confidence
	// stay where they were, so nothing derived may regress.
	s.CapMean[encoding.DimPersistence] = 0.20
	s.Engagement[encoding.EngAbandoned] = 0.9

	after := Derive(s, nil, DefaultBadgeRules())
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("struggle signals must not change the derivation:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestDerive_Idempotent(t *testing.T) {
	s := sequence.NewState()
	s.CapPeak[encoding.DimCollaboration] = 0.95
	s.CapConf[encoding.DimCollaboration] = 0.92

	a := Derive(s, nil, DefaultBadgeRules())
	b := Derive(s, nil, DefaultBadgeRules())
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same input must derive the same profile")
	}
}

func conceptSpec(t *testing.T, key, title, status string, synthesized bool) *types.ActionSpec {
	t.Helper()
	raw, err := constraint.MarshalRule(&constraint.Rule{All: []constraint.Term{
		{Feature: "cap_mean:creativity", Op: constraint.OpGTE, Value: 0.7},
	}})
	if err != nil {
		t.Fatalf("marshal rule: %v", err)
	}
	return &types.ActionSpec{
		ID:          uuid.New(),
		Key:         key,
		Title:       title,
		Status:      status,
		Synthesized: synthesized,
		Rule:        raw,
	}
}

func TestDerive_ConceptBadgesFromLiveCatalog(t *testing.T) {
	s := sequence.NewState()
	s.CapMean[encoding.DimCreativity] = 0.80

	catalog := []*types.ActionSpec{
		conceptSpec(t, "synth_abc", "Creative Explorer: Creative Challenges", types.ActionStatusActive, true),
		conceptSpec(t, "synth_beta", "Still In Trial", types.ActionStatusBeta, true),
		conceptSpec(t, "operator_spec", "Operator Reward", types.ActionStatusActive, false),
		conceptSpec(t, "synth_retired", "Gone", types.ActionStatusRetired, true),
	}

	d := Derive(s, catalog, nil)
	if len(d.Badges) != 1 {
		t.Fatalf("only active synthesized specs surface, got %+v", d.Badges)
	}
	b := d.Badges[0]
	if b.Key != "concept_synth_abc" || b.Label != "Creative Explorer: Creative Challenges" {
		t.Fatalf("unexpected concept badge: %+v", b)
	}
	// Strength is the user's mean value over the rule's features.
	if b.Rarity != 0.20 || b.Prestige != 80 {
		t.Fatalf("concept strength from feature values: %+v", b)
	}

	// Below the rule threshold the concept does not surface.
	s.CapMean[encoding.DimCreativity] = 0.60
	if d := Derive(s, catalog, nil); len(d.Badges) != 0 {
		t.Fatalf("non-matching state must not earn the concept badge")
	}
}

func TestMergeBadges_NeverDropsAwarded(t *testing.T) {
	persisted := []*types.ProfileBadge{
		{UserID: uuid.New(), BadgeKey: "exemplar_creativity", Label: "Exemplar: Creativity", Rarity: 0.15, Prestige: 85},
		{UserID: uuid.New(), BadgeKey: "concept_synth_old", Label: "Retired Concept", Rarity: 0.30, Prestige: 70},
	}
	current := []Badge{
		{Key: "exemplar_creativity", Label: "Exemplar: Creativity", Rarity: 0.10, Prestige: 90},
		{Key: "exemplar_persistence", Label: "Exemplar: Persistence", Rarity: 0.12, Prestige: 88},
	}

	merged := MergeBadges(persisted, current)
	if len(merged) != 3 {
		t.Fatalf("expected union of 3 badges, got %d: %+v", len(merged), merged)
	}
	if merged[0].Key != "exemplar_creativity" || merged[0].Prestige != 90 {
		t.Fatalf("re-derived badge refreshes in place: %+v", merged[0])
	}
	if merged[1].Key != "concept_synth_old" || merged[1].Prestige != 70 {
		t.Fatalf("badge no longer earnable keeps its stored values: %+v", merged[1])
	}
	if merged[2].Key != "exemplar_persistence" {
		t.Fatalf("new badge appends last: %+v", merged[2])
	}
	if TotalPrestige(merged) != 90+70+88 {
		t.Fatalf("prestige sums the union, got %d", TotalPrestige(merged))
	}
}

func TestTrustTier_BothGatesRequired(t *testing.T) {
	cfg := TrustConfig{
		StandardAuth: 0.5, TrustedAuth: 0.8, ExemplarAuth: 0.9,
		StandardTenure: 7 * 24 * time.Hour,
		TrustedTenure:  60 * 24 * time.Hour,
		ExemplarTenure: 180 * 24 * time.Hour,
	}

	day := 24 * time.Hour
	cases := []struct {
		auth   float64
		tenure time.Duration
		want   string
	}{
		{0.95, 200 * day, types.TrustTierExemplar},
		{0.95, 100 * day, types.TrustTierTrusted},
		{0.85, 200 * day, types.TrustTierTrusted},
		{0.85, 30 * day, types.TrustTierStandard},
		{0.95, 2 * day, types.TrustTierNew},
		{0.30, 400 * day, types.TrustTierNew},
		{0.9, 180 * day, types.TrustTierExemplar},
	}
	for _, c := range cases {
		if got := TrustTier(c.auth, c.tenure, cfg); got != c.want {
			t.Fatalf("TrustTier(%v, %v) = %q, want %q", c.auth, c.tenure, got, c.want)
		}
	}
}

func TestAuthenticity_AggregatesRisk(t *testing.T) {
	if got := Authenticity(nil); got != 1 {
		t.Fatalf("no evidence reads fully authentic, got %v", got)
	}
	if got := Authenticity([]float64{0.25, 0.25}); got != 0.75 {
		t.Fatalf("mean risk of 0.25 yields 0.75, got %v", got)
	}
	if got := Authenticity([]float64{1, 1, 1}); got != 0 {
		t.Fatalf("saturated risk floors at 0, got %v", got)
	}
}
