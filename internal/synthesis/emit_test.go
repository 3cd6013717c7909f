package synthesis

import (
	"strings"
	"testing"
	"time"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
)

func TestClassifyConcept_Templates(t *testing.T) {
	kind, label, ok := classifyConcept([]definingFeature{
		{Name: "cap_mean:pattern_recognition", Z: 1.8, Raw: 0.82},
	})
	if !ok || kind != ConceptKindCompetence {
		t.Fatalf("expected competence template, got kind=%q ok=%v", kind, ok)
	}
	if label != "Mastery of Pattern Recognition" {
		t.Fatalf("unexpected competence label %q", label)
	}

	kind, label, ok = classifyConcept([]definingFeature{
		{Name: "domain_affinity:community_engagement", Z: 1.2, Raw: 0.65},
	})
	if !ok || kind != ConceptKindRelatedness {
		t.Fatalf("expected relatedness template, got kind=%q ok=%v", kind, ok)
	}
	if label != "Community Contributor: Community Engagement" {
		t.Fatalf("unexpected relatedness label %q", label)
	}

	kind, label, ok = classifyConcept([]definingFeature{
		{Name: "domain_affinity:creative_challenges", Z: 1.2, Raw: 0.74},
	})
	if !ok || kind != ConceptKindAutonomy {
		t.Fatalf("expected autonomy template, got kind=%q ok=%v", kind, ok)
	}
	if label != "Creative Explorer: Creative Challenges" {
		t.Fatalf("unexpected autonomy label %q", label)
	}
}

func TestClassifyConcept_ThresholdsGate(t *testing.T) {
	// Capability below the competence strength threshold.
	if _, _, ok := classifyConcept([]definingFeature{
		{Name: "cap_mean:creativity", Z: 1.5, Raw: 0.74},
	}); ok {
		t.Fatalf("0.74 capability must not reach the 0.75 competence template")
	}
	// Social affinity below the relatedness threshold.
	if _, _, ok := classifyConcept([]definingFeature{
		{Name: "domain_affinity:collaborative_projects", Z: 1.0, Raw: 0.59},
	}); ok {
		t.Fatalf("0.59 social affinity must not reach the 0.60 relatedness template")
	}
	// Negative deviation never matches a template.
	if _, _, ok := classifyConcept([]definingFeature{
		{Name: "cap_mean:creativity", Z: -2.0, Raw: 0.9},
	}); ok {
		t.Fatalf("downward deviations must not classify")
	}
	// Engagement-only clusters have no template.
	if _, _, ok := classifyConcept([]definingFeature{
		{Name: "engagement:completed", Z: 1.5, Raw: 0.9},
	}); ok {
		t.Fatalf("engagement lanes alone must not classify")
	}
}

func TestDeriveRule_ThresholdsAndText(t *testing.T) {
	rule := deriveRule([]definingFeature{
		{Name: "cap_mean:creativity", Z: 1.2, Raw: 0.84, Spread: 0.08},
		{Name: "engagement:abandoned", Z: -1.1, Raw: 0.10, Spread: 0.04},
	})
	if len(rule.All) != 2 {
		t.Fatalf("expected 2 terms, got %d", len(rule.All))
	}
	up := rule.All[0]
	if up.Op != constraint.OpGTE || up.Value != 0.80 {
		t.Fatalf("expected creativity >= 0.80, got %s %v", up.Op, up.Value)
	}
	down := rule.All[1]
	if down.Op != constraint.OpLTE || down.Value != 0.12 {
		t.Fatalf("expected abandoned <= 0.12, got %s %v", down.Op, down.Value)
	}

	text := rule.Text()
	if text != "creativity at least 0.80 and abandoned engagement at most 0.12" {
		t.Fatalf("unexpected rule text %q", text)
	}
}

func TestDeriveRule_ClampsDegenerateThresholds(t *testing.T) {
	rule := deriveRule([]definingFeature{
		{Name: "cap_mean:creativity", Z: 1.0, Raw: 0.02, Spread: 0.0},
		{Name: "cap_mean:persistence", Z: 1.0, Raw: 0.99, Spread: 0.0},
	})
	if rule.All[0].Value != 0.05 {
		t.Fatalf("expected low clamp 0.05, got %v", rule.All[0].Value)
	}
	if rule.All[1].Value != 0.95 {
		t.Fatalf("expected high clamp 0.95, got %v", rule.All[1].Value)
	}
}

func TestBuildConceptSpec_BetaWithProvenance(t *testing.T) {
	rule := deriveRule([]definingFeature{
		{Name: "cap_mean:creativity", Z: 1.2, Raw: 0.84, Spread: 0.08},
	})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	spec, err := buildConceptSpec("ab12cd34ef56ab78", ConceptKindCompetence, "Mastery of Creativity", rule, 86400, now)
	if err != nil {
		t.Fatalf("buildConceptSpec: %v", err)
	}
	if spec.Key != "synth_ab12cd34ef56ab78" {
		t.Fatalf("unexpected key %q", spec.Key)
	}
	if spec.Status != types.ActionStatusBeta || spec.BetaSince == nil || !spec.BetaSince.Equal(now) {
		t.Fatalf("expected beta status stamped at %v, got %q %v", now, spec.Status, spec.BetaSince)
	}
	if !spec.Synthesized || spec.ProvenanceSignature != "ab12cd34ef56ab78" {
		t.Fatalf("provenance not carried: %+v", spec)
	}
	if spec.RewardType != types.RewardTypeSkillBadge {
		t.Fatalf("competence concepts grant skill badges, got %q", spec.RewardType)
	}
	if spec.StatusActor != "synthesis" {
		t.Fatalf("unexpected status actor %q", spec.StatusActor)
	}
	if !strings.Contains(spec.RuleText, "creativity at least") {
		t.Fatalf("rule text must stay human readable, got %q", spec.RuleText)
	}

	parsed, err := constraint.ParseRule(spec.Rule)
	if err != nil || parsed.Empty() {
		t.Fatalf("stored rule must round-trip, err=%v", err)
	}
}
