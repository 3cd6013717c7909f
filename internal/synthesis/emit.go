package synthesis

import (
	"math"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
)

// Self-determination concept kinds carried on synthesized specs.
const (
	ConceptKindCompetence  = "competence"
	ConceptKindAutonomy    = "autonomy"
	ConceptKindRelatedness = "relatedness"
)

// Template thresholds: the raw cluster level a defining feature must reach
// before the matching concept template applies.
const (
	competenceStrength    = 0.75
	autonomyConsistency   = 0.70
	relatednessEngagement = 0.60
)

// Social domains route to the relatedness template before autonomy is
// considered.
var relatednessDomains = map[string]bool{
	"domain_affinity:" + types.DomainCommunityEngagement:   true,
	"domain_affinity:" + types.DomainCollaborativeProjects: true,
}

// classifyConcept matches a cluster's defining features against the concept
// templates. Clusters that fit no template are not emitted; a reward concept
// without a nameable motivation is not auditable.
func classifyConcept(feats []definingFeature) (kind, label string, ok bool) {
	if f, found := strongestPositive(feats, "cap_mean:"); found && f.Raw >= competenceStrength {
		return ConceptKindCompetence, "Mastery of " + titleWords(featureSuffix(f.Name)), true
	}
	if f, found := strongestPositive(feats, "domain_affinity:"); found {
		if relatednessDomains[f.Name] && f.Raw >= relatednessEngagement {
			return ConceptKindRelatedness, "Community Contributor: " + titleWords(featureSuffix(f.Name)), true
		}
		if !relatednessDomains[f.Name] && f.Raw >= autonomyConsistency {
			return ConceptKindAutonomy, "Creative Explorer: " + titleWords(featureSuffix(f.Name)), true
		}
	}
	return "", "", false
}

func strongestPositive(feats []definingFeature, prefix string) (definingFeature, bool) {
	for _, f := range feats {
		if f.Z > 0 && strings.HasPrefix(f.Name, prefix) {
			return f, true
		}
	}
	return definingFeature{}, false
}

// deriveRule turns defining features into a conjunction of thresholds. Each
// threshold sits half a spread inside the cluster so boundary members still
// qualify; values clamp away from 0 and 1 so no rule is degenerate.
func deriveRule(feats []definingFeature) *constraint.Rule {
	terms := make([]constraint.Term, 0, len(feats))
	for _, f := range feats {
		t := constraint.Term{Feature: f.Name}
		if f.Z >= 0 {
			t.Op = constraint.OpGTE
			t.Value = roundThreshold(f.Raw - 0.5*f.Spread)
		} else {
			t.Op = constraint.OpLTE
			t.Value = roundThreshold(f.Raw + 0.5*f.Spread)
		}
		terms = append(terms, t)
	}
	return &constraint.Rule{All: terms}
}

func roundThreshold(v float64) float64 {
	if v < 0.05 {
		v = 0.05
	}
	if v > 0.95 {
		v = 0.95
	}
	return math.Round(v*100) / 100
}

var conceptRewardTypes = map[string]string{
	ConceptKindCompetence:  types.RewardTypeSkillBadge,
	ConceptKindAutonomy:    types.RewardTypeChoiceOpportunity,
	ConceptKindRelatedness: types.RewardTypeSocialRecognition,
}

// buildConceptSpec assembles the beta ActionSpec for a validated cluster.
func buildConceptSpec(signature, kind, label string, rule *constraint.Rule, cooldownSeconds int, now time.Time) (*types.ActionSpec, error) {
	raw, err := constraint.MarshalRule(rule)
	if err != nil {
		return nil, err
	}
	betaSince := now.UTC()
	return &types.ActionSpec{
		Key:                 "synth_" + signature,
		Title:               label,
		RewardType:          conceptRewardTypes[kind],
		Intensity:           types.IntensityLow,
		Presentations:       datatypes.JSON([]byte(`["card","banner"]`)),
		Rule:                raw,
		RuleText:            rule.Text(),
		Synthesized:         true,
		ProvenanceSignature: signature,
		ConceptKind:         kind,
		Status:              types.ActionStatusBeta,
		BetaSince:           &betaSince,
		StatusActor:         "synthesis",
		CooldownSeconds:     cooldownSeconds,
	}, nil
}

func featureSuffix(name string) string {
	_, rest, found := strings.Cut(name, ":")
	if !found {
		return name
	}
	return rest
}

func titleWords(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
