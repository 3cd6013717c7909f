// Package profile derives the public SocialProfile from private user state.
//
// The mapping is one-directional and monotone in effort: badges derive from
// peak capability segments and accrued confidence, both of which only ever
// move up, so a struggle phase can never take a badge away or lower prestige.
// Nothing derived here carries a raw event field or state vector value.
package profile

import (
	"math"
	"sort"
	"strings"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/encoding"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

// Version stamps derived rows so a future formula change can trigger a
// batch re-derivation.
const Version = 1

const (
	badgeMinStrength    = 0.80
	badgeMinConsistency = 0.80
)

// BadgeRule describes one earnable capability badge. Strength reads the
// dimension's peak, consistency its accrued confidence; both gates are
// strict, a value sitting exactly on the threshold does not earn.
type BadgeRule struct {
	Key            string
	Label          string
	Dimension      int
	MinStrength    float64
	MinConsistency float64
}

// DefaultBadgeRules returns one exemplar rule per capability dimension.
func DefaultBadgeRules() []BadgeRule {
	rules := make([]BadgeRule, 0, encoding.NumDimensions)
	for i := 0; i < encoding.NumDimensions; i++ {
		name := encoding.DimensionName(i)
		rules = append(rules, BadgeRule{
			Key:            "exemplar_" + name,
			Label:          "Exemplar: " + labelWords(name),
			Dimension:      i,
			MinStrength:    badgeMinStrength,
			MinConsistency: badgeMinConsistency,
		})
	}
	return rules
}

// Badge is the public projection of one earned badge. Rarity shrinks as the
// underlying strength grows; prestige is the badge's contribution to the
// profile total.
type Badge struct {
	Key      string  `json:"key"`
	Label    string  `json:"label"`
	Rarity   float64 `json:"rarity"`
	Prestige int     `json:"prestige"`
}

// Derived is the output of one pure derivation pass: the badges the state
// earns right now. The service layer unions this with previously persisted
// awards, so transient dips in the catalog or in live eligibility never
// remove anything already surfaced.
type Derived struct {
	Badges   []Badge
	Prestige int
}

// Derive maps state to its currently earnable badge set. Deterministic for
// identical (state, catalog, rules) inputs and safe on a nil state, which
// yields an empty derivation.
func Derive(s *sequence.State, catalog []*types.ActionSpec, rules []BadgeRule) *Derived {
	out := &Derived{}
	if s == nil {
		return out
	}

	for _, r := range rules {
		if r.Dimension < 0 || r.Dimension >= len(s.CapPeak) {
			continue
		}
		strength := s.CapPeak[r.Dimension]
		consistency := s.CapConf[r.Dimension]
		if strength > r.MinStrength && consistency > r.MinConsistency {
			out.Badges = append(out.Badges, newBadge(r.Key, r.Label, strength))
		}
	}

	out.Badges = append(out.Badges, conceptBadges(s, catalog)...)
	out.Prestige = TotalPrestige(out.Badges)
	return out
}

// conceptBadges surfaces live synthesized concepts whose eligibility rule the
// state currently satisfies. Strength is the mean of the user's values on the
// rule's features, so a user deep inside the qualifying region earns a less
// rare badge than one at its edge.
func conceptBadges(s *sequence.State, catalog []*types.ActionSpec) []Badge {
	var out []Badge
	for _, spec := range catalog {
		if spec == nil || !spec.Synthesized || spec.Status != types.ActionStatusActive {
			continue
		}
		rule, err := constraint.ParseRule(spec.Rule)
		if err != nil || rule.Empty() {
			continue
		}
		if !rule.Eval(s) {
			continue
		}
		out = append(out, newBadge("concept_"+spec.Key, spec.Title, conceptStrength(s, rule)))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func conceptStrength(s *sequence.State, rule *constraint.Rule) float64 {
	var sum float64
	var n int
	for _, t := range rule.All {
		if v, ok := constraint.FeatureValue(s, t.Feature); ok {
			sum += v
			n++
		}
	}
	for _, t := range rule.Any {
		if v, ok := constraint.FeatureValue(s, t.Feature); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return clamp01(sum / float64(n))
}

func newBadge(key, label string, strength float64) Badge {
	return Badge{
		Key:      key,
		Label:    label,
		Rarity:   round2(1 - strength),
		Prestige: int(math.Round(strength * 100)),
	}
}

// MergeBadges unions previously awarded badges with the current derivation.
// Persisted awards are never dropped; a re-derived badge refreshes its rarity
// and prestige in place, and genuinely new badges append in derive order.
func MergeBadges(persisted []*types.ProfileBadge, current []Badge) []Badge {
	byKey := make(map[string]Badge, len(current))
	for _, b := range current {
		byKey[b.Key] = b
	}

	merged := make([]Badge, 0, len(persisted)+len(current))
	seen := make(map[string]bool, len(persisted))
	for _, p := range persisted {
		if p == nil || p.BadgeKey == "" || seen[p.BadgeKey] {
			continue
		}
		seen[p.BadgeKey] = true
		if b, ok := byKey[p.BadgeKey]; ok {
			merged = append(merged, b)
			continue
		}
		merged = append(merged, Badge{
			Key:      p.BadgeKey,
			Label:    p.Label,
			Rarity:   p.Rarity,
			Prestige: p.Prestige,
		})
	}
	for _, b := range current {
		if !seen[b.Key] {
			merged = append(merged, b)
		}
	}
	return merged
}

// TotalPrestige sums badge contributions.
func TotalPrestige(badges []Badge) int {
	var total int
	for _, b := range badges {
		total += b.Prestige
	}
	return total
}

func labelWords(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
