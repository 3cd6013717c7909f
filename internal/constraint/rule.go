package constraint

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/encoding"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

// Rule term operators.
const (
	OpGTE = "gte"
	OpGT  = "gt"
	OpLTE = "lte"
	OpLT  = "lt"
)

// MaxRuleTerms bounds rule size so every rule stays explainable in one
// sentence. Synthesis rejects clusters whose defining rule would need more.
const MaxRuleTerms = 4

// Term is one threshold over a named state feature. Feature names use the
// frozen "segment:name" form, e.g. "cap_mean:pattern_recognition" or
// "domain_affinity:skill_games".
type Term struct {
	Feature string  `json:"feature"`
	Op      string  `json:"op"`
	Value   float64 `json:"value"`
}

// Rule is a conjunction of terms, optionally with a disjunctive block.
// An empty rule matches every state.
type Rule struct {
	All []Term `json:"all,omitempty"`
	Any []Term `json:"any,omitempty"`
}

// ParseRule decodes a stored rule document. Empty input is the empty rule.
func ParseRule(raw datatypes.JSON) (*Rule, error) {
	if len(raw) == 0 {
		return &Rule{}, nil
	}
	var r Rule
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("constraint: decode rule: %w", err)
	}
	return &r, nil
}

// MarshalRule serializes a rule for the action_spec.rule column.
func MarshalRule(r *Rule) (datatypes.JSON, error) {
	if r == nil {
		r = &Rule{}
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// Empty reports whether the rule has no terms.
func (r *Rule) Empty() bool {
	return r == nil || (len(r.All) == 0 && len(r.Any) == 0)
}

// Eval applies the rule to a state. Unknown features and operators fail
// closed: the term is false, never an error, so the filter stays total.
func (r *Rule) Eval(s *sequence.State) bool {
	if r.Empty() {
		return true
	}
	for _, t := range r.All {
		if !evalTerm(s, t) {
			return false
		}
	}
	if len(r.Any) > 0 {
		hit := false
		for _, t := range r.Any {
			if evalTerm(s, t) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func evalTerm(s *sequence.State, t Term) bool {
	v, ok := FeatureValue(s, t.Feature)
	if !ok {
		return false
	}
	switch t.Op {
	case OpGTE:
		return v >= t.Value
	case OpGT:
		return v > t.Value
	case OpLTE:
		return v <= t.Value
	case OpLT:
		return v < t.Value
	default:
		return false
	}
}

// FeatureValue resolves a rule feature against a state.
func FeatureValue(s *sequence.State, name string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	if name == "avg_capability" {
		return s.AvgCapability(), true
	}
	seg, rest, found := strings.Cut(name, ":")
	if !found {
		return 0, false
	}
	switch seg {
	case "cap_mean":
		if d := encoding.DimensionIndex(rest); d >= 0 {
			return s.CapMean[d], true
		}
	case "cap_peak":
		if d := encoding.DimensionIndex(rest); d >= 0 {
			return s.CapPeak[d], true
		}
	case "cap_conf":
		if d := encoding.DimensionIndex(rest); d >= 0 {
			return s.CapConf[d], true
		}
	case "engagement":
		if l := encoding.EngagementLaneIndex(rest); l >= 0 {
			return s.Engagement[l], true
		}
	case "domain_affinity":
		if d := encoding.DomainIndex(rest); d >= 0 {
			return s.DomainAffinity[d], true
		}
	}
	return 0, false
}

// Text renders the rule as one human-readable sentence. Every stored rule
// carries this rendering so operators never face an opaque score.
func (r *Rule) Text() string {
	if r.Empty() {
		return "always eligible"
	}
	parts := make([]string, 0, len(r.All)+1)
	for _, t := range r.All {
		parts = append(parts, termText(t))
	}
	if len(r.Any) > 0 {
		alts := make([]string, 0, len(r.Any))
		for _, t := range r.Any {
			alts = append(alts, termText(t))
		}
		parts = append(parts, "("+strings.Join(alts, " or ")+")")
	}
	return strings.Join(parts, " and ")
}

func termText(t Term) string {
	var op string
	switch t.Op {
	case OpGTE:
		op = "at least"
	case OpGT:
		op = "above"
	case OpLTE:
		op = "at most"
	case OpLT:
		op = "below"
	default:
		op = t.Op
	}
	return fmt.Sprintf("%s %s %.2f", featureText(t.Feature), op, t.Value)
}

func featureText(name string) string {
	if name == "avg_capability" {
		return "average capability"
	}
	seg, rest, found := strings.Cut(name, ":")
	if !found {
		return name
	}
	label := strings.ReplaceAll(rest, "_", " ")
	switch seg {
	case "cap_mean":
		return label
	case "cap_peak":
		return "peak " + label
	case "cap_conf":
		return label + " confidence"
	case "engagement":
		return label + " engagement"
	case "domain_affinity":
		return label + " affinity"
	default:
		return name
	}
}
