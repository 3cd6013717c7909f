package constraint

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/rewardcore-backend/internal/domain/catalog"
	"github.com/yungbote/rewardcore-backend/internal/domain/signals"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

// Hard predicates in precedence order. The first predicate that fires is
// the one logged and persisted for the exclusion; later predicates are not
// evaluated for that action.
const (
	PredicateFraudHold   = "fraud_hold"
	PredicateUsageHealth = "usage_health"
	PredicateLifecycle   = "lifecycle"
	PredicateEligibility = "eligibility_rule"
	PredicateCooldown    = "cooldown"
	PredicateDailyCap    = "daily_grant_cap"
)

// Soft penalty ceiling; penalties bias policy scoring, they never exclude.
const maxPenalty = 0.5

// Filter evaluates the hard predicates and soft penalties.
type Filter struct {
	// Per-action grants allowed per UTC day.
	DailyGrantCap int
	// Penalty per same-day repeat grant of the same action.
	FatigueStep float64
	// Penalty for repeating the most recent reward type, and for a type
	// seen anywhere in the recent window.
	RepeatTypePenalty float64
	RecentTypePenalty float64
}

func NewFilter() *Filter {
	return &Filter{
		DailyGrantCap:     envutil.Int("CONSTRAINT_DAILY_GRANT_CAP", 3),
		FatigueStep:       envutil.Float("CONSTRAINT_FATIGUE_STEP", 0.1, 0, 1),
		RepeatTypePenalty: envutil.Float("CONSTRAINT_REPEAT_TYPE_PENALTY", 0.1, 0, 1),
		RecentTypePenalty: envutil.Float("CONSTRAINT_RECENT_TYPE_PENALTY", 0.05, 0, 1),
	}
}

// Input is everything one eligibility pass needs. State may be nil for a
// brand-new user; the filter substitutes the neutral prior.
type Input struct {
	State     *sequence.State
	Fraud     *signals.FraudAssessment
	Wellbeing *signals.WellbeingAssessment
	Stats     map[uuid.UUID]*catalog.UserActionStat
	Catalog   []*catalog.ActionSpec
	// Fairness pressure per action from the latest audit, folded into
	// soft penalties.
	FairnessPressure map[uuid.UUID]float64
	// Reward types of this user's recent grants, newest first.
	RecentTypes []string
	Now         time.Time
}

// Exclusion records one hard-predicate hit.
type Exclusion struct {
	Action    *catalog.ActionSpec
	Predicate string
	Detail    string
}

// Result is the filtered catalog. Eligible preserves catalog order;
// Penalties carries the soft terms for every eligible action.
type Result struct {
	Eligible   []*catalog.ActionSpec
	Exclusions []Exclusion
	Penalties  map[uuid.UUID]float64
}

// Eligible partitions the catalog. Total for any input: an empty eligible
// set is a result, never an error.
func (f *Filter) Eligible(in Input) *Result {
	state := in.State
	if state == nil {
		state = sequence.NewState()
	}
	res := &Result{Penalties: map[uuid.UUID]float64{}}
	for _, spec := range in.Catalog {
		if spec == nil {
			continue
		}
		if predicate, detail := f.exclude(state, spec, in); predicate != "" {
			res.Exclusions = append(res.Exclusions, Exclusion{Action: spec, Predicate: predicate, Detail: detail})
			continue
		}
		res.Eligible = append(res.Eligible, spec)
		res.Penalties[spec.ID] = f.penalty(spec, in)
	}
	return res
}

// Veto re-checks the signal-driven predicates for an already-chosen action
// against fresh inputs. Rule, cooldown, and cap were decided on the same
// snapshot the selection used and do not re-fire here.
func (f *Filter) Veto(spec *catalog.ActionSpec, in Input) (string, string) {
	if spec == nil {
		return "", ""
	}
	if p, d := f.fraudHold(spec, in.Fraud); p != "" {
		return p, d
	}
	if p, d := f.usageHealth(spec, in.Wellbeing); p != "" {
		return p, d
	}
	if !spec.Selectable() {
		return PredicateLifecycle, fmt.Sprintf("status %s", spec.Status)
	}
	return "", ""
}

func (f *Filter) exclude(state *sequence.State, spec *catalog.ActionSpec, in Input) (string, string) {
	if p, d := f.fraudHold(spec, in.Fraud); p != "" {
		return p, d
	}
	if p, d := f.usageHealth(spec, in.Wellbeing); p != "" {
		return p, d
	}
	if !spec.Selectable() {
		return PredicateLifecycle, fmt.Sprintf("status %s", spec.Status)
	}

	rule, err := ParseRule(spec.Rule)
	if err != nil {
		// Unparseable rules fail closed.
		return PredicateEligibility, "rule document unreadable"
	}
	if !rule.Eval(state) {
		return PredicateEligibility, rule.Text()
	}

	stat := in.Stats[spec.ID]
	if stat != nil && stat.LastSelectedAt != nil {
		if cd := spec.Cooldown(); cd > 0 {
			until := stat.LastSelectedAt.Add(cd)
			if in.Now.Before(until) {
				return PredicateCooldown, fmt.Sprintf("until %s", until.UTC().Format(time.RFC3339))
			}
		}
	}

	if stat != nil && f.DailyGrantCap > 0 && stat.GrantDay != nil {
		today := in.Now.UTC().Truncate(24 * time.Hour)
		if stat.GrantDay.Equal(today) && stat.GrantsInDay >= f.DailyGrantCap {
			return PredicateDailyCap, fmt.Sprintf("%d grants today", stat.GrantsInDay)
		}
	}

	return "", ""
}

func (f *Filter) fraudHold(spec *catalog.ActionSpec, fa *signals.FraudAssessment) (string, string) {
	if fa == nil {
		return "", ""
	}
	switch fa.Tier {
	case signals.FraudTierBlock:
		return PredicateFraudHold, fmt.Sprintf("tier block, risk %.2f", fa.Risk)
	case signals.FraudTierReview:
		// Review holds back the grants worth gaming.
		if spec.Intensity == catalog.IntensityHigh || spec.RewardType == catalog.RewardTypePoints {
			return PredicateFraudHold, fmt.Sprintf("tier review, risk %.2f", fa.Risk)
		}
	}
	return "", ""
}

func (f *Filter) usageHealth(spec *catalog.ActionSpec, wa *signals.WellbeingAssessment) (string, string) {
	if wa == nil || wa.Severity <= WellbeingGateSeverity {
		return "", ""
	}
	if !EngagementExtending(spec) {
		return "", ""
	}
	return PredicateUsageHealth, fmt.Sprintf("severity %.2f", wa.Severity)
}

func (f *Filter) penalty(spec *catalog.ActionSpec, in Input) float64 {
	var p float64

	if stat := in.Stats[spec.ID]; stat != nil && stat.GrantDay != nil {
		today := in.Now.UTC().Truncate(24 * time.Hour)
		if stat.GrantDay.Equal(today) && stat.GrantsInDay > 0 {
			repeats := stat.GrantsInDay
			if repeats > 3 {
				repeats = 3
			}
			p += f.FatigueStep * float64(repeats)
		}
	}

	for i, rt := range in.RecentTypes {
		if rt != spec.RewardType {
			continue
		}
		if i == 0 {
			p += f.RepeatTypePenalty
		} else {
			p += f.RecentTypePenalty
		}
		break
	}

	p += in.FairnessPressure[spec.ID]

	if p > maxPenalty {
		p = maxPenalty
	}
	return p
}
