package policy

import (
	"encoding/json"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/yungbote/rewardcore-backend/internal/domain/catalog"
	"github.com/yungbote/rewardcore-backend/internal/domain/decisions"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
)

// Bandit is the hierarchical selection policy: a whether-to-reward gate,
// then reward-type selection, then action and presentation within the type.
type Bandit struct {
	Epsilon EpsilonSchedule
	// Value an unexplored arm is assumed to carry. Optimistic relative to
	// NoRewardValue so new actions get tried.
	PriorValue float64
	// Estimated value of granting nothing; the whether-gate threshold.
	NoRewardValue float64
	// Arms with fewer observations than this count as under-explored.
	MinTrials int
	// Evidence scale for the reported confidence, n/(n+k).
	ConfidenceScale float64
}

func NewBandit() *Bandit {
	return &Bandit{
		Epsilon:         NewEpsilonSchedule(),
		PriorValue:      envutil.Float("POLICY_PRIOR_VALUE", 0.50, 0, 1),
		NoRewardValue:   envutil.Float("POLICY_NO_REWARD_VALUE", 0.20, 0, 1),
		MinTrials:       envutil.Int("POLICY_MIN_TRIALS", 5),
		ConfidenceScale: envutil.Float("POLICY_CONFIDENCE_SCALE", 10, 1, 1000),
	}
}

// Candidate is one eligible action with its evidence.
type Candidate struct {
	Spec     *catalog.ActionSpec
	Estimate *decisions.ArmEstimate
	Stat     *catalog.UserActionStat
	Penalty  float64
}

// SelectInput is one policy invocation.
type SelectInput struct {
	ArchetypeBucket string
	ContextBucket   string
	Candidates      []Candidate
	UserDecisions   int
	Maturity        float64
	Rand            *rand.Rand
}

// Selection is the policy's choice. Spec nil means no reward.
type Selection struct {
	Spec             *catalog.ActionSpec
	ArmKey           string
	PresentationHint string
	Epsilon          float64
	Explored         bool
	Probability      float64
	Confidence       float64
	Value            float64
}

// Select runs the hierarchy. An empty candidate set yields the no-reward
// selection, never an error.
func (b *Bandit) Select(in SelectInput) Selection {
	eps := b.Epsilon.At(in.UserDecisions, in.Maturity)
	out := Selection{Epsilon: eps}
	if len(in.Candidates) == 0 {
		out.Probability = 1
		return out
	}

	// Whether: grant only when something beats staying silent.
	best := b.adjustedValue(in.Candidates[0])
	for _, c := range in.Candidates[1:] {
		if v := b.adjustedValue(c); v > best {
			best = v
		}
	}
	if best <= b.NoRewardValue {
		out.Probability = 1
		return out
	}

	if in.Rand != nil && in.Rand.Float64() < eps {
		return b.explore(in, eps)
	}
	return b.exploit(in, eps)
}

// explore picks uniformly among under-explored candidates, falling back to
// all of them when everything has enough trials.
func (b *Bandit) explore(in SelectInput, eps float64) Selection {
	pool := make([]Candidate, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		if c.Estimate == nil || c.Estimate.Count < b.MinTrials {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		pool = in.Candidates
	}
	chosen := pool[in.Rand.Intn(len(pool))]
	return b.selection(chosen, in, eps, true, eps/float64(len(pool)))
}

// exploit maximizes estimated value minus penalty: first the reward type,
// then the action within it. Ties prefer the action this user has been
// granted least.
func (b *Bandit) exploit(in SelectInput, eps float64) Selection {
	byType := map[string][]Candidate{}
	var types []string
	for _, c := range in.Candidates {
		rt := c.Spec.RewardType
		if _, ok := byType[rt]; !ok {
			types = append(types, rt)
		}
		byType[rt] = append(byType[rt], c)
	}
	sort.Strings(types)

	bestType, bestTypeValue := "", -1.0
	for _, rt := range types {
		v := -1.0
		for _, c := range byType[rt] {
			if av := b.adjustedValue(c); av > v {
				v = av
			}
		}
		if v > bestTypeValue {
			bestType, bestTypeValue = rt, v
		}
	}

	group := byType[bestType]
	chosen := group[0]
	chosenValue := b.adjustedValue(chosen)
	for _, c := range group[1:] {
		v := b.adjustedValue(c)
		switch {
		case v > chosenValue:
			chosen, chosenValue = c, v
		case v == chosenValue && selections(c) < selections(chosen):
			chosen = c
		case v == chosenValue && selections(c) == selections(chosen) && c.Spec.Key < chosen.Spec.Key:
			chosen = c
		}
	}
	return b.selection(chosen, in, eps, false, 1-eps)
}

func (b *Bandit) selection(c Candidate, in SelectInput, eps float64, explored bool, probability float64) Selection {
	return Selection{
		Spec:             c.Spec,
		ArmKey:           ArmKey(in.ArchetypeBucket, in.ContextBucket, c.Spec.ID),
		PresentationHint: presentationHint(c.Spec, in.ContextBucket),
		Epsilon:          eps,
		Explored:         explored,
		Probability:      probability,
		Confidence:       b.confidence(c),
		Value:            b.adjustedValue(c),
	}
}

func (b *Bandit) adjustedValue(c Candidate) float64 {
	v := b.PriorValue
	if c.Estimate != nil && c.Estimate.Count > 0 {
		v = c.Estimate.ValueMean
	}
	return v - c.Penalty
}

func (b *Bandit) confidence(c Candidate) float64 {
	if c.Estimate == nil || c.Estimate.Count <= 0 {
		return 0
	}
	n := float64(c.Estimate.Count)
	return n / (n + b.ConfidenceScale)
}

func selections(c Candidate) int {
	if c.Stat == nil {
		return 0
	}
	return c.Stat.Selections
}

// presentationHint picks a stable variant per (action, context bucket), so
// the same user context sees the same presentation while estimates for the
// action accumulate.
func presentationHint(spec *catalog.ActionSpec, contextBucket string) string {
	if spec == nil || len(spec.Presentations) == 0 {
		return ""
	}
	var variants []string
	if err := json.Unmarshal(spec.Presentations, &variants); err != nil || len(variants) == 0 {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(spec.Key))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(contextBucket))
	return variants[int(h.Sum32())%len(variants)]
}
