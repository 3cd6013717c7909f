package policy

import (
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
)

// EpsilonSchedule decays exploration with the user's decision count and
// with global rollout maturity. For a fixed user the rate never rises:
// the count only grows and maturity only grows.
type EpsilonSchedule struct {
	Base  float64
	Min   float64
	Decay float64
	// How much full maturity suppresses exploration.
	MaturityWeight float64
}

func NewEpsilonSchedule() EpsilonSchedule {
	return EpsilonSchedule{
		Base:           envutil.Float("POLICY_EPSILON_BASE", 0.30, 0, 1),
		Min:            envutil.Float("POLICY_EPSILON_MIN", 0.02, 0, 1),
		Decay:          envutil.Float("POLICY_EPSILON_DECAY", 0.05, 0, 10),
		MaturityWeight: envutil.Float("POLICY_EPSILON_MATURITY_WEIGHT", 0.5, 0, 1),
	}
}

// At returns the exploration rate for a user with the given prior decision
// count under the given rollout maturity (0 fresh rollout, 1 mature).
func (s EpsilonSchedule) At(userDecisions int, maturity float64) float64 {
	if userDecisions < 0 {
		userDecisions = 0
	}
	if maturity < 0 {
		maturity = 0
	}
	if maturity > 1 {
		maturity = 1
	}
	eps := s.Base / (1 + s.Decay*float64(userDecisions))
	eps *= 1 - s.MaturityWeight*maturity
	if eps < s.Min {
		eps = s.Min
	}
	return eps
}
