package sequence

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/encoding"
)

// Neutral Bayesian prior for every capability dimension.
const (
	initialMean       = 0.30
	initialVariance   = 0.20
	initialConfidence = 0.10
)

// State is the decoded user-state vector. Fixed width regardless of how
// many events contributed, so memory per user never grows with history.
type State struct {
	CapMean        []float64
	CapVar         []float64
	CapConf        []float64
	CapPeak        []float64
	Engagement     []float64
	DomainAffinity []float64
}

// NewState returns the neutral prior state every user starts from when no
// archetype seed applies.
func NewState() *State {
	s := &State{
		CapMean:        make([]float64, encoding.NumDimensions),
		CapVar:         make([]float64, encoding.NumDimensions),
		CapConf:        make([]float64, encoding.NumDimensions),
		CapPeak:        make([]float64, encoding.NumDimensions),
		Engagement:     make([]float64, encoding.NumEngagementLanes),
		DomainAffinity: make([]float64, encoding.NumDomains),
	}
	for i := 0; i < encoding.NumDimensions; i++ {
		s.CapMean[i] = initialMean
		s.CapVar[i] = initialVariance
		s.CapConf[i] = initialConfidence
		s.CapPeak[i] = initialMean
	}
	return s
}

// Clone deep-copies the state so updates never alias the caller's slices.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := &State{
		CapMean:        append([]float64(nil), s.CapMean...),
		CapVar:         append([]float64(nil), s.CapVar...),
		CapConf:        append([]float64(nil), s.CapConf...),
		CapPeak:        append([]float64(nil), s.CapPeak...),
		Engagement:     append([]float64(nil), s.Engagement...),
		DomainAffinity: append([]float64(nil), s.DomainAffinity...),
	}
	return c
}

// Vector flattens the state into the frozen layout order.
func (s *State) Vector() []float64 {
	v := make([]float64, encoding.StateWidth)
	copy(v[encoding.StateCapMeanOff:], s.CapMean)
	copy(v[encoding.StateCapVarOff:], s.CapVar)
	copy(v[encoding.StateCapConfOff:], s.CapConf)
	copy(v[encoding.StateCapPeakOff:], s.CapPeak)
	copy(v[encoding.StateEngagementOff:], s.Engagement)
	copy(v[encoding.StateDomainOff:], s.DomainAffinity)
	return v
}

// FromVector rebuilds a state from a flattened vector.
func FromVector(v []float64) (*State, error) {
	if len(v) != encoding.StateWidth {
		return nil, fmt.Errorf("sequence: vector width %d, want %d", len(v), encoding.StateWidth)
	}
	s := &State{
		CapMean:        append([]float64(nil), v[encoding.StateCapMeanOff:encoding.StateCapMeanOff+encoding.NumDimensions]...),
		CapVar:         append([]float64(nil), v[encoding.StateCapVarOff:encoding.StateCapVarOff+encoding.NumDimensions]...),
		CapConf:        append([]float64(nil), v[encoding.StateCapConfOff:encoding.StateCapConfOff+encoding.NumDimensions]...),
		CapPeak:        append([]float64(nil), v[encoding.StateCapPeakOff:encoding.StateCapPeakOff+encoding.NumDimensions]...),
		Engagement:     append([]float64(nil), v[encoding.StateEngagementOff:encoding.StateEngagementOff+encoding.NumEngagementLanes]...),
		DomainAffinity: append([]float64(nil), v[encoding.StateDomainOff:encoding.StateDomainOff+encoding.NumDomains]...),
	}
	return s, nil
}

// Marshal serializes the state for the user_state.vector column.
func Marshal(s *State) (datatypes.JSON, error) {
	if s == nil {
		return nil, fmt.Errorf("sequence: nil state")
	}
	raw, err := json.Marshal(s.Vector())
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// Unmarshal decodes a stored vector column. Empty input yields the neutral
// prior so callers never observe a nil state.
func Unmarshal(raw datatypes.JSON) (*State, error) {
	if len(raw) == 0 {
		return NewState(), nil
	}
	var v []float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("sequence: decode vector: %w", err)
	}
	return FromVector(v)
}

// AvgCapability is the mean over capability means, used by fairness
// qualification and trust tiers.
func (s *State) AvgCapability() float64 {
	if s == nil || len(s.CapMean) == 0 {
		return 0
	}
	var sum float64
	for _, m := range s.CapMean {
		sum += m
	}
	return sum / float64(len(s.CapMean))
}

// TopDomain returns the highest-affinity domain lane, -1 when the state has
// no domain signal yet.
func (s *State) TopDomain() int {
	best, bestV := -1, 0.0
	for i, v := range s.DomainAffinity {
		if v > bestV {
			best, bestV = i, v
		}
	}
	return best
}
