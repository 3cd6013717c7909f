package encoding

import (
	"fmt"

	"github.com/yungbote/rewardcore-backend/internal/domain/events"
)

// Schema versions are frozen layouts. A new version appends segments; it
// never moves or reinterprets existing lanes, so state vectors written
// under older versions stay replayable.
const (
	SchemaV1 = 1
	// SchemaV2 appends the opt-in enrichment segment.
	SchemaV2 = 2

	CurrentSchema = SchemaV2
)

// Capability dimensions tracked per user. Index order is frozen: lane k of
// every capability segment refers to Dimensions[k] in every schema version.
const (
	DimKnowledgeBreadth = iota
	DimDomainDepth
	DimLearningSpeed
	DimCreativity
	DimAnalyticalThinking
	DimCommunication
	DimCollaboration
	DimPersistence
	DimAdaptability
	DimReliability
	DimEmotionalIntelligence
	DimPatternRecognition
	DimRiskTolerance

	NumDimensions = 13
)

var dimensionNames = [NumDimensions]string{
	"knowledge_breadth",
	"domain_depth",
	"learning_speed",
	"creativity",
	"analytical_thinking",
	"communication",
	"collaboration",
	"persistence",
	"adaptability",
	"reliability",
	"emotional_intelligence",
	"pattern_recognition",
	"risk_tolerance",
}

// DimensionName returns the frozen name for a capability lane.
func DimensionName(i int) string {
	if i < 0 || i >= NumDimensions {
		return ""
	}
	return dimensionNames[i]
}

// DimensionIndex resolves a dimension name to its lane, -1 when unknown.
func DimensionIndex(name string) int {
	for i, n := range dimensionNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Activity domain lanes, in frozen order.
var domainOrder = [NumDomains]string{
	events.DomainSkillGames,
	events.DomainCreativeChallenges,
	events.DomainCommunityEngagement,
	events.DomainFreelanceProjects,
	events.DomainLearningModules,
	events.DomainContentCreation,
	events.DomainWellnessActivities,
	events.DomainCollaborativeProjects,
}

const NumDomains = 8

// DomainName returns the frozen name for a domain lane.
func DomainName(i int) string {
	if i < 0 || i >= NumDomains {
		return ""
	}
	return domainOrder[i]
}

// DomainIndex resolves a domain name to its lane, -1 when unknown.
func DomainIndex(name string) int {
	for i, n := range domainOrder {
		if n == name {
			return i
		}
	}
	return -1
}

// Engagement lanes shared by frames and the state vector.
const (
	EngActiveHours = iota
	EngCompleted
	EngAbandoned
	EngSatisfaction
	EngRedeemed
	EngLateNight

	NumEngagementLanes = 6
)

var engagementLaneNames = [NumEngagementLanes]string{
	"active_hours",
	"completed",
	"abandoned",
	"satisfaction",
	"redeemed",
	"late_night",
}

// EngagementLaneName returns the frozen name for an engagement lane.
func EngagementLaneName(i int) string {
	if i < 0 || i >= NumEngagementLanes {
		return ""
	}
	return engagementLaneNames[i]
}

// EngagementLaneIndex resolves an engagement lane name, -1 when unknown.
func EngagementLaneIndex(name string) int {
	for i, n := range engagementLaneNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Frame layout. Segment offsets are frozen per schema; v2 appends the
// enrichment segment after the v1 tail.
const (
	FrameCapOff    = 0
	FrameConfLane  = NumDimensions
	FrameEngOff    = NumDimensions + 1
	FrameDomainOff = FrameEngOff + NumEngagementLanes
	FrameTimeOff   = FrameDomainOff + NumDomains

	TimeHourSin  = 0
	TimeHourCos  = 1
	TimeDowSin   = 2
	TimeDowCos   = 3
	numTimeLanes = 4

	FrameSocialOff = FrameTimeOff + numTimeLanes

	SocPeerRating   = 0
	SocReviewGiven  = 1
	SocCollabJoined = 2
	numSocialLanes  = 3

	FrameWidthV1 = FrameSocialOff + numSocialLanes

	FrameEnrichOff = FrameWidthV1

	EnrFreeHours     = 0
	EnrActiveMinutes = 1
	EnrProjects      = 2
	EnrBreadth       = 3
	NumEnrichLanes   = 4

	FrameWidthV2 = FrameEnrichOff + NumEnrichLanes
)

// State vector layout. Four capability segments, then engagement, then
// domain affinity. Shared by every schema version; enrichment contributes
// through the engagement and capability segments, never its own state lanes.
const (
	StateCapMeanOff    = 0
	StateCapVarOff     = NumDimensions
	StateCapConfOff    = 2 * NumDimensions
	StateCapPeakOff    = 3 * NumDimensions
	StateEngagementOff = 4 * NumDimensions
	StateDomainOff     = 4*NumDimensions + NumEngagementLanes

	StateWidth = 4*NumDimensions + NumEngagementLanes + NumDomains
)

// FrameWidth returns the lane count for a schema version.
func FrameWidth(version int) (int, error) {
	switch version {
	case SchemaV1:
		return FrameWidthV1, nil
	case SchemaV2:
		return FrameWidthV2, nil
	default:
		return 0, fmt.Errorf("encoding: unknown schema version %d", version)
	}
}

// Frame is one encoded event: a value lane plus a known-mask lane per
// feature. Consumers must check Known before reading a value; an unknown
// lane is "no observation", never zero.
type Frame struct {
	Version int
	Values  []float64
	Known   []bool
}

func newFrame(version int) (*Frame, error) {
	w, err := FrameWidth(version)
	if err != nil {
		return nil, err
	}
	return &Frame{Version: version, Values: make([]float64, w), Known: make([]bool, w)}, nil
}

func (f *Frame) set(i int, v float64) {
	f.Values[i] = v
	f.Known[i] = true
}

// Lane returns the value at lane i and whether it was observed.
func (f *Frame) Lane(i int) (float64, bool) {
	if f == nil || i < 0 || i >= len(f.Values) {
		return 0, false
	}
	if !f.Known[i] {
		return 0, false
	}
	return f.Values[i], true
}

// CapabilitySignal returns the observed signal for a capability lane.
func (f *Frame) CapabilitySignal(dim int) (float64, bool) {
	if dim < 0 || dim >= NumDimensions {
		return 0, false
	}
	return f.Lane(FrameCapOff + dim)
}

// Confidence returns the observation confidence lane. Only meaningful when
// at least one capability lane is known.
func (f *Frame) Confidence() (float64, bool) {
	return f.Lane(FrameConfLane)
}

// Engagement returns one engagement lane.
func (f *Frame) Engagement(lane int) (float64, bool) {
	if lane < 0 || lane >= NumEngagementLanes {
		return 0, false
	}
	return f.Lane(FrameEngOff + lane)
}

// Domain returns the domain lane index of the event, -1 when unobserved.
func (f *Frame) Domain() int {
	for i := 0; i < NumDomains; i++ {
		if v, ok := f.Lane(FrameDomainOff + i); ok && v > 0.5 {
			return i
		}
	}
	return -1
}

// Social returns one social lane.
func (f *Frame) Social(lane int) (float64, bool) {
	if lane < 0 || lane >= numSocialLanes {
		return 0, false
	}
	return f.Lane(FrameSocialOff + lane)
}

// Enrichment returns one enrichment lane. Always unknown under SchemaV1.
func (f *Frame) Enrichment(lane int) (float64, bool) {
	if f == nil || f.Version < SchemaV2 || lane < 0 || lane >= NumEnrichLanes {
		return 0, false
	}
	return f.Lane(FrameEnrichOff + lane)
}
