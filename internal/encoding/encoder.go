package encoding

import (
	"encoding/json"
	"math"
	"time"

	"github.com/yungbote/rewardcore-backend/internal/domain/events"
	"github.com/yungbote/rewardcore-backend/internal/platform/apierr"
)

// Which capability lanes an assessed activity in each domain signals.
// Frozen with the schema: changing a row means a new schema version.
var domainDimensions = [NumDomains][]int{
	{DimPatternRecognition, DimAnalyticalThinking, DimLearningSpeed},
	{DimCreativity, DimRiskTolerance, DimDomainDepth},
	{DimCollaboration, DimCommunication, DimEmotionalIntelligence},
	{DimReliability, DimDomainDepth, DimAdaptability},
	{DimKnowledgeBreadth, DimLearningSpeed, DimPersistence},
	{DimCommunication, DimCreativity, DimDomainDepth},
	{DimPersistence, DimEmotionalIntelligence},
	{DimCollaboration, DimAdaptability, DimCommunication},
}

// Dimensions a received peer review signals when the event carries no domain.
var reviewDimensions = []int{DimCommunication, DimCollaboration}

const defaultDifficulty = 0.5

// Encoder turns behavior events into fixed-width frames. Encoding is
// deterministic: the same event always yields the same frame under the
// same schema version.
type Encoder struct {
	version int
}

func New(version int) (*Encoder, error) {
	if _, err := FrameWidth(version); err != nil {
		return nil, err
	}
	return &Encoder{version: version}, nil
}

// Current returns an encoder for the newest schema.
func Current() *Encoder {
	return &Encoder{version: CurrentSchema}
}

func (e *Encoder) Version() int { return e.version }

// Encode validates the event and produces its frame. Lanes without an
// observation stay masked; a masked lane is never a zero observation.
func (e *Encoder) Encode(ev *events.BehaviorEvent) (*Frame, error) {
	if ev == nil {
		return nil, apierr.Validation("event is required")
	}
	if ev.OccurredAt.IsZero() {
		return nil, apierr.Validation("occurred_at is required")
	}
	domain := -1
	if ev.Domain != "" {
		domain = DomainIndex(ev.Domain)
		if domain < 0 {
			return nil, apierr.Validationf("unknown domain %q", ev.Domain)
		}
	}
	payload, err := payloadMap(ev.Payload)
	if err != nil {
		return nil, err
	}

	f, err := newFrame(e.version)
	if err != nil {
		return nil, err
	}

	encodeTime(f, ev.OccurredAt)
	if domain >= 0 {
		for i := 0; i < NumDomains; i++ {
			if i == domain {
				f.set(FrameDomainOff+i, 1)
			} else {
				f.set(FrameDomainOff+i, 0)
			}
		}
	}

	switch ev.ActionType {
	case events.EventSessionStarted, events.EventActivityStarted, events.EventRewardViewed:
		// Presence only; temporal and domain lanes carry the observation.

	case events.EventSessionEnded:
		if ms, ok := num(payload, "duration_ms"); ok {
			f.set(FrameEngOff+EngActiveHours, clampRange(ms/3600000, 0, 24))
		}

	case events.EventActivityCompleted:
		f.set(FrameEngOff+EngCompleted, 1)
		if ms, ok := num(payload, "duration_ms"); ok {
			f.set(FrameEngOff+EngActiveHours, clampRange(ms/3600000, 0, 24))
		}
		if q, ok := num(payload, "quality"); ok && domain >= 0 {
			applySignal(f, domainDimensions[domain], clamp01(q), difficulty(payload))
		}

	case events.EventActivityAbandoned:
		f.set(FrameEngOff+EngAbandoned, 1)

	case events.EventChallengeSubmitted:
		if q, ok := num(payload, "quality"); ok && domain >= 0 {
			applySignal(f, domainDimensions[domain], clamp01(q), difficulty(payload))
		}

	case events.EventSkillAssessment:
		if s, ok := num(payload, "score"); ok && domain >= 0 {
			applySignal(f, domainDimensions[domain], clamp01(s), difficulty(payload))
		}

	case events.EventContentPublished:
		if n, ok := num(payload, "audience_size"); ok && domain >= 0 {
			applySignal(f, domainDimensions[domain], clamp01(n/1000), difficulty(payload))
		}

	case events.EventPeerReviewReceived:
		if r, ok := num(payload, "rating"); ok {
			r = clamp01(r)
			f.set(FrameSocialOff+SocPeerRating, r)
			dims := reviewDimensions
			if domain >= 0 {
				dims = domainDimensions[domain]
			}
			applySignal(f, dims, r, difficulty(payload))
		}

	case events.EventPeerReviewGiven:
		f.set(FrameSocialOff+SocReviewGiven, 1)

	case events.EventCollaborationJoined:
		f.set(FrameSocialOff+SocCollabJoined, 1)

	case events.EventFeedbackGiven:
		if s, ok := num(payload, "satisfaction"); ok {
			f.set(FrameEngOff+EngSatisfaction, clamp01(s))
		}

	case events.EventRewardRedeemed:
		f.set(FrameEngOff+EngRedeemed, 1)

	case events.EventEnrichmentCalendar:
		if e.version >= SchemaV2 {
			if h, ok := num(payload, "free_hours"); ok {
				f.set(FrameEnrichOff+EnrFreeHours, clamp01(h/8))
			}
		}

	case events.EventEnrichmentFitness:
		if e.version >= SchemaV2 {
			if m, ok := num(payload, "active_minutes"); ok {
				f.set(FrameEnrichOff+EnrActiveMinutes, clamp01(m/60))
			}
		}

	case events.EventEnrichmentPortfolio:
		if e.version >= SchemaV2 {
			if p, ok := num(payload, "projects"); ok {
				f.set(FrameEnrichOff+EnrProjects, clamp01(p/20))
			}
			if b, ok := num(payload, "breadth"); ok {
				f.set(FrameEnrichOff+EnrBreadth, clamp01(b))
			}
		}

	default:
		return nil, apierr.Validationf("unknown action type %q", ev.ActionType)
	}

	return f, nil
}

// encodeTime writes cyclical hour-of-day and day-of-week lanes. Cyclical
// lanes keep 23:00 adjacent to 00:00 instead of maximally far apart.
func encodeTime(f *Frame, at time.Time) {
	utc := at.UTC()
	seconds := float64(utc.Hour()*3600 + utc.Minute()*60 + utc.Second())
	hourAngle := 2 * math.Pi * seconds / 86400
	dowAngle := 2 * math.Pi * float64(utc.Weekday()) / 7

	f.set(FrameTimeOff+TimeHourSin, math.Sin(hourAngle))
	f.set(FrameTimeOff+TimeHourCos, math.Cos(hourAngle))
	f.set(FrameTimeOff+TimeDowSin, math.Sin(dowAngle))
	f.set(FrameTimeOff+TimeDowCos, math.Cos(dowAngle))

	h := utc.Hour()
	if h >= 22 || h < 6 {
		f.set(FrameEngOff+EngLateNight, 1)
	} else {
		f.set(FrameEngOff+EngLateNight, 0)
	}
}

// applySignal writes one observation onto the given capability lanes with
// confidence derived from activity difficulty.
func applySignal(f *Frame, dims []int, signal, diff float64) {
	if len(dims) == 0 {
		return
	}
	for _, d := range dims {
		f.set(FrameCapOff+d, signal)
	}
	f.set(FrameConfLane, 0.3+0.4*clamp01(diff))
}

func difficulty(payload map[string]interface{}) float64 {
	if d, ok := num(payload, "difficulty"); ok {
		return clamp01(d)
	}
	return defaultDifficulty
}

func payloadMap(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, apierr.Validation("payload must be a JSON object")
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return m, nil
}

func num(m map[string]interface{}, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
