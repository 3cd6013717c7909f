package sequence

import (
	"github.com/yungbote/rewardcore-backend/internal/domain/events"
	"github.com/yungbote/rewardcore-backend/internal/encoding"
	"github.com/yungbote/rewardcore-backend/internal/platform/apierr"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
)

// Confidence increases and variance shrinks by a tenth of the observation
// confidence per event, capped so no estimate ever becomes certain.
const (
	evidenceStep         = 0.1
	confidenceCap        = 0.95
	varianceFloor        = 0.01
	enrichmentConfidence = 0.30
)

// Model applies encoded frames to user state. Apply is pure: it never
// touches storage and never mutates its inputs, so the caller owns
// persistence and ordering.
type Model struct {
	// EMA step for engagement lanes and for domain affinity.
	EngagementAlpha float64
	AffinityAlpha   float64
	// Event count at which the cold flag clears.
	ColdThreshold int
}

func NewModel() *Model {
	return &Model{
		EngagementAlpha: envutil.Float("SEQUENCE_ENGAGEMENT_ALPHA", 0.2, 0.01, 1),
		AffinityAlpha:   envutil.Float("SEQUENCE_AFFINITY_ALPHA", 0.1, 0.01, 1),
		ColdThreshold:   envutil.Int("SEQUENCE_COLD_THRESHOLD", 10),
	}
}

// Warm reports whether a user with the given applied-event count has left
// the cold-start phase.
func (m *Model) Warm(eventCount int) bool {
	return eventCount >= m.ColdThreshold
}

// Apply folds one frame into the state and returns the successor. A
// malformed frame rejects in full: the returned error carries the
// validation cause and prev is untouched, never partially applied.
func (m *Model) Apply(prev *State, f *encoding.Frame) (*State, error) {
	if prev == nil {
		return nil, apierr.Validation("state is required")
	}
	if f == nil {
		return nil, apierr.Validation("frame is required")
	}
	width, err := encoding.FrameWidth(f.Version)
	if err != nil {
		return nil, apierr.Validationf("frame version %d unsupported", f.Version)
	}
	if len(f.Values) != width || len(f.Known) != width {
		return nil, apierr.Validationf("frame width %d/%d, want %d", len(f.Values), len(f.Known), width)
	}
	if len(prev.CapMean) != encoding.NumDimensions || len(prev.Engagement) != encoding.NumEngagementLanes || len(prev.DomainAffinity) != encoding.NumDomains {
		return nil, apierr.Validation("state vector has wrong segment widths")
	}

	next := prev.Clone()

	if sc, ok := f.Confidence(); ok {
		for dim := 0; dim < encoding.NumDimensions; dim++ {
			if v, observed := f.CapabilitySignal(dim); observed {
				observe(next, dim, v, sc)
			}
		}
	}

	for lane := 0; lane < encoding.NumEngagementLanes; lane++ {
		if v, ok := f.Engagement(lane); ok {
			next.Engagement[lane] += m.EngagementAlpha * (v - next.Engagement[lane])
		}
	}

	if d := f.Domain(); d >= 0 {
		for i := 0; i < encoding.NumDomains; i++ {
			target := 0.0
			if i == d {
				target = 1.0
			}
			next.DomainAffinity[i] += m.AffinityAlpha * (target - next.DomainAffinity[i])
		}
	}

	m.applyEnrichment(next, f)

	return next, nil
}

// applyEnrichment folds opt-in lanes into the shared segments. Portfolio
// lanes are weak capability observations, fitness nudges wellness affinity.
// Absent lanes change nothing, so opted-out users keep the plain baseline.
func (m *Model) applyEnrichment(next *State, f *encoding.Frame) {
	if p, ok := f.Enrichment(encoding.EnrProjects); ok {
		observe(next, encoding.DimReliability, p, enrichmentConfidence)
		observe(next, encoding.DimDomainDepth, p, enrichmentConfidence)
	}
	if b, ok := f.Enrichment(encoding.EnrBreadth); ok {
		observe(next, encoding.DimKnowledgeBreadth, b, enrichmentConfidence)
	}
	if active, ok := f.Enrichment(encoding.EnrActiveMinutes); ok {
		if w := encoding.DomainIndex(events.DomainWellnessActivities); w >= 0 {
			next.DomainAffinity[w] += m.AffinityAlpha * (active - next.DomainAffinity[w])
		}
	}
}

// observe is the precision-weighted Bayesian update for one capability
// lane. Peaks only ever move up.
func observe(s *State, dim int, signal, confidence float64) {
	priorWeight := s.CapConf[dim]
	total := priorWeight + confidence
	if total <= 0 {
		return
	}
	s.CapMean[dim] = (s.CapMean[dim]*priorWeight + signal*confidence) / total

	s.CapVar[dim] *= 1 - confidence*evidenceStep
	if s.CapVar[dim] < varianceFloor {
		s.CapVar[dim] = varianceFloor
	}

	s.CapConf[dim] += confidence * evidenceStep
	if s.CapConf[dim] > confidenceCap {
		s.CapConf[dim] = confidenceCap
	}

	if s.CapMean[dim] > s.CapPeak[dim] {
		s.CapPeak[dim] = s.CapMean[dim]
	}
}
