package sequence

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/domain/events"
	"github.com/yungbote/rewardcore-backend/internal/encoding"
)

func frameFor(t *testing.T, action, domain, payload string, at time.Time) *encoding.Frame {
	t.Helper()
	f, err := encoding.Current().Encode(&events.BehaviorEvent{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		ClientEventID: "evt",
		OccurredAt:    at,
		ActionType:    action,
		Domain:        domain,
		Source:        events.SourceApp,
		Payload:       datatypes.JSON([]byte(payload)),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return f
}

func TestApply_BayesianCapabilityUpdate(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	f := frameFor(t, events.EventChallengeSubmitted, events.DomainSkillGames, `{"difficulty":0.5,"quality":0.9}`, at)

	prev := NewState()
	next, err := NewModel().Apply(prev, f)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// confidence 0.3+0.4*0.5=0.5; mean (0.3*0.1+0.9*0.5)/0.6=0.8
	dim := encoding.DimPatternRecognition
	if math.Abs(next.CapMean[dim]-0.8) > 1e-9 {
		t.Fatalf("mean: expected 0.8 got %v", next.CapMean[dim])
	}
	if math.Abs(next.CapVar[dim]-0.2*(1-0.05)) > 1e-9 {
		t.Fatalf("variance: expected %v got %v", 0.2*0.95, next.CapVar[dim])
	}
	if math.Abs(next.CapConf[dim]-0.15) > 1e-9 {
		t.Fatalf("confidence: expected 0.15 got %v", next.CapConf[dim])
	}
	if next.CapPeak[dim] != next.CapMean[dim] {
		t.Fatalf("peak should track the new high, got %v vs %v", next.CapPeak[dim], next.CapMean[dim])
	}
	// Unassessed dimensions keep the prior.
	if next.CapMean[encoding.DimCreativity] != initialMean {
		t.Fatalf("unassessed dim moved: %v", next.CapMean[encoding.DimCreativity])
	}
}

func TestApply_PureAndDeterministic(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	f := frameFor(t, events.EventSkillAssessment, events.DomainLearningModules, `{"difficulty":0.7,"score":0.6}`, at)

	prev := NewState()
	before := prev.Clone()

	m := NewModel()
	a, err := m.Apply(prev, f)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	b, err := m.Apply(prev, f)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !reflect.DeepEqual(prev, before) {
		t.Fatalf("Apply mutated its input state")
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("Apply is not deterministic")
	}
}

func TestApply_OrderSensitive(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	low := frameFor(t, events.EventSkillAssessment, events.DomainSkillGames, `{"difficulty":0.9,"score":0.2}`, at)
	high := frameFor(t, events.EventSkillAssessment, events.DomainSkillGames, `{"difficulty":0.9,"score":0.9}`, at)

	m := NewModel()
	apply := func(frames ...*encoding.Frame) *State {
		s := NewState()
		for _, f := range frames {
			next, err := m.Apply(s, f)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			s = next
		}
		return s
	}

	lowHigh := apply(low, high)
	highLow := apply(high, low)
	dim := encoding.DimPatternRecognition
	if lowHigh.CapMean[dim] == highLow.CapMean[dim] {
		t.Fatalf("expected order to matter, both ended at %v", lowHigh.CapMean[dim])
	}
}

func TestApply_PeaksMonotone(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	m := NewModel()
	s := NewState()
	dim := encoding.DimPatternRecognition

	scores := []string{`{"difficulty":0.9,"score":0.95}`, `{"difficulty":0.9,"score":0.1}`, `{"difficulty":0.9,"score":0.1}`}
	var prevPeak float64
	for _, payload := range scores {
		next, err := m.Apply(s, frameFor(t, events.EventSkillAssessment, events.DomainSkillGames, payload, at))
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		if next.CapPeak[dim] < prevPeak {
			t.Fatalf("peak decreased from %v to %v", prevPeak, next.CapPeak[dim])
		}
		prevPeak = next.CapPeak[dim]
		s = next
	}
	if s.CapMean[dim] >= s.CapPeak[dim] {
		t.Fatalf("mean should have fallen below the peak, mean=%v peak=%v", s.CapMean[dim], s.CapPeak[dim])
	}
}

func TestApply_ConfidenceCapped(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	f := frameFor(t, events.EventSkillAssessment, events.DomainSkillGames, `{"difficulty":1,"score":0.8}`, at)

	m := NewModel()
	s := NewState()
	for i := 0; i < 200; i++ {
		next, err := m.Apply(s, f)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
		s = next
	}
	dim := encoding.DimPatternRecognition
	if s.CapConf[dim] > confidenceCap {
		t.Fatalf("confidence exceeded cap: %v", s.CapConf[dim])
	}
	if s.CapVar[dim] < varianceFloor {
		t.Fatalf("variance fell through the floor: %v", s.CapVar[dim])
	}
}

func TestApply_RejectsMalformedFrame(t *testing.T) {
	m := NewModel()
	s := NewState()
	before := s.Clone()

	if _, err := m.Apply(s, nil); err == nil {
		t.Fatalf("nil frame must be rejected")
	}
	if _, err := m.Apply(s, &encoding.Frame{Version: 99}); err == nil {
		t.Fatalf("unknown version must be rejected")
	}
	if _, err := m.Apply(s, &encoding.Frame{Version: encoding.SchemaV1, Values: make([]float64, 3), Known: make([]bool, 3)}); err == nil {
		t.Fatalf("truncated frame must be rejected")
	}
	if !reflect.DeepEqual(s, before) {
		t.Fatalf("rejected frames must leave state untouched")
	}
}

func TestApply_EnrichmentNeverDegradesBaseline(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	base := frameFor(t, events.EventSkillAssessment, events.DomainSkillGames, `{"difficulty":0.5,"score":0.7}`, at)
	enrich := frameFor(t, events.EventEnrichmentPortfolio, "", `{"projects":10,"breadth":0.6}`, at)

	m := NewModel()

	plain, err := m.Apply(NewState(), base)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	enriched, err := m.Apply(plain, enrich)
	if err != nil {
		t.Fatalf("Apply enrichment: %v", err)
	}

	// The enrichment event only adds observations on its own lanes.
	if enriched.CapMean[encoding.DimPatternRecognition] != plain.CapMean[encoding.DimPatternRecognition] {
		t.Fatalf("enrichment touched an unrelated capability")
	}
	if enriched.CapConf[encoding.DimReliability] <= plain.CapConf[encoding.DimReliability] {
		t.Fatalf("portfolio enrichment should add reliability evidence")
	}
}

func TestApply_EngagementAndAffinityEMA(t *testing.T) {
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	done := frameFor(t, events.EventActivityCompleted, events.DomainCreativeChallenges, `{"duration_ms":1800000}`, at)

	m := NewModel()
	next, err := m.Apply(NewState(), done)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := next.Engagement[encoding.EngCompleted]; math.Abs(got-m.EngagementAlpha) > 1e-9 {
		t.Fatalf("completed EMA: expected %v got %v", m.EngagementAlpha, got)
	}
	creative := encoding.DomainIndex(events.DomainCreativeChallenges)
	if got := next.DomainAffinity[creative]; math.Abs(got-m.AffinityAlpha) > 1e-9 {
		t.Fatalf("affinity EMA: expected %v got %v", m.AffinityAlpha, got)
	}
}

func TestStateRoundTripAndWindow(t *testing.T) {
	s := NewState()
	s.CapMean[3] = 0.77
	s.Engagement[encoding.EngSatisfaction] = 0.4
	s.DomainAffinity[2] = 0.9

	raw, err := Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(s, back) {
		t.Fatalf("state did not round-trip")
	}
	if _, err := FromVector(make([]float64, 7)); err == nil {
		t.Fatalf("wrong width must error")
	}

	var window []OutcomeEntry
	for i := 0; i < DefaultWindowCap+10; i++ {
		v := 0.0
		if i%2 == 0 {
			v = 1
		}
		window = PushOutcome(window, OutcomeEntry{DecisionID: uuid.New(), Value: v, At: time.Now()}, DefaultWindowCap)
	}
	if len(window) != DefaultWindowCap {
		t.Fatalf("window must stay bounded, got %d", len(window))
	}
	if r := PositiveRate(window); r <= 0 || r > 1 {
		t.Fatalf("positive rate out of range: %v", r)
	}
}
