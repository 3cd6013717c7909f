package encoding

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/domain/events"
)

func testEvent(action, domain, payload string) *events.BehaviorEvent {
	return &events.BehaviorEvent{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		ClientEventID: "evt-1",
		OccurredAt:    time.Date(2026, 3, 14, 14, 30, 0, 0, time.UTC),
		ActionType:    action,
		Domain:        domain,
		Source:        events.SourceApp,
		Payload:       datatypes.JSON([]byte(payload)),
	}
}

func TestEncode_Deterministic(t *testing.T) {
	ev := testEvent(events.EventChallengeSubmitted, events.DomainSkillGames, `{"difficulty":0.8,"quality":0.9}`)

	a, err := Current().Encode(ev)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := Current().Encode(ev)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical frames for identical input")
	}
}

func TestEncode_ChallengeSignalsDomainLanes(t *testing.T) {
	ev := testEvent(events.EventChallengeSubmitted, events.DomainSkillGames, `{"difficulty":0.8,"quality":0.9}`)

	f, err := Current().Encode(ev)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for _, dim := range []int{DimPatternRecognition, DimAnalyticalThinking, DimLearningSpeed} {
		v, ok := f.CapabilitySignal(dim)
		if !ok || v != 0.9 {
			t.Fatalf("dim %s: expected 0.9 observed, got v=%v ok=%v", DimensionName(dim), v, ok)
		}
	}
	if v, ok := f.CapabilitySignal(DimCreativity); ok {
		t.Fatalf("creativity should be unobserved, got %v", v)
	}
	conf, ok := f.Confidence()
	if !ok || math.Abs(conf-0.62) > 1e-9 {
		t.Fatalf("expected confidence 0.62, got %v ok=%v", conf, ok)
	}
	if f.Domain() != DomainIndex(events.DomainSkillGames) {
		t.Fatalf("expected domain lane %s, got %d", events.DomainSkillGames, f.Domain())
	}
}

func TestEncode_MaskSeparatesMissingFromZero(t *testing.T) {
	missing := testEvent(events.EventChallengeSubmitted, events.DomainSkillGames, `{"difficulty":0.8}`)
	zero := testEvent(events.EventChallengeSubmitted, events.DomainSkillGames, `{"difficulty":0.8,"quality":0}`)

	fm, err := Current().Encode(missing)
	if err != nil {
		t.Fatalf("Encode missing: %v", err)
	}
	fz, err := Current().Encode(zero)
	if err != nil {
		t.Fatalf("Encode zero: %v", err)
	}

	if _, ok := fm.CapabilitySignal(DimPatternRecognition); ok {
		t.Fatalf("missing quality must leave the lane masked")
	}
	v, ok := fz.CapabilitySignal(DimPatternRecognition)
	if !ok || v != 0 {
		t.Fatalf("zero quality must be an observed zero, got v=%v ok=%v", v, ok)
	}
}

func TestEncode_EnrichmentSegmentByVersion(t *testing.T) {
	ev := testEvent(events.EventEnrichmentCalendar, "", `{"free_hours":4}`)

	v1, err := New(SchemaV1)
	if err != nil {
		t.Fatalf("New v1: %v", err)
	}
	f1, err := v1.Encode(ev)
	if err != nil {
		t.Fatalf("Encode v1: %v", err)
	}
	if len(f1.Values) != FrameWidthV1 {
		t.Fatalf("v1 width: expected %d got %d", FrameWidthV1, len(f1.Values))
	}
	if _, ok := f1.Enrichment(EnrFreeHours); ok {
		t.Fatalf("v1 frame must not carry enrichment lanes")
	}

	f2, err := Current().Encode(ev)
	if err != nil {
		t.Fatalf("Encode v2: %v", err)
	}
	h, ok := f2.Enrichment(EnrFreeHours)
	if !ok || h != 0.5 {
		t.Fatalf("expected free_hours lane 0.5, got %v ok=%v", h, ok)
	}
}

func TestEncode_RejectsBadInput(t *testing.T) {
	if _, err := Current().Encode(nil); err == nil {
		t.Fatalf("nil event must be rejected")
	}
	if _, err := Current().Encode(testEvent("made_up_action", "", `{}`)); err == nil {
		t.Fatalf("unknown action type must be rejected")
	}
	if _, err := Current().Encode(testEvent(events.EventSessionStarted, "made_up_domain", `{}`)); err == nil {
		t.Fatalf("unknown domain must be rejected")
	}
	if _, err := Current().Encode(testEvent(events.EventSessionStarted, "", `[1,2]`)); err == nil {
		t.Fatalf("non-object payload must be rejected")
	}
	noTime := testEvent(events.EventSessionStarted, "", `{}`)
	noTime.OccurredAt = time.Time{}
	if _, err := Current().Encode(noTime); err == nil {
		t.Fatalf("zero occurred_at must be rejected")
	}
}

func TestEncode_TemporalAndLateNightLanes(t *testing.T) {
	day := testEvent(events.EventSessionStarted, "", `{}`)
	f, err := Current().Encode(day)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for lane := 0; lane < 4; lane++ {
		if _, ok := f.Lane(FrameTimeOff + lane); !ok {
			t.Fatalf("temporal lane %d must always be observed", lane)
		}
	}
	if v, ok := f.Engagement(EngLateNight); !ok || v != 0 {
		t.Fatalf("14:30 is not late night, got v=%v ok=%v", v, ok)
	}

	late := testEvent(events.EventSessionStarted, "", `{}`)
	late.OccurredAt = time.Date(2026, 3, 14, 23, 15, 0, 0, time.UTC)
	f, err = Current().Encode(late)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if v, ok := f.Engagement(EngLateNight); !ok || v != 1 {
		t.Fatalf("23:15 is late night, got v=%v ok=%v", v, ok)
	}
}

func TestFrameWidth_Versions(t *testing.T) {
	if w, err := FrameWidth(SchemaV1); err != nil || w != FrameWidthV1 {
		t.Fatalf("v1 width: got %d err=%v", w, err)
	}
	if w, err := FrameWidth(SchemaV2); err != nil || w != FrameWidthV2 {
		t.Fatalf("v2 width: got %d err=%v", w, err)
	}
	if _, err := FrameWidth(99); err == nil {
		t.Fatalf("unknown version must error")
	}
	if _, err := New(99); err == nil {
		t.Fatalf("New must reject unknown versions")
	}
}
