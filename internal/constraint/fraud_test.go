package constraint

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/domain/events"
	"github.com/yungbote/rewardcore-backend/internal/domain/signals"
)

func eventsAt(userID uuid.UUID, start time.Time, gaps ...time.Duration) []*events.BehaviorEvent {
	out := []*events.BehaviorEvent{{UserID: userID, OccurredAt: start, ActionType: events.EventActivityCompleted}}
	at := start
	for _, g := range gaps {
		at = at.Add(g)
		out = append(out, &events.BehaviorEvent{UserID: userID, OccurredAt: at, ActionType: events.EventActivityCompleted})
	}
	return out
}

func TestDetect_VelocityAndRegularity(t *testing.T) {
	d := NewFraudDetector()
	userID := uuid.New()
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	// Eleven events exactly 200ms apart: too fast and perfectly regular.
	gaps := make([]time.Duration, 10)
	for i := range gaps {
		gaps[i] = 200 * time.Millisecond
	}
	fired := d.Detect(DetectInput{Events: eventsAt(userID, start, gaps...), Now: start.Add(time.Minute)})

	kinds := map[string]bool{}
	for _, s := range fired {
		kinds[s.Kind] = true
	}
	if !kinds[signals.FraudSignalVelocity] {
		t.Fatalf("expected velocity signal, got %v", kinds)
	}
	if !kinds[signals.FraudSignalRegularity] {
		t.Fatalf("expected regularity signal, got %v", kinds)
	}

	// Human-paced irregular activity fires neither.
	human := eventsAt(userID, start,
		3*time.Minute, 7*time.Minute, 2*time.Minute, 11*time.Minute, 5*time.Minute,
		9*time.Minute, 4*time.Minute, 13*time.Minute, 6*time.Minute, 8*time.Minute)
	if fired := d.Detect(DetectInput{Events: human, Now: start.Add(2 * time.Hour)}); len(fired) != 0 {
		t.Fatalf("expected no signals for human pacing, got %d", len(fired))
	}
}

func TestDetect_DeviceSharingBeatsNewDevice(t *testing.T) {
	d := NewFraudDetector()
	userID := uuid.New()
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	evs := eventsAt(userID, start, time.Minute)
	evs[1].DeviceFingerprint = "fp-shared"

	fired := d.Detect(DetectInput{
		Events:       evs,
		KnownDevices: map[string]bool{"fp-old": true},
		DeviceUsers:  map[string]int{"fp-shared": 5},
		Now:          start.Add(time.Hour),
	})
	if len(fired) != 1 || fired[0].Kind != signals.FraudSignalDeviceSharing {
		t.Fatalf("expected device_sharing, got %+v", fired)
	}

	fired = d.Detect(DetectInput{
		Events:       evs,
		KnownDevices: map[string]bool{"fp-old": true},
		DeviceUsers:  map[string]int{"fp-shared": 1},
		Now:          start.Add(time.Hour),
	})
	if len(fired) != 1 || fired[0].Kind != signals.FraudSignalNewDevice {
		t.Fatalf("expected new_device, got %+v", fired)
	}

	// First device of a fresh account is clean.
	fired = d.Detect(DetectInput{Events: evs, DeviceUsers: map[string]int{"fp-shared": 1}, Now: start.Add(time.Hour)})
	if len(fired) != 0 {
		t.Fatalf("fresh account first device should not fire, got %+v", fired)
	}
}

func TestDetect_BiometricSummaries(t *testing.T) {
	d := NewFraudDetector()
	userID := uuid.New()
	start := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	evs := eventsAt(userID, start, time.Minute)
	evs[1].Payload = datatypes.JSON([]byte(`{"path_straightness":0.99,"typing_interval_cv":0.05}`))

	fired := d.Detect(DetectInput{Events: evs, Now: start.Add(time.Hour)})
	if len(fired) != 1 || fired[0].Kind != signals.FraudSignalBiometric {
		t.Fatalf("expected biometric signal, got %+v", fired)
	}
}

func TestRiskScore_WeightedAggregation(t *testing.T) {
	if RiskScore(nil) != 0 {
		t.Fatalf("no signals is zero risk")
	}

	one := []signals.FraudSignal{{Kind: signals.FraudSignalDeviceSharing, Severity: SeverityDeviceSharing}}
	if got := RiskScore(one); math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("single signal risk: got %v", got)
	}

	// device_sharing 0.8 and velocity 0.7: (0.8*1.0 + 0.7*0.7) / 1.7
	two := append(one, signals.FraudSignal{Kind: signals.FraudSignalVelocity, Severity: SeverityVelocity})
	want := (0.8*1.0 + 0.7*0.7) / 1.7
	if got := RiskScore(two); math.Abs(got-want) > 1e-9 {
		t.Fatalf("two signal risk: got %v want %v", got, want)
	}

	if TierFor(0.85) != signals.FraudTierBlock || TierFor(0.6) != signals.FraudTierReview || TierFor(0.5) != signals.FraudTierAllow {
		t.Fatalf("tier thresholds wrong")
	}
}

func TestWellbeing_SeverityAndUsage(t *testing.T) {
	w := NewWellbeingAssessor()

	if s := w.Severity(2*3600*1000, 0); s != 0 {
		t.Fatalf("under cap with no late night should be 0, got %v", s)
	}
	// 6h on a 4h cap: excess (6-4)/4 = 0.5.
	if s := w.Severity(6*3600*1000, 0); math.Abs(s-0.5) > 1e-9 {
		t.Fatalf("excess severity: got %v", s)
	}
	// Half the 6h late at night adds 0.3*0.5.
	if s := w.Severity(6*3600*1000, 3*3600*1000); math.Abs(s-0.65) > 1e-9 {
		t.Fatalf("late-night severity: got %v", s)
	}
	if s := w.Severity(100*3600*1000, 0); s != 1 {
		t.Fatalf("severity must clamp at 1, got %v", s)
	}
	if w.Status(5*3600*1000) != signals.WellbeingStatusOverCap || w.Status(3*3600*1000) != signals.WellbeingStatusOK {
		t.Fatalf("status thresholds wrong")
	}

	userID := uuid.New()
	start := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	// 30m before midnight, then a 5h break that must not count.
	evs := eventsAt(userID, start, 30*time.Minute, 5*time.Hour)
	usage := w.DailyUsage(evs)
	if len(usage) != 1 {
		t.Fatalf("expected one counted day, got %d", len(usage))
	}
	if usage[0].ActiveMS != (30 * time.Minute).Milliseconds() {
		t.Fatalf("active ms: got %d", usage[0].ActiveMS)
	}
	if usage[0].LateNightMS != usage[0].ActiveMS {
		t.Fatalf("23:30 usage is late night, got %d", usage[0].LateNightMS)
	}
}
