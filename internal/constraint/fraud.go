package constraint

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/domain/events"
	"github.com/yungbote/rewardcore-backend/internal/domain/signals"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
)

// Detector severities. The scale is fixed; detectors express confidence
// through firing or not, never by scaling these.
const (
	SeverityVelocity      = 0.7
	SeverityRegularity    = 0.6
	SeverityBiometric     = 0.5
	SeverityTemporal      = 0.4
	SeverityDeviceSharing = 0.8
	SeverityNewDevice     = 0.3
)

// Risk tiers.
const (
	RiskBlockAbove  = 0.8
	RiskReviewAbove = 0.5
)

// Top-ranked signals dominate the aggregate: the worst signal counts in
// full, each further one progressively less.
var riskWeights = []float64{1.0, 0.7, 0.5, 0.3, 0.2}

// FraudDetector runs the authenticity checks over a user's recent event
// window. All inputs arrive through DetectInput; the detector itself holds
// only thresholds.
type FraudDetector struct {
	// Consecutive events closer than this are a velocity violation.
	MinGap time.Duration
	// Regularity check needs at least this many intervals; it inspects the
	// most recent RegularityWindow of them.
	RegularityMinIntervals int
	RegularityWindow       int
	RegularityMaxCV        float64
	// Temporal check needs this many events and flags hours seen in under
	// TemporalMinShare of them.
	TemporalMinEvents int
	TemporalMinShare  float64
	// Device sharing fires above this many accounts on one fingerprint.
	DeviceShareUsers int

	BiometricMaxStraightness float64
	BiometricMinTypingCV     float64
}

func NewFraudDetector() *FraudDetector {
	return &FraudDetector{
		MinGap:                 envutil.Duration("FRAUD_MIN_GAP", 500*time.Millisecond),
		RegularityMinIntervals: envutil.Int("FRAUD_REGULARITY_MIN_INTERVALS", 10),
		RegularityWindow:       envutil.Int("FRAUD_REGULARITY_WINDOW", 20),
		RegularityMaxCV:        envutil.Float("FRAUD_REGULARITY_MAX_CV", 0.15, 0.01, 1),
		TemporalMinEvents:      envutil.Int("FRAUD_TEMPORAL_MIN_EVENTS", 20),
		TemporalMinShare:       envutil.Float("FRAUD_TEMPORAL_MIN_SHARE", 0.05, 0, 1),
		DeviceShareUsers:       envutil.Int("FRAUD_DEVICE_SHARE_USERS", 3),

		BiometricMaxStraightness: envutil.Float("FRAUD_BIOMETRIC_MAX_STRAIGHTNESS", 0.95, 0, 1),
		BiometricMinTypingCV:     envutil.Float("FRAUD_BIOMETRIC_MIN_TYPING_CV", 0.2, 0, 1),
	}
}

// DetectInput is one user's evidence window. Events must be ascending by
// occurred_at. KnownDevices holds fingerprints seen before this window;
// DeviceUsers counts distinct accounts per fingerprint platform-wide.
type DetectInput struct {
	Events       []*events.BehaviorEvent
	KnownDevices map[string]bool
	DeviceUsers  map[string]int
	Now          time.Time
}

// Detect runs every check and returns the signals that fired. An empty
// result means the window looked authentic.
func (d *FraudDetector) Detect(in DetectInput) []signals.FraudSignal {
	var out []signals.FraudSignal
	if s := d.checkVelocity(in); s != nil {
		out = append(out, *s)
	}
	if s := d.checkRegularity(in); s != nil {
		out = append(out, *s)
	}
	if s := d.checkBiometrics(in); s != nil {
		out = append(out, *s)
	}
	if s := d.checkTemporal(in); s != nil {
		out = append(out, *s)
	}
	if s := d.checkDevice(in); s != nil {
		out = append(out, *s)
	}
	return out
}

func (d *FraudDetector) checkVelocity(in DetectInput) *signals.FraudSignal {
	if len(in.Events) < 2 {
		return nil
	}
	violations := 0
	minGap := time.Duration(math.MaxInt64)
	for i := 1; i < len(in.Events); i++ {
		gap := in.Events[i].OccurredAt.Sub(in.Events[i-1].OccurredAt)
		if gap < minGap {
			minGap = gap
		}
		if gap < d.MinGap {
			violations++
		}
	}
	if violations == 0 {
		return nil
	}
	return d.signal(in, signals.FraudSignalVelocity, SeverityVelocity, map[string]interface{}{
		"violations": violations,
		"min_gap_ms": minGap.Milliseconds(),
	})
}

func (d *FraudDetector) checkRegularity(in DetectInput) *signals.FraudSignal {
	intervals := interEventSeconds(in.Events)
	if len(intervals) < d.RegularityMinIntervals {
		return nil
	}
	if len(intervals) > d.RegularityWindow {
		intervals = intervals[len(intervals)-d.RegularityWindow:]
	}
	cv := coefficientOfVariation(intervals)
	if cv >= d.RegularityMaxCV {
		return nil
	}
	return d.signal(in, signals.FraudSignalRegularity, SeverityRegularity, map[string]interface{}{
		"cv":        cv,
		"intervals": len(intervals),
	})
}

// checkBiometrics reads client-aggregated biometric summaries off the most
// recent event payload. Raw movement streams never reach the server.
func (d *FraudDetector) checkBiometrics(in DetectInput) *signals.FraudSignal {
	last := lastPayload(in.Events)
	if last == nil {
		return nil
	}
	var anomalies []string
	if v, ok := payloadNum(last, "path_straightness"); ok && v > d.BiometricMaxStraightness {
		anomalies = append(anomalies, "mouse_too_straight")
	}
	if v, ok := payloadNum(last, "typing_interval_cv"); ok && v < d.BiometricMinTypingCV {
		anomalies = append(anomalies, "typing_too_regular")
	}
	if len(anomalies) == 0 {
		return nil
	}
	return d.signal(in, signals.FraudSignalBiometric, SeverityBiometric, map[string]interface{}{
		"anomalies": anomalies,
	})
}

func (d *FraudDetector) checkTemporal(in DetectInput) *signals.FraudSignal {
	if len(in.Events) < d.TemporalMinEvents {
		return nil
	}
	var hours [24]int
	for _, ev := range in.Events {
		hours[ev.OccurredAt.UTC().Hour()]++
	}
	latest := in.Events[len(in.Events)-1]
	h := latest.OccurredAt.UTC().Hour()
	share := float64(hours[h]) / float64(len(in.Events))
	if share >= d.TemporalMinShare {
		return nil
	}
	return d.signal(in, signals.FraudSignalTemporal, SeverityTemporal, map[string]interface{}{
		"hour":  h,
		"share": share,
	})
}

func (d *FraudDetector) checkDevice(in DetectInput) *signals.FraudSignal {
	fp := ""
	for i := len(in.Events) - 1; i >= 0; i-- {
		if in.Events[i].DeviceFingerprint != "" {
			fp = in.Events[i].DeviceFingerprint
			break
		}
	}
	if fp == "" || in.KnownDevices[fp] {
		return nil
	}
	if users := in.DeviceUsers[fp]; users > d.DeviceShareUsers {
		return d.signal(in, signals.FraudSignalDeviceSharing, SeverityDeviceSharing, map[string]interface{}{
			"users": users,
		})
	}
	if len(in.KnownDevices) > 0 {
		return d.signal(in, signals.FraudSignalNewDevice, SeverityNewDevice, map[string]interface{}{
			"fingerprint": fp,
		})
	}
	// First device of a fresh account is not evidence of anything.
	return nil
}

func (d *FraudDetector) signal(in DetectInput, kind string, severity float64, evidence map[string]interface{}) *signals.FraudSignal {
	raw, err := json.Marshal(evidence)
	if err != nil {
		raw = []byte("{}")
	}
	return &signals.FraudSignal{
		UserID:     in.Events[len(in.Events)-1].UserID,
		Kind:       kind,
		Severity:   severity,
		Evidence:   datatypes.JSON(raw),
		ObservedAt: in.Now,
	}
}

// RiskScore aggregates fired signals: sorted by severity, the top five
// weighted [1.0 0.7 0.5 0.3 0.2], normalized by the weight actually used.
func RiskScore(fired []signals.FraudSignal) float64 {
	if len(fired) == 0 {
		return 0
	}
	sev := make([]float64, len(fired))
	for i, s := range fired {
		sev[i] = s.Severity
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(sev)))

	var score, weight float64
	for i, s := range sev {
		if i >= len(riskWeights) {
			break
		}
		score += s * riskWeights[i]
		weight += riskWeights[i]
	}
	if weight == 0 {
		return 0
	}
	return math.Min(score/weight, 1)
}

// TierFor maps a risk score onto the enforcement tier.
func TierFor(risk float64) string {
	switch {
	case risk > RiskBlockAbove:
		return signals.FraudTierBlock
	case risk > RiskReviewAbove:
		return signals.FraudTierReview
	default:
		return signals.FraudTierAllow
	}
}

// SignalCounts rolls fired signals up per kind for the assessment row.
func SignalCounts(fired []signals.FraudSignal) datatypes.JSON {
	counts := map[string]int{}
	for _, s := range fired {
		counts[s.Kind]++
	}
	raw, err := json.Marshal(counts)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}

func interEventSeconds(evs []*events.BehaviorEvent) []float64 {
	if len(evs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(evs)-1)
	for i := 1; i < len(evs); i++ {
		out = append(out, evs[i].OccurredAt.Sub(evs[i-1].OccurredAt).Seconds())
	}
	return out
}

func coefficientOfVariation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if mean <= 0 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return math.Sqrt(ss/float64(len(xs))) / mean
}

func lastPayload(evs []*events.BehaviorEvent) map[string]interface{} {
	if len(evs) == 0 {
		return nil
	}
	raw := evs[len(evs)-1].Payload
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func payloadNum(m map[string]interface{}, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}
