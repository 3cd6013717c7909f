package constraint

import (
	"time"

	"github.com/yungbote/rewardcore-backend/internal/domain/catalog"
	"github.com/yungbote/rewardcore-backend/internal/domain/events"
	"github.com/yungbote/rewardcore-backend/internal/domain/signals"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
)

// Usage-health severity above which engagement-extending actions are
// withheld.
const WellbeingGateSeverity = 0.7

// WellbeingAssessor turns daily usage totals into a health severity.
type WellbeingAssessor struct {
	// Daily active time above this is excessive.
	MaxDaily time.Duration
	// Gaps longer than this between events are breaks, not usage.
	GapCap time.Duration
	// Weight of the late-night share in the severity.
	LateNightWeight float64
}

func NewWellbeingAssessor() *WellbeingAssessor {
	return &WellbeingAssessor{
		MaxDaily:        envutil.Duration("WELLBEING_MAX_DAILY", 4*time.Hour),
		GapCap:          envutil.Duration("WELLBEING_GAP_CAP", 4*time.Hour),
		LateNightWeight: envutil.Float("WELLBEING_LATE_NIGHT_WEIGHT", 0.3, 0, 1),
	}
}

// DayUsage is accumulated usage for one UTC day.
type DayUsage struct {
	Day         time.Time
	ActiveMS    int64
	LateNightMS int64
}

// DailyUsage reconstructs per-day active time from inter-event gaps.
// Events must be ascending by occurred_at. A gap counts toward the day the
// later event falls in; gaps past GapCap are breaks and count nothing.
func (w *WellbeingAssessor) DailyUsage(evs []*events.BehaviorEvent) []DayUsage {
	totals := map[time.Time]*DayUsage{}
	var order []time.Time

	for i := 1; i < len(evs); i++ {
		gap := evs[i].OccurredAt.Sub(evs[i-1].OccurredAt)
		if gap <= 0 || gap >= w.GapCap {
			continue
		}
		at := evs[i].OccurredAt.UTC()
		day := at.Truncate(24 * time.Hour)
		u, ok := totals[day]
		if !ok {
			u = &DayUsage{Day: day}
			totals[day] = u
			order = append(order, day)
		}
		u.ActiveMS += gap.Milliseconds()
		if h := at.Hour(); h >= 22 || h < 6 {
			u.LateNightMS += gap.Milliseconds()
		}
	}

	out := make([]DayUsage, 0, len(order))
	for _, day := range order {
		out = append(out, *totals[day])
	}
	return out
}

// Severity scores one day's totals. Zero while under the cap with no late
// night use; 1.0 at double the cap.
func (w *WellbeingAssessor) Severity(activeMS, lateNightMS int64) float64 {
	capMS := w.MaxDaily.Milliseconds()
	if capMS <= 0 || activeMS <= 0 {
		return 0
	}
	var excess float64
	if activeMS > capMS {
		excess = float64(activeMS-capMS) / float64(capMS)
	}
	lateShare := float64(lateNightMS) / float64(activeMS)
	s := excess + w.LateNightWeight*lateShare
	if s > 1 {
		s = 1
	}
	return s
}

// Status maps totals onto the assessment status.
func (w *WellbeingAssessor) Status(activeMS int64) string {
	if activeMS > w.MaxDaily.Milliseconds() {
		return signals.WellbeingStatusOverCap
	}
	return signals.WellbeingStatusOK
}

// EngagementExtending reports whether granting this action would pull the
// user back into the product hard enough to matter for usage health.
func EngagementExtending(a *catalog.ActionSpec) bool {
	if a == nil {
		return false
	}
	return a.Intensity == catalog.IntensityHigh || a.RewardType == catalog.RewardTypeStreakBonus
}
