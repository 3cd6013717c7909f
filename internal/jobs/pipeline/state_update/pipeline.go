package state_update

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/encoding"
	jobrt "github.com/yungbote/rewardcore-backend/internal/jobs/runtime"
	"github.com/yungbote/rewardcore-backend/internal/observability"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

const stateConsumer = "state_update"

const (
	// Window the fraud detectors read; signals fire on recent behavior only.
	fraudScanWindow = 24 * time.Hour
	// How far back "known devices" and device sharing counts look.
	deviceHistoryWindow = 30 * 24 * time.Hour

	maxMalformedSamples = 100
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	userID, ok := jc.PayloadUUID("user_id")
	if !ok {
		jc.Fail("validate", fmt.Errorf("state_update: missing user_id"))
		return nil
	}
	if p.db == nil || p.events == nil || p.cursors == nil || p.states == nil {
		jc.Fail("validate", fmt.Errorf("state_update: missing deps"))
		return nil
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	trigger := jc.PayloadString("trigger")

	var afterAt *time.Time
	var afterID *uuid.UUID
	if cur, err := p.cursors.Get(dbc, userID, stateConsumer); err == nil && cur != nil {
		afterAt = cur.LastCreatedAt
		afterID = cur.LastEventID
	}

	const pageSize = 500
	applied, skipped := 0, 0
	var malformed []string
	usageByDay := map[time.Time]constraint.DayUsage{}
	// Last event of the previous page, so the gap across a page boundary
	// still counts toward daily usage.
	var carry *types.BehaviorEvent
	start := time.Now()

	jc.Progress("scan", 5)

	for {
		page, err := p.events.ListAfterCursor(dbc, userID, afterAt, afterID, pageSize)
		if err != nil {
			jc.Fail("scan", err)
			return nil
		}
		if len(page) == 0 {
			break
		}

		var pageLastAt *time.Time
		var pageLastID *uuid.UUID

		if err := p.db.WithContext(jc.Ctx).Transaction(func(tx *gorm.DB) error {
			tdbc := dbctx.Context{Ctx: jc.Ctx, Tx: tx}

			row, err := p.states.GetForUpdate(tdbc, userID)
			if err != nil {
				return err
			}
			st, counts, err := decodeState(row)
			if err != nil {
				return err
			}
			eventCount := 0
			var lastEventAt *time.Time
			if row != nil {
				eventCount = row.EventCount
				lastEventAt = row.LastEventAt
			}

			enc := encoding.Current()
			for _, ev := range page {
				if ev == nil || ev.ID == uuid.Nil {
					continue
				}
				// The cursor advances past malformed events too; they are
				// rejected, not retried.
				at := ev.CreatedAt
				id := ev.ID
				pageLastAt = &at
				pageLastID = &id

				frame, err := enc.Encode(ev)
				if err != nil {
					skipped++
					if len(malformed) < maxMalformedSamples {
						malformed = append(malformed, err.Error())
					}
					continue
				}
				next, err := p.model.Apply(st, frame)
				if err != nil {
					skipped++
					if len(malformed) < maxMalformedSamples {
						malformed = append(malformed, err.Error())
					}
					continue
				}
				st = next
				applied++
				eventCount++
				counts[strconv.Itoa(enc.Version())]++
				occurred := ev.OccurredAt
				if lastEventAt == nil || occurred.After(*lastEventAt) {
					lastEventAt = &occurred
				}
			}

			vec, err := sequence.Marshal(st)
			if err != nil {
				return err
			}
			countsJSON, err := json.Marshal(counts)
			if err != nil {
				return err
			}

			if row == nil {
				row = &types.UserState{UserID: userID}
			}
			row.Vector = vec
			row.EncoderVersion = enc.Version()
			row.VersionCounts = datatypes.JSON(countsJSON)
			row.EventCount = eventCount
			row.Cold = !p.model.Warm(eventCount)
			row.LastEventAt = lastEventAt
			if err := p.states.Upsert(tdbc, row); err != nil {
				return err
			}

			if pageLastAt != nil && pageLastID != nil {
				cur := &types.BehaviorEventCursor{
					UserID:        userID,
					Consumer:      stateConsumer,
					LastCreatedAt: pageLastAt,
					LastEventID:   pageLastID,
					UpdatedAt:     time.Now().UTC(),
				}
				if err := p.cursors.Upsert(tdbc, cur); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			jc.Fail("apply", err)
			return nil
		}

		p.accumulateUsage(usageByDay, carry, page)
		carry = page[len(page)-1]

		if pageLastAt == nil || pageLastID == nil {
			break
		}
		afterAt = pageLastAt
		afterID = pageLastID
	}

	if len(malformed) > 0 {
		observability.ReportDataQualityErrors(jc.Ctx, p.log, "state_update", malformed, map[string]any{
			"user_id": userID.String(),
			"trigger": trigger,
			"skipped": skipped,
		})
	}

	jc.Progress("signals", 70)
	if err := p.applyWellbeing(dbc, userID, usageByDay); err != nil {
		jc.Fail("signals", err)
		return nil
	}
	if err := p.assessFraud(dbc, userID); err != nil {
		jc.Fail("signals", err)
		return nil
	}

	if applied > 0 && p.jobSvc != nil {
		if _, _, err := p.jobSvc.EnqueueProfileRefreshIfNeeded(dbc, userID, "state_update"); err != nil {
			p.log.Warn("state_update: profile refresh enqueue failed", "user_id", userID.String(), "error", err)
		}
	}

	jc.Complete("done", map[string]any{
		"applied":     applied,
		"skipped":     skipped,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// decodeState rebuilds the in-memory state and version-count map from a
// persisted row. A nil row yields a fresh state.
func decodeState(row *types.UserState) (*sequence.State, map[string]int, error) {
	counts := map[string]int{}
	if row == nil {
		return sequence.NewState(), counts, nil
	}
	st, err := sequence.Unmarshal(row.Vector)
	if err != nil {
		return nil, nil, fmt.Errorf("state_update: decode vector: %w", err)
	}
	if len(row.VersionCounts) > 0 && string(row.VersionCounts) != "null" {
		if err := json.Unmarshal(row.VersionCounts, &counts); err != nil {
			counts = map[string]int{}
		}
	}
	return st, counts, nil
}

// accumulateUsage folds one page of events into the per-day usage totals.
// The carry event from the previous page preserves the boundary gap.
func (p *Pipeline) accumulateUsage(acc map[time.Time]constraint.DayUsage, carry *types.BehaviorEvent, page []*types.BehaviorEvent) {
	evs := page
	if carry != nil {
		evs = make([]*types.BehaviorEvent, 0, len(page)+1)
		evs = append(evs, carry)
		evs = append(evs, page...)
	}
	for _, du := range p.assessor.DailyUsage(evs) {
		agg := acc[du.Day]
		agg.Day = du.Day
		agg.ActiveMS += du.ActiveMS
		agg.LateNightMS += du.LateNightMS
		acc[du.Day] = agg
	}
}

// applyWellbeing adds this run's usage deltas to the daily assessments.
// Severity and status are computed from the post-update totals; per-user job
// serialization keeps the read-modify-write safe.
func (p *Pipeline) applyWellbeing(dbc dbctx.Context, userID uuid.UUID, usageByDay map[time.Time]constraint.DayUsage) error {
	if p.wellbeing == nil || len(usageByDay) == 0 {
		return nil
	}
	days := make([]time.Time, 0, len(usageByDay))
	for day := range usageByDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	for _, day := range days {
		du := usageByDay[day]
		if du.ActiveMS <= 0 && du.LateNightMS <= 0 {
			continue
		}
		totalActive := du.ActiveMS
		totalLate := du.LateNightMS
		if existing, err := p.wellbeing.GetForDay(dbc, userID, day); err != nil {
			return err
		} else if existing != nil {
			totalActive += existing.ActiveMS
			totalLate += existing.LateNightMS
		}
		severity := p.assessor.Severity(totalActive, totalLate)
		status := p.assessor.Status(totalActive)
		if err := p.wellbeing.AddUsage(dbc, userID, day, du.ActiveMS, du.LateNightMS, severity, status); err != nil {
			return err
		}
	}
	return nil
}

// assessFraud rescans the recent event window, persists any fired signals,
// and replaces the rolled-up per-user assessment.
func (p *Pipeline) assessFraud(dbc dbctx.Context, userID uuid.UUID) error {
	if p.detector == nil || p.fraudAssess == nil {
		return nil
	}
	now := time.Now().UTC()

	history, err := p.events.ListByUserSince(dbc, userID, now.Add(-deviceHistoryWindow), 1000)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return nil
	}

	windowStart := now.Add(-fraudScanWindow)
	known := map[string]bool{}
	var recent []*types.BehaviorEvent
	for _, ev := range history {
		if ev == nil {
			continue
		}
		if ev.OccurredAt.Before(windowStart) {
			if ev.DeviceFingerprint != "" {
				known[ev.DeviceFingerprint] = true
			}
			continue
		}
		recent = append(recent, ev)
	}
	if len(recent) == 0 {
		return nil
	}

	deviceUsers := map[string]int{}
	if fp := latestFingerprint(recent); fp != "" && !known[fp] {
		rows, err := p.events.ListByDeviceSince(dbc, fp, now.Add(-deviceHistoryWindow), 500)
		if err != nil {
			return err
		}
		users := map[uuid.UUID]bool{}
		for _, ev := range rows {
			if ev != nil && ev.UserID != uuid.Nil {
				users[ev.UserID] = true
			}
		}
		deviceUsers[fp] = len(users)
	}

	fired := p.detector.Detect(constraint.DetectInput{
		Events:       recent,
		KnownDevices: known,
		DeviceUsers:  deviceUsers,
		Now:          now,
	})
	if len(fired) > 0 && p.fraudSignals != nil {
		rows := make([]*types.FraudSignal, 0, len(fired))
		for i := range fired {
			rows = append(rows, &fired[i])
		}
		if _, err := p.fraudSignals.Create(dbc, rows); err != nil {
			return err
		}
	}

	risk := constraint.RiskScore(fired)
	return p.fraudAssess.Upsert(dbc, &types.FraudAssessment{
		UserID:       userID,
		Risk:         risk,
		Tier:         constraint.TierFor(risk),
		SignalCounts: constraint.SignalCounts(fired),
		AssessedAt:   now,
	})
}

func latestFingerprint(evs []*types.BehaviorEvent) string {
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i] != nil && evs[i].DeviceFingerprint != "" {
			return evs[i].DeviceFingerprint
		}
	}
	return ""
}
