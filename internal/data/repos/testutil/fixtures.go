package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
)

func SeedActionSpec(tb testing.TB, ctx context.Context, tx *gorm.DB, key, status string) *types.ActionSpec {
	tb.Helper()
	a := &types.ActionSpec{
		ID:            uuid.New(),
		Key:           key,
		Title:         "spec " + key,
		RewardType:    types.RewardTypePoints,
		Intensity:     types.IntensityLow,
		Presentations: datatypes.JSON([]byte(`["plain"]`)),
		Rule:          datatypes.JSON([]byte(`{}`)),
		Status:        status,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed action spec: %v", err)
	}
	return a
}

func SeedDecision(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, actionID *uuid.UUID) *types.Decision {
	tb.Helper()
	d := &types.Decision{
		ID:              uuid.New(),
		UserID:          userID,
		ActionID:        actionID,
		Context:         datatypes.JSON([]byte(`{}`)),
		Kind:            types.DecisionKindPolicy,
		WindowExpiresAt: time.Now().UTC().Add(7 * 24 * time.Hour),
	}
	if actionID == nil {
		d.Kind = types.DecisionKindNoReward
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed decision: %v", err)
	}
	return d
}

func SeedBehaviorEvent(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, clientEventID, actionType string) *types.BehaviorEvent {
	tb.Helper()
	e := &types.BehaviorEvent{
		ID:            uuid.New(),
		UserID:        userID,
		ClientEventID: clientEventID,
		OccurredAt:    time.Now().UTC(),
		SessionID:     uuid.New(),
		ActionType:    actionType,
		Source:        types.SourceApp,
		Payload:       datatypes.JSON([]byte(`{}`)),
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed behavior event: %v", err)
	}
	return e
}

func SeedSynthesisRun(tb testing.TB, ctx context.Context, tx *gorm.DB, status string) *types.SynthesisRun {
	tb.Helper()
	r := &types.SynthesisRun{
		ID:          uuid.New(),
		Status:      status,
		TriggeredBy: "operator",
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed synthesis run: %v", err)
	}
	return r
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
