package decisions

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/data/repos/testutil"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
)

func TestDecisionRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewDecisionRepo(db, testutil.Logger(t))

	userID := uuid.New()
	actionID := uuid.New()

	d1 := &types.Decision{
		ID:                uuid.New(),
		UserID:            userID,
		ActionID:          testutil.PtrUUID(actionID),
		ActionKey:         "points_small",
		ArmKey:            "explorer|evening|points_small",
		Context:           datatypes.JSON([]byte(`{"daypart":"evening"}`)),
		Kind:              types.DecisionKindPolicy,
		UserDecisionIndex: 1,
		WindowExpiresAt:   time.Now().UTC().Add(7 * 24 * time.Hour),
	}
	// no-reward decision has no action
	d2 := &types.Decision{
		ID:              uuid.New(),
		UserID:          userID,
		Context:         datatypes.JSON([]byte(`{}`)),
		Kind:            types.DecisionKindNoReward,
		WindowExpiresAt: time.Now().UTC().Add(7 * 24 * time.Hour),
	}
	if _, err := repo.Create(dbc, []*types.Decision{d1, d2}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got, err := repo.GetByID(dbc, d1.ID); err != nil || got == nil || got.ArmKey != d1.ArmKey {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got, err := repo.GetByID(dbc, d2.ID); err != nil || got == nil || got.ActionID != nil {
		t.Fatalf("GetByID no-reward: got=%v err=%v", got, err)
	}

	if rows, err := repo.ListByUser(dbc, userID, 10); err != nil || len(rows) != 2 {
		t.Fatalf("ListByUser: err=%v len=%d", err, len(rows))
	}
	if count, err := repo.CountByUser(dbc, userID); err != nil || count != 2 {
		t.Fatalf("CountByUser: err=%v count=%d", err, count)
	}

	since := time.Now().UTC().Add(-time.Minute)
	if rows, err := repo.ListByActionSince(dbc, actionID, since, 10); err != nil || len(rows) != 1 {
		t.Fatalf("ListByActionSince: err=%v len=%d", err, len(rows))
	}
	if count, err := repo.CountByActionSince(dbc, actionID, since); err != nil || count != 1 {
		t.Fatalf("CountByActionSince: err=%v count=%d", err, count)
	}
}

func TestOutcomeRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewOutcomeRepo(db, testutil.Logger(t))

	userID := uuid.New()
	actionID := uuid.New()
	dec := testutil.SeedDecision(t, ctx, tx, userID, testutil.PtrUUID(actionID))

	mk := func(clientID string, value float64) *types.Outcome {
		return &types.Outcome{
			ID:              uuid.New(),
			DecisionID:      dec.ID,
			ClientOutcomeID: clientID,
			UserID:          userID,
			Kind:            types.OutcomeKindReEngaged,
			Value:           value,
			ObservedAt:      time.Now().UTC(),
		}
	}

	inserted, err := repo.CreateIgnoreDuplicates(dbc, []*types.Outcome{mk("o1", 1), mk("o2", 0)})
	if err != nil || inserted != 2 {
		t.Fatalf("CreateIgnoreDuplicates: err=%v inserted=%d", err, inserted)
	}
	// redelivery of o1 is dropped
	inserted, err = repo.CreateIgnoreDuplicates(dbc, []*types.Outcome{mk("o1", 1)})
	if err != nil || inserted != 0 {
		t.Fatalf("duplicate CreateIgnoreDuplicates: err=%v inserted=%d", err, inserted)
	}

	o1, err := repo.Get(dbc, dec.ID, "o1")
	if err != nil || o1 == nil {
		t.Fatalf("Get: got=%v err=%v", o1, err)
	}

	unapplied, err := repo.ListUnapplied(dbc, 10)
	if err != nil || len(unapplied) < 2 {
		t.Fatalf("ListUnapplied: err=%v len=%d", err, len(unapplied))
	}

	applied, err := repo.MarkApplied(dbc, o1.ID)
	if err != nil || !applied {
		t.Fatalf("MarkApplied: applied=%v err=%v", applied, err)
	}
	// second apply is a no-op, which is what keeps the estimate update idempotent
	applied, err = repo.MarkApplied(dbc, o1.ID)
	if err != nil || applied {
		t.Fatalf("MarkApplied repeat: applied=%v err=%v", applied, err)
	}

	if rows, err := repo.ListByDecision(dbc, dec.ID); err != nil || len(rows) != 2 {
		t.Fatalf("ListByDecision: err=%v len=%d", err, len(rows))
	}

	since := time.Now().UTC().Add(-time.Minute)
	got, err := repo.ListAppliedByActionSince(dbc, actionID, since, 10)
	if err != nil || len(got) != 1 {
		t.Fatalf("ListAppliedByActionSince: err=%v len=%d", err, len(got))
	}
}

func TestArmEstimateRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewArmEstimateRepo(db, testutil.Logger(t))

	actionID := uuid.New()
	armKey := "explorer|evening|points_small"

	if got, err := repo.Get(dbc, armKey); err != nil || got != nil {
		t.Fatalf("Get missing arm: got=%v err=%v", got, err)
	}

	if err := repo.ApplyValue(dbc, armKey, actionID, "explorer", "evening", 1.0); err != nil {
		t.Fatalf("ApplyValue first: %v", err)
	}
	if err := repo.ApplyValue(dbc, armKey, actionID, "explorer", "evening", 0.0); err != nil {
		t.Fatalf("ApplyValue second: %v", err)
	}

	got, err := repo.Get(dbc, armKey)
	if err != nil || got == nil {
		t.Fatalf("Get: got=%v err=%v", got, err)
	}
	if got.Count != 2 {
		t.Fatalf("count = %d, want 2", got.Count)
	}
	if math.Abs(got.ValueMean-0.5) > 1e-9 {
		t.Fatalf("value_mean = %f, want 0.5", got.ValueMean)
	}

	// seeds never clobber observed arms
	seeded, err := repo.Seed(dbc, []*types.ArmEstimate{{
		ID:              uuid.New(),
		ArmKey:          armKey,
		ActionID:        actionID,
		ArchetypeBucket: "explorer",
		ContextBucket:   "evening",
		Count:           5,
		ValueMean:       0.9,
	}})
	if err != nil || seeded != 0 {
		t.Fatalf("Seed over observed arm: err=%v seeded=%d", err, seeded)
	}
	got, _ = repo.Get(dbc, armKey)
	if got.Count != 2 {
		t.Fatalf("seed clobbered observed arm: count=%d", got.Count)
	}

	// fresh arms do get seeded
	freshKey := "builder|morning|points_small"
	seeded, err = repo.Seed(dbc, []*types.ArmEstimate{{
		ID:              uuid.New(),
		ArmKey:          freshKey,
		ActionID:        actionID,
		ArchetypeBucket: "builder",
		ContextBucket:   "morning",
		Count:           3,
		ValueMean:       0.4,
	}})
	if err != nil || seeded != 1 {
		t.Fatalf("Seed fresh arm: err=%v seeded=%d", err, seeded)
	}

	if rows, err := repo.GetByKeys(dbc, []string{armKey, freshKey}); err != nil || len(rows) != 2 {
		t.Fatalf("GetByKeys: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.ListByActionIDs(dbc, []uuid.UUID{actionID}); err != nil || len(rows) != 2 {
		t.Fatalf("ListByActionIDs: err=%v len=%d", err, len(rows))
	}
}
