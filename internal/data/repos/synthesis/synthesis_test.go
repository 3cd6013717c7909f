package synthesis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/rewardcore-backend/internal/data/repos/testutil"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
)

func TestSynthesisRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSynthesisRunRepo(db, testutil.Logger(t))

	run, err := repo.Create(dbc, &types.SynthesisRun{
		ID:          uuid.New(),
		Status:      types.RunStatusPending,
		TriggeredBy: "operator",
	})
	if err != nil || run == nil {
		t.Fatalf("Create: run=%v err=%v", run, err)
	}

	if err := repo.MarkRunning(dbc, run.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := repo.UpdateFields(dbc, run.ID, map[string]interface{}{
		"stage":          "cluster",
		"sample_size":    120,
		"clusters_found": 5,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if err := repo.MarkFinished(dbc, run.ID, types.RunStatusCompleted, ""); err != nil {
		t.Fatalf("MarkFinished: %v", err)
	}

	got, err := repo.GetByID(dbc, run.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got.Status != types.RunStatusCompleted || got.Stage != "cluster" || got.SampleSize != 120 {
		t.Fatalf("run not updated: %+v", got)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Fatalf("timestamps not stamped: started=%v finished=%v", got.StartedAt, got.FinishedAt)
	}

	if rows, err := repo.List(dbc, 10); err != nil || len(rows) == 0 {
		t.Fatalf("List: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.ListCompletedDesc(dbc, 10); err != nil || len(rows) == 0 {
		t.Fatalf("ListCompletedDesc: err=%v len=%d", err, len(rows))
	}
}

func TestClusterObservationRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewClusterObservationRepo(db, testutil.Logger(t))

	run1 := testutil.SeedSynthesisRun(t, ctx, tx, types.RunStatusCompleted)
	run2 := testutil.SeedSynthesisRun(t, ctx, tx, types.RunStatusCompleted)

	sig := "dim:3,7|hi"
	rows := []*types.ClusterObservation{
		{ID: uuid.New(), RunID: run1.ID, Signature: sig, Size: 80, Centroid: datatypes.JSON([]byte(`[0.8]`)), Coverage: 0.2, Novel: true},
		{ID: uuid.New(), RunID: run1.ID, Signature: "dim:1|lo", Size: 40, Centroid: datatypes.JSON([]byte(`[0.1]`)), Coverage: 0.9},
	}
	if _, err := repo.Create(dbc, rows); err != nil {
		t.Fatalf("Create run1: %v", err)
	}
	if _, err := repo.Create(dbc, []*types.ClusterObservation{
		{ID: uuid.New(), RunID: run2.ID, Signature: sig, Size: 85, Centroid: datatypes.JSON([]byte(`[0.82]`)), Coverage: 0.25, Novel: true},
	}); err != nil {
		t.Fatalf("Create run2: %v", err)
	}

	if got, err := repo.ListByRun(dbc, run1.ID); err != nil || len(got) != 2 {
		t.Fatalf("ListByRun: err=%v len=%d", err, len(got))
	}

	recent, err := repo.ListRecentBySignature(dbc, sig, 10)
	if err != nil || len(recent) != 2 {
		t.Fatalf("ListRecentBySignature: err=%v len=%d", err, len(recent))
	}
	if recent[0].RunID != run2.ID {
		t.Fatalf("ListRecentBySignature not newest-first")
	}

	actionID := uuid.New()
	if err := repo.SetEmittedAction(dbc, recent[0].ID, actionID); err != nil {
		t.Fatalf("SetEmittedAction: %v", err)
	}
	after, err := repo.ListRecentBySignature(dbc, sig, 1)
	if err != nil || len(after) != 1 {
		t.Fatalf("reload: err=%v len=%d", err, len(after))
	}
	if after[0].EmittedActionID == nil || *after[0].EmittedActionID != actionID || !after[0].Validated {
		t.Fatalf("emitted action not recorded: %+v", after[0])
	}
}

func TestConceptCooldownRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewConceptCooldownRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	live := &types.ConceptCooldown{
		Signature:       "sig-live",
		RetiredActionID: uuid.New(),
		Until:           now.Add(30 * 24 * time.Hour),
	}
	expired := &types.ConceptCooldown{
		Signature:       "sig-expired",
		RetiredActionID: uuid.New(),
		Until:           now.Add(-time.Hour),
	}
	if err := repo.Upsert(dbc, live); err != nil {
		t.Fatalf("Upsert live: %v", err)
	}
	if err := repo.Upsert(dbc, expired); err != nil {
		t.Fatalf("Upsert expired: %v", err)
	}

	got, err := repo.Get(dbc, "sig-live")
	if err != nil || got == nil {
		t.Fatalf("Get: got=%v err=%v", got, err)
	}

	active, err := repo.ActiveSignatures(dbc, now)
	if err != nil {
		t.Fatalf("ActiveSignatures: %v", err)
	}
	if !active["sig-live"] {
		t.Fatalf("live signature missing from active set")
	}
	if active["sig-expired"] {
		t.Fatalf("expired signature should not be active")
	}

	// re-retire extends the window
	live.Until = now.Add(60 * 24 * time.Hour)
	if err := repo.Upsert(dbc, live); err != nil {
		t.Fatalf("Upsert extend: %v", err)
	}
	got, _ = repo.Get(dbc, "sig-live")
	if !got.Until.After(now.Add(45 * 24 * time.Hour)) {
		t.Fatalf("cooldown not extended: until=%v", got.Until)
	}
}

func TestFairnessAuditRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewFairnessAuditRepo(db, testutil.Logger(t))

	run := testutil.SeedSynthesisRun(t, ctx, tx, types.RunStatusCompleted)
	actionID := uuid.New()

	rows := []*types.FairnessAudit{
		{
			ID:          uuid.New(),
			RunID:       testutil.PtrUUID(run.ID),
			ActionID:    actionID,
			Metric:      "equal_opportunity",
			Disparity:   0.08,
			CohortRates: datatypes.JSON([]byte(`{"explorer":0.31,"builder":0.25}`)),
			Passed:      true,
		},
	}
	if _, err := repo.Create(dbc, rows); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got, err := repo.ListByRun(dbc, run.ID); err != nil || len(got) != 1 {
		t.Fatalf("ListByRun: err=%v len=%d", err, len(got))
	}
	latest, err := repo.GetLatestByAction(dbc, actionID)
	if err != nil || latest == nil || !latest.Passed {
		t.Fatalf("GetLatestByAction: got=%v err=%v", latest, err)
	}
}
