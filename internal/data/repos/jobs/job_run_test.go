package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/rewardcore-backend/internal/data/repos/testutil"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
)

func TestJobRunRepoClaim(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	userID := uuid.New()
	pending := &types.JobRun{
		ID:      uuid.New(),
		UserID:  testutil.PtrUUID(userID),
		JobType: types.JobTypeStateUpdate,
		Status:  types.JobStatusPending,
	}
	future := time.Now().Add(time.Hour)
	deferred := &types.JobRun{
		ID:       uuid.New(),
		UserID:   testutil.PtrUUID(userID),
		JobType:  types.JobTypeProfileRefresh,
		Status:   types.JobStatusPending,
		RunAfter: &future,
	}
	if _, err := repo.Create(dbc, []*types.JobRun{pending, deferred}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(dbc, 5, 30*time.Second, 30*time.Minute)
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed == nil || claimed.ID != pending.ID {
		t.Fatalf("claimed wrong job: %+v", claimed)
	}

	// the deferred job is not runnable yet, so nothing else claims
	second, err := repo.ClaimNextRunnable(dbc, 5, 30*time.Second, 30*time.Minute)
	if err != nil {
		t.Fatalf("second ClaimNextRunnable: %v", err)
	}
	if second != nil {
		t.Fatalf("deferred job claimed early: %+v", second)
	}

	got, err := repo.GetByID(dbc, pending.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got.Status != types.JobStatusRunning || got.Attempts != 1 {
		t.Fatalf("claim did not update row: status=%s attempts=%d", got.Status, got.Attempts)
	}

	if err := repo.Heartbeat(dbc, pending.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	// completion guard: cannot overwrite a completed job's status
	if err := repo.UpdateFields(dbc, pending.ID, map[string]interface{}{
		"status": types.JobStatusCompleted,
	}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	changed, err := repo.UpdateFieldsUnlessStatus(dbc, pending.ID,
		[]string{types.JobStatusCompleted},
		map[string]interface{}{"status": types.JobStatusFailed, "error": "late failure"},
	)
	if err != nil {
		t.Fatalf("UpdateFieldsUnlessStatus: %v", err)
	}
	if changed {
		t.Fatalf("completed job was overwritten")
	}
}

func TestJobRunRepoExistsRunnable(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	userID := uuid.New()
	if _, err := repo.Create(dbc, []*types.JobRun{{
		ID:      uuid.New(),
		UserID:  testutil.PtrUUID(userID),
		JobType: types.JobTypeStateUpdate,
		Status:  types.JobStatusPending,
	}}); err != nil {
		t.Fatalf("Create user job: %v", err)
	}
	// global job has no user
	if _, err := repo.Create(dbc, []*types.JobRun{{
		ID:      uuid.New(),
		JobType: types.JobTypeSynthesisRun,
		Status:  types.JobStatusPending,
	}}); err != nil {
		t.Fatalf("Create global job: %v", err)
	}

	if ok, err := repo.ExistsRunnable(dbc, testutil.PtrUUID(userID), types.JobTypeStateUpdate, "", nil); err != nil || !ok {
		t.Fatalf("ExistsRunnable user job: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.ExistsRunnable(dbc, testutil.PtrUUID(userID), types.JobTypeProfileRefresh, "", nil); err != nil || ok {
		t.Fatalf("ExistsRunnable wrong type: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.ExistsRunnable(dbc, nil, types.JobTypeSynthesisRun, "", nil); err != nil || !ok {
		t.Fatalf("ExistsRunnable global: ok=%v err=%v", ok, err)
	}
	// global probe must not match per-user jobs
	if ok, err := repo.ExistsRunnable(dbc, nil, types.JobTypeStateUpdate, "", nil); err != nil || ok {
		t.Fatalf("ExistsRunnable global probe matched user job: ok=%v err=%v", ok, err)
	}

	if rows, err := repo.ListRecent(dbc, "", 10); err != nil || len(rows) < 2 {
		t.Fatalf("ListRecent: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.ListRecent(dbc, types.JobTypeSynthesisRun, 10); err != nil || len(rows) != 1 {
		t.Fatalf("ListRecent filtered: err=%v len=%d", err, len(rows))
	}
}
