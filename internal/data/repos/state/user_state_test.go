package state

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

func TestUserStateRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUserStateRepo(db, testutil.Logger(t))

	userID := uuid.New()

	if got, err := repo.Get(dbc, userID); err != nil || got != nil {
		t.Fatalf("Get missing state: got=%v err=%v", got, err)
	}

	now := time.Now().UTC()
	row := &types.UserState{
		UserID:          userID,
		Vector:          datatypes.JSON([]byte(`[0.3,0.3]`)),
		EncoderVersion:  1,
		VersionCounts:   datatypes.JSON([]byte(`{"1":3}`)),
		EventCount:      3,
		Cold:            true,
		ArchetypeBucket: "explorer",
		LastEventAt:     &now,
	}
	if err := repo.Upsert(dbc, row); err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}

	row.EventCount = 12
	row.Cold = false
	if err := repo.Upsert(dbc, row); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}

	got, err := repo.Get(dbc, userID)
	if err != nil || got == nil {
		t.Fatalf("Get: got=%v err=%v", got, err)
	}
	if got.EventCount != 12 || got.Cold {
		t.Fatalf("upsert did not update: count=%d cold=%v", got.EventCount, got.Cold)
	}

	locked, err := repo.GetForUpdate(dbc, userID)
	if err != nil || locked == nil || locked.UserID != userID {
		t.Fatalf("GetForUpdate: got=%v err=%v", locked, err)
	}

	warm, err := repo.ListWarmSince(dbc, now.Add(-time.Minute), 100)
	if err != nil {
		t.Fatalf("ListWarmSince: %v", err)
	}
	found := false
	for _, s := range warm {
		if s.UserID == userID {
			found = true
		}
	}
	if !found {
		t.Fatalf("ListWarmSince missing warmed user")
	}

	byBucket, err := repo.ListByArchetypeBucket(dbc, "explorer", 100)
	if err != nil || len(byBucket) == 0 {
		t.Fatalf("ListByArchetypeBucket: err=%v len=%d", err, len(byBucket))
	}

	if count, err := repo.CountWarm(dbc); err != nil || count < 1 {
		t.Fatalf("CountWarm: err=%v count=%d", err, count)
	}
}
