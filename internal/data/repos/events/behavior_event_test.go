package events

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

func TestBehaviorEventRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewBehaviorEventRepo(db, testutil.Logger(t))

	userID := uuid.New()
	now := time.Now().UTC()

	mk := func(clientID string) *types.BehaviorEvent {
		return &types.BehaviorEvent{
			ID:            uuid.New(),
			UserID:        userID,
			ClientEventID: clientID,
			OccurredAt:    now,
			SessionID:     uuid.New(),
			ActionType:    types.EventActivityCompleted,
			Domain:        types.DomainSkillGames,
			Source:        types.SourceApp,
			Payload:       datatypes.JSON([]byte(`{"quality":0.8}`)),
		}
	}

	inserted, err := repo.CreateIgnoreDuplicates(dbc, []*types.BehaviorEvent{mk("e1"), mk("e2")})
	if err != nil || inserted != 2 {
		t.Fatalf("CreateIgnoreDuplicates: err=%v inserted=%d", err, inserted)
	}

	// same client event id again is a no-op
	inserted, err = repo.CreateIgnoreDuplicates(dbc, []*types.BehaviorEvent{mk("e1")})
	if err != nil || inserted != 0 {
		t.Fatalf("duplicate CreateIgnoreDuplicates: err=%v inserted=%d", err, inserted)
	}

	if count, err := repo.CountByUser(dbc, userID); err != nil || count != 2 {
		t.Fatalf("CountByUser: err=%v count=%d", err, count)
	}

	rows, err := repo.ListAfterCursor(dbc, userID, nil, nil, 10)
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListAfterCursor from start: err=%v len=%d", err, len(rows))
	}

	// advancing the cursor past the first row leaves one
	after := rows[0].CreatedAt
	rest, err := repo.ListAfterCursor(dbc, userID, &after, &rows[0].ID, 10)
	if err != nil || len(rest) != 1 {
		t.Fatalf("ListAfterCursor after first: err=%v len=%d", err, len(rest))
	}
	if rest[0].ClientEventID == rows[0].ClientEventID {
		t.Fatalf("cursor did not advance past first row")
	}

	if got, err := repo.ListByUserSince(dbc, userID, now.Add(-time.Minute), 10); err != nil || len(got) != 2 {
		t.Fatalf("ListByUserSince: err=%v len=%d", err, len(got))
	}
	if got, err := repo.ListByUserSince(dbc, userID, now.Add(time.Minute), 10); err != nil || len(got) != 0 {
		t.Fatalf("ListByUserSince future: err=%v len=%d", err, len(got))
	}

	users, err := repo.DistinctUsersSince(dbc, now.Add(-time.Minute), 100)
	if err != nil {
		t.Fatalf("DistinctUsersSince: %v", err)
	}
	found := false
	for _, u := range users {
		if u == userID {
			found = true
		}
	}
	if !found {
		t.Fatalf("DistinctUsersSince missing seeded user")
	}
}

func TestBehaviorEventCursorRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewBehaviorEventCursorRepo(db, testutil.Logger(t))

	userID := uuid.New()

	if got, err := repo.Get(dbc, userID, "state_update"); err != nil || got != nil {
		t.Fatalf("Get missing cursor: got=%v err=%v", got, err)
	}

	t1 := time.Now().UTC().Add(-time.Hour)
	e1 := uuid.New()
	if err := repo.Upsert(dbc, &types.BehaviorEventCursor{
		UserID:        userID,
		Consumer:      "state_update",
		LastCreatedAt: &t1,
		LastEventID:   &e1,
	}); err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}

	t2 := time.Now().UTC()
	e2 := uuid.New()
	if err := repo.Upsert(dbc, &types.BehaviorEventCursor{
		UserID:        userID,
		Consumer:      "state_update",
		LastCreatedAt: &t2,
		LastEventID:   &e2,
	}); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}

	got, err := repo.Get(dbc, userID, "state_update")
	if err != nil || got == nil {
		t.Fatalf("Get after upsert: got=%v err=%v", got, err)
	}
	if got.LastEventID == nil || *got.LastEventID != e2 {
		t.Fatalf("cursor not advanced: %v", got.LastEventID)
	}
}
