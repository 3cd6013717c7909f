package profile

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

func TestSocialProfileRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSocialProfileRepo(db, testutil.Logger(t))

	userID := uuid.New()

	if got, err := repo.Get(dbc, userID); err != nil || got != nil {
		t.Fatalf("Get missing profile: got=%v err=%v", got, err)
	}

	now := time.Now().UTC()
	row := &types.SocialProfile{
		UserID:             userID,
		TrustTier:          types.TrustTierNew,
		Prestige:           0,
		Badges:             datatypes.JSON([]byte(`[]`)),
		DerivedFromStateAt: &now,
		ProfileVersion:     1,
	}
	if err := repo.Upsert(dbc, row); err != nil {
		t.Fatalf("Upsert insert: %v", err)
	}

	row.TrustTier = types.TrustTierTrusted
	row.Prestige = 82
	row.Badges = datatypes.JSON([]byte(`["Exemplar: Pattern Recognition"]`))
	row.ProfileVersion = 2
	if err := repo.Upsert(dbc, row); err != nil {
		t.Fatalf("Upsert update: %v", err)
	}

	got, err := repo.Get(dbc, userID)
	if err != nil || got == nil {
		t.Fatalf("Get: got=%v err=%v", got, err)
	}
	if got.TrustTier != types.TrustTierTrusted || got.Prestige != 82 || got.ProfileVersion != 2 {
		t.Fatalf("upsert did not update: %+v", got)
	}
}

func TestProfileBadgeRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewProfileBadgeRepo(db, testutil.Logger(t))

	userID := uuid.New()

	b := &types.ProfileBadge{
		UserID:   userID,
		BadgeKey: "exemplar_pattern_recognition",
		Label:    "Exemplar: Pattern Recognition",
		Rarity:   0.15,
		Prestige: 85,
	}
	if err := repo.Award(dbc, b); err != nil {
		t.Fatalf("Award: %v", err)
	}
	first, err := repo.ListByUser(dbc, userID)
	if err != nil || len(first) != 1 {
		t.Fatalf("ListByUser: err=%v len=%d", err, len(first))
	}
	awardedAt := first[0].AwardedAt

	// re-award refreshes scores, keeps the original award time
	b2 := &types.ProfileBadge{
		UserID:   userID,
		BadgeKey: "exemplar_pattern_recognition",
		Label:    "Exemplar: Pattern Recognition",
		Rarity:   0.12,
		Prestige: 88,
	}
	if err := repo.Award(dbc, b2); err != nil {
		t.Fatalf("Award repeat: %v", err)
	}
	rows, err := repo.ListByUser(dbc, userID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListByUser after repeat: err=%v len=%d", err, len(rows))
	}
	if rows[0].Prestige != 88 {
		t.Fatalf("prestige not refreshed: %d", rows[0].Prestige)
	}
	if !rows[0].AwardedAt.Equal(awardedAt) {
		t.Fatalf("award time changed on re-award: %v vs %v", rows[0].AwardedAt, awardedAt)
	}

	if count, err := repo.CountByBadgeKey(dbc, "exemplar_pattern_recognition"); err != nil || count != 1 {
		t.Fatalf("CountByBadgeKey: err=%v count=%d", err, count)
	}
}
