package profile

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type SocialProfileRepo interface {
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.SocialProfile, error)
	Upsert(dbc dbctx.Context, row *types.SocialProfile) error
}

type socialProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSocialProfileRepo(db *gorm.DB, baseLog *logger.Logger) SocialProfileRepo {
	return &socialProfileRepo{db: db, log: baseLog.With("repo", "SocialProfileRepo")}
}

func (r *socialProfileRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.SocialProfile, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return nil, nil
	}
	var row types.SocialProfile
	err := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *socialProfileRepo) Upsert(dbc dbctx.Context, row *types.SocialProfile) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.UserID == uuid.Nil {
		return nil
	}

	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"trust_tier",
				"prestige",
				"badges",
				"asset_bucket_key",
				"asset_url",
				"derived_from_state_at",
				"profile_version",
				"updated_at",
			}),
		}).
		Create(row).Error
}

// -------------------- Badge repo --------------------

type ProfileBadgeRepo interface {
	Award(dbc dbctx.Context, row *types.ProfileBadge) error
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.ProfileBadge, error)
	CountByBadgeKey(dbc dbctx.Context, badgeKey string) (int64, error)
}

type profileBadgeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileBadgeRepo(db *gorm.DB, baseLog *logger.Logger) ProfileBadgeRepo {
	return &profileBadgeRepo{db: db, log: baseLog.With("repo", "ProfileBadgeRepo")}
}

func (r *profileBadgeRepo) Award(dbc dbctx.Context, row *types.ProfileBadge) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.UserID == uuid.Nil || row.BadgeKey == "" {
		return nil
	}

	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.AwardedAt.IsZero() {
		row.AwardedAt = now
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}

	// Re-awards refresh rarity/prestige but keep the original award time.
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "badge_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"label",
				"rarity",
				"prestige",
			}),
		}).
		Create(row).Error
}

func (r *profileBadgeRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.ProfileBadge, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ProfileBadge
	if userID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("awarded_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *profileBadgeRepo) CountByBadgeKey(dbc dbctx.Context, badgeKey string) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if badgeKey == "" {
		return 0, nil
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.ProfileBadge{}).
		Where("badge_key = ?", badgeKey).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
