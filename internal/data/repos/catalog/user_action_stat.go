package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type UserActionStatRepo interface {
	Get(dbc dbctx.Context, userID, actionID uuid.UUID) (*types.UserActionStat, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserActionStat, error)

	// RecordSelection bumps the selection counter and the daily grant count,
	// resetting the day counter when the grant day rolls over.
	RecordSelection(dbc dbctx.Context, userID, actionID uuid.UUID, at time.Time) error
}

type userActionStatRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserActionStatRepo(db *gorm.DB, baseLog *logger.Logger) UserActionStatRepo {
	return &userActionStatRepo{db: db, log: baseLog.With("repo", "UserActionStatRepo")}
}

func (r *userActionStatRepo) Get(dbc dbctx.Context, userID, actionID uuid.UUID) (*types.UserActionStat, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil || actionID == uuid.Nil {
		return nil, nil
	}
	var row types.UserActionStat
	err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND action_id = ?", userID, actionID).
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

func (r *userActionStatRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.UserActionStat, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.UserActionStat
	if userID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userActionStatRepo) RecordSelection(dbc dbctx.Context, userID, actionID uuid.UUID, at time.Time) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil || actionID == uuid.Nil {
		return nil
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	day := at.UTC().Truncate(24 * time.Hour)

	row := &types.UserActionStat{
		ID:             uuid.New(),
		UserID:         userID,
		ActionID:       actionID,
		Selections:     1,
		LastSelectedAt: &at,
		GrantDay:       &day,
		GrantsInDay:    1,
		UpdatedAt:      at,
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "action_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"selections":       gorm.Expr("user_action_stat.selections + 1"),
				"last_selected_at": at,
				"grants_in_day": gorm.Expr(
					"CASE WHEN user_action_stat.grant_day = ? THEN user_action_stat.grants_in_day + 1 ELSE 1 END", day,
				),
				"grant_day":  day,
				"updated_at": at,
			}),
		}).
		Create(row).Error
}
