package decisions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type DecisionRepo interface {
	Create(dbc dbctx.Context, rows []*types.Decision) ([]*types.Decision, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Decision, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Decision, error)
	ListByActionSince(dbc dbctx.Context, actionID uuid.UUID, since time.Time, limit int) ([]*types.Decision, error)
	CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
	CountByActionSince(dbc dbctx.Context, actionID uuid.UUID, since time.Time) (int64, error)

	// FirstCreatedAt is the timestamp of the earliest decision ever recorded,
	// nil before the first one. Drives the rollout-maturity term of the
	// epsilon schedule.
	FirstCreatedAt(dbc dbctx.Context) (*time.Time, error)
}

type decisionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDecisionRepo(db *gorm.DB, baseLog *logger.Logger) DecisionRepo {
	return &decisionRepo{db: db, log: baseLog.With("repo", "DecisionRepo")}
}

func (r *decisionRepo) Create(dbc dbctx.Context, rows []*types.Decision) ([]*types.Decision, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Decision{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *decisionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Decision, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Decision
	err := t.WithContext(dbc.Ctx).
		Where("id = ?", id).
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

func (r *decisionRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.Decision, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Decision
	if userID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *decisionRepo) ListByActionSince(dbc dbctx.Context, actionID uuid.UUID, since time.Time, limit int) ([]*types.Decision, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Decision
	if actionID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 5000
	}
	if limit > 50000 {
		limit = 50000
	}
	if err := t.WithContext(dbc.Ctx).
		Where("action_id = ? AND created_at >= ?", actionID, since).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *decisionRepo) CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Decision{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *decisionRepo) FirstCreatedAt(dbc dbctx.Context) (*time.Time, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var first *time.Time
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Decision{}).
		Select("MIN(created_at)").
		Scan(&first).Error; err != nil {
		return nil, err
	}
	return first, nil
}

func (r *decisionRepo) CountByActionSince(dbc dbctx.Context, actionID uuid.UUID, since time.Time) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if actionID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Decision{}).
		Where("action_id = ? AND created_at >= ?", actionID, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
