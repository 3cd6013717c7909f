package signals

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type ConstraintExclusionRepo interface {
	Create(dbc dbctx.Context, rows []*types.ConstraintExclusion) ([]*types.ConstraintExclusion, error)
	ListByDecision(dbc dbctx.Context, decisionID uuid.UUID) ([]*types.ConstraintExclusion, error)
	ListByUserSince(dbc dbctx.Context, userID uuid.UUID, since time.Time, limit int) ([]*types.ConstraintExclusion, error)
	CountByPredicateSince(dbc dbctx.Context, predicate string, since time.Time) (int64, error)
}

type constraintExclusionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConstraintExclusionRepo(db *gorm.DB, baseLog *logger.Logger) ConstraintExclusionRepo {
	return &constraintExclusionRepo{db: db, log: baseLog.With("repo", "ConstraintExclusionRepo")}
}

func (r *constraintExclusionRepo) Create(dbc dbctx.Context, rows []*types.ConstraintExclusion) ([]*types.ConstraintExclusion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.ConstraintExclusion{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *constraintExclusionRepo) ListByDecision(dbc dbctx.Context, decisionID uuid.UUID) ([]*types.ConstraintExclusion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ConstraintExclusion
	if decisionID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("decision_id = ?", decisionID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *constraintExclusionRepo) ListByUserSince(dbc dbctx.Context, userID uuid.UUID, since time.Time, limit int) ([]*types.ConstraintExclusion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ConstraintExclusion
	if userID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 500
	}
	if limit > 5000 {
		limit = 5000
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *constraintExclusionRepo) CountByPredicateSince(dbc dbctx.Context, predicate string, since time.Time) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if predicate == "" {
		return 0, nil
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.ConstraintExclusion{}).
		Where("predicate = ? AND created_at >= ?", predicate, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
