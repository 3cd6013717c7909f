package decisions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type ArmEstimateRepo interface {
	Get(dbc dbctx.Context, armKey string) (*types.ArmEstimate, error)
	GetByKeys(dbc dbctx.Context, armKeys []string) ([]*types.ArmEstimate, error)
	ListByActionIDs(dbc dbctx.Context, actionIDs []uuid.UUID) ([]*types.ArmEstimate, error)
	ListByArchetypeBucket(dbc dbctx.Context, bucket string, limit int) ([]*types.ArmEstimate, error)
	Seed(dbc dbctx.Context, rows []*types.ArmEstimate) (int, error)

	// ApplyValue folds one observed value into the arm's incremental mean.
	// The whole update runs as a single guarded statement so concurrent
	// outcome applications serialize at the row.
	ApplyValue(dbc dbctx.Context, armKey string, actionID uuid.UUID, archetypeBucket, contextBucket string, value float64) error
}

type armEstimateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArmEstimateRepo(db *gorm.DB, baseLog *logger.Logger) ArmEstimateRepo {
	return &armEstimateRepo{db: db, log: baseLog.With("repo", "ArmEstimateRepo")}
}

func (r *armEstimateRepo) Get(dbc dbctx.Context, armKey string) (*types.ArmEstimate, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if armKey == "" {
		return nil, nil
	}
	var row types.ArmEstimate
	err := t.WithContext(dbc.Ctx).
		Where("arm_key = ?", armKey).
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

func (r *armEstimateRepo) GetByKeys(dbc dbctx.Context, armKeys []string) ([]*types.ArmEstimate, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ArmEstimate
	if len(armKeys) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("arm_key IN ?", armKeys).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *armEstimateRepo) ListByActionIDs(dbc dbctx.Context, actionIDs []uuid.UUID) ([]*types.ArmEstimate, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ArmEstimate
	if len(actionIDs) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("action_id IN ?", actionIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *armEstimateRepo) ListByArchetypeBucket(dbc dbctx.Context, bucket string, limit int) ([]*types.ArmEstimate, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ArmEstimate
	if bucket == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 1000
	}
	if limit > 10000 {
		limit = 10000
	}
	if err := t.WithContext(dbc.Ctx).
		Where("archetype_bucket = ?", bucket).
		Order("count DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *armEstimateRepo) Seed(dbc dbctx.Context, rows []*types.ArmEstimate) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	// Seeds never clobber arms that have accumulated real observations.
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "arm_key"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *armEstimateRepo) ApplyValue(dbc dbctx.Context, armKey string, actionID uuid.UUID, archetypeBucket, contextBucket string, value float64) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if armKey == "" || actionID == uuid.Nil {
		return nil
	}

	now := time.Now().UTC()
	row := &types.ArmEstimate{
		ID:              uuid.New(),
		ArmKey:          armKey,
		ActionID:        actionID,
		ArchetypeBucket: archetypeBucket,
		ContextBucket:   contextBucket,
		Count:           1,
		ValueMean:       value,
		UpdatedAt:       now,
	}
	// mean_{n+1} = mean_n + (v - mean_n) / (n + 1)
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "arm_key"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"count": gorm.Expr("arm_estimate.count + 1"),
				"value_mean": gorm.Expr(
					"arm_estimate.value_mean + ((? - arm_estimate.value_mean) / (arm_estimate.count + 1))", value,
				),
				"updated_at": now,
			}),
		}).
		Create(row).Error
}
