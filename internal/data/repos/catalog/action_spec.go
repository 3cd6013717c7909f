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

type ActionSpecRepo interface {
	Create(dbc dbctx.Context, rows []*types.ActionSpec) ([]*types.ActionSpec, error)
	UpsertByKey(dbc dbctx.Context, row *types.ActionSpec) error

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ActionSpec, error)
	GetByKey(dbc dbctx.Context, key string) (*types.ActionSpec, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ActionSpec, error)

	ListSelectable(dbc dbctx.Context) ([]*types.ActionSpec, error)
	ListByStatus(dbc dbctx.Context, status string, limit int) ([]*types.ActionSpec, error)
	ListBySignature(dbc dbctx.Context, signature string) ([]*types.ActionSpec, error)
	ListBetaOlderThan(dbc dbctx.Context, cutoff time.Time) ([]*types.ActionSpec, error)

	// SetStatus moves a spec between active/beta/retired and stamps the
	// matching transition timestamp. Returns false when the row was already
	// in the target status.
	SetStatus(dbc dbctx.Context, id uuid.UUID, status string, actor string) (bool, error)
}

type actionSpecRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActionSpecRepo(db *gorm.DB, baseLog *logger.Logger) ActionSpecRepo {
	return &actionSpecRepo{db: db, log: baseLog.With("repo", "ActionSpecRepo")}
}

func (r *actionSpecRepo) Create(dbc dbctx.Context, rows []*types.ActionSpec) ([]*types.ActionSpec, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.ActionSpec{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *actionSpecRepo) UpsertByKey(dbc dbctx.Context, row *types.ActionSpec) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.Key == "" {
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
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title",
				"reward_type",
				"intensity",
				"presentations",
				"rule",
				"rule_text",
				"concept_kind",
				"cooldown_seconds",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *actionSpecRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ActionSpec, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.ActionSpec
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

func (r *actionSpecRepo) GetByKey(dbc dbctx.Context, key string) (*types.ActionSpec, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if key == "" {
		return nil, nil
	}
	var row types.ActionSpec
	err := t.WithContext(dbc.Ctx).
		Where("key = ?", key).
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

func (r *actionSpecRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.ActionSpec, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ActionSpec
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *actionSpecRepo) ListSelectable(dbc dbctx.Context) ([]*types.ActionSpec, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ActionSpec
	if err := t.WithContext(dbc.Ctx).
		Where("status IN ?", []string{types.ActionStatusActive, types.ActionStatusBeta}).
		Order("key ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *actionSpecRepo) ListByStatus(dbc dbctx.Context, status string, limit int) ([]*types.ActionSpec, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ActionSpec
	if status == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 500
	}
	if limit > 5000 {
		limit = 5000
	}
	if err := t.WithContext(dbc.Ctx).
		Where("status = ?", status).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *actionSpecRepo) ListBySignature(dbc dbctx.Context, signature string) ([]*types.ActionSpec, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ActionSpec
	if signature == "" {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("provenance_signature = ?", signature).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *actionSpecRepo) ListBetaOlderThan(dbc dbctx.Context, cutoff time.Time) ([]*types.ActionSpec, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ActionSpec
	if err := t.WithContext(dbc.Ctx).
		Where("status = ? AND beta_since IS NOT NULL AND beta_since < ?", types.ActionStatusBeta, cutoff).
		Order("beta_since ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *actionSpecRepo) SetStatus(dbc dbctx.Context, id uuid.UUID, status string, actor string) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || status == "" {
		return false, nil
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":       status,
		"status_actor": actor,
		"updated_at":   now,
	}
	switch status {
	case types.ActionStatusBeta:
		updates["beta_since"] = now
	case types.ActionStatusActive:
		updates["activated_at"] = now
	case types.ActionStatusRetired:
		updates["retired_at"] = now
	}

	res := t.WithContext(dbc.Ctx).
		Model(&types.ActionSpec{}).
		Where("id = ? AND status <> ?", id, status).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
