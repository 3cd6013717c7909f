package synthesis

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type SynthesisRunRepo interface {
	Create(dbc dbctx.Context, row *types.SynthesisRun) (*types.SynthesisRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SynthesisRun, error)
	List(dbc dbctx.Context, limit int) ([]*types.SynthesisRun, error)
	ListCompletedDesc(dbc dbctx.Context, limit int) ([]*types.SynthesisRun, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	MarkRunning(dbc dbctx.Context, id uuid.UUID) error
	MarkFinished(dbc dbctx.Context, id uuid.UUID, status string, errMsg string) error
}

type synthesisRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSynthesisRunRepo(db *gorm.DB, baseLog *logger.Logger) SynthesisRunRepo {
	return &synthesisRunRepo{db: db, log: baseLog.With("repo", "SynthesisRunRepo")}
}

func (r *synthesisRunRepo) Create(dbc dbctx.Context, row *types.SynthesisRun) (*types.SynthesisRun, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *synthesisRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.SynthesisRun, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.SynthesisRun
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

func (r *synthesisRunRepo) List(dbc dbctx.Context, limit int) ([]*types.SynthesisRun, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	var out []*types.SynthesisRun
	if err := t.WithContext(dbc.Ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *synthesisRunRepo) ListCompletedDesc(dbc dbctx.Context, limit int) ([]*types.SynthesisRun, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	var out []*types.SynthesisRun
	if err := t.WithContext(dbc.Ctx).
		Where("status = ?", types.RunStatusCompleted).
		Order("finished_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *synthesisRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.SynthesisRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *synthesisRunRepo) MarkRunning(dbc dbctx.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"status":     types.RunStatusRunning,
		"started_at": now,
		"updated_at": now,
	})
}

func (r *synthesisRunRepo) MarkFinished(dbc dbctx.Context, id uuid.UUID, status string, errMsg string) error {
	now := time.Now().UTC()
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"status":      status,
		"error":       errMsg,
		"finished_at": now,
		"updated_at":  now,
	})
}
