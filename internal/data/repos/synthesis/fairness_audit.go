package synthesis

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type FairnessAuditRepo interface {
	Create(dbc dbctx.Context, rows []*types.FairnessAudit) ([]*types.FairnessAudit, error)
	ListByRun(dbc dbctx.Context, runID uuid.UUID) ([]*types.FairnessAudit, error)
	GetLatestByAction(dbc dbctx.Context, actionID uuid.UUID) (*types.FairnessAudit, error)

	// LatestPerAction returns the newest audit row for each given action in
	// one query; actions never audited are absent from the map.
	LatestPerAction(dbc dbctx.Context, actionIDs []uuid.UUID) (map[uuid.UUID]*types.FairnessAudit, error)
}

type fairnessAuditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFairnessAuditRepo(db *gorm.DB, baseLog *logger.Logger) FairnessAuditRepo {
	return &fairnessAuditRepo{db: db, log: baseLog.With("repo", "FairnessAuditRepo")}
}

func (r *fairnessAuditRepo) Create(dbc dbctx.Context, rows []*types.FairnessAudit) ([]*types.FairnessAudit, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.FairnessAudit{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *fairnessAuditRepo) ListByRun(dbc dbctx.Context, runID uuid.UUID) ([]*types.FairnessAudit, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.FairnessAudit
	if runID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fairnessAuditRepo) LatestPerAction(dbc dbctx.Context, actionIDs []uuid.UUID) (map[uuid.UUID]*types.FairnessAudit, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := map[uuid.UUID]*types.FairnessAudit{}
	if len(actionIDs) == 0 {
		return out, nil
	}
	var rows []*types.FairnessAudit
	if err := t.WithContext(dbc.Ctx).
		Raw(`SELECT DISTINCT ON (action_id) *
		     FROM fairness_audit
		     WHERE action_id IN ? AND deleted_at IS NULL
		     ORDER BY action_id, created_at DESC`, actionIDs).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row != nil {
			out[row.ActionID] = row
		}
	}
	return out, nil
}

func (r *fairnessAuditRepo) GetLatestByAction(dbc dbctx.Context, actionID uuid.UUID) (*types.FairnessAudit, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if actionID == uuid.Nil {
		return nil, nil
	}
	var row types.FairnessAudit
	err := t.WithContext(dbc.Ctx).
		Where("action_id = ?", actionID).
		Order("created_at DESC").
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
