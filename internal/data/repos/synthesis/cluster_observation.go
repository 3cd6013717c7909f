package synthesis

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type ClusterObservationRepo interface {
	Create(dbc dbctx.Context, rows []*types.ClusterObservation) ([]*types.ClusterObservation, error)
	ListByRun(dbc dbctx.Context, runID uuid.UUID) ([]*types.ClusterObservation, error)

	// ListRecentBySignature returns observations of one signature ordered
	// newest first, used for the consecutive-run stability check.
	ListRecentBySignature(dbc dbctx.Context, signature string, limit int) ([]*types.ClusterObservation, error)

	SetEmittedAction(dbc dbctx.Context, id uuid.UUID, actionID uuid.UUID) error
}

type clusterObservationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClusterObservationRepo(db *gorm.DB, baseLog *logger.Logger) ClusterObservationRepo {
	return &clusterObservationRepo{db: db, log: baseLog.With("repo", "ClusterObservationRepo")}
}

func (r *clusterObservationRepo) Create(dbc dbctx.Context, rows []*types.ClusterObservation) ([]*types.ClusterObservation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.ClusterObservation{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *clusterObservationRepo) ListByRun(dbc dbctx.Context, runID uuid.UUID) ([]*types.ClusterObservation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ClusterObservation
	if runID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("run_id = ?", runID).
		Order("size DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *clusterObservationRepo) ListRecentBySignature(dbc dbctx.Context, signature string, limit int) ([]*types.ClusterObservation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ClusterObservation
	if signature == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if err := t.WithContext(dbc.Ctx).
		Where("signature = ?", signature).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *clusterObservationRepo) SetEmittedAction(dbc dbctx.Context, id uuid.UUID, actionID uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || actionID == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.ClusterObservation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"emitted_action_id": actionID,
			"validated":         true,
		}).Error
}
