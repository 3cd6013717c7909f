package archetypes

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type ArchetypeSnapshotRepo interface {
	Create(dbc dbctx.Context, row *types.ArchetypeSnapshot) (*types.ArchetypeSnapshot, error)
	GetByVersion(dbc dbctx.Context, version int) (*types.ArchetypeSnapshot, error)
	GetLatest(dbc dbctx.Context) (*types.ArchetypeSnapshot, error)
	List(dbc dbctx.Context, limit int) ([]*types.ArchetypeSnapshot, error)
}

type archetypeSnapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArchetypeSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) ArchetypeSnapshotRepo {
	return &archetypeSnapshotRepo{db: db, log: baseLog.With("repo", "ArchetypeSnapshotRepo")}
}

func (r *archetypeSnapshotRepo) Create(dbc dbctx.Context, row *types.ArchetypeSnapshot) (*types.ArchetypeSnapshot, error) {
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

func (r *archetypeSnapshotRepo) GetByVersion(dbc dbctx.Context, version int) (*types.ArchetypeSnapshot, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if version <= 0 {
		return nil, nil
	}
	var row types.ArchetypeSnapshot
	err := t.WithContext(dbc.Ctx).
		Where("version = ?", version).
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

func (r *archetypeSnapshotRepo) GetLatest(dbc dbctx.Context) (*types.ArchetypeSnapshot, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row types.ArchetypeSnapshot
	err := t.WithContext(dbc.Ctx).
		Order("version DESC").
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

func (r *archetypeSnapshotRepo) List(dbc dbctx.Context, limit int) ([]*types.ArchetypeSnapshot, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	var out []*types.ArchetypeSnapshot
	if err := t.WithContext(dbc.Ctx).
		Order("version DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
