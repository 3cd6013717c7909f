package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type ServiceAccountRepo interface {
	Create(dbc dbctx.Context, row *types.ServiceAccount) (*types.ServiceAccount, error)
	GetByKeyID(dbc dbctx.Context, keyID string) (*types.ServiceAccount, error)
	List(dbc dbctx.Context, limit int) ([]*types.ServiceAccount, error)
	TouchLastUsed(dbc dbctx.Context, id uuid.UUID) error
	SetDisabled(dbc dbctx.Context, id uuid.UUID, disabled bool) error
}

type serviceAccountRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewServiceAccountRepo(db *gorm.DB, baseLog *logger.Logger) ServiceAccountRepo {
	return &serviceAccountRepo{db: db, log: baseLog.With("repo", "ServiceAccountRepo")}
}

func (r *serviceAccountRepo) Create(dbc dbctx.Context, row *types.ServiceAccount) (*types.ServiceAccount, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.KeyID == "" {
		return nil, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *serviceAccountRepo) GetByKeyID(dbc dbctx.Context, keyID string) (*types.ServiceAccount, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if keyID == "" {
		return nil, nil
	}
	var row types.ServiceAccount
	err := t.WithContext(dbc.Ctx).
		Where("key_id = ?", keyID).
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

func (r *serviceAccountRepo) List(dbc dbctx.Context, limit int) ([]*types.ServiceAccount, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	var out []*types.ServiceAccount
	if err := t.WithContext(dbc.Ctx).
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *serviceAccountRepo) TouchLastUsed(dbc dbctx.Context, id uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now().UTC()
	return t.WithContext(dbc.Ctx).
		Model(&types.ServiceAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_used_at": now,
			"updated_at":   now,
		}).Error
}

func (r *serviceAccountRepo) SetDisabled(dbc dbctx.Context, id uuid.UUID, disabled bool) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&types.ServiceAccount{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"disabled":   disabled,
			"updated_at": time.Now().UTC(),
		}).Error
}
