package synthesis

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type ConceptCooldownRepo interface {
	Get(dbc dbctx.Context, signature string) (*types.ConceptCooldown, error)
	Upsert(dbc dbctx.Context, row *types.ConceptCooldown) error
	ActiveSignatures(dbc dbctx.Context, now time.Time) (map[string]bool, error)
}

type conceptCooldownRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptCooldownRepo(db *gorm.DB, baseLog *logger.Logger) ConceptCooldownRepo {
	return &conceptCooldownRepo{db: db, log: baseLog.With("repo", "ConceptCooldownRepo")}
}

func (r *conceptCooldownRepo) Get(dbc dbctx.Context, signature string) (*types.ConceptCooldown, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if signature == "" {
		return nil, nil
	}
	var row types.ConceptCooldown
	err := t.WithContext(dbc.Ctx).
		Where("signature = ?", signature).
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

func (r *conceptCooldownRepo) Upsert(dbc dbctx.Context, row *types.ConceptCooldown) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.Signature == "" {
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
			Columns: []clause.Column{{Name: "signature"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"retired_action_id",
				"until",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *conceptCooldownRepo) ActiveSignatures(dbc dbctx.Context, now time.Time) (map[string]bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var sigs []string
	if err := t.WithContext(dbc.Ctx).
		Model(&types.ConceptCooldown{}).
		Where("until > ?", now).
		Pluck("signature", &sigs).Error; err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(sigs))
	for _, s := range sigs {
		out[s] = true
	}
	return out, nil
}
