package signals

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type FraudSignalRepo interface {
	Create(dbc dbctx.Context, rows []*types.FraudSignal) ([]*types.FraudSignal, error)
	ListByUserSince(dbc dbctx.Context, userID uuid.UUID, since time.Time, limit int) ([]*types.FraudSignal, error)
}

type fraudSignalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFraudSignalRepo(db *gorm.DB, baseLog *logger.Logger) FraudSignalRepo {
	return &fraudSignalRepo{db: db, log: baseLog.With("repo", "FraudSignalRepo")}
}

func (r *fraudSignalRepo) Create(dbc dbctx.Context, rows []*types.FraudSignal) ([]*types.FraudSignal, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.FraudSignal{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *fraudSignalRepo) ListByUserSince(dbc dbctx.Context, userID uuid.UUID, since time.Time, limit int) ([]*types.FraudSignal, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.FraudSignal
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
		Where("user_id = ? AND observed_at >= ?", userID, since).
		Order("observed_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// -------------------- Assessment repo --------------------

type FraudAssessmentRepo interface {
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.FraudAssessment, error)
	Upsert(dbc dbctx.Context, row *types.FraudAssessment) error
}

type fraudAssessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFraudAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) FraudAssessmentRepo {
	return &fraudAssessmentRepo{db: db, log: baseLog.With("repo", "FraudAssessmentRepo")}
}

func (r *fraudAssessmentRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.FraudAssessment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return nil, nil
	}
	var row types.FraudAssessment
	err := t.WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
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

func (r *fraudAssessmentRepo) Upsert(dbc dbctx.Context, row *types.FraudAssessment) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.UserID == uuid.Nil {
		return nil
	}

	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.AssessedAt.IsZero() {
		row.AssessedAt = now
	}
	row.UpdatedAt = now

	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"risk",
				"tier",
				"signal_counts",
				"assessed_at",
				"updated_at",
			}),
		}).
		Create(row).Error
}
