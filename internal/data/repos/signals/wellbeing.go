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

type WellbeingAssessmentRepo interface {
	GetForDay(dbc dbctx.Context, userID uuid.UUID, day time.Time) (*types.WellbeingAssessment, error)
	ListByUserSince(dbc dbctx.Context, userID uuid.UUID, since time.Time) ([]*types.WellbeingAssessment, error)

	// AddUsage accumulates active time into the user's daily row and keeps
	// severity/status in step with the new totals.
	AddUsage(dbc dbctx.Context, userID uuid.UUID, day time.Time, activeMS, lateNightMS int64, severity float64, status string) error
}

type wellbeingAssessmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWellbeingAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) WellbeingAssessmentRepo {
	return &wellbeingAssessmentRepo{db: db, log: baseLog.With("repo", "WellbeingAssessmentRepo")}
}

func (r *wellbeingAssessmentRepo) GetForDay(dbc dbctx.Context, userID uuid.UUID, day time.Time) (*types.WellbeingAssessment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return nil, nil
	}
	day = day.UTC().Truncate(24 * time.Hour)

	var row types.WellbeingAssessment
	err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND day = ?", userID, day).
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

func (r *wellbeingAssessmentRepo) ListByUserSince(dbc dbctx.Context, userID uuid.UUID, since time.Time) ([]*types.WellbeingAssessment, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.WellbeingAssessment
	if userID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND day >= ?", userID, since.UTC().Truncate(24*time.Hour)).
		Order("day ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *wellbeingAssessmentRepo) AddUsage(dbc dbctx.Context, userID uuid.UUID, day time.Time, activeMS, lateNightMS int64, severity float64, status string) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return nil
	}
	day = day.UTC().Truncate(24 * time.Hour)
	now := time.Now().UTC()

	row := &types.WellbeingAssessment{
		ID:          uuid.New(),
		UserID:      userID,
		Day:         day,
		ActiveMS:    activeMS,
		LateNightMS: lateNightMS,
		Severity:    severity,
		Status:      status,
		UpdatedAt:   now,
	}
	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"active_ms":     gorm.Expr("wellbeing_assessment.active_ms + ?", activeMS),
				"late_night_ms": gorm.Expr("wellbeing_assessment.late_night_ms + ?", lateNightMS),
				"severity":      severity,
				"status":        status,
				"updated_at":    now,
			}),
		}).
		Create(row).Error
}
