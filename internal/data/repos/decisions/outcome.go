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

type OutcomeRepo interface {
	// CreateIgnoreDuplicates inserts outcomes, silently dropping rows whose
	// (decision_id, client_outcome_id) already exists. Returns inserted count.
	CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.Outcome) (int, error)

	Get(dbc dbctx.Context, decisionID uuid.UUID, clientOutcomeID string) (*types.Outcome, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Outcome, error)
	ListByDecision(dbc dbctx.Context, decisionID uuid.UUID) ([]*types.Outcome, error)
	ListUnapplied(dbc dbctx.Context, limit int) ([]*types.Outcome, error)
	ListAppliedByActionSince(dbc dbctx.Context, actionID uuid.UUID, since time.Time, limit int) ([]*types.Outcome, error)

	// MarkApplied flips Applied exactly once; callers run it in the same
	// transaction as the estimate update. Returns false when already applied.
	MarkApplied(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type outcomeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewOutcomeRepo(db *gorm.DB, baseLog *logger.Logger) OutcomeRepo {
	return &outcomeRepo{db: db, log: baseLog.With("repo", "OutcomeRepo")}
}

func (r *outcomeRepo) CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.Outcome) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "decision_id"}, {Name: "client_outcome_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *outcomeRepo) Get(dbc dbctx.Context, decisionID uuid.UUID, clientOutcomeID string) (*types.Outcome, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if decisionID == uuid.Nil || clientOutcomeID == "" {
		return nil, nil
	}
	var row types.Outcome
	err := t.WithContext(dbc.Ctx).
		Where("decision_id = ? AND client_outcome_id = ?", decisionID, clientOutcomeID).
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

func (r *outcomeRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Outcome, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Outcome
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

func (r *outcomeRepo) ListByDecision(dbc dbctx.Context, decisionID uuid.UUID) ([]*types.Outcome, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Outcome
	if decisionID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("decision_id = ?", decisionID).
		Order("observed_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *outcomeRepo) ListUnapplied(dbc dbctx.Context, limit int) ([]*types.Outcome, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 500
	}
	if limit > 5000 {
		limit = 5000
	}
	var out []*types.Outcome
	if err := t.WithContext(dbc.Ctx).
		Where("applied = FALSE").
		Order("created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *outcomeRepo) ListAppliedByActionSince(dbc dbctx.Context, actionID uuid.UUID, since time.Time, limit int) ([]*types.Outcome, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Outcome
	if actionID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 5000
	}
	if limit > 50000 {
		limit = 50000
	}
	if err := t.WithContext(dbc.Ctx).
		Joins("JOIN decision ON decision.id = outcome.decision_id").
		Where("outcome.applied = TRUE AND decision.action_id = ? AND outcome.created_at >= ?", actionID, since).
		Order("outcome.created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *outcomeRepo) MarkApplied(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	now := time.Now().UTC()
	res := t.WithContext(dbc.Ctx).
		Model(&types.Outcome{}).
		Where("id = ? AND applied = FALSE", id).
		Updates(map[string]interface{}{
			"applied":    true,
			"applied_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
