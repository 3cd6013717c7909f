package events

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type BehaviorEventRepo interface {
	Create(dbc dbctx.Context, rows []*types.BehaviorEvent) ([]*types.BehaviorEvent, error)
	CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.BehaviorEvent) (int, error)

	ListAfterCursor(dbc dbctx.Context, userID uuid.UUID, afterCreatedAt *time.Time, afterID *uuid.UUID, limit int) ([]*types.BehaviorEvent, error)
	ListByUserSince(dbc dbctx.Context, userID uuid.UUID, since time.Time, limit int) ([]*types.BehaviorEvent, error)
	ListByDeviceSince(dbc dbctx.Context, deviceFingerprint string, since time.Time, limit int) ([]*types.BehaviorEvent, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.BehaviorEvent, error)
	CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
	DistinctUsersSince(dbc dbctx.Context, since time.Time, limit int) ([]uuid.UUID, error)
}

type behaviorEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBehaviorEventRepo(db *gorm.DB, baseLog *logger.Logger) BehaviorEventRepo {
	return &behaviorEventRepo{db: db, log: baseLog.With("repo", "BehaviorEventRepo")}
}

func (r *behaviorEventRepo) Create(dbc dbctx.Context, rows []*types.BehaviorEvent) ([]*types.BehaviorEvent, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.BehaviorEvent{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *behaviorEventRepo) CreateIgnoreDuplicates(dbc dbctx.Context, rows []*types.BehaviorEvent) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "client_event_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

func (r *behaviorEventRepo) ListAfterCursor(dbc dbctx.Context, userID uuid.UUID, afterCreatedAt *time.Time, afterID *uuid.UUID, limit int) ([]*types.BehaviorEvent, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return []*types.BehaviorEvent{}, nil
	}
	if limit <= 0 {
		limit = 500
	}
	if limit > 1000 {
		limit = 1000
	}

	q := t.WithContext(dbc.Ctx).Model(&types.BehaviorEvent{}).Where("user_id = ?", userID)

	// tie-safe cursor: (created_at, id)
	if afterCreatedAt != nil {
		id := uuid.Nil
		if afterID != nil {
			id = *afterID
		}
		q = q.Where("(created_at > ?) OR (created_at = ? AND id > ?)", *afterCreatedAt, *afterCreatedAt, id)
	}

	var out []*types.BehaviorEvent
	if err := q.Order("created_at ASC, id ASC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *behaviorEventRepo) ListByUserSince(dbc dbctx.Context, userID uuid.UUID, since time.Time, limit int) ([]*types.BehaviorEvent, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.BehaviorEvent
	if userID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 {
		limit = 1000
	}
	if limit > 5000 {
		limit = 5000
	}
	if err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND occurred_at >= ?", userID, since).
		Order("occurred_at ASC, id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *behaviorEventRepo) ListByDeviceSince(dbc dbctx.Context, deviceFingerprint string, since time.Time, limit int) ([]*types.BehaviorEvent, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.BehaviorEvent
	if deviceFingerprint == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 1000
	}
	if limit > 5000 {
		limit = 5000
	}
	if err := t.WithContext(dbc.Ctx).
		Where("device_fingerprint = ? AND occurred_at >= ?", deviceFingerprint, since).
		Order("occurred_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *behaviorEventRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.BehaviorEvent, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.BehaviorEvent
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *behaviorEventRepo) CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return 0, nil
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.BehaviorEvent{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *behaviorEventRepo) DistinctUsersSince(dbc dbctx.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 10000
	}
	if limit > 100000 {
		limit = 100000
	}
	var out []uuid.UUID
	if err := t.WithContext(dbc.Ctx).
		Model(&types.BehaviorEvent{}).
		Where("created_at >= ?", since).
		Distinct("user_id").
		Limit(limit).
		Pluck("user_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// -------------------- Cursor repo (per consumer) --------------------

type BehaviorEventCursorRepo interface {
	Get(dbc dbctx.Context, userID uuid.UUID, consumer string) (*types.BehaviorEventCursor, error)
	Upsert(dbc dbctx.Context, row *types.BehaviorEventCursor) error
}

type behaviorEventCursorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBehaviorEventCursorRepo(db *gorm.DB, baseLog *logger.Logger) BehaviorEventCursorRepo {
	return &behaviorEventCursorRepo{
		db:  db,
		log: baseLog.With("repo", "BehaviorEventCursorRepo"),
	}
}

func (r *behaviorEventCursorRepo) Get(dbc dbctx.Context, userID uuid.UUID, consumer string) (*types.BehaviorEventCursor, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil || consumer == "" {
		return nil, nil
	}

	var row types.BehaviorEventCursor
	err := t.WithContext(dbc.Ctx).
		Where("user_id = ? AND consumer = ?", userID, consumer).
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

func (r *behaviorEventCursorRepo) Upsert(dbc dbctx.Context, row *types.BehaviorEventCursor) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.UserID == uuid.Nil || row.Consumer == "" {
		return nil
	}
	row.UpdatedAt = time.Now().UTC()

	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "consumer"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"last_created_at",
				"last_event_id",
				"updated_at",
			}),
		}).
		Create(row).Error
}
