package state

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type UserStateRepo interface {
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.UserState, error)
	// GetForUpdate takes a row lock so sequential event application per user
	// stays single-writer under concurrent jobs.
	GetForUpdate(dbc dbctx.Context, userID uuid.UUID) (*types.UserState, error)
	Upsert(dbc dbctx.Context, row *types.UserState) error
	// CreateIfAbsent inserts only when the user has no state row yet, so a
	// cold-start seed can never clobber a concurrently applied real state.
	// Reports whether the insert happened.
	CreateIfAbsent(dbc dbctx.Context, row *types.UserState) (bool, error)

	ListWarmSince(dbc dbctx.Context, since time.Time, limit int) ([]*types.UserState, error)
	ListByArchetypeBucket(dbc dbctx.Context, bucket string, limit int) ([]*types.UserState, error)
	CountWarm(dbc dbctx.Context) (int64, error)

	// AssignArchetypeBucket moves a batch of users to a bucket. Only the
	// bucket column is touched so concurrent state writes keep their vector.
	AssignArchetypeBucket(dbc dbctx.Context, userIDs []uuid.UUID, bucket string) (int64, error)
}

type userStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserStateRepo(db *gorm.DB, baseLog *logger.Logger) UserStateRepo {
	return &userStateRepo{db: db, log: baseLog.With("repo", "UserStateRepo")}
}

func (r *userStateRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.UserState, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return nil, nil
	}
	var row types.UserState
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

func (r *userStateRepo) GetForUpdate(dbc dbctx.Context, userID uuid.UUID) (*types.UserState, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if userID == uuid.Nil {
		return nil, nil
	}
	var row types.UserState
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
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

func (r *userStateRepo) Upsert(dbc dbctx.Context, row *types.UserState) error {
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
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	return t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"vector",
				"encoder_version",
				"version_counts",
				"event_count",
				"cold",
				"outcome_window",
				"archetype_bucket",
				"seeded_from_snapshot",
				"last_event_at",
				"updated_at",
			}),
		}).
		Create(row).Error
}

func (r *userStateRepo) CreateIfAbsent(dbc dbctx.Context, row *types.UserState) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil || row.UserID == uuid.Nil {
		return false, nil
	}

	now := time.Now().UTC()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *userStateRepo) ListWarmSince(dbc dbctx.Context, since time.Time, limit int) ([]*types.UserState, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 1000
	}
	if limit > 20000 {
		limit = 20000
	}
	var out []*types.UserState
	if err := t.WithContext(dbc.Ctx).
		Where("cold = FALSE AND updated_at >= ?", since).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userStateRepo) ListByArchetypeBucket(dbc dbctx.Context, bucket string, limit int) ([]*types.UserState, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.UserState
	if bucket == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 1000
	}
	if limit > 20000 {
		limit = 20000
	}
	if err := t.WithContext(dbc.Ctx).
		Where("archetype_bucket = ?", bucket).
		Order("updated_at DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *userStateRepo) AssignArchetypeBucket(dbc dbctx.Context, userIDs []uuid.UUID, bucket string) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(userIDs) == 0 || bucket == "" {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Model(&types.UserState{}).
		Where("user_id IN ? AND archetype_bucket <> ?", userIDs, bucket).
		Updates(map[string]interface{}{
			"archetype_bucket": bucket,
			"updated_at":       time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *userStateRepo) CountWarm(dbc dbctx.Context) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.UserState{}).
		Where("cold = FALSE").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
