package services

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/apierr"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

// SynthesisService triggers and inspects synthesis runs. Triggering only
// records intent; execution happens in the worker, where an advisory lock
// serializes runs regardless of how many were queued.
type SynthesisService interface {
	Trigger(dbc dbctx.Context, triggeredBy string) (*types.SynthesisRun, error)
	Get(dbc dbctx.Context, id uuid.UUID) (*types.SynthesisRun, error)
	List(dbc dbctx.Context, limit int) ([]*types.SynthesisRun, error)
}

type synthesisService struct {
	db     *gorm.DB
	log    *logger.Logger
	runs   repos.SynthesisRunRepo
	jobSvc JobService
}

func NewSynthesisService(db *gorm.DB, baseLog *logger.Logger, runs repos.SynthesisRunRepo, jobSvc JobService) SynthesisService {
	return &synthesisService{
		db:     db,
		log:    baseLog.With("service", "SynthesisService"),
		runs:   runs,
		jobSvc: jobSvc,
	}
}

func (s *synthesisService) Trigger(dbc dbctx.Context, triggeredBy string) (*types.SynthesisRun, error) {
	if triggeredBy == "" {
		triggeredBy = types.TriggerOperator
	}
	switch triggeredBy {
	case types.TriggerSchedule, types.TriggerOperator, types.TriggerWorkflow:
	default:
		return nil, apierr.Validationf("unknown trigger %q", triggeredBy)
	}

	row := &types.SynthesisRun{
		ID:          uuid.New(),
		Status:      types.RunStatusPending,
		TriggeredBy: triggeredBy,
	}
	if err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		tdbc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		created, err := s.runs.Create(tdbc, row)
		if err != nil {
			return err
		}
		row = created
		_, _, err = s.jobSvc.EnqueueSynthesisRun(tdbc, row.ID, triggeredBy)
		return err
	}); err != nil {
		return nil, apierr.MapDBError("trigger synthesis", err)
	}

	s.log.Info("synthesis run queued", "run_id", row.ID.String(), "triggered_by", triggeredBy)
	return row, nil
}

func (s *synthesisService) Get(dbc dbctx.Context, id uuid.UUID) (*types.SynthesisRun, error) {
	if id == uuid.Nil {
		return nil, apierr.Validation("missing run id")
	}
	run, err := s.runs.GetByID(dbc, id)
	if err != nil {
		return nil, apierr.MapDBError("get synthesis run", err)
	}
	if run == nil {
		return nil, apierr.ErrNotFound
	}
	return run, nil
}

func (s *synthesisService) List(dbc dbctx.Context, limit int) ([]*types.SynthesisRun, error) {
	out, err := s.runs.List(dbc, limit)
	if err != nil {
		return nil, apierr.MapDBError("list synthesis runs", err)
	}
	return out, nil
}
