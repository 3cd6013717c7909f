package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/ctxutil"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

// JobService owns enqueueing background work. Per-user jobs debounce on
// (user_id, job_type, entity): while a matching row is still runnable a
// re-enqueue is dropped, which is what serializes event application per user.
type JobService interface {
	Enqueue(dbc dbctx.Context, userID *uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error)
	Dispatch(dbc dbctx.Context, jobID uuid.UUID) error

	EnqueueStateUpdateIfNeeded(dbc dbctx.Context, userID uuid.UUID, trigger string) (*types.JobRun, bool, error)
	EnqueueProfileRefreshIfNeeded(dbc dbctx.Context, userID uuid.UUID, trigger string) (*types.JobRun, bool, error)
	EnqueueOutcomeApply(dbc dbctx.Context, userID uuid.UUID, decisionID uuid.UUID, outcomeID uuid.UUID) (*types.JobRun, bool, error)
	EnqueueSynthesisRun(dbc dbctx.Context, runID uuid.UUID, trigger string) (*types.JobRun, bool, error)
	EnqueueArchetypeRefreshIfNeeded(dbc dbctx.Context, trigger string) (*types.JobRun, bool, error)

	GetByID(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error)
	ListRecent(dbc dbctx.Context, jobType string, limit int) ([]*types.JobRun, error)
}

type jobService struct {
	db     *gorm.DB
	log    *logger.Logger
	repo   repos.JobRunRepo
	notify JobNotifier

	temporal          temporalsdkclient.Client
	temporalTaskQueue string
}

// NewJobService wires the queue. tc may be nil: without Temporal the polling
// worker drains job_run on its own and Dispatch becomes a no-op.
func NewJobService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo repos.JobRunRepo,
	notify JobNotifier,
	tc temporalsdkclient.Client,
	taskQueue string,
) JobService {
	return &jobService{
		db:                db,
		log:               baseLog.With("service", "JobService"),
		repo:              repo,
		notify:            notify,
		temporal:          tc,
		temporalTaskQueue: strings.TrimSpace(taskQueue),
	}
}

func (s *jobService) Enqueue(dbc dbctx.Context, userID *uuid.UUID, jobType string, entityType string, entityID *uuid.UUID, payload map[string]any) (*types.JobRun, error) {
	if jobType == "" {
		return nil, fmt.Errorf("missing job_type")
	}
	if payload == nil {
		payload = map[string]any{}
	}
	if td := ctxutil.GetTraceData(dbc.Ctx); td != nil {
		if td.TraceID != "" {
			if _, ok := payload["trace_id"]; !ok {
				payload["trace_id"] = td.TraceID
			}
		}
		if td.RequestID != "" {
			if _, ok := payload["request_id"]; !ok {
				payload["request_id"] = td.RequestID
			}
		}
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	b, _ := json.Marshal(payload)
	now := time.Now()
	job := &types.JobRun{
		ID:         uuid.New(),
		UserID:     userID,
		JobType:    jobType,
		EntityType: entityType,
		EntityID:   entityID,
		Status:     types.JobStatusPending,
		Stage:      "queued",
		Progress:   0,
		Attempts:   0,
		Payload:    datatypes.JSON(b),
		Result:     datatypes.JSON([]byte(`{}`)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.repo.Create(dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}, []*types.JobRun{job}); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.notify.JobCreated(userID, job)

	// Inside a real transaction, do not start Temporal yet: the row is not
	// visible until commit. Callers invoke Dispatch() afterwards. gorm.DB
	// pointers are cloned freely (WithContext/Session), so pointer identity
	// is not a transaction detector.
	if isDBTransaction(dbc.Tx) {
		if s.log != nil {
			s.log.Debug("Job enqueued inside transaction; awaiting dispatch after commit", "job_id", job.ID, "job_type", job.JobType)
		}
		return job, nil
	}
	if err := s.Dispatch(dbctx.Context{Ctx: dbc.Ctx}, job.ID); err != nil {
		return job, err
	}
	return job, nil
}

type txCommitter interface {
	Commit() error
	Rollback() error
}

func isDBTransaction(db *gorm.DB) bool {
	if db == nil || db.Statement == nil || db.Statement.ConnPool == nil {
		return false
	}
	_, ok := db.Statement.ConnPool.(txCommitter)
	return ok
}

// Dispatch starts the Temporal workflow backing a job. Without a Temporal
// client this is a no-op; the polling worker claims the row instead.
func (s *jobService) Dispatch(dbc dbctx.Context, jobID uuid.UUID) error {
	if s == nil || s.temporal == nil {
		return nil
	}
	if jobID == uuid.Nil {
		return fmt.Errorf("missing job id")
	}
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	err := s.startTemporalJobWorkflow(ctx, jobID, enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE)
	if err == nil {
		return nil
	}
	if _, ok := err.(*serviceerror.WorkflowExecutionAlreadyStarted); ok {
		return nil
	}

	now := time.Now().UTC()
	// Best-effort: in Temporal mode nothing else will pick this row up, so a
	// failed dispatch is a failed job.
	if s.repo != nil {
		_ = s.repo.UpdateFields(dbctx.Context{Ctx: ctx, Tx: s.db}, jobID, map[string]interface{}{
			"status":        types.JobStatusFailed,
			"stage":         "dispatch",
			"error":         err.Error(),
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		})
	}
	if s.notify != nil && s.repo != nil {
		if j, rerr := s.repo.GetByID(dbctx.Context{Ctx: ctx, Tx: s.db}, jobID); rerr == nil && j != nil {
			s.notify.JobFailed(j.UserID, j, "dispatch", err.Error())
		}
	}
	return fmt.Errorf("start temporal workflow: %w", err)
}

func (s *jobService) EnqueueStateUpdateIfNeeded(dbc dbctx.Context, userID uuid.UUID, trigger string) (*types.JobRun, bool, error) {
	return s.enqueueUserJobIfNeeded(dbc, userID, types.JobTypeStateUpdate, trigger)
}

func (s *jobService) EnqueueProfileRefreshIfNeeded(dbc dbctx.Context, userID uuid.UUID, trigger string) (*types.JobRun, bool, error) {
	return s.enqueueUserJobIfNeeded(dbc, userID, types.JobTypeProfileRefresh, trigger)
}

func (s *jobService) enqueueUserJobIfNeeded(dbc dbctx.Context, userID uuid.UUID, jobType string, trigger string) (*types.JobRun, bool, error) {
	if userID == uuid.Nil {
		return nil, false, fmt.Errorf("missing user_id")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}

	entityID := userID
	repoCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}
	exists, err := s.repo.ExistsRunnable(repoCtx, &userID, jobType, "user", &entityID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, false, nil
	}

	payload := map[string]any{
		"user_id": userID.String(),
		"trigger": trigger,
	}
	job, err := s.Enqueue(repoCtx, &userID, jobType, "user", &entityID, payload)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *jobService) EnqueueOutcomeApply(dbc dbctx.Context, userID uuid.UUID, decisionID uuid.UUID, outcomeID uuid.UUID) (*types.JobRun, bool, error) {
	if userID == uuid.Nil {
		return nil, false, fmt.Errorf("missing user_id")
	}
	if decisionID == uuid.Nil || outcomeID == uuid.Nil {
		return nil, false, fmt.Errorf("missing decision/outcome id")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}

	entityID := outcomeID
	repoCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}
	exists, err := s.repo.ExistsRunnable(repoCtx, &userID, types.JobTypeOutcomeApply, "outcome", &entityID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, false, nil
	}

	payload := map[string]any{
		"user_id":     userID.String(),
		"decision_id": decisionID.String(),
		"outcome_id":  outcomeID.String(),
	}
	job, err := s.Enqueue(repoCtx, &userID, types.JobTypeOutcomeApply, "outcome", &entityID, payload)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *jobService) EnqueueSynthesisRun(dbc dbctx.Context, runID uuid.UUID, trigger string) (*types.JobRun, bool, error) {
	if runID == uuid.Nil {
		return nil, false, fmt.Errorf("missing run_id")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}

	entityID := runID
	repoCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}
	exists, err := s.repo.ExistsRunnable(repoCtx, nil, types.JobTypeSynthesisRun, "synthesis_run", &entityID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, false, nil
	}

	payload := map[string]any{
		"run_id":  runID.String(),
		"trigger": trigger,
	}
	job, err := s.Enqueue(repoCtx, nil, types.JobTypeSynthesisRun, "synthesis_run", &entityID, payload)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *jobService) EnqueueArchetypeRefreshIfNeeded(dbc dbctx.Context, trigger string) (*types.JobRun, bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}

	// Global singleton: a fixed entity key makes the runnable check collapse
	// concurrent triggers into one pending row.
	entityID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(types.JobTypeArchetypeRefresh))
	repoCtx := dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}
	exists, err := s.repo.ExistsRunnable(repoCtx, nil, types.JobTypeArchetypeRefresh, "archetype", &entityID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, false, nil
	}

	payload := map[string]any{
		"trigger": trigger,
	}
	job, err := s.Enqueue(repoCtx, nil, types.JobTypeArchetypeRefresh, "archetype", &entityID, payload)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *jobService) GetByID(dbc dbctx.Context, jobID uuid.UUID) (*types.JobRun, error) {
	if jobID == uuid.Nil {
		return nil, fmt.Errorf("missing job id")
	}
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	return s.repo.GetByID(dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}, jobID)
}

func (s *jobService) ListRecent(dbc dbctx.Context, jobType string, limit int) ([]*types.JobRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = s.db
	}
	return s.repo.ListRecent(dbctx.Context{Ctx: dbc.Ctx, Tx: transaction}, jobType, limit)
}

func (s *jobService) startTemporalJobWorkflow(ctx context.Context, jobID uuid.UUID, reusePolicy enums.WorkflowIdReusePolicy) error {
	if s == nil || s.temporal == nil || jobID == uuid.Nil {
		return fmt.Errorf("temporal not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	tq := strings.TrimSpace(s.temporalTaskQueue)
	if tq == "" {
		tq = "rewardcore"
	}
	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    jobID.String(),
		TaskQueue:             tq,
		WorkflowIDReusePolicy: reusePolicy,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    30 * time.Second,
			BackoffCoefficient: 1.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
	_, err := s.temporal.ExecuteWorkflow(ctx, opts, "job_run")
	return err
}
