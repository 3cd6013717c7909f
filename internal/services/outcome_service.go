package services

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/observability"
	"github.com/yungbote/rewardcore-backend/internal/platform/apierr"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

const maxClientOutcomeIDLen = 128

// OutcomeInput is one outcome submission for a decision. ObservedAt defaults
// to now; client_outcome_id makes resubmission a no-op.
type OutcomeInput struct {
	ClientOutcomeID string     `json:"client_outcome_id"`
	Kind            string     `json:"kind"`
	Value           float64    `json:"value"`
	ObservedAt      *time.Time `json:"observed_at,omitempty"`
}

// OutcomeService accepts outcome signals for past decisions. Accepting means
// the row and its apply job commit together; the estimate update itself runs
// asynchronously and idempotently in the worker.
type OutcomeService interface {
	Record(dbc dbctx.Context, decisionID uuid.UUID, in OutcomeInput) (*types.Outcome, error)
	ListByDecision(dbc dbctx.Context, decisionID uuid.UUID) ([]*types.Outcome, error)
}

type outcomeService struct {
	db        *gorm.DB
	log       *logger.Logger
	decisions repos.DecisionRepo
	outcomes  repos.OutcomeRepo
	jobSvc    JobService
}

func NewOutcomeService(db *gorm.DB, baseLog *logger.Logger, decisions repos.DecisionRepo, outcomes repos.OutcomeRepo, jobSvc JobService) OutcomeService {
	return &outcomeService{
		db:        db,
		log:       baseLog.With("service", "OutcomeService"),
		decisions: decisions,
		outcomes:  outcomes,
		jobSvc:    jobSvc,
	}
}

func (s *outcomeService) Record(dbc dbctx.Context, decisionID uuid.UUID, in OutcomeInput) (*types.Outcome, error) {
	if decisionID == uuid.Nil {
		return nil, apierr.Validation("missing decision id")
	}
	if in.ClientOutcomeID == "" {
		return nil, apierr.Validation("missing client_outcome_id")
	}
	if len(in.ClientOutcomeID) > maxClientOutcomeIDLen {
		return nil, apierr.Validationf("client_outcome_id longer than %d", maxClientOutcomeIDLen)
	}
	switch in.Kind {
	case types.OutcomeKindReEngaged, types.OutcomeKindBehaviorDelta, types.OutcomeKindSatisfaction:
	default:
		return nil, apierr.Validationf("unknown outcome kind %q", in.Kind)
	}
	// Values live on the normalized estimate scale; means below the
	// no-reward floor stop the arm being granted.
	if in.Value < -1 || in.Value > 1 {
		return nil, apierr.Validationf("value %v outside [-1, 1]", in.Value)
	}

	decision, err := s.decisions.GetByID(dbc, decisionID)
	if err != nil {
		return nil, apierr.MapDBError("load decision", err)
	}
	if decision == nil {
		return nil, apierr.ErrNotFound
	}

	observedAt := time.Now().UTC()
	if in.ObservedAt != nil {
		observedAt = in.ObservedAt.UTC()
	}
	if observedAt.After(decision.WindowExpiresAt) {
		s.log.Info("stale outcome dropped",
			"decision_id", decisionID.String(),
			"client_outcome_id", in.ClientOutcomeID,
			"observed_at", observedAt.Format(time.RFC3339),
			"window_expires_at", decision.WindowExpiresAt.UTC().Format(time.RFC3339),
		)
		if m := observability.Current(); m != nil {
			m.IncOutcome(in.Kind, "stale")
		}
		return nil, apierr.Stale("observation window closed")
	}

	now := time.Now().UTC()
	row := &types.Outcome{
		ID:              uuid.New(),
		DecisionID:      decisionID,
		ClientOutcomeID: in.ClientOutcomeID,
		UserID:          decision.UserID,
		Kind:            in.Kind,
		Value:           in.Value,
		ObservedAt:      observedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Row and apply job commit together: a committed outcome always has a
	// queued job, and a failed enqueue rolls the row back for the retry.
	duplicate := false
	if err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		tdbc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}
		inserted, err := s.outcomes.CreateIgnoreDuplicates(tdbc, []*types.Outcome{row})
		if err != nil {
			return err
		}
		if inserted == 0 {
			duplicate = true
			return nil
		}
		_, _, err = s.jobSvc.EnqueueOutcomeApply(tdbc, decision.UserID, decisionID, row.ID)
		return err
	}); err != nil {
		return nil, apierr.MapDBError("record outcome", err)
	}

	if duplicate {
		if m := observability.Current(); m != nil {
			m.IncOutcome(in.Kind, "duplicate")
		}
		existing, err := s.outcomes.Get(dbc, decisionID, in.ClientOutcomeID)
		if err != nil {
			return nil, apierr.MapDBError("load outcome", err)
		}
		if existing == nil {
			return nil, apierr.ErrConflict
		}
		return existing, nil
	}
	return row, nil
}

func (s *outcomeService) ListByDecision(dbc dbctx.Context, decisionID uuid.UUID) ([]*types.Outcome, error) {
	if decisionID == uuid.Nil {
		return nil, apierr.Validation("missing decision id")
	}
	out, err := s.outcomes.ListByDecision(dbc, decisionID)
	if err != nil {
		return nil, apierr.MapDBError("list outcomes", err)
	}
	return out, nil
}
