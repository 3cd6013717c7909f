package outcome_apply

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	jobrt "github.com/yungbote/rewardcore-backend/internal/jobs/runtime"
	"github.com/yungbote/rewardcore-backend/internal/observability"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/policy"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	decisionID, ok := jc.PayloadUUID("decision_id")
	if !ok {
		jc.Fail("validate", fmt.Errorf("outcome_apply: missing decision_id"))
		return nil
	}
	outcomeID, ok := jc.PayloadUUID("outcome_id")
	if !ok {
		jc.Fail("validate", fmt.Errorf("outcome_apply: missing outcome_id"))
		return nil
	}
	if p.db == nil || p.decisions == nil || p.outcomes == nil || p.arms == nil || p.states == nil {
		jc.Fail("validate", fmt.Errorf("outcome_apply: missing deps"))
		return nil
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	start := time.Now()

	decision, err := p.decisions.GetByID(dbc, decisionID)
	if err != nil {
		jc.Fail("load", err)
		return nil
	}
	if decision == nil {
		jc.Fail("load", fmt.Errorf("outcome_apply: decision %s not found", decisionID))
		return nil
	}
	outcome, err := p.outcomes.GetByID(dbc, outcomeID)
	if err != nil {
		jc.Fail("load", err)
		return nil
	}
	if outcome == nil {
		jc.Fail("load", fmt.Errorf("outcome_apply: outcome %s not found", outcomeID))
		return nil
	}
	if outcome.DecisionID != decision.ID {
		jc.Fail("load", fmt.Errorf("outcome_apply: outcome %s does not belong to decision %s", outcomeID, decisionID))
		return nil
	}

	// A retried job after a crash-between-apply-and-complete lands here.
	if outcome.Applied {
		jc.Complete("done", map[string]any{"status": "already_applied"})
		return nil
	}

	// Outcomes past the decision's observation window are logged and
	// dropped; the estimate never moves.
	if outcome.ObservedAt.After(decision.WindowExpiresAt) {
		p.log.Info("outcome_apply: stale outcome dropped",
			"decision_id", decisionID.String(),
			"outcome_id", outcomeID.String(),
			"observed_at", outcome.ObservedAt.UTC().Format(time.RFC3339),
			"window_expires_at", decision.WindowExpiresAt.UTC().Format(time.RFC3339),
		)
		observability.Current().IncOutcome(outcome.Kind, "stale")
		jc.Complete("done", map[string]any{"status": "stale"})
		return nil
	}

	jc.Progress("apply", 40)

	raced := false
	armUpdated := false
	if err := p.db.WithContext(jc.Ctx).Transaction(func(tx *gorm.DB) error {
		tdbc := dbctx.Context{Ctx: jc.Ctx, Tx: tx}

		flipped, err := p.outcomes.MarkApplied(tdbc, outcome.ID)
		if err != nil {
			return err
		}
		if !flipped {
			raced = true
			return nil
		}

		// No-reward decisions carry no arm; the window entry still lands so
		// re-engagement after silence is visible to the policy.
		if decision.ArmKey != "" && decision.ActionID != nil {
			arch, cbucket, actionID, ok := policy.ParseArmKey(decision.ArmKey)
			if !ok {
				return fmt.Errorf("outcome_apply: malformed arm key %q", decision.ArmKey)
			}
			if err := p.arms.ApplyValue(tdbc, decision.ArmKey, actionID, arch, cbucket, outcome.Value); err != nil {
				return err
			}
			armUpdated = true
		}

		row, err := p.states.GetForUpdate(tdbc, outcome.UserID)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
		window, err := sequence.UnmarshalWindow(row.OutcomeWindow)
		if err != nil {
			window = nil
		}
		window = sequence.PushOutcome(window, sequence.OutcomeEntry{
			DecisionID: decision.ID,
			ActionID:   decision.ActionID,
			Value:      outcome.Value,
			At:         outcome.ObservedAt,
		}, sequence.DefaultWindowCap)
		raw, err := sequence.MarshalWindow(window)
		if err != nil {
			return err
		}
		row.OutcomeWindow = raw
		return p.states.Upsert(tdbc, row)
	}); err != nil {
		jc.Fail("apply", err)
		return nil
	}

	if raced {
		jc.Complete("done", map[string]any{"status": "already_applied"})
		return nil
	}

	observability.Current().IncOutcome(outcome.Kind, "applied")
	if armUpdated {
		observability.Current().IncEstimateUpdate()
	}

	jc.Complete("done", map[string]any{
		"status":      "applied",
		"kind":        outcome.Kind,
		"value":       outcome.Value,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}
