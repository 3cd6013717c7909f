package synthesis_run

import (
	"context"
	"fmt"
	"time"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	jobrt "github.com/yungbote/rewardcore-backend/internal/jobs/runtime"
	"github.com/yungbote/rewardcore-backend/internal/observability"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/realtime/bus"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	runID, ok := jc.PayloadUUID("run_id")
	if !ok {
		jc.Fail("validate", fmt.Errorf("synthesis_run: missing run_id"))
		return nil
	}
	if p.db == nil || p.runner == nil || p.runs == nil {
		jc.Fail("validate", fmt.Errorf("synthesis_run: missing deps"))
		return nil
	}

	started := time.Now()
	jc.Progress("synthesize", 10)

	runErr := p.runner.Run(jc.Ctx, runID)

	// Reload outside the job context so a cancelled run still reports its
	// final row state.
	dbc := dbctx.Context{Ctx: context.WithoutCancel(jc.Ctx)}
	run, getErr := p.runs.GetByID(dbc, runID)
	if getErr != nil {
		p.log.Warn("synthesis_run: reload failed", "run_id", runID.String(), "error", getErr)
	}

	status := types.RunStatusFailed
	if run != nil && run.Status != "" {
		status = run.Status
	}
	observability.Current().ObserveSynthesisRun(status, time.Since(started))

	if runErr != nil {
		stage := "synthesize"
		if run != nil && run.Stage != "" {
			stage = run.Stage
		}
		jc.Fail(stage, runErr)
		return nil
	}

	result := map[string]any{
		"status":      status,
		"duration_ms": time.Since(started).Milliseconds(),
	}
	emitted, promoted, retired := 0, 0, 0
	if run != nil {
		emitted, promoted, retired = run.ConceptsEmitted, run.ConceptsPromoted, run.ConceptsRetired
		result["sample_size"] = run.SampleSize
		result["clusters_found"] = run.ClustersFound
		result["clusters_novel"] = run.ClustersNovel
		result["concepts_emitted"] = emitted
		result["concepts_promoted"] = promoted
		result["concepts_retired"] = retired
	}
	observability.Current().AddConceptsEmitted(emitted)

	if p.bus != nil && emitted+promoted+retired > 0 {
		if err := p.bus.Publish(jc.Ctx, bus.Event{
			Kind:     bus.EventCatalogChanged,
			EntityID: &runID,
			At:       time.Now().UTC(),
			Data: map[string]any{
				"concepts_emitted":  emitted,
				"concepts_promoted": promoted,
				"concepts_retired":  retired,
			},
		}); err != nil {
			p.log.Warn("synthesis_run: publish failed", "run_id", runID.String(), "error", err)
		}
	}

	jc.Complete("done", result)
	return nil
}
