package jobrun

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	jobrt "github.com/yungbote/rewardcore-backend/internal/jobs/runtime"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/services"

	"go.temporal.io/sdk/activity"
)

// Activities carries the shared handles the Tick activity needs. One instance
// is registered per worker process.
type Activities struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Jobs     repos.JobRunRepo
	Registry *jobrt.Registry
	Notify   services.JobNotifier
}

// Tick advances one job run. Terminal rows just report their status, rows
// scheduled for later report when to come back, and everything else is marked
// running and handed to the registered pipeline handler. Handlers write their
// own terminal status through the job context; Tick re-reads the row and
// reports whatever it finds.
func (a *Activities) Tick(ctx context.Context, jobID string) (TickResult, error) {
	res := TickResult{JobID: strings.TrimSpace(jobID)}
	if a == nil || a.DB == nil || a.Jobs == nil || a.Registry == nil {
		return res, fmt.Errorf("jobrun: activity not configured")
	}

	parsedJobID, err := uuid.Parse(res.JobID)
	if err != nil || parsedJobID == uuid.Nil {
		return res, fmt.Errorf("jobrun: invalid job_id")
	}

	job, err := a.loadJob(ctx, parsedJobID)
	if err != nil {
		return res, err
	}
	if job == nil {
		return res, fmt.Errorf("jobrun: job not found")
	}

	status := strings.ToLower(strings.TrimSpace(job.Status))
	if status == types.JobStatusCompleted || status == types.JobStatusFailed {
		if a.Notify != nil {
			switch status {
			case types.JobStatusCompleted:
				a.Notify.JobDone(job.UserID, job)
			case types.JobStatusFailed:
				a.Notify.JobFailed(job.UserID, job, job.Stage, strings.TrimSpace(job.Error))
			}
		}
		res.Status = job.Status
		res.Stage = job.Stage
		res.Progress = job.Progress
		return res, nil
	}

	// A future run_after is a scheduling instruction, not work: report it and
	// let the workflow sleep until it passes.
	if job.RunAfter != nil && job.RunAfter.After(time.Now()) {
		res.Status = job.Status
		res.Stage = job.Stage
		res.Progress = job.Progress
		res.RunAfter = job.RunAfter
		return res, nil
	}

	stopHB := a.startHeartbeat(ctx, parsedJobID)
	defer stopHB()

	now := time.Now().UTC()
	_ = a.DB.WithContext(ctx).
		Model(&types.JobRun{}).
		Where("id = ? AND status NOT IN ?", parsedJobID, []string{types.JobStatusCompleted, types.JobStatusFailed}).
		Updates(map[string]any{
			"status":       types.JobStatusRunning,
			"attempts":     gorm.Expr("attempts + 1"),
			"locked_at":    now,
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error

	job.Status = types.JobStatusRunning
	job.LockedAt = &now
	job.HeartbeatAt = &now
	job.UpdatedAt = now

	handlerReturnedNil := false
	h, ok := a.Registry.Get(job.JobType)
	jc := jobrt.NewContext(ctx, a.DB, job, a.Jobs, a.Notify)
	if !ok {
		jc.Fail("dispatch", fmt.Errorf("no handler registered for job_type=%s", job.JobType))
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					if a.Log != nil {
						a.Log.Error("Job handler panic", "job_id", parsedJobID, "job_type", job.JobType, "panic", r)
					}
					jc.Fail("panic", fmt.Errorf("panic: unexpected error"))
				}
			}()
			if runErr := h.Run(jc); runErr != nil {
				jc.Fail("run", runErr)
				return
			}
			handlerReturnedNil = true
		}()
	}

	updated, err := a.loadJob(ctx, parsedJobID)
	if err != nil {
		return res, err
	}
	if updated == nil {
		return res, fmt.Errorf("jobrun: job not found after tick")
	}

	// A handler that returns nil without calling Complete would leave the row
	// in "running" forever with the workflow polling it. Close it out here,
	// keeping whatever stage and result the handler last wrote.
	if handlerReturnedNil && strings.EqualFold(strings.TrimSpace(updated.Status), types.JobStatusRunning) {
		if a.Log != nil {
			a.Log.Warn("Job handler returned nil without terminal status; marking completed", "job_id", parsedJobID, "job_type", updated.JobType, "stage", updated.Stage)
		}
		finalStage := "done"
		if s := strings.TrimSpace(updated.Stage); s != "" && !strings.EqualFold(s, "queued") && !strings.EqualFold(s, "running") {
			finalStage = s
		}
		var finalResult any
		if len(updated.Result) > 0 && strings.TrimSpace(string(updated.Result)) != "" && strings.TrimSpace(string(updated.Result)) != "null" {
			finalResult = json.RawMessage(updated.Result)
		}
		jc.Complete(finalStage, finalResult)

		// Reload once so the TickResult reflects the terminal state.
		if r2, rerr := a.loadJob(ctx, parsedJobID); rerr == nil && r2 != nil {
			updated = r2
		}
	}

	res.Status = updated.Status
	res.Stage = updated.Stage
	res.Progress = updated.Progress
	return res, nil
}

func (a *Activities) loadJob(ctx context.Context, jobID uuid.UUID) (*types.JobRun, error) {
	rows, err := a.Jobs.GetByIDs(dbctx.Context{Ctx: ctx, Tx: a.DB}, []uuid.UUID{jobID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || rows[0] == nil {
		return nil, nil
	}
	return rows[0], nil
}

func (a *Activities) startHeartbeat(ctx context.Context, jobID uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		temporalHB := time.NewTicker(10 * time.Second)
		defer temporalHB.Stop()

		dbHB := time.NewTicker(30 * time.Second)
		defer dbHB.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-temporalHB.C:
				activity.RecordHeartbeat(ctx)
			case <-dbHB.C:
				if a == nil || a.DB == nil || a.Jobs == nil || jobID == uuid.Nil {
					continue
				}
				_ = a.Jobs.Heartbeat(dbctx.Context{Ctx: ctx, Tx: a.DB}, jobID)
			}
		}
	}()
	return func() { close(done) }
}
