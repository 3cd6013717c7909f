package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/ctxutil"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/services"
)

// Terminal statuses. A row in one of these never transitions again; every
// lifecycle write below is guarded against them.
var terminalStatuses = []string{types.JobStatusCompleted, types.JobStatusFailed}

/*
Context is the execution handle for a single claimed job run. It wraps:
  - the request context (timeouts, cancellation),
  - the DB handle pipelines open transactions on,
  - the mutable job_run row,
  - the notifier side channel,
  - and the only sanctioned ways to report progress or terminate.

Pipelines never write job_run directly; they go through this object so the
terminal-status guard stays in one place.
*/
type Context struct {
	Ctx     context.Context
	DB      *gorm.DB
	Job     *types.JobRun
	Repo    repos.JobRunRepo
	Notify  services.JobNotifier
	payload map[string]any
}

// NewContext builds a Context for a claimed job. The payload JSON is decoded
// eagerly so handlers read inputs via Payload()/PayloadUUID(); a malformed
// payload is non-fatal here because handlers validate required fields anyway.
func NewContext(ctx context.Context, db *gorm.DB, job *types.JobRun, repo repos.JobRunRepo, notify services.JobNotifier) *Context {
	c := &Context{
		Ctx:    ctx,
		DB:     db,
		Job:    job,
		Repo:   repo,
		Notify: notify,
	}
	_ = c.decodePayload()
	c.applyTraceData()
	return c
}

func (c *Context) decodePayload() error {
	if c.Job == nil {
		return nil
	}
	if len(c.Job.Payload) == 0 {
		c.payload = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(c.Job.Payload, &m); err != nil {
		c.payload = map[string]any{}
		return err
	}
	c.payload = m
	return nil
}

// applyTraceData restores the trace identifiers the enqueuing request stamped
// into the payload, so job logs correlate with the request that caused them.
func (c *Context) applyTraceData() {
	if c == nil || c.Ctx == nil {
		return
	}
	payload := c.Payload()
	traceID := payloadString(payload, "trace_id")
	reqID := payloadString(payload, "request_id")
	if traceID == "" && reqID == "" {
		return
	}
	c.Ctx = ctxutil.WithTraceData(c.Ctx, &ctxutil.TraceData{
		TraceID:   traceID,
		RequestID: reqID,
	})
}

// Payload returns the decoded payload map. Never nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

// PayloadUUID reads a payload field and parses it as a UUID. Returns
// (uuid.Nil, false) when missing or unparseable, so pipelines keep UUID
// validation out of their own code.
func (c *Context) PayloadUUID(key string) (uuid.UUID, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(fmt.Sprint(v))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// PayloadString reads a payload field as a trimmed string, "" when absent.
func (c *Context) PayloadString(key string) string {
	return payloadString(c.Payload(), key)
}

// Update applies arbitrary field updates to the job_run row, guarded against
// terminal statuses. Prefer Progress/Fail/Complete for lifecycle transitions;
// this exists for custom writes like intermediate result snapshots.
func (c *Context) Update(updates map[string]any) error {
	if c.Job == nil || c.Job.ID == uuid.Nil {
		return nil
	}
	_, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: c.Ctx}, c.Job.ID, terminalStatuses, toIfaceMap(updates))
	return err
}

// Progress publishes a non-terminal status update: stage and percent plus a
// heartbeat, then a notifier event. A job that already reached a terminal
// status is left untouched and nothing is emitted.
func (c *Context) Progress(stage string, pct int) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Job.ID, terminalStatuses, map[string]interface{}{
			"stage":        stage,
			"progress":     pct,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Stage = stage
		c.Job.Progress = pct
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobProgress(c.Job.UserID, c.Job, stage, pct)
	}
}

// Fail marks the run terminally failed: status=failed, the failing stage, the
// error text, and a cleared lock so the claim query can retry it once the
// retry delay passes. A run already terminal is not overwritten, which keeps
// the first, more specific failure when both a pipeline and the worker's
// safety net report one.
func (c *Context) Fail(stage string, err error) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Job.ID, terminalStatuses, map[string]interface{}{
			"status":        types.JobStatusFailed,
			"stage":         stage,
			"error":         msg,
			"last_error_at": now,
			"locked_at":     nil,
			"updated_at":    now,
		})
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Status = types.JobStatusFailed
		c.Job.Stage = stage
		c.Job.Error = msg
		c.Job.LastErrorAt = &now
		c.Job.LockedAt = nil
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobFailed(c.Job.UserID, c.Job, stage, msg)
	}
}

// Complete marks the run terminally completed with an optional result
// payload, clears the error and lock, and emits a done notification.
func (c *Context) Complete(finalStage string, result any) {
	if c == nil {
		return
	}
	ctx := c.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now()
	var res datatypes.JSON
	if result != nil {
		b, _ := json.Marshal(result)
		res = datatypes.JSON(b)
	}

	if c.Repo != nil && c.Job != nil && c.Job.ID != uuid.Nil {
		ok, _ := c.Repo.UpdateFieldsUnlessStatus(dbctx.Context{Ctx: ctx}, c.Job.ID, terminalStatuses, map[string]interface{}{
			"status":       types.JobStatusCompleted,
			"stage":        finalStage,
			"progress":     100,
			"error":        "",
			"result":       res,
			"locked_at":    nil,
			"heartbeat_at": now,
			"updated_at":   now,
		})
		if !ok {
			return
		}
	}

	if c.Job != nil {
		c.Job.Status = types.JobStatusCompleted
		c.Job.Stage = finalStage
		c.Job.Progress = 100
		c.Job.Error = ""
		c.Job.Result = res
		c.Job.LockedAt = nil
		c.Job.HeartbeatAt = &now
		c.Job.UpdatedAt = now
	}

	if c.Notify != nil && c.Job != nil {
		c.Notify.JobDone(c.Job.UserID, c.Job)
	}
}

func payloadString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func toIfaceMap(in map[string]any) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
