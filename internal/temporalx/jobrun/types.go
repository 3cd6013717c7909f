package jobrun

import "time"

const (
	WorkflowName = "job_run"
	ActivityTick = "job_run_tick"
)

// TickResult is what one activity execution reports back to the workflow: the
// job's status after the tick, plus the earliest-run time for rows enqueued
// with a future run_after.
type TickResult struct {
	JobID    string     `json:"job_id"`
	Status   string     `json:"status"`
	Stage    string     `json:"stage,omitempty"`
	Progress int        `json:"progress,omitempty"`
	RunAfter *time.Time `json:"run_after,omitempty"`
}
