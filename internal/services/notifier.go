package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/realtime/bus"
)

// JobNotifier fans job lifecycle transitions out to interested instances.
// Global jobs carry a nil userID and still publish; per-user listeners
// filter on the user_id field.
type JobNotifier interface {
	JobCreated(userID *uuid.UUID, job *types.JobRun)
	JobProgress(userID *uuid.UUID, job *types.JobRun, stage string, progress int)
	JobFailed(userID *uuid.UUID, job *types.JobRun, stage string, errorMessage string)
	JobDone(userID *uuid.UUID, job *types.JobRun)
}

type jobNotifier struct {
	bus bus.Bus
}

func NewJobNotifier(b bus.Bus) JobNotifier {
	return &jobNotifier{bus: b}
}

func (n *jobNotifier) JobCreated(userID *uuid.UUID, job *types.JobRun) {
	n.publish(userID, job, map[string]any{
		"phase": "created",
	})
}

func (n *jobNotifier) JobProgress(userID *uuid.UUID, job *types.JobRun, stage string, progress int) {
	n.publish(userID, job, map[string]any{
		"phase":    "progress",
		"stage":    stage,
		"progress": progress,
	})
}

func (n *jobNotifier) JobFailed(userID *uuid.UUID, job *types.JobRun, stage string, errorMessage string) {
	n.publish(userID, job, map[string]any{
		"phase": "failed",
		"stage": stage,
		"error": errorMessage,
	})
}

func (n *jobNotifier) JobDone(userID *uuid.UUID, job *types.JobRun) {
	n.publish(userID, job, map[string]any{
		"phase": "done",
	})
}

func (n *jobNotifier) publish(userID *uuid.UUID, job *types.JobRun, data map[string]any) {
	if n == nil || n.bus == nil || job == nil {
		return
	}
	data["job_id"] = job.ID.String()
	data["job_type"] = job.JobType
	data["status"] = job.Status
	jobID := job.ID
	_ = n.bus.Publish(context.Background(), bus.Event{
		Kind:     bus.EventJobUpdated,
		UserID:   userID,
		EntityID: &jobID,
		At:       time.Now().UTC(),
		Data:     data,
	})
}
