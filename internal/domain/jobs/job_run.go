package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job types dispatched by the background worker.
const (
	JobTypeStateUpdate      = "state_update"      // per-user, debounced
	JobTypeOutcomeApply     = "outcome_apply"     // per-decision
	JobTypeProfileRefresh   = "profile_refresh"   // per-user, debounced
	JobTypeSynthesisRun     = "synthesis_run"     // global, serialized
	JobTypeArchetypeRefresh = "archetype_refresh" // global
)

// JobRun is one unit of background work. UserID is nil for global jobs.
// Enqueues debounce on (user_id, job_type, entity): while a matching row is
// still runnable, re-enqueues are dropped rather than duplicated.
type JobRun struct {
	ID      uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID  *uuid.UUID `gorm:"type:uuid;column:user_id;index" json:"user_id,omitempty"`
	JobType string     `gorm:"column:job_type;not null;index" json:"job_type"`

	EntityType string     `gorm:"column:entity_type;index" json:"entity_type,omitempty"`
	EntityID   *uuid.UUID `gorm:"type:uuid;column:entity_id;index" json:"entity_id,omitempty"`

	Status   string `gorm:"column:status;not null;index" json:"status"`
	Stage    string `gorm:"column:stage" json:"stage,omitempty"`
	Progress int    `gorm:"column:progress;not null;default:0" json:"progress"`
	Attempts int    `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error    string `gorm:"column:error" json:"error,omitempty"`

	RunAfter    *time.Time `gorm:"column:run_after;index" json:"run_after,omitempty"`
	LockedAt    *time.Time `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time `gorm:"column:last_error_at" json:"last_error_at,omitempty"`

	Payload datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload"`
	Result  datatypes.JSON `gorm:"type:jsonb;column:result" json:"result"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (JobRun) TableName() string { return "job_run" }
