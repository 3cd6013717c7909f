package synthesis

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusAborted   = "aborted"
)

const (
	TriggerSchedule = "schedule"
	TriggerOperator = "operator"
	TriggerWorkflow = "workflow"
)

// SynthesisRun records one pass of the reward-concept synthesizer. Failed or
// aborted runs leave the catalog untouched.
type SynthesisRun struct {
	ID uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`

	Status string `gorm:"column:status;not null;default:pending;index" json:"status"`
	Stage  string `gorm:"column:stage" json:"stage,omitempty"`

	// "schedule", "operator", or "workflow".
	TriggeredBy string `gorm:"column:triggered_by;not null;default:schedule" json:"triggered_by"`

	SampleSize       int `gorm:"column:sample_size;not null;default:0" json:"sample_size"`
	ClustersFound    int `gorm:"column:clusters_found;not null;default:0" json:"clusters_found"`
	ClustersNovel    int `gorm:"column:clusters_novel;not null;default:0" json:"clusters_novel"`
	ConceptsEmitted  int `gorm:"column:concepts_emitted;not null;default:0" json:"concepts_emitted"`
	ConceptsPromoted int `gorm:"column:concepts_promoted;not null;default:0" json:"concepts_promoted"`
	ConceptsRetired  int `gorm:"column:concepts_retired;not null;default:0" json:"concepts_retired"`

	Stats datatypes.JSON `gorm:"type:jsonb;column:stats" json:"stats"`
	Error string         `gorm:"column:error" json:"error,omitempty"`

	StartedAt  *time.Time     `gorm:"column:started_at;index" json:"started_at,omitempty"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SynthesisRun) TableName() string { return "synthesis_run" }

// ClusterObservation is one cluster seen during a run. Signature is the
// stable digest of the cluster's defining dimensions; a signature recurring
// across consecutive runs is what makes a cluster eligible for emission.
type ClusterObservation struct {
	ID    uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RunID uuid.UUID `gorm:"type:uuid;not null;index" json:"run_id"`

	Signature string `gorm:"column:signature;not null;index" json:"signature"`

	Size     int            `gorm:"column:size;not null" json:"size"`
	Centroid datatypes.JSON `gorm:"type:jsonb;column:centroid" json:"centroid"`
	// Share of members already covered by existing eligibility rules.
	Coverage float64 `gorm:"column:coverage;not null;default:0" json:"coverage"`
	Novel    bool    `gorm:"column:novel;not null;default:false;index" json:"novel"`

	Stability       float64 `gorm:"column:stability;not null;default:0" json:"stability"`
	Distinctiveness float64 `gorm:"column:distinctiveness;not null;default:0" json:"distinctiveness"`
	Predictive      float64 `gorm:"column:predictive;not null;default:0" json:"predictive"`
	Validated       bool    `gorm:"column:validated;not null;default:false" json:"validated"`

	EmittedActionID *uuid.UUID `gorm:"type:uuid;column:emitted_action_id" json:"emitted_action_id,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ClusterObservation) TableName() string { return "cluster_observation" }

// ConceptCooldown blocks re-synthesis of a retired cluster signature until
// the cool-down expires.
type ConceptCooldown struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Signature string    `gorm:"column:signature;not null;uniqueIndex" json:"signature"`

	RetiredActionID uuid.UUID `gorm:"type:uuid;not null" json:"retired_action_id"`
	Until           time.Time `gorm:"column:until;not null;index" json:"until"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ConceptCooldown) TableName() string { return "concept_cooldown" }

// FairnessAudit stores one audited metric for an action across archetype
// cohorts. Disparity is the max pairwise rate gap.
type FairnessAudit struct {
	ID       uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RunID    *uuid.UUID `gorm:"type:uuid;column:run_id;index" json:"run_id,omitempty"`
	ActionID uuid.UUID  `gorm:"type:uuid;not null;index" json:"action_id"`

	// "equal_opportunity" when enough qualified users exist per cohort,
	// otherwise "statistical_parity".
	Metric      string         `gorm:"column:metric;not null" json:"metric"`
	Disparity   float64        `gorm:"column:disparity;not null" json:"disparity"`
	CohortRates datatypes.JSON `gorm:"type:jsonb;column:cohort_rates" json:"cohort_rates"`
	Passed      bool           `gorm:"column:passed;not null;index" json:"passed"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (FairnessAudit) TableName() string { return "fairness_audit" }
