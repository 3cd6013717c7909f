package decisions

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Decision is the immutable record of one policy invocation. ActionID is
// null for the no-reward decision. Annotation happens through Outcome rows,
// never by mutating this record.
type Decision struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	ActionID  *uuid.UUID `gorm:"type:uuid;column:action_id;index" json:"action_id,omitempty"`
	ActionKey string     `gorm:"column:action_key;index" json:"action_key,omitempty"`
	ArmKey    string     `gorm:"column:arm_key;index" json:"arm_key,omitempty"`

	// Context snapshot the estimates were conditioned on.
	Context datatypes.JSON `gorm:"type:jsonb;column:context" json:"context"`

	Epsilon    float64 `gorm:"column:epsilon;not null;default:0" json:"epsilon"`
	Explored   bool    `gorm:"column:explored;not null;default:false" json:"explored"`
	Confidence float64 `gorm:"column:confidence;not null;default:0" json:"confidence"`
	// Probability the policy assigned to the chosen action.
	Probability float64 `gorm:"column:probability;not null;default:0" json:"probability"`

	PresentationHint string `gorm:"column:presentation_hint" json:"presentation_hint,omitempty"`

	// "policy", "cold_start", "budget_fallback", "no_reward".
	Kind string `gorm:"column:kind;not null;index" json:"kind"`

	StateCold bool `gorm:"column:state_cold;not null;default:false" json:"state_cold"`
	// Decision count for this user at selection time (drives epsilon decay).
	UserDecisionIndex int `gorm:"column:user_decision_index;not null;default:0" json:"user_decision_index"`

	// Outcomes arriving after this deadline are stale and dropped.
	WindowExpiresAt time.Time `gorm:"column:window_expires_at;not null;index" json:"window_expires_at"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Decision) TableName() string { return "decision" }

const (
	DecisionKindPolicy         = "policy"
	DecisionKindColdStart      = "cold_start"
	DecisionKindBudgetFallback = "budget_fallback"
	DecisionKindNoReward       = "no_reward"
)

const (
	OutcomeKindReEngaged     = "re_engaged"
	OutcomeKindBehaviorDelta = "behavior_delta"
	OutcomeKindSatisfaction  = "satisfaction"
)

// Outcome is delayed feedback for a Decision. (DecisionID, ClientOutcomeID)
// dedupes at-least-once delivery; Applied flips exactly once, in the same
// transaction as the estimate update, which is what makes the policy update
// idempotent.
type Outcome struct {
	ID              uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DecisionID      uuid.UUID `gorm:"type:uuid;not null;index;index:idx_outcome_client,unique,priority:1" json:"decision_id"`
	ClientOutcomeID string    `gorm:"column:client_outcome_id;not null;index:idx_outcome_client,unique,priority:2" json:"client_outcome_id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Kind  string  `gorm:"column:kind;not null;index" json:"kind"`
	Value float64 `gorm:"column:value;not null;default:0" json:"value"`

	ObservedAt time.Time  `gorm:"column:observed_at;not null" json:"observed_at"`
	Applied    bool       `gorm:"column:applied;not null;default:false;index" json:"applied"`
	AppliedAt  *time.Time `gorm:"column:applied_at" json:"applied_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Outcome) TableName() string { return "outcome" }

// ArmEstimate is the incremental value estimate for one
// (archetype bucket, context bucket, action) arm.
type ArmEstimate struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ArmKey string    `gorm:"column:arm_key;not null;uniqueIndex" json:"arm_key"`

	ActionID        uuid.UUID `gorm:"type:uuid;not null;index" json:"action_id"`
	ArchetypeBucket string    `gorm:"column:archetype_bucket;not null;index" json:"archetype_bucket"`
	ContextBucket   string    `gorm:"column:context_bucket;not null;index" json:"context_bucket"`

	Count     int     `gorm:"column:count;not null;default:0" json:"count"`
	ValueMean float64 `gorm:"column:value_mean;not null;default:0" json:"value_mean"`

	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ArmEstimate) TableName() string { return "arm_estimate" }
