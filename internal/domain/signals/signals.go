package signals

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Authenticity signal kinds with their detector severities.
const (
	FraudSignalVelocity      = "velocity"       // severity 0.7
	FraudSignalRegularity    = "regularity"     // severity 0.6
	FraudSignalBiometric     = "biometric"      // severity 0.5
	FraudSignalTemporal      = "temporal"       // severity 0.4
	FraudSignalDeviceSharing = "device_sharing" // severity 0.8
	FraudSignalNewDevice     = "new_device"     // severity 0.3
)

const (
	FraudTierAllow  = "allow"
	FraudTierReview = "review"
	FraudTierBlock  = "block"
)

type FraudSignal struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Kind     string         `gorm:"column:kind;not null;index" json:"kind"`
	Severity float64        `gorm:"column:severity;not null" json:"severity"`
	Evidence datatypes.JSON `gorm:"type:jsonb;column:evidence" json:"evidence"`

	ObservedAt time.Time      `gorm:"column:observed_at;not null;index" json:"observed_at"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (FraudSignal) TableName() string { return "fraud_signal" }

// FraudAssessment is the rolled-up risk per user; one row per user, replaced
// on every scan.
type FraudAssessment struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`

	Risk         float64        `gorm:"column:risk;not null;default:0" json:"risk"`
	Tier         string         `gorm:"column:tier;not null;default:allow;index" json:"tier"`
	SignalCounts datatypes.JSON `gorm:"type:jsonb;column:signal_counts" json:"signal_counts"`

	AssessedAt time.Time      `gorm:"column:assessed_at;not null" json:"assessed_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (FraudAssessment) TableName() string { return "fraud_assessment" }

const (
	WellbeingStatusOK      = "ok"
	WellbeingStatusOverCap = "over_cap"
)

// WellbeingAssessment tracks daily usage health; Day is UTC midnight.
type WellbeingAssessment struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_wellbeing_user_day,unique,priority:1" json:"user_id"`
	Day    time.Time `gorm:"column:day;not null;index:idx_wellbeing_user_day,unique,priority:2" json:"day"`

	ActiveMS    int64   `gorm:"column:active_ms;not null;default:0" json:"active_ms"`
	LateNightMS int64   `gorm:"column:late_night_ms;not null;default:0" json:"late_night_ms"`
	Severity    float64 `gorm:"column:severity;not null;default:0" json:"severity"`
	Status      string  `gorm:"column:status;not null;default:ok;index" json:"status"`

	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (WellbeingAssessment) TableName() string { return "wellbeing_assessment" }

// ConstraintExclusion is the audit row written for every hard-predicate
// exclusion, including post-selection vetoes.
type ConstraintExclusion struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	DecisionID *uuid.UUID `gorm:"type:uuid;column:decision_id;index" json:"decision_id,omitempty"`
	ActionID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"action_id"`

	Predicate string `gorm:"column:predicate;not null;index" json:"predicate"`
	Detail    string `gorm:"column:detail" json:"detail,omitempty"`
	// True when the exclusion was a post-selection veto rather than a
	// pre-selection filter hit.
	Veto bool `gorm:"column:veto;not null;default:false" json:"veto"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ConstraintExclusion) TableName() string { return "constraint_exclusion" }
