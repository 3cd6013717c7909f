package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionStatusActive  = "active"
	ActionStatusBeta    = "beta"
	ActionStatusRetired = "retired"
)

// Reward types, the middle level of the whether/type/magnitude hierarchy.
const (
	RewardTypePoints            = "points"
	RewardTypeStreakBonus       = "streak_bonus"
	RewardTypeSkillBadge        = "skill_badge"
	RewardTypeChoiceOpportunity = "choice_opportunity"
	RewardTypeSocialRecognition = "social_recognition"
	RewardTypeOpportunityUnlock = "opportunity_unlock"
)

// Intensity tiers order actions by how strongly they pull the user back into
// the product. The usage-health predicate excludes high tiers first.
const (
	IntensityLow    = "low"
	IntensityMedium = "medium"
	IntensityHigh   = "high"
)

// ActionSpec describes one reward action the policy can choose. Synthesized
// specs carry the provenance cluster signature that produced them. Rows are
// never deleted; retirement is a status transition kept for audit.
type ActionSpec struct {
	ID  uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Key string    `gorm:"column:key;not null;uniqueIndex" json:"key"`

	Title      string `gorm:"column:title;not null" json:"title"`
	RewardType string `gorm:"column:reward_type;not null;index" json:"reward_type"`
	Intensity  string `gorm:"column:intensity;not null;default:low" json:"intensity"`

	// Presentation variants for the magnitude/presentation sub-policy.
	Presentations datatypes.JSON `gorm:"type:jsonb;column:presentations" json:"presentations"`

	// Eligibility rule document plus its human-readable rendering. Synthesized
	// rules must always be expressible here; an opaque score is not accepted.
	Rule     datatypes.JSON `gorm:"type:jsonb;column:rule" json:"rule"`
	RuleText string         `gorm:"column:rule_text" json:"rule_text"`

	Synthesized         bool   `gorm:"column:synthesized;not null;default:false;index" json:"synthesized"`
	ProvenanceSignature string `gorm:"column:provenance_signature;index" json:"provenance_signature,omitempty"`
	// Self-determination category for synthesized concepts
	// (competence / autonomy / relatedness).
	ConceptKind string `gorm:"column:concept_kind" json:"concept_kind,omitempty"`

	Status      string     `gorm:"column:status;not null;default:active;index" json:"status"`
	BetaSince   *time.Time `gorm:"column:beta_since" json:"beta_since,omitempty"`
	ActivatedAt *time.Time `gorm:"column:activated_at" json:"activated_at,omitempty"`
	RetiredAt   *time.Time `gorm:"column:retired_at" json:"retired_at,omitempty"`
	// How the last status transition happened: "seed", "synthesis",
	// "lifecycle_review", or "operator".
	StatusActor string `gorm:"column:status_actor" json:"status_actor,omitempty"`

	// Minimum spacing between grants of this action to one user, seconds.
	CooldownSeconds int `gorm:"column:cooldown_seconds;not null;default:0" json:"cooldown_seconds"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ActionSpec) TableName() string { return "action_spec" }

// Selectable reports whether the policy may choose this spec at all.
func (a *ActionSpec) Selectable() bool {
	return a != nil && (a.Status == ActionStatusActive || a.Status == ActionStatusBeta)
}

// Cooldown returns the per-user grant spacing.
func (a *ActionSpec) Cooldown() time.Duration {
	if a == nil || a.CooldownSeconds <= 0 {
		return 0
	}
	return time.Duration(a.CooldownSeconds) * time.Second
}

// UserActionStat tracks per-user selection history for tie-breaking,
// cooldowns, and the daily grant cap.
type UserActionStat struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index;index:idx_user_action_stat,unique,priority:1" json:"user_id"`
	ActionID uuid.UUID `gorm:"type:uuid;not null;index:idx_user_action_stat,unique,priority:2" json:"action_id"`

	Selections     int        `gorm:"column:selections;not null;default:0" json:"selections"`
	LastSelectedAt *time.Time `gorm:"column:last_selected_at;index" json:"last_selected_at,omitempty"`

	// Daily grant accounting; GrantDay is UTC midnight of the day counted.
	GrantDay    *time.Time `gorm:"column:grant_day" json:"grant_day,omitempty"`
	GrantsInDay int        `gorm:"column:grants_in_day;not null;default:0" json:"grants_in_day"`

	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserActionStat) TableName() string { return "user_action_stat" }
