package profile

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TrustTierNew      = "new"
	TrustTierStandard = "standard"
	TrustTierTrusted  = "trusted"
	TrustTierExemplar = "exemplar"
)

// SocialProfile is the public projection of UserState. It carries derived
// labels and rounded scores only; no raw event or vector field may appear
// here. Derivation is one-directional and never writes back into state.
type SocialProfile struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`

	TrustTier string `gorm:"column:trust_tier;not null;default:new;index" json:"trust_tier"`
	Prestige  int    `gorm:"column:prestige;not null;default:0" json:"prestige"`

	// Narrative labels ("Exemplar: Pattern Recognition", ...).
	Badges datatypes.JSON `gorm:"type:jsonb;column:badges" json:"badges"`

	AssetBucketKey string `gorm:"column:asset_bucket_key" json:"-"`
	AssetURL       string `gorm:"column:asset_url" json:"asset_url,omitempty"`

	// Watermark of the state UpdatedAt the profile was derived from, used to
	// skip redundant recomputation.
	DerivedFromStateAt *time.Time `gorm:"column:derived_from_state_at" json:"-"`
	ProfileVersion     int        `gorm:"column:profile_version;not null;default:1" json:"profile_version"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (SocialProfile) TableName() string { return "social_profile" }

// ProfileBadge is the audit row paired with each badge surfaced in the
// profile's Badges JSON.
type ProfileBadge struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index;index:idx_profile_badge,unique,priority:1" json:"user_id"`
	BadgeKey string    `gorm:"column:badge_key;not null;index:idx_profile_badge,unique,priority:2" json:"badge_key"`

	Label    string  `gorm:"column:label;not null" json:"label"`
	Rarity   float64 `gorm:"column:rarity;not null;default:0" json:"rarity"`
	Prestige int     `gorm:"column:prestige;not null;default:0" json:"prestige"`

	AwardedAt time.Time      `gorm:"column:awarded_at;not null" json:"awarded_at"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ProfileBadge) TableName() string { return "profile_badge" }
