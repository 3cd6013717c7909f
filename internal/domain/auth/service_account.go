package auth

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ScopeIngest  = "ingest"
	ScopeDecide  = "decide"
	ScopeProfile = "profile"
	ScopeAdmin   = "admin"
)

// ServiceAccount is a machine caller of the core (ingestors, delivery
// services, operator tooling). SecretHash is bcrypt; the plaintext secret is
// shown once at creation and never stored.
type ServiceAccount struct {
	ID    uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name  string    `gorm:"column:name;not null" json:"name"`
	KeyID string    `gorm:"column:key_id;not null;uniqueIndex" json:"key_id"`

	SecretHash string         `gorm:"column:secret_hash;not null" json:"-"`
	Scopes     datatypes.JSON `gorm:"type:jsonb;column:scopes" json:"scopes"`

	Disabled   bool       `gorm:"column:disabled;not null;default:false;index" json:"disabled"`
	LastUsedAt *time.Time `gorm:"column:last_used_at" json:"last_used_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ServiceAccount) TableName() string { return "service_account" }
