package state

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserState is the private per-user behavioral summary. Only the sequence
// model writes the vector; everything else reads. The vector is fixed-width
// (see encoding.Layout) so state size never grows with history length.
type UserState struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`

	Vector datatypes.JSON `gorm:"type:jsonb;column:vector;not null" json:"vector"`
	// Encoder schema version of the most recent contribution plus a
	// version → applied-count map, kept so historical updates stay
	// replayable across encoder upgrades.
	EncoderVersion int            `gorm:"column:encoder_version;not null;default:1" json:"encoder_version"`
	VersionCounts  datatypes.JSON `gorm:"type:jsonb;column:version_counts" json:"version_counts"`

	EventCount int  `gorm:"column:event_count;not null;default:0" json:"event_count"`
	Cold       bool `gorm:"column:cold;not null;default:true;index" json:"cold"`

	// Rolling window of recent decision outcomes (bounded length).
	OutcomeWindow datatypes.JSON `gorm:"type:jsonb;column:outcome_window" json:"outcome_window"`

	// Archetype bucket assigned at seed time or by the latest snapshot.
	ArchetypeBucket string `gorm:"column:archetype_bucket;index" json:"archetype_bucket,omitempty"`

	SeededFromSnapshot int        `gorm:"column:seeded_from_snapshot;not null;default:0" json:"seeded_from_snapshot"`
	LastEventAt        *time.Time `gorm:"column:last_event_at;index" json:"last_event_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (UserState) TableName() string { return "user_state" }
