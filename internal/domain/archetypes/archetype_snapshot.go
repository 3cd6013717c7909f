package archetypes

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ArchetypeSnapshot is one published version of the population archetypes
// the cold-start prior interpolates from. Rows are immutable once published;
// live readers swap to the newest version atomically. The payload holds only
// aggregated centroids and seed estimates, never per-user identifiers.
type ArchetypeSnapshot struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Version int       `gorm:"column:version;not null;uniqueIndex" json:"version"`

	// {archetypes: [{bucket, centroid, weight, seed_estimates}], trained_at}
	Payload datatypes.JSON `gorm:"type:jsonb;column:payload;not null" json:"payload"`

	SampleSize  int       `gorm:"column:sample_size;not null;default:0" json:"sample_size"`
	PublishedAt time.Time `gorm:"column:published_at;not null;index" json:"published_at"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (ArchetypeSnapshot) TableName() string { return "archetype_snapshot" }
