package events

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// Session
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
	// Activity lifecycle
	EventActivityStarted   = "activity_started"
	EventActivityCompleted = "activity_completed"
	EventActivityAbandoned = "activity_abandoned"
	// Contribution
	EventChallengeSubmitted = "challenge_submitted" // payload: {domain, difficulty, quality}
	EventContentPublished   = "content_published"   // payload: {domain, audience_size}
	EventSkillAssessment    = "skill_assessment"    // payload: {domain, difficulty, score}
	// Social signal
	EventPeerReviewGiven     = "peer_review_given"
	EventPeerReviewReceived  = "peer_review_received" // payload: {rating}
	EventCollaborationJoined = "collaboration_joined"
	EventFeedbackGiven       = "feedback_given" // payload: {satisfaction}
	// Reward loop
	EventRewardViewed   = "reward_viewed"
	EventRewardRedeemed = "reward_redeemed"
	// Opt-in enrichment (never required; absence must not degrade decisions)
	EventEnrichmentCalendar  = "enrichment_calendar"  // payload: {free_hours}
	EventEnrichmentFitness   = "enrichment_fitness"   // payload: {active_minutes}
	EventEnrichmentPortfolio = "enrichment_portfolio" // payload: {projects, breadth}
)

const (
	SourceApp        = "app"
	SourceWeb        = "web"
	SourcePartner    = "partner"
	SourceEnrichment = "enrichment"
)

// Activity domains the platform observes. The encoder reserves one lane per
// domain, so the order here is frozen per encoder schema version.
const (
	DomainSkillGames            = "skill_games"
	DomainCreativeChallenges    = "creative_challenges"
	DomainCommunityEngagement   = "community_engagement"
	DomainFreelanceProjects     = "freelance_projects"
	DomainLearningModules       = "learning_modules"
	DomainContentCreation       = "content_creation"
	DomainWellnessActivities    = "wellness_activities"
	DomainCollaborativeProjects = "collaborative_projects"
)

// BehaviorEvent is the immutable ingestion record. ClientEventID is the
// caller-provided idempotency key; a duplicate (user_id, client_event_id)
// insert is a no-op.
type BehaviorEvent struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index;index:idx_behavior_event_client,unique,priority:1" json:"user_id"`
	ClientEventID string    `gorm:"column:client_event_id;not null;index:idx_behavior_event_client,unique,priority:2" json:"client_event_id"`
	// When the action happened (client clock). CreatedAt is server receive time.
	OccurredAt time.Time `gorm:"column:occurred_at;not null;index" json:"occurred_at"`
	SessionID  uuid.UUID `gorm:"type:uuid;column:session_id;index" json:"session_id"`

	ActionType string `gorm:"column:action_type;not null;index" json:"action_type"`
	Domain     string `gorm:"column:domain;index" json:"domain,omitempty"`
	Source     string `gorm:"column:source;not null;index" json:"source"`

	DeviceFingerprint string `gorm:"column:device_fingerprint;index" json:"device_fingerprint,omitempty"`

	Payload   datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload"`
	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (BehaviorEvent) TableName() string { return "behavior_event" }

// BehaviorEventCursor is the per-consumer watermark used to apply events to
// user state as a sequential per-user log.
type BehaviorEventCursor struct {
	ID       uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index:idx_behavior_event_cursor,unique,priority:1" json:"user_id"`
	Consumer string    `gorm:"column:consumer;not null;index:idx_behavior_event_cursor,unique,priority:2" json:"consumer"`

	LastCreatedAt *time.Time     `gorm:"column:last_created_at;index" json:"last_created_at,omitempty"`
	LastEventID   *uuid.UUID     `gorm:"type:uuid;column:last_event_id" json:"last_event_id,omitempty"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (BehaviorEventCursor) TableName() string { return "behavior_event_cursor" }
