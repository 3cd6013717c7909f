package domain

import (
	"github.com/yungbote/rewardcore-backend/internal/domain/archetypes"
	"github.com/yungbote/rewardcore-backend/internal/domain/auth"
	"github.com/yungbote/rewardcore-backend/internal/domain/catalog"
	"github.com/yungbote/rewardcore-backend/internal/domain/decisions"
	"github.com/yungbote/rewardcore-backend/internal/domain/events"
	"github.com/yungbote/rewardcore-backend/internal/domain/jobs"
	"github.com/yungbote/rewardcore-backend/internal/domain/profile"
	"github.com/yungbote/rewardcore-backend/internal/domain/signals"
	"github.com/yungbote/rewardcore-backend/internal/domain/state"
	"github.com/yungbote/rewardcore-backend/internal/domain/synthesis"
)

const (
	EventSessionStarted      = events.EventSessionStarted
	EventSessionEnded        = events.EventSessionEnded
	EventActivityStarted     = events.EventActivityStarted
	EventActivityCompleted   = events.EventActivityCompleted
	EventActivityAbandoned   = events.EventActivityAbandoned
	EventChallengeSubmitted  = events.EventChallengeSubmitted
	EventContentPublished    = events.EventContentPublished
	EventSkillAssessment     = events.EventSkillAssessment
	EventPeerReviewGiven     = events.EventPeerReviewGiven
	EventPeerReviewReceived  = events.EventPeerReviewReceived
	EventCollaborationJoined = events.EventCollaborationJoined
	EventFeedbackGiven       = events.EventFeedbackGiven
	EventRewardViewed        = events.EventRewardViewed
	EventRewardRedeemed      = events.EventRewardRedeemed
	EventEnrichmentCalendar  = events.EventEnrichmentCalendar
	EventEnrichmentFitness   = events.EventEnrichmentFitness
	EventEnrichmentPortfolio = events.EventEnrichmentPortfolio

	SourceApp        = events.SourceApp
	SourceWeb        = events.SourceWeb
	SourcePartner    = events.SourcePartner
	SourceEnrichment = events.SourceEnrichment

	DomainSkillGames            = events.DomainSkillGames
	DomainCreativeChallenges    = events.DomainCreativeChallenges
	DomainCommunityEngagement   = events.DomainCommunityEngagement
	DomainFreelanceProjects     = events.DomainFreelanceProjects
	DomainLearningModules       = events.DomainLearningModules
	DomainContentCreation       = events.DomainContentCreation
	DomainWellnessActivities    = events.DomainWellnessActivities
	DomainCollaborativeProjects = events.DomainCollaborativeProjects

	ActionStatusActive  = catalog.ActionStatusActive
	ActionStatusBeta    = catalog.ActionStatusBeta
	ActionStatusRetired = catalog.ActionStatusRetired

	RewardTypePoints            = catalog.RewardTypePoints
	RewardTypeStreakBonus       = catalog.RewardTypeStreakBonus
	RewardTypeSkillBadge        = catalog.RewardTypeSkillBadge
	RewardTypeChoiceOpportunity = catalog.RewardTypeChoiceOpportunity
	RewardTypeSocialRecognition = catalog.RewardTypeSocialRecognition
	RewardTypeOpportunityUnlock = catalog.RewardTypeOpportunityUnlock

	IntensityLow    = catalog.IntensityLow
	IntensityMedium = catalog.IntensityMedium
	IntensityHigh   = catalog.IntensityHigh

	DecisionKindPolicy         = decisions.DecisionKindPolicy
	DecisionKindColdStart      = decisions.DecisionKindColdStart
	DecisionKindBudgetFallback = decisions.DecisionKindBudgetFallback
	DecisionKindNoReward       = decisions.DecisionKindNoReward

	OutcomeKindReEngaged     = decisions.OutcomeKindReEngaged
	OutcomeKindBehaviorDelta = decisions.OutcomeKindBehaviorDelta
	OutcomeKindSatisfaction  = decisions.OutcomeKindSatisfaction

	FraudSignalVelocity      = signals.FraudSignalVelocity
	FraudSignalRegularity    = signals.FraudSignalRegularity
	FraudSignalBiometric     = signals.FraudSignalBiometric
	FraudSignalTemporal      = signals.FraudSignalTemporal
	FraudSignalDeviceSharing = signals.FraudSignalDeviceSharing
	FraudSignalNewDevice     = signals.FraudSignalNewDevice

	FraudTierAllow  = signals.FraudTierAllow
	FraudTierReview = signals.FraudTierReview
	FraudTierBlock  = signals.FraudTierBlock

	WellbeingStatusOK      = signals.WellbeingStatusOK
	WellbeingStatusOverCap = signals.WellbeingStatusOverCap

	TrustTierNew      = profile.TrustTierNew
	TrustTierStandard = profile.TrustTierStandard
	TrustTierTrusted  = profile.TrustTierTrusted
	TrustTierExemplar = profile.TrustTierExemplar

	RunStatusPending   = synthesis.RunStatusPending
	RunStatusRunning   = synthesis.RunStatusRunning
	RunStatusCompleted = synthesis.RunStatusCompleted
	RunStatusFailed    = synthesis.RunStatusFailed
	RunStatusAborted   = synthesis.RunStatusAborted

	TriggerSchedule = synthesis.TriggerSchedule
	TriggerOperator = synthesis.TriggerOperator
	TriggerWorkflow = synthesis.TriggerWorkflow

	JobStatusPending   = jobs.JobStatusPending
	JobStatusRunning   = jobs.JobStatusRunning
	JobStatusCompleted = jobs.JobStatusCompleted
	JobStatusFailed    = jobs.JobStatusFailed

	JobTypeStateUpdate      = jobs.JobTypeStateUpdate
	JobTypeOutcomeApply     = jobs.JobTypeOutcomeApply
	JobTypeProfileRefresh   = jobs.JobTypeProfileRefresh
	JobTypeSynthesisRun     = jobs.JobTypeSynthesisRun
	JobTypeArchetypeRefresh = jobs.JobTypeArchetypeRefresh

	ScopeIngest  = auth.ScopeIngest
	ScopeDecide  = auth.ScopeDecide
	ScopeProfile = auth.ScopeProfile
	ScopeAdmin   = auth.ScopeAdmin
)

type BehaviorEvent = events.BehaviorEvent
type BehaviorEventCursor = events.BehaviorEventCursor

type UserState = state.UserState

type ActionSpec = catalog.ActionSpec
type UserActionStat = catalog.UserActionStat

type Decision = decisions.Decision
type Outcome = decisions.Outcome
type ArmEstimate = decisions.ArmEstimate

type FraudSignal = signals.FraudSignal
type FraudAssessment = signals.FraudAssessment
type WellbeingAssessment = signals.WellbeingAssessment
type ConstraintExclusion = signals.ConstraintExclusion

type SynthesisRun = synthesis.SynthesisRun
type ClusterObservation = synthesis.ClusterObservation
type ConceptCooldown = synthesis.ConceptCooldown
type FairnessAudit = synthesis.FairnessAudit

type SocialProfile = profile.SocialProfile
type ProfileBadge = profile.ProfileBadge

type ArchetypeSnapshot = archetypes.ArchetypeSnapshot

type ServiceAccount = auth.ServiceAccount

type JobRun = jobs.JobRun

// AllModels is the automigration list, ordered so referenced tables come
// first.
func AllModels() []interface{} {
	return []interface{}{
		&ServiceAccount{},
		&BehaviorEvent{},
		&BehaviorEventCursor{},
		&UserState{},
		&ActionSpec{},
		&UserActionStat{},
		&Decision{},
		&Outcome{},
		&ArmEstimate{},
		&FraudSignal{},
		&FraudAssessment{},
		&WellbeingAssessment{},
		&ConstraintExclusion{},
		&SynthesisRun{},
		&ClusterObservation{},
		&ConceptCooldown{},
		&FairnessAudit{},
		&SocialProfile{},
		&ProfileBadge{},
		&ArchetypeSnapshot{},
		&JobRun{},
	}
}
