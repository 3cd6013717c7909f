package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos/archetypes"
	"github.com/yungbote/rewardcore-backend/internal/data/repos/auth"
	"github.com/yungbote/rewardcore-backend/internal/data/repos/catalog"
	"github.com/yungbote/rewardcore-backend/internal/data/repos/decisions"
	"github.com/yungbote/rewardcore-backend/internal/data/repos/events"
	"github.com/yungbote/rewardcore-backend/internal/data/repos/jobs"
	"github.com/yungbote/rewardcore-backend/internal/data/repos/profile"
	"github.com/yungbote/rewardcore-backend/internal/data/repos/signals"
	"github.com/yungbote/rewardcore-backend/internal/data/repos/state"
	"github.com/yungbote/rewardcore-backend/internal/data/repos/synthesis"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type ServiceAccountRepo = auth.ServiceAccountRepo

type BehaviorEventRepo = events.BehaviorEventRepo
type BehaviorEventCursorRepo = events.BehaviorEventCursorRepo

type UserStateRepo = state.UserStateRepo

type ActionSpecRepo = catalog.ActionSpecRepo
type UserActionStatRepo = catalog.UserActionStatRepo

type DecisionRepo = decisions.DecisionRepo
type OutcomeRepo = decisions.OutcomeRepo
type ArmEstimateRepo = decisions.ArmEstimateRepo

type FraudSignalRepo = signals.FraudSignalRepo
type FraudAssessmentRepo = signals.FraudAssessmentRepo
type WellbeingAssessmentRepo = signals.WellbeingAssessmentRepo
type ConstraintExclusionRepo = signals.ConstraintExclusionRepo

type SynthesisRunRepo = synthesis.SynthesisRunRepo
type ClusterObservationRepo = synthesis.ClusterObservationRepo
type ConceptCooldownRepo = synthesis.ConceptCooldownRepo
type FairnessAuditRepo = synthesis.FairnessAuditRepo

type SocialProfileRepo = profile.SocialProfileRepo
type ProfileBadgeRepo = profile.ProfileBadgeRepo

type ArchetypeSnapshotRepo = archetypes.ArchetypeSnapshotRepo

type JobRunRepo = jobs.JobRunRepo

func NewServiceAccountRepo(db *gorm.DB, baseLog *logger.Logger) ServiceAccountRepo {
	return auth.NewServiceAccountRepo(db, baseLog)
}

func NewBehaviorEventRepo(db *gorm.DB, baseLog *logger.Logger) BehaviorEventRepo {
	return events.NewBehaviorEventRepo(db, baseLog)
}
func NewBehaviorEventCursorRepo(db *gorm.DB, baseLog *logger.Logger) BehaviorEventCursorRepo {
	return events.NewBehaviorEventCursorRepo(db, baseLog)
}

func NewUserStateRepo(db *gorm.DB, baseLog *logger.Logger) UserStateRepo {
	return state.NewUserStateRepo(db, baseLog)
}

func NewActionSpecRepo(db *gorm.DB, baseLog *logger.Logger) ActionSpecRepo {
	return catalog.NewActionSpecRepo(db, baseLog)
}
func NewUserActionStatRepo(db *gorm.DB, baseLog *logger.Logger) UserActionStatRepo {
	return catalog.NewUserActionStatRepo(db, baseLog)
}

func NewDecisionRepo(db *gorm.DB, baseLog *logger.Logger) DecisionRepo {
	return decisions.NewDecisionRepo(db, baseLog)
}
func NewOutcomeRepo(db *gorm.DB, baseLog *logger.Logger) OutcomeRepo {
	return decisions.NewOutcomeRepo(db, baseLog)
}
func NewArmEstimateRepo(db *gorm.DB, baseLog *logger.Logger) ArmEstimateRepo {
	return decisions.NewArmEstimateRepo(db, baseLog)
}

func NewFraudSignalRepo(db *gorm.DB, baseLog *logger.Logger) FraudSignalRepo {
	return signals.NewFraudSignalRepo(db, baseLog)
}
func NewFraudAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) FraudAssessmentRepo {
	return signals.NewFraudAssessmentRepo(db, baseLog)
}
func NewWellbeingAssessmentRepo(db *gorm.DB, baseLog *logger.Logger) WellbeingAssessmentRepo {
	return signals.NewWellbeingAssessmentRepo(db, baseLog)
}
func NewConstraintExclusionRepo(db *gorm.DB, baseLog *logger.Logger) ConstraintExclusionRepo {
	return signals.NewConstraintExclusionRepo(db, baseLog)
}

func NewSynthesisRunRepo(db *gorm.DB, baseLog *logger.Logger) SynthesisRunRepo {
	return synthesis.NewSynthesisRunRepo(db, baseLog)
}
func NewClusterObservationRepo(db *gorm.DB, baseLog *logger.Logger) ClusterObservationRepo {
	return synthesis.NewClusterObservationRepo(db, baseLog)
}
func NewConceptCooldownRepo(db *gorm.DB, baseLog *logger.Logger) ConceptCooldownRepo {
	return synthesis.NewConceptCooldownRepo(db, baseLog)
}
func NewFairnessAuditRepo(db *gorm.DB, baseLog *logger.Logger) FairnessAuditRepo {
	return synthesis.NewFairnessAuditRepo(db, baseLog)
}

func NewSocialProfileRepo(db *gorm.DB, baseLog *logger.Logger) SocialProfileRepo {
	return profile.NewSocialProfileRepo(db, baseLog)
}
func NewProfileBadgeRepo(db *gorm.DB, baseLog *logger.Logger) ProfileBadgeRepo {
	return profile.NewProfileBadgeRepo(db, baseLog)
}

func NewArchetypeSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) ArchetypeSnapshotRepo {
	return archetypes.NewArchetypeSnapshotRepo(db, baseLog)
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, baseLog)
}
