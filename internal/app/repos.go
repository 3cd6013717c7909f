package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type Repos struct {
	ServiceAccount      repos.ServiceAccountRepo
	BehaviorEvent       repos.BehaviorEventRepo
	BehaviorEventCursor repos.BehaviorEventCursorRepo
	UserState           repos.UserStateRepo
	ActionSpec          repos.ActionSpecRepo
	UserActionStat      repos.UserActionStatRepo
	Decision            repos.DecisionRepo
	Outcome             repos.OutcomeRepo
	ArmEstimate         repos.ArmEstimateRepo
	FraudSignal         repos.FraudSignalRepo
	FraudAssessment     repos.FraudAssessmentRepo
	Wellbeing           repos.WellbeingAssessmentRepo
	ConstraintExclusion repos.ConstraintExclusionRepo
	SynthesisRun        repos.SynthesisRunRepo
	ClusterObservation  repos.ClusterObservationRepo
	ConceptCooldown     repos.ConceptCooldownRepo
	FairnessAudit       repos.FairnessAuditRepo
	SocialProfile       repos.SocialProfileRepo
	ProfileBadge        repos.ProfileBadgeRepo
	ArchetypeSnapshot   repos.ArchetypeSnapshotRepo
	JobRun              repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		ServiceAccount:      repos.NewServiceAccountRepo(db, log),
		BehaviorEvent:       repos.NewBehaviorEventRepo(db, log),
		BehaviorEventCursor: repos.NewBehaviorEventCursorRepo(db, log),
		UserState:           repos.NewUserStateRepo(db, log),
		ActionSpec:          repos.NewActionSpecRepo(db, log),
		UserActionStat:      repos.NewUserActionStatRepo(db, log),
		Decision:            repos.NewDecisionRepo(db, log),
		Outcome:             repos.NewOutcomeRepo(db, log),
		ArmEstimate:         repos.NewArmEstimateRepo(db, log),
		FraudSignal:         repos.NewFraudSignalRepo(db, log),
		FraudAssessment:     repos.NewFraudAssessmentRepo(db, log),
		Wellbeing:           repos.NewWellbeingAssessmentRepo(db, log),
		ConstraintExclusion: repos.NewConstraintExclusionRepo(db, log),
		SynthesisRun:        repos.NewSynthesisRunRepo(db, log),
		ClusterObservation:  repos.NewClusterObservationRepo(db, log),
		ConceptCooldown:     repos.NewConceptCooldownRepo(db, log),
		FairnessAudit:       repos.NewFairnessAuditRepo(db, log),
		SocialProfile:       repos.NewSocialProfileRepo(db, log),
		ProfileBadge:        repos.NewProfileBadgeRepo(db, log),
		ArchetypeSnapshot:   repos.NewArchetypeSnapshotRepo(db, log),
		JobRun:              repos.NewJobRunRepo(db, log),
	}
}
