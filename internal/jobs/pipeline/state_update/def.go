package state_update

import (
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/sequence"
	"github.com/yungbote/rewardcore-backend/internal/services"
)

type Pipeline struct {
	db           *gorm.DB
	log          *logger.Logger
	events       repos.BehaviorEventRepo
	cursors      repos.BehaviorEventCursorRepo
	states       repos.UserStateRepo
	fraudSignals repos.FraudSignalRepo
	fraudAssess  repos.FraudAssessmentRepo
	wellbeing    repos.WellbeingAssessmentRepo
	jobSvc       services.JobService
	model        *sequence.Model
	detector     *constraint.FraudDetector
	assessor     *constraint.WellbeingAssessor
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	events repos.BehaviorEventRepo,
	cursors repos.BehaviorEventCursorRepo,
	states repos.UserStateRepo,
	fraudSignals repos.FraudSignalRepo,
	fraudAssess repos.FraudAssessmentRepo,
	wellbeing repos.WellbeingAssessmentRepo,
	jobSvc services.JobService,
) *Pipeline {
	return &Pipeline{
		db:           db,
		log:          baseLog.With("job", "state_update"),
		events:       events,
		cursors:      cursors,
		states:       states,
		fraudSignals: fraudSignals,
		fraudAssess:  fraudAssess,
		wellbeing:    wellbeing,
		jobSvc:       jobSvc,
		model:        sequence.NewModel(),
		detector:     constraint.NewFraudDetector(),
		assessor:     constraint.NewWellbeingAssessor(),
	}
}

func (p *Pipeline) Type() string { return types.JobTypeStateUpdate }
