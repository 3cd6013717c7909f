package outcome_apply

import (
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type Pipeline struct {
	db        *gorm.DB
	log       *logger.Logger
	decisions repos.DecisionRepo
	outcomes  repos.OutcomeRepo
	arms      repos.ArmEstimateRepo
	states    repos.UserStateRepo
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	decisions repos.DecisionRepo,
	outcomes repos.OutcomeRepo,
	arms repos.ArmEstimateRepo,
	states repos.UserStateRepo,
) *Pipeline {
	return &Pipeline{
		db:        db,
		log:       baseLog.With("job", "outcome_apply"),
		decisions: decisions,
		outcomes:  outcomes,
		arms:      arms,
		states:    states,
	}
}

func (p *Pipeline) Type() string { return types.JobTypeOutcomeApply }
