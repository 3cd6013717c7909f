package archetype_refresh

import (
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/policy"
)

// Pipeline retrains the archetype snapshot from the warm population and
// publishes it: persist the new version, swap the live prior, move warm
// users onto the new buckets. Snapshot payloads carry aggregates only,
// never user identifiers.
type Pipeline struct {
	db  *gorm.DB
	log *logger.Logger

	states    repos.UserStateRepo
	snapshots repos.ArchetypeSnapshotRepo
	arms      repos.ArmEstimateRepo
	actions   repos.ActionSpecRepo

	prior *policy.Prior
	cfg   policy.TrainConfig
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	states repos.UserStateRepo,
	snapshots repos.ArchetypeSnapshotRepo,
	arms repos.ArmEstimateRepo,
	actions repos.ActionSpecRepo,
	prior *policy.Prior,
) *Pipeline {
	return &Pipeline{
		db:        db,
		log:       baseLog.With("job", "archetype_refresh"),
		states:    states,
		snapshots: snapshots,
		arms:      arms,
		actions:   actions,
		prior:     prior,
		cfg:       policy.NewTrainConfig(),
	}
}

func (p *Pipeline) Type() string { return types.JobTypeArchetypeRefresh }
