package profile_refresh

import (
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/gcp"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/profile"
	"github.com/yungbote/rewardcore-backend/internal/realtime/bus"
)

type Pipeline struct {
	db           *gorm.DB
	log          *logger.Logger
	states       repos.UserStateRepo
	profiles     repos.SocialProfileRepo
	badges       repos.ProfileBadgeRepo
	actions      repos.ActionSpecRepo
	fraudSignals repos.FraudSignalRepo
	renderer     *profile.CardRenderer
	buckets      gcp.BucketService
	bus          bus.Bus
	trustCfg     profile.TrustConfig
}

// New wires the derivation job. renderer and buckets may be nil: the profile
// still derives and persists, it just carries no display asset.
func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	states repos.UserStateRepo,
	profiles repos.SocialProfileRepo,
	badges repos.ProfileBadgeRepo,
	actions repos.ActionSpecRepo,
	fraudSignals repos.FraudSignalRepo,
	renderer *profile.CardRenderer,
	buckets gcp.BucketService,
	b bus.Bus,
) *Pipeline {
	return &Pipeline{
		db:           db,
		log:          baseLog.With("job", "profile_refresh"),
		states:       states,
		profiles:     profiles,
		badges:       badges,
		actions:      actions,
		fraudSignals: fraudSignals,
		renderer:     renderer,
		buckets:      buckets,
		bus:          b,
		trustCfg:     profile.DefaultTrustConfig(),
	}
}

func (p *Pipeline) Type() string { return types.JobTypeProfileRefresh }
