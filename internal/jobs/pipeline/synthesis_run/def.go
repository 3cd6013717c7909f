package synthesis_run

import (
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/realtime/bus"
	"github.com/yungbote/rewardcore-backend/internal/synthesis"
)

// Pipeline drives one synthesis pass for a pending run row. The runner owns
// admission and run-row bookkeeping; the pipeline owns job bookkeeping, run
// metrics and the catalog-changed broadcast.
type Pipeline struct {
	db     *gorm.DB
	log    *logger.Logger
	runner *synthesis.Runner
	runs   repos.SynthesisRunRepo
	bus    bus.Bus
}

func New(
	db *gorm.DB,
	baseLog *logger.Logger,
	runner *synthesis.Runner,
	runs repos.SynthesisRunRepo,
	b bus.Bus,
) *Pipeline {
	return &Pipeline{
		db:     db,
		log:    baseLog.With("job", "synthesis_run"),
		runner: runner,
		runs:   runs,
		bus:    b,
	}
}

func (p *Pipeline) Type() string { return types.JobTypeSynthesisRun }
