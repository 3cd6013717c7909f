package app

import (
	"context"
	"fmt"

	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/constraint"
	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	"github.com/yungbote/rewardcore-backend/internal/jobs/pipeline/archetype_refresh"
	"github.com/yungbote/rewardcore-backend/internal/jobs/pipeline/outcome_apply"
	"github.com/yungbote/rewardcore-backend/internal/jobs/pipeline/profile_refresh"
	"github.com/yungbote/rewardcore-backend/internal/jobs/pipeline/state_update"
	"github.com/yungbote/rewardcore-backend/internal/jobs/pipeline/synthesis_run"
	"github.com/yungbote/rewardcore-backend/internal/jobs/runtime"
	"github.com/yungbote/rewardcore-backend/internal/jobs/worker"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/gcp"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/policy"
	"github.com/yungbote/rewardcore-backend/internal/profile"
	"github.com/yungbote/rewardcore-backend/internal/realtime/bus"
	"github.com/yungbote/rewardcore-backend/internal/services"
	"github.com/yungbote/rewardcore-backend/internal/synthesis"
	"github.com/yungbote/rewardcore-backend/internal/temporalx"
	"github.com/yungbote/rewardcore-backend/internal/temporalx/temporalworker"
)

type Services struct {
	Notifier  services.JobNotifier
	Jobs      services.JobService
	Events    services.EventService
	Catalog   services.CatalogService
	Decisions services.DecisionService
	Outcomes  services.OutcomeService
	Profiles  services.ProfileService
	Synthesis services.SynthesisService
	Auth      services.AuthService

	Prior    *policy.Prior
	Registry *runtime.Registry

	// Exactly one of these runs: the Temporal runner when a client was
	// dialed, the polling worker otherwise.
	JobWorker      *worker.Worker
	TemporalRunner *temporalworker.Runner
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	r Repos,
	b bus.Bus,
	dedupe bus.Deduper,
	tc temporalsdkclient.Client,
) (Services, error) {
	log.Info("Wiring services...")

	notifier := services.NewJobNotifier(b)
	jobSvc := services.NewJobService(db, log, r.JobRun, notifier, tc, temporalx.LoadConfig().TaskQueue)

	eventSvc := services.NewEventService(db, log, r.BehaviorEvent, dedupe, jobSvc)
	catalogSvc := services.NewCatalogService(db, log, r.ActionSpec, r.FairnessAudit, b)

	filter := constraint.NewFilter()
	bandit := policy.NewBandit()
	prior := policy.NewPrior()
	warmLoadPrior(log, r.ArchetypeSnapshot, prior)

	decisionSvc := services.NewDecisionService(
		db, log,
		r.UserState,
		r.Decision,
		r.ConstraintExclusion,
		r.UserActionStat,
		r.ArmEstimate,
		r.ActionSpec,
		r.FraudAssessment,
		r.Wellbeing,
		catalogSvc,
		filter,
		bandit,
		prior,
		b,
	)
	outcomeSvc := services.NewOutcomeService(db, log, r.Decision, r.Outcome, jobSvc)
	profileSvc := services.NewProfileService(db, log, r.SocialProfile, jobSvc)
	synthSvc := services.NewSynthesisService(db, log, r.SynthesisRun, jobSvc)
	authSvc := services.NewAuthService(db, log, r.ServiceAccount, cfg.JWTSecretKey, cfg.AccessTokenTTL)

	synthRunner := synthesis.NewRunner(synthesis.Deps{
		DB:           db,
		Log:          log,
		Runs:         r.SynthesisRun,
		Observations: r.ClusterObservation,
		Cooldowns:    r.ConceptCooldown,
		Fairness:     r.FairnessAudit,
		Actions:      r.ActionSpec,
		States:       r.UserState,
		Outcomes:     r.Outcome,
		Decisions:    r.Decision,
	})

	// The renderer needs a font file; without one the profile pipeline still
	// derives and persists, it just skips the display asset.
	renderer, err := profile.NewCardRenderer(log)
	if err != nil {
		log.Warn("Profile card renderer unavailable; profiles will carry no display asset", "error", err)
		renderer = nil
	}

	var buckets gcp.BucketService
	if cfg.BadgeBucketName != "" {
		buckets, err = resolveBucketService(log, cfg)
		if err != nil {
			return Services{}, err
		}
	} else {
		log.Warn("BADGE_GCS_BUCKET_NAME not set; profile card uploads disabled")
	}

	registry := runtime.NewRegistry()
	handlers := []runtime.Handler{
		state_update.New(db, log, r.BehaviorEvent, r.BehaviorEventCursor, r.UserState, r.FraudSignal, r.FraudAssessment, r.Wellbeing, jobSvc),
		outcome_apply.New(db, log, r.Decision, r.Outcome, r.ArmEstimate, r.UserState),
		profile_refresh.New(db, log, r.UserState, r.SocialProfile, r.ProfileBadge, r.ActionSpec, r.FraudSignal, renderer, buckets, b),
		synthesis_run.New(db, log, synthRunner, r.SynthesisRun, b),
		archetype_refresh.New(db, log, r.UserState, r.ArchetypeSnapshot, r.ArmEstimate, r.ActionSpec, prior),
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return Services{}, fmt.Errorf("register job handler %q: %w", h.Type(), err)
		}
	}

	jobWorker := worker.NewWorker(db, log, r.JobRun, registry, notifier)

	var temporalRunner *temporalworker.Runner
	if tc != nil {
		temporalRunner, err = temporalworker.NewRunner(log, tc, db, r.JobRun, registry, notifier)
		if err != nil {
			return Services{}, fmt.Errorf("init temporal runner: %w", err)
		}
	}

	return Services{
		Notifier:       notifier,
		Jobs:           jobSvc,
		Events:         eventSvc,
		Catalog:        catalogSvc,
		Decisions:      decisionSvc,
		Outcomes:       outcomeSvc,
		Profiles:       profileSvc,
		Synthesis:      synthSvc,
		Auth:           authSvc,
		Prior:          prior,
		Registry:       registry,
		JobWorker:      jobWorker,
		TemporalRunner: temporalRunner,
	}, nil
}

// warmLoadPrior swaps the latest published archetype snapshot into the
// cold-start prior. No snapshot or a bad payload both leave the neutral
// prior in place: new users seed from the neutral bucket until the first
// archetype_refresh publishes.
func warmLoadPrior(log *logger.Logger, snapshots repos.ArchetypeSnapshotRepo, prior *policy.Prior) {
	row, err := snapshots.GetLatest(dbctx.Context{Ctx: context.Background()})
	if err != nil {
		log.Warn("Archetype snapshot load failed; starting on neutral prior", "error", err)
		return
	}
	if row == nil {
		log.Info("No archetype snapshot published yet; starting on neutral prior")
		return
	}
	snap, err := policy.ParseSnapshot(row.Version, row.Payload)
	if err != nil {
		log.Warn("Archetype snapshot parse failed; starting on neutral prior",
			"version", row.Version, "error", err)
		return
	}
	prior.Swap(snap)
	log.Info("Cold-start prior loaded",
		"version", snap.Version,
		"archetypes", len(snap.Archetypes),
		"sample_size", snap.SampleSize,
	)
}
