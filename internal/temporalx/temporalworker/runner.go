package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/repos"
	jobrt "github.com/yungbote/rewardcore-backend/internal/jobs/runtime"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/services"
	"github.com/yungbote/rewardcore-backend/internal/temporalx"
	"github.com/yungbote/rewardcore-backend/internal/temporalx/jobrun"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"
)

// Runner hosts the Temporal worker that executes job_run workflows. It is the
// alternative to the polling worker: the app starts exactly one of the two.
type Runner struct {
	log *logger.Logger

	tc       temporalsdkclient.Client
	db       *gorm.DB
	jobRepo  repos.JobRunRepo
	registry *jobrt.Registry
	notify   services.JobNotifier
}

func NewRunner(
	log *logger.Logger,
	tc temporalsdkclient.Client,
	db *gorm.DB,
	jobRepo repos.JobRunRepo,
	registry *jobrt.Registry,
	notify services.JobNotifier,
) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if db == nil || jobRepo == nil || registry == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	return &Runner{
		log:      log,
		tc:       tc,
		db:       db,
		jobRepo:  jobRepo,
		registry: registry,
		notify:   notify,
	}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	if r == nil || r.tc == nil {
		return fmt.Errorf("temporal worker not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := temporalx.LoadConfig()
	autoRegister := envutil.Bool("TEMPORAL_AUTO_REGISTER_NAMESPACE", false)
	if r.log != nil {
		r.log.Info("Starting Temporal worker", "address", cfg.Address, "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue)
	}

	// Local/self-hosted convenience: ensure the namespace exists before
	// polling. Cloud namespaces are pre-created with auto-register off.
	if autoRegister {
		if err := temporalx.EnsureNamespace(ctx, r.tc, cfg.Namespace, r.log); err != nil && r.log != nil {
			r.log.Warn("Temporal namespace ensure failed; worker will retry on start", "namespace", cfg.Namespace, "error", err)
		}
	}

	maxWait := time.Duration(envutil.IntRange("TEMPORAL_WORKER_START_MAX_WAIT_SECONDS", 60, 0, 3600)) * time.Second
	base := time.Duration(envutil.IntRange("TEMPORAL_WORKER_START_BACKOFF_MS", 250, 1, 60000)) * time.Millisecond
	maxSleep := time.Duration(envutil.IntRange("TEMPORAL_WORKER_START_BACKOFF_MAX_MS", 5000, 1, 300000)) * time.Millisecond
	deadline := time.Now().Add(maxWait)

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		w, err := r.newWorker(cfg)
		if err != nil {
			return err
		}
		startErr := w.Start()
		if startErr == nil {
			go func() {
				<-ctx.Done()
				w.Stop()
			}()
			if r.log != nil {
				r.log.Info("Temporal worker started", "namespace", cfg.Namespace, "task_queue", cfg.TaskQueue, "attempts", attempt)
			}
			return nil
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		missingNamespace := errors.As(startErr, &nfe)
		if missingNamespace && autoRegister {
			// Create the namespace, then let the loop retry the start.
			_ = temporalx.EnsureNamespace(ctx, r.tc, cfg.Namespace, r.log)
		}
		if maxWait <= 0 || time.Now().After(deadline) {
			if missingNamespace {
				// Will never heal without config changes.
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", cfg.Namespace, startErr)
			}
			return startErr
		}
		if r.log != nil {
			r.log.Warn("Temporal worker failed to start; retrying", "namespace", cfg.Namespace, "attempt", attempt, "error", startErr)
		}

		sleep := base
		for i := 1; i < attempt && sleep < maxSleep; i++ {
			sleep *= 2
		}
		if sleep > maxSleep {
			sleep = maxSleep
		}
		time.Sleep(sleep)
	}
}

func (r *Runner) newWorker(cfg temporalx.Config) (worker.Worker, error) {
	if r == nil || r.tc == nil {
		return nil, fmt.Errorf("temporal worker not initialized")
	}
	concurrency := envutil.IntRange("WORKER_CONCURRENCY", 4, 1, 64)

	w := worker.New(r.tc, cfg.TaskQueue, worker.Options{
		// Workflow and activity concurrency are separately tunable.
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})

	acts := &jobrun.Activities{
		Log:      r.log,
		DB:       r.db,
		Jobs:     r.jobRepo,
		Registry: r.registry,
		Notify:   r.notify,
	}

	w.RegisterWorkflowWithOptions(jobrun.Workflow, workflow.RegisterOptions{Name: jobrun.WorkflowName})
	w.RegisterActivityWithOptions(acts.Tick, activity.RegisterOptions{Name: jobrun.ActivityTick})
	return w, nil
}
