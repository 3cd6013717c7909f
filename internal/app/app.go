package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/yungbote/rewardcore-backend/internal/data/db"
	types "github.com/yungbote/rewardcore-backend/internal/domain"
	apihttp "github.com/yungbote/rewardcore-backend/internal/http"
	"github.com/yungbote/rewardcore-backend/internal/observability"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
	"github.com/yungbote/rewardcore-backend/internal/realtime/bus"
	"github.com/yungbote/rewardcore-backend/internal/temporalx"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services

	bus          bus.Bus
	dedupe       bus.Deduper
	temporal     temporalsdkclient.Client
	metrics      *observability.Metrics
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig()

	metrics := observability.Init(log)
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "rewardcore-api",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	var b bus.Bus
	var dedupe bus.Deduper
	if cfg.RedisAddr != "" {
		rb, err := bus.NewRedisBus(log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init redis bus: %w", err)
		}
		b = rb
		dedupe = rb
	} else {
		log.Warn("REDIS_ADDR not set; cross-instance fan-out and the ingest dedupe fast path are disabled")
	}

	tc, err := temporalx.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init temporal client: %w", err)
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, b, dedupe, tc)
	if err != nil {
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, serviceset)
	middleware := wireMiddleware(log, serviceset)
	router := wireRouter(log, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		bus:          b,
		dedupe:       dedupe,
		temporal:     tc,
		metrics:      metrics,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	// One job execution path per process: Temporal when a client was dialed,
	// the polling worker otherwise.
	if a.Services.TemporalRunner != nil {
		if err := a.Services.TemporalRunner.Start(ctx); err != nil {
			a.Log.Error("Temporal runner failed to start; falling back to polling worker", "error", err)
			if a.Services.JobWorker != nil {
				a.Services.JobWorker.Start(ctx)
			}
		}
	} else if a.Services.JobWorker != nil {
		a.Services.JobWorker.Start(ctx)
	}

	if a.bus != nil {
		if err := a.bus.StartForwarder(ctx, a.onBusEvent); err != nil {
			a.Log.Warn("Bus forwarder failed to start", "error", err)
		}
	}

	if a.metrics != nil {
		a.metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		a.metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		a.metrics.StartRedisCollector(ctx, a.Log, a.Cfg.RedisAddr)
		a.metrics.StartJobQueueCollector(ctx, a.Log, a.DB)
		a.metrics.StartCatalogCollector(ctx, a.Log, a.DB)
		a.metrics.StartSLOEvaluator(ctx, a.Log)
	}

	go a.runScheduler(ctx)
}

// onBusEvent reacts to cross-instance fan-out. Catalog changes drop the local
// snapshot so the next decision reads the new catalog instead of waiting out
// the TTL.
func (a *App) onBusEvent(ev bus.Event) {
	if ev.Kind == bus.EventCatalogChanged && a.Services.Catalog != nil {
		a.Services.Catalog.Invalidate()
	}
}

// runScheduler drives the standing cadences: synthesis passes and archetype
// retraining. Both are safe to double-fire (enqueues debounce on runnable
// rows and the synthesis runner serializes under an advisory lock), so the
// redis claim is best effort.
func (a *App) runScheduler(ctx context.Context) {
	synthTicker := time.NewTicker(a.Cfg.SynthesisInterval)
	defer synthTicker.Stop()
	archTicker := time.NewTicker(a.Cfg.ArchetypeRefreshInterval)
	defer archTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-synthTicker.C:
			if !a.claimCadence(ctx, "schedule:synthesis", a.Cfg.SynthesisInterval/2) {
				continue
			}
			if _, err := a.Services.Synthesis.Trigger(dbctx.Context{Ctx: ctx}, types.TriggerSchedule); err != nil {
				a.Log.Warn("Scheduled synthesis trigger failed", "error", err)
			}
		case <-archTicker.C:
			if !a.claimCadence(ctx, "schedule:archetype_refresh", a.Cfg.ArchetypeRefreshInterval/2) {
				continue
			}
			if _, _, err := a.Services.Jobs.EnqueueArchetypeRefreshIfNeeded(dbctx.Context{Ctx: ctx}, types.TriggerSchedule); err != nil {
				a.Log.Warn("Scheduled archetype refresh enqueue failed", "error", err)
			}
		}
	}
}

// claimCadence takes the cross-instance slot for one cadence firing. Without
// redis every instance claims, which is correct for single-instance deploys
// and merely redundant otherwise.
func (a *App) claimCadence(ctx context.Context, key string, ttl time.Duration) bool {
	if a.dedupe == nil {
		return true
	}
	seen, err := a.dedupe.Seen(ctx, key, ttl)
	if err != nil {
		a.Log.Warn("Cadence claim check failed; firing anyway", "key", key, "error", err)
		return true
	}
	return !seen
}

// Run serves HTTP until SIGINT/SIGTERM, then drains in-flight requests
// before returning.
func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return apihttp.NewServer(a.Router, a.Log, 15*time.Second).Serve(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.temporal != nil {
		a.temporal.Close()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil && a.Log != nil {
			a.Log.Warn("Bus close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil && a.Log != nil {
			a.Log.Warn("Trace exporter shutdown failed", "error", err)
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
