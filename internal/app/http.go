package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/rewardcore-backend/internal/http"
	httpH "github.com/yungbote/rewardcore-backend/internal/http/handlers"
	httpMW "github.com/yungbote/rewardcore-backend/internal/http/middleware"
	"github.com/yungbote/rewardcore-backend/internal/observability"
	"github.com/yungbote/rewardcore-backend/internal/platform/envutil"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health    *httpH.HealthHandler
	Auth      *httpH.AuthHandler
	Event     *httpH.EventHandler
	Decision  *httpH.DecisionHandler
	Outcome   *httpH.OutcomeHandler
	Profile   *httpH.ProfileHandler
	Action    *httpH.ActionHandler
	Synthesis *httpH.SynthesisHandler
	Job       *httpH.JobHandler
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(),
		Auth:      httpH.NewAuthHandler(services.Auth),
		Event:     httpH.NewEventHandler(services.Events),
		Decision:  httpH.NewDecisionHandler(services.Decisions),
		Outcome:   httpH.NewOutcomeHandler(services.Outcomes),
		Profile:   httpH.NewProfileHandler(services.Profiles),
		Action:    httpH.NewActionHandler(services.Catalog),
		Synthesis: httpH.NewSynthesisHandler(services.Synthesis),
		Job:       httpH.NewJobHandler(services.Jobs),
	}
}

func wireRouter(log *logger.Logger, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:     log,
		Metrics: metrics,
		Tracing: envutil.Bool("OTEL_ENABLED", false),

		AuthMiddleware: middleware.Auth,

		AuthHandler:      handlers.Auth,
		EventHandler:     handlers.Event,
		DecisionHandler:  handlers.Decision,
		OutcomeHandler:   handlers.Outcome,
		ProfileHandler:   handlers.Profile,
		ActionHandler:    handlers.Action,
		SynthesisHandler: handlers.Synthesis,
		JobHandler:       handlers.Job,

		HealthHandler: handlers.Health,
	})
}
