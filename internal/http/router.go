package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	types "github.com/yungbote/rewardcore-backend/internal/domain"
	httpH "github.com/yungbote/rewardcore-backend/internal/http/handlers"
	httpMW "github.com/yungbote/rewardcore-backend/internal/http/middleware"
	"github.com/yungbote/rewardcore-backend/internal/observability"
	"github.com/yungbote/rewardcore-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics
	Tracing bool

	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler      *httpH.AuthHandler
	EventHandler     *httpH.EventHandler
	DecisionHandler  *httpH.DecisionHandler
	OutcomeHandler   *httpH.OutcomeHandler
	ProfileHandler   *httpH.ProfileHandler
	ActionHandler    *httpH.ActionHandler
	SynthesisHandler *httpH.SynthesisHandler
	JobHandler       *httpH.JobHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		r.Use(otelgin.Middleware("rewardcore-api"))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS())
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Token exchange (public)
		if cfg.AuthHandler != nil {
			api.POST("/auth/token", cfg.AuthHandler.IssueToken)
		}
	}

	protected := api.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Event ingestion
	ingest := protected.Group("/")
	if cfg.AuthMiddleware != nil {
		ingest.Use(cfg.AuthMiddleware.RequireScope(types.ScopeIngest))
	}
	if cfg.EventHandler != nil {
		ingest.POST("/events", cfg.EventHandler.Ingest)
	}

	// Decision path
	decide := protected.Group("/")
	if cfg.AuthMiddleware != nil {
		decide.Use(cfg.AuthMiddleware.RequireScope(types.ScopeDecide))
	}
	if cfg.DecisionHandler != nil {
		decide.POST("/decisions", cfg.DecisionHandler.Decide)
		decide.GET("/decisions/:id", cfg.DecisionHandler.GetDecision)
	}
	if cfg.OutcomeHandler != nil {
		decide.POST("/decisions/:id/outcomes", cfg.OutcomeHandler.Record)
		decide.GET("/decisions/:id/outcomes", cfg.OutcomeHandler.ListByDecision)
	}

	// Public profile reads
	profile := protected.Group("/")
	if cfg.AuthMiddleware != nil {
		profile.Use(cfg.AuthMiddleware.RequireScope(types.ScopeProfile))
	}
	if cfg.ProfileHandler != nil {
		profile.GET("/users/:id/profile", cfg.ProfileHandler.GetProfile)
	}

	// Operator surface
	admin := protected.Group("/")
	if cfg.AuthMiddleware != nil {
		admin.Use(cfg.AuthMiddleware.RequireScope(types.ScopeAdmin))
	}
	if cfg.ActionHandler != nil {
		admin.GET("/actions", cfg.ActionHandler.ListActions)
		admin.GET("/actions/:id", cfg.ActionHandler.GetAction)
		admin.POST("/actions/:id/promote", cfg.ActionHandler.Promote)
		admin.POST("/actions/:id/retire", cfg.ActionHandler.Retire)
	}
	if cfg.SynthesisHandler != nil {
		admin.POST("/synthesis/runs", cfg.SynthesisHandler.Trigger)
		admin.GET("/synthesis/runs", cfg.SynthesisHandler.ListRuns)
		admin.GET("/synthesis/runs/:id", cfg.SynthesisHandler.GetRun)
	}
	if cfg.DecisionHandler != nil {
		admin.GET("/users/:id/decisions", cfg.DecisionHandler.ListUserDecisions)
	}
	if cfg.ProfileHandler != nil {
		admin.POST("/users/:id/profile/refresh", cfg.ProfileHandler.RefreshProfile)
	}
	if cfg.AuthHandler != nil {
		admin.POST("/accounts", cfg.AuthHandler.CreateAccount)
		admin.GET("/accounts", cfg.AuthHandler.ListAccounts)
		admin.POST("/accounts/:id/disabled", cfg.AuthHandler.SetAccountDisabled)
	}
	if cfg.JobHandler != nil {
		admin.GET("/jobs", cfg.JobHandler.ListRecent)
		admin.GET("/jobs/:id", cfg.JobHandler.GetJob)
	}

	return r
}
