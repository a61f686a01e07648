package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mondo989/ReallyGoodJob/internal/config"
	adminHandler "github.com/mondo989/ReallyGoodJob/internal/handler/admin"
	authHandler "github.com/mondo989/ReallyGoodJob/internal/handler/auth"
	campaignHandler "github.com/mondo989/ReallyGoodJob/internal/handler/campaign"
	healthHandler "github.com/mondo989/ReallyGoodJob/internal/handler/health"
	moodHandler "github.com/mondo989/ReallyGoodJob/internal/handler/mood"
	scheduleHandler "github.com/mondo989/ReallyGoodJob/internal/handler/schedule"
	trackingHandler "github.com/mondo989/ReallyGoodJob/internal/handler/tracking"
	"github.com/mondo989/ReallyGoodJob/internal/middleware"
	"github.com/mondo989/ReallyGoodJob/pkg/auth"
	"github.com/mondo989/ReallyGoodJob/pkg/logger"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth     *authHandler.Handler
	Campaign *campaignHandler.Handler
	Schedule *scheduleHandler.Handler
	Admin    *adminHandler.Handler
	Mood     *moodHandler.Handler
	Tracking *trackingHandler.Handler
	Health   *healthHandler.Handler
}

// New assembles the gin engine. Tracking, health and metrics endpoints stay
// outside the authenticated API group.
func New(cfg config.ServerConfig, jwtService auth.JWTService, log *logger.Logger, h Handlers) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(log),
		middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	h.Health.RegisterRoutes(engine)
	h.Tracking.RegisterRoutes(engine)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	h.Auth.RegisterRoutes(api)
	h.Mood.RegisterRoutes(api)

	authed := api.Group("", middleware.Auth(jwtService))
	h.Campaign.RegisterRoutes(authed)
	h.Schedule.RegisterRoutes(authed)
	h.Admin.RegisterRoutes(authed)

	return engine
}
