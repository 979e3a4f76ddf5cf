package router

import (
	"payway/config"
	"payway/internal/handler"
	"payway/internal/middleware"
	"payway/internal/notify"
	"payway/internal/service"
	"payway/internal/ws"

	"github.com/gin-gonic/gin"
)

func Setup(cfg *config.Config, svc *service.PaywayService, notifier *notify.Notifier, hub *ws.Hub) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Skip gin.Logger() to reduce log noise; payway events are logged by the service
	r.Use(middleware.CORS(cfg.Server.OriginAllowed))
	if cfg.RateLimit.RPS > 0 {
		r.Use(middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))
	}

	paywayHandler := handler.NewPaywayHandler(svc, hub)
	upgrader := ws.NewUpgrader(cfg.Server.OriginAllowed)

	r.GET("/", paywayHandler.Health)

	api := r.Group("/api/payway")
	{
		api.POST("/create", paywayHandler.Create)
		api.GET("/status/:md5", paywayHandler.Status)
		api.GET("/payments/:md5", paywayHandler.Record)
	}

	r.GET("/ws/payway/status/:md5", handler.UpgradeStatusWS(notifier, hub, upgrader))

	return r
}
