package http

import (
	"github.com/gin-gonic/gin"

	"contextinsight/internal/bootstrap"
	"contextinsight/internal/transport/http/handler"
	"contextinsight/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(
		app.Config.App.Name,
		app.Config.App.Env,
		app.StartedAt,
		app.DB,
		app.Redis,
		app.MQConn,
	)
	router.GET("/healthz", healthHandler.Check)

	insightHandler := handler.NewContextInsightHandler(app.InsightService)

	v1 := router.Group("/api/v1")
	if app.Config.Auth.Enabled {
		v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	}
	insightHandler.Register(v1)

	return router
}
