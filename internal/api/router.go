// Package api exposes the engine's control surface as a small gin router,
// following the gin.Engine wiring of
// github.com/georgi-georgiev/testmesh's api/internal/api package, stripped
// of every handler that belonged to the excluded plan editor/CRUD/auth
// surface — what remains is a thin passthrough onto engine.Controller.
package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Rixmerz/rmeter/internal/api/websocket"
	"github.com/Rixmerz/rmeter/internal/engine"
	"github.com/Rixmerz/rmeter/internal/events"
)

// NewRouter wires the control-surface and event-stream routes onto a
// fresh gin.Engine.
func NewRouter(controller *engine.Controller, store *engine.PlanStore, hub *events.Hub, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	h := &Handlers{controller: controller, store: store, logger: logger}
	ws := websocket.NewHandler(hub, logger)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/plans", h.RegisterPlan)
		v1.POST("/tests/start", h.StartTest)
		v1.POST("/tests/stop", h.StopTest)
		v1.POST("/tests/force-stop", h.ForceStopTest)
		v1.GET("/tests/status", h.GetEngineStatus)
		v1.GET("/tests/results", h.GetResults)
		v1.GET("/tests/time-series", h.GetTimeSeries)
	}
	router.GET("/ws", ws.HandleConnection)

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}
