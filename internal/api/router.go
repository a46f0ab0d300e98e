package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"standmap-service/internal/api/handlers"
	"standmap-service/internal/ports"
	"standmap-service/internal/services/sessions"
)

// NewRouter wires HTTP handlers with their dependencies.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(manager *sessions.Manager, catalog ports.StandCatalog, log *zap.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(recovery(log), requestID(), loggingMiddleware(log))

	standHandler := &handlers.StandHandler{Catalog: catalog, Log: log}
	sessionHandler := &handlers.SessionHandler{Manager: manager, Log: log}

	engine.GET("/health", handlers.Health)
	engine.GET("/stands", standHandler.List)

	s := engine.Group("/sessions")
	{
		s.POST("", sessionHandler.Open)
		s.GET("/:id/state", sessionHandler.State)
		s.GET("/:id/events", sessionHandler.Events)
		s.POST("/:id/position", sessionHandler.Position)
		s.POST("/:id/select", sessionHandler.Select)
		s.POST("/:id/car", sessionHandler.SaveCar)
		s.POST("/:id/car/route", sessionHandler.RouteToCar)
		s.DELETE("/:id", sessionHandler.Close)
	}

	return engine
}
