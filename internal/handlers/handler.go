package handlers

import (
	"aiseg-dashboard/internal/hub"
	"aiseg-dashboard/internal/logger"
	"aiseg-dashboard/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires the HTTP layer to services, the push hub, and logging.
type Handler struct {
	services *service.Service
	hub      *hub.Hub
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, h *hub.Hub, log *logger.Logger) *Handler {
	return &Handler{services: services, hub: h, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	api := router.Group("/api")
	{
		api.GET("/realtime", h.getRealtime)
		api.GET("/totals", h.getTotals)
		api.GET("/devices", h.getDevices)
		api.GET("/circuits", h.getCircuits)

		api.GET("/nicknames", h.getNicknames)
		api.POST("/nicknames", h.setNickname)

		api.POST("/devices/control", h.controlDevice)

		api.GET("/events", h.getEvents)
	}

	// Push channel (HTTP upgrade), same port
	router.GET("/ws", h.wsConnect)

	return router
}
