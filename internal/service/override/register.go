package override

import (
	"github.com/gin-gonic/gin"
)

// Registrar ties the override workflow into the HTTP server
type Registrar struct {
	service *Service
}

// NewRegistrar creates a new Registrar for the override service
func NewRegistrar(service *Service) *Registrar {
	return &Registrar{service: service}
}

// Register attaches the override routes to the engine
func (r *Registrar) Register(engine *gin.Engine) {
	v1 := engine.Group("/v1")
	v1.POST("/overrides", r.service.handleRequestOverride)
	v1.GET("/overrides/active", r.service.handleListActive)
	v1.GET("/overrides/active/count", r.service.handleCountActive)
	v1.POST("/overrides/:id/decision", r.service.handleDecide)
	v1.POST("/bookings/access-check", r.service.handleAccessCheck)
}
