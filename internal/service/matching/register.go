package matching

import (
	"github.com/gin-gonic/gin"
)

// Registrar ties the matching service into the HTTP server
type Registrar struct {
	service *Service
}

// NewRegistrar creates a new Registrar for the matching service
func NewRegistrar(service *Service) *Registrar {
	return &Registrar{service: service}
}

// Register attaches the matching routes to the engine
func (r *Registrar) Register(engine *gin.Engine) {
	v1 := engine.Group("/v1")
	v1.GET("/users/:id/matches", r.service.handleGetTopMatches)
	v1.POST("/users/:id/matches/recalculate", r.service.handleRecalculateUser)
	v1.POST("/admin/recalculate", r.service.handleRecalculateAll)
}
