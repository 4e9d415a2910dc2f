package override

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mentorhub/matching/internal/db"
	svcErr "github.com/mentorhub/matching/internal/errors"
)

// Thin HTTP shim. The gateway authenticates and forwards the verified
// identity in X-User-ID / X-User-Role; handlers only enforce role
// authorization and input shape.

func callerID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid X-User-ID header"})
		return 0, false
	}
	return id, true
}

func requireCoordinator(c *gin.Context) bool {
	if c.GetHeader("X-User-Role") != db.RoleCoordinator {
		c.JSON(http.StatusForbidden, gin.H{"error": "coordinator role required"})
		return false
	}
	return true
}

type requestOverrideBody struct {
	MentorID uint64 `json:"mentor_id" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

func (s *Service) handleRequestOverride(c *gin.Context) {
	menteeID, ok := callerID(c)
	if !ok {
		return
	}

	var body requestOverrideBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := s.RequestOverride(c.Request.Context(), menteeID, body.MentorID, body.Reason)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (s *Service) handleListActive(c *gin.Context) {
	if !requireCoordinator(c) {
		return
	}

	items, err := s.ListActiveOverrides(c.Request.Context())
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"overrides": items})
}

func (s *Service) handleCountActive(c *gin.Context) {
	if !requireCoordinator(c) {
		return
	}

	count, err := s.CountActiveOverrides(c.Request.Context())
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

type decideOverrideBody struct {
	Decision string `json:"decision" binding:"required"`
	Notes    string `json:"notes"`
}

func (s *Service) handleDecide(c *gin.Context) {
	if !requireCoordinator(c) {
		return
	}
	reviewerID, ok := callerID(c)
	if !ok {
		return
	}

	var body decideOverrideBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := s.DecideOverride(c.Request.Context(), c.Param("id"), body.Decision, reviewerID, body.Notes)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, req)
}

type accessCheckBody struct {
	MentorID uint64 `json:"mentor_id" binding:"required"`
	// Consume marks the override used when the check allows via override;
	// the booking path sets it on confirmation.
	Consume bool `json:"consume"`
}

func (s *Service) handleAccessCheck(c *gin.Context) {
	menteeID, ok := callerID(c)
	if !ok {
		return
	}

	var body accessCheckBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	access, err := s.CheckBookingAccess(c.Request.Context(), menteeID, body.MentorID)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}

	if access.Allowed && access.Via == "override" && body.Consume {
		if _, err := s.ConsumeOverride(c.Request.Context(), menteeID, body.MentorID); err != nil {
			c.JSON(svcErr.HTTPStatus(err), gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, access)
}
