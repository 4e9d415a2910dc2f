package matching

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	svcErr "github.com/mentorhub/matching/internal/errors"
	"github.com/mentorhub/matching/internal/scheduler"
)

// Thin HTTP shim: handlers only bind input shape, call the service and map
// errors to status codes. Authentication happens upstream; the gateway
// forwards a verified identity in X-User-ID / X-User-Role headers.

func (s *Service) handleGetTopMatches(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a valid uint64"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
	}

	results, err := s.GetTopMatches(c.Request.Context(), userID, c.Query("algorithm_version"), limit)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": results})
}

func (s *Service) handleRecalculateUser(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a valid uint64"})
		return
	}

	written, err := s.RecalculateMatches(c.Request.Context(), userID)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates_scored": written})
}

type recalculateAllRequest struct {
	Limit               int        `json:"limit"`
	ModifiedAfter       *time.Time `json:"modified_after"`
	BatchSize           int        `json:"batch_size"`
	DelayBetweenBatches string     `json:"delay_between_batches"`
	ChunkSize           int        `json:"chunk_size"`
	DelayBetweenChunks  string     `json:"delay_between_chunks"`
}

func (s *Service) handleRecalculateAll(c *gin.Context) {
	var body recalculateAllRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	opts := scheduler.Options{
		Limit:         body.Limit,
		ModifiedAfter: body.ModifiedAfter,
		BatchSize:     body.BatchSize,
		ChunkSize:     body.ChunkSize,
	}
	var err error
	if opts.DelayBetweenBatches, err = parseDelay(body.DelayBetweenBatches); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "delay_between_batches: " + err.Error()})
		return
	}
	if opts.DelayBetweenChunks, err = parseDelay(body.DelayBetweenChunks); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "delay_between_chunks: " + err.Error()})
		return
	}

	summary, err := s.RecalculateAll(c.Request.Context(), opts)
	if err != nil {
		c.JSON(svcErr.HTTPStatus(err), gin.H{"error": err.Error(), "summary": summary})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func parseDelay(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
