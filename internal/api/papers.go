package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"PaperScanner/internal/domain"
)

func registerPaperRoutes(r *gin.RouterGroup, s *server) {
	r.GET("/papers/random", s.handleSample)
	r.DELETE("/papers", s.handleWipe)
	r.DELETE("/papers/expired", s.handlePurgeExpired)
	r.DELETE("/conferences/:name/papers", s.handlePurgeConference)
	r.GET("/stats", s.handleStats)
	r.GET("/stats/breakdown", s.handleBreakdown)
}

// GET /api/papers/random?count=5&min_confidence=0.7
func (s *server) handleSample(c *gin.Context) {
	count, err := intQuery(c, "count", s.SampleSize)
	if err == nil && count < 0 {
		err = domain.WrapError(domain.ErrInvalidInput, "count", fmt.Errorf("must not be negative"))
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	minConfidence, err := floatQuery(c, "min_confidence", s.MinConfidence)
	if err != nil {
		abortWithError(c, err)
		return
	}

	papers, err := s.Catalog.Sample(c.Request.Context(), count, minConfidence)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaperResponses(papers))
}

// DELETE /api/papers?confirm=true
func (s *server) handleWipe(c *gin.Context) {
	confirm, _ := strconv.ParseBool(c.Query("confirm"))
	if !confirm {
		c.JSON(http.StatusBadRequest, gin.H{"error": "wipe requires confirm=true", "wiped": false})
		return
	}
	if !s.Catalog.Wipe(c.Request.Context(), true) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wipe failed", "wiped": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"wiped": true})
}

// DELETE /api/papers/expired?days=90
func (s *server) handlePurgeExpired(c *gin.Context) {
	days, err := intQuery(c, "days", s.RetentionDays)
	if err == nil && days < 0 {
		err = domain.WrapError(domain.ErrInvalidInput, "days", fmt.Errorf("must not be negative"))
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": s.Catalog.PurgeExpired(c.Request.Context(), days)})
}

// DELETE /api/conferences/:name/papers
func (s *server) handlePurgeConference(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	c.JSON(http.StatusOK, gin.H{
		"conference": name,
		"removed":    s.Catalog.PurgeConference(c.Request.Context(), name),
	})
}

func (s *server) handleStats(c *gin.Context) {
	stats, err := s.Catalog.Stats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStatsResponses(stats))
}

func (s *server) handleBreakdown(c *gin.Context) {
	rows, err := s.Catalog.Breakdown(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBreakdownResponses(rows))
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, key, err)
	}
	return v, nil
}

func floatQuery(c *gin.Context, key string, fallback float64) (float64, error) {
	raw, ok := c.GetQuery(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, key, err)
	}
	return v, nil
}
