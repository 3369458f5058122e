package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"PaperScanner/internal/domain"
)

func registerRunRoutes(r *gin.RouterGroup, s *server) {
	r.POST("/refresh", s.handleRun(s.Runner.Refresh))
	r.POST("/refresh/smart", s.handleRun(s.Runner.SmartRefresh))
	r.POST("/conferences/search", s.handleSearch)
	r.GET("/match", s.handleMatch)
}

// handleRun executes a run synchronously and reports its statistics.
func (s *server) handleRun(run func(context.Context) (domain.RunStats, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := run(c.Request.Context())
		if err != nil {
			c.JSON(statusFor(err), toRunResponse(stats, "", err))
			return
		}
		c.JSON(http.StatusOK, toRunResponse(stats, "", nil))
	}
}

// POST /api/conferences/search {"query": "neurips"}
func (s *server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name, stats, err := s.Runner.SearchConference(c.Request.Context(), req.Query)
	if err != nil {
		c.JSON(statusFor(err), toRunResponse(stats, name, err))
		return
	}
	c.JSON(http.StatusOK, toRunResponse(stats, name, nil))
}

// GET /api/match?text=...&title=...&abstract=...
// text is scored as a comment field.
func (s *server) handleMatch(c *gin.Context) {
	text := c.Query("text")
	title := c.Query("title")
	abstract := c.Query("abstract")
	if strings.TrimSpace(text+title+abstract) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "one of text, title or abstract is required"})
		return
	}

	resp := gin.H{
		"match": nil,
		"all":   toMatchResponses(s.Classifier.FindAll(strings.TrimSpace(text + " " + title))),
	}
	if res, ok := s.Classifier.Classify(title, abstract, text); ok {
		resp["match"] = matchResponse{Conference: res.Conference, Confidence: res.Confidence, Year: res.Year}
	}
	c.JSON(http.StatusOK, resp)
}
