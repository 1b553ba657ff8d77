package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agenthands/relate/internal/core"
	"github.com/agenthands/relate/internal/core/finder"
	"github.com/agenthands/relate/internal/core/model"
)

// Server exposes the resolution engine over HTTP. Transport only: every
// decision lives in the engine, and the handlers translate the error
// taxonomy to status codes.
type Server struct {
	Engine *core.Engine
	logger *zap.Logger
}

func New(engine *core.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Engine: engine, logger: logger}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.Default()

	r.POST("/find", s.Find)
	r.POST("/merge", s.Merge)
	r.POST("/link", s.Link)
	r.GET("/stats", s.Stats)
	r.GET("/clusters", s.Clusters)

	return r
}

type FindRequest struct {
	TenantID      string  `json:"tenant_id" binding:"required"`
	ContactID     string  `json:"contact_id"`
	Threshold     float64 `json:"threshold"`
	MaxCandidates int     `json:"max_candidates"`
}

func (s *Server) Find(c *gin.Context) {
	var req FindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	opts := finder.Options{Threshold: req.Threshold, MaxCandidates: req.MaxCandidates}
	var (
		result *finder.Result
		err    error
	)
	if req.ContactID != "" {
		result, err = s.Engine.FindDuplicatesFor(c.Request.Context(), req.TenantID, req.ContactID, opts)
	} else {
		result, err = s.Engine.FindDuplicates(c.Request.Context(), req.TenantID, opts)
	}
	if err != nil {
		s.fail(c, "duplicate search failed", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type MergeRequest struct {
	TenantID   string `json:"tenant_id" binding:"required"`
	SurvivorID string `json:"survivor_id" binding:"required"`
	LoserID    string `json:"loser_id" binding:"required"`
	Strategy   string `json:"strategy"`
	DryRun     bool   `json:"dry_run"`
}

func (s *Server) Merge(c *gin.Context) {
	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	strategy, err := model.ParseStrategy(req.Strategy)
	if err != nil {
		s.fail(c, "merge rejected", err)
		return
	}

	if req.DryRun {
		preview, err := s.Engine.PreviewMerge(c.Request.Context(), req.TenantID, req.SurvivorID, req.LoserID, strategy)
		if err != nil {
			s.fail(c, "merge preview failed", err)
			return
		}
		c.JSON(http.StatusOK, preview)
		return
	}

	result, err := s.Engine.Merge(c.Request.Context(), req.TenantID, req.SurvivorID, req.LoserID, strategy)
	if err != nil {
		s.fail(c, "merge failed", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type LinkRequest struct {
	TenantID string                `json:"tenant_id" binding:"required"`
	AID      string                `json:"a_id" binding:"required"`
	BID      string                `json:"b_id" binding:"required"`
	Score    float64               `json:"score"`
	Factors  model.FactorBreakdown `json:"factors"`
}

func (s *Server) Link(c *gin.Context) {
	var req LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	rel, err := s.Engine.Link(c.Request.Context(), req.TenantID, req.AID, req.BID, req.Score, req.Factors)
	if err != nil {
		s.fail(c, "link failed", err)
		return
	}

	c.JSON(http.StatusOK, rel)
}

func (s *Server) Stats(c *gin.Context) {
	stats, err := s.Engine.Stats(c.Request.Context(), c.Query("tenant_id"))
	if err != nil {
		s.fail(c, "stats failed", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) Clusters(c *gin.Context) {
	clusters, err := s.Engine.Clusters(c.Request.Context(), c.Query("tenant_id"))
	if err != nil {
		s.fail(c, "cluster detection failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"clusters": clusters})
}

func (s *Server) fail(c *gin.Context, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Warn(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case model.IsValidation(err):
		return http.StatusBadRequest
	case model.IsNotFound(err):
		return http.StatusNotFound
	case model.IsCrossTenant(err):
		return http.StatusForbidden
	case model.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
