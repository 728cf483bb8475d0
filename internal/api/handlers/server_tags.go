package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kc-steward.io/steward/internal/api/middleware"
	"kc-steward.io/steward/internal/service"
)

// TagPlanRequest is the body of POST /tags/plan and POST /tags/apply.
type TagPlanRequest struct {
	ClusterIDs []string        `json:"cluster_ids"`
	Checked    map[string]bool `json:"checked"`
}

func (r TagPlanRequest) toService(c *gin.Context) service.TagPlanRequest {
	return service.TagPlanRequest{
		ClusterIDs: r.ClusterIDs,
		Checked:    r.Checked,
		Actor:      middleware.Actor(c.Request.Context()),
	}
}

// PlanTags handles POST /tags/plan. Nothing is mutated.
func (s *Server) PlanTags(c *gin.Context) {
	var req TagPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	plan, err := s.tags.PlanBulk(c.Request.Context(), req.toService(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// ApplyTags handles POST /tags/apply. Any failed batch answers 207; clients
// re-read /clusters to observe the resulting state.
func (s *Server) ApplyTags(c *gin.Context) {
	var req TagPlanRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.tags.PlanAndApply(c.Request.Context(), req.toService(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	status := http.StatusOK
	if res.FailedBatches() > 0 {
		status = http.StatusMultiStatus
	}
	c.JSON(status, res)
}
