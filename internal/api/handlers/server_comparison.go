package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kc-steward.io/steward/internal/api/middleware"
	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/service"
)

// CompareRequest is the body of POST /comparisons.
type CompareRequest struct {
	SourceClusterID      string            `json:"source_cluster_id"`
	DestinationClusterID string            `json:"destination_cluster_id"`
	TwoWay               bool              `json:"two_way"`
	Categories           []domain.Category `json:"categories"`
}

// SyncRequest is the body of POST /comparisons/sync.
type SyncRequest struct {
	SourceClusterID      string           `json:"source_cluster_id"`
	DestinationClusterID string           `json:"destination_cluster_id"`
	Category             domain.Category  `json:"category"`
	Selection            domain.Selection `json:"selection"`
	TwoWay               bool             `json:"two_way"`
}

// CompareRealms handles POST /comparisons.
func (s *Server) CompareRealms(c *gin.Context) {
	var req CompareRequest
	if !bindJSON(c, &req) {
		return
	}

	cmp, err := s.comparison.Compare(c.Request.Context(), service.CompareRequest{
		SourceID:      req.SourceClusterID,
		DestinationID: req.DestinationClusterID,
		TwoWay:        req.TwoWay,
		Categories:    req.Categories,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toComparisonResponse(cmp))
}

// SyncEntities handles POST /comparisons/sync. Partial failure answers 207 with
// the per-key outcome; the recomputed comparison is included either way.
func (s *Server) SyncEntities(c *gin.Context) {
	var req SyncRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := s.sync.Sync(c.Request.Context(), service.SyncRequest{
		SourceID:      req.SourceClusterID,
		DestinationID: req.DestinationClusterID,
		Category:      req.Category,
		Selection:     req.Selection,
		TwoWay:        req.TwoWay,
		Actor:         middleware.Actor(c.Request.Context()),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	status := http.StatusOK
	if res.PartiallyFailed() {
		status = http.StatusMultiStatus
	}
	c.JSON(status, toSyncResponse(res))
}
