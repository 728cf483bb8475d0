package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/provider"
	"kc-steward.io/steward/internal/topology"
)

// ClusterView is a directory cluster with its last health-check outcome.
type ClusterView struct {
	domain.Cluster
	Status      provider.ClusterStatus `json:"status"`
	LastChecked *time.Time             `json:"last_checked,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// ListClusters handles GET /clusters.
func (s *Server) ListClusters(c *gin.Context) {
	clusters, err := s.topology.ListClusters(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}

	views := make([]ClusterView, 0, len(clusters))
	for _, cl := range clusters {
		view := ClusterView{Cluster: cl, Status: provider.ClusterStatusUnknown}
		if s.health != nil {
			h := s.health.GetHealth(cl.ID)
			view.Status = h.Status
			view.Error = h.Error
			if !h.LastChecked.IsZero() {
				checked := h.LastChecked.UTC()
				view.LastChecked = &checked
			}
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"clusters": views})
}

// GetTopology handles GET /topology.
func (s *Server) GetTopology(c *gin.Context) {
	view, err := s.topology.Build(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if view.Nodes == nil {
		view.Nodes = []topology.Node{}
	}
	c.JSON(http.StatusOK, view)
}

// ListTags handles GET /tags.
func (s *Server) ListTags(c *gin.Context) {
	tags, err := s.tags.ListTags(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if tags == nil {
		tags = []domain.Tag{}
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}
