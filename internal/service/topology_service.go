package service

import (
	"context"

	"go.uber.org/zap"

	"kc-steward.io/steward/internal/domain"
	apperrors "kc-steward.io/steward/internal/pkg/errors"
	"kc-steward.io/steward/internal/pkg/logger"
	"kc-steward.io/steward/internal/provider"
	"kc-steward.io/steward/internal/topology"
)

// TopologyView is the navigation tree of every managed cluster.
type TopologyView struct {
	Nodes []topology.Node `json:"nodes"`
	Count int             `json:"count"`
}

// TopologyService lists directory clusters and arranges them by instance and group.
type TopologyService struct {
	directory provider.ClusterDirectory
}

// NewTopologyService creates a new TopologyService.
func NewTopologyService(directory provider.ClusterDirectory) *TopologyService {
	return &TopologyService{directory: directory}
}

// ListClusters returns the directory clusters.
func (s *TopologyService) ListClusters(ctx context.Context) ([]domain.Cluster, error) {
	clusters, err := s.directory.ListClusters(ctx)
	if err != nil {
		logger.FromContext(ctx, nil).Error("List clusters failed", zap.Error(err))
		return nil, apperrors.Unavailable(err, apperrors.CodeDirectoryUnavailable, "list clusters")
	}
	return clusters, nil
}

// Build reads the directory and builds the topology tree.
func (s *TopologyService) Build(ctx context.Context) (*TopologyView, error) {
	clusters, err := s.ListClusters(ctx)
	if err != nil {
		return nil, err
	}
	t := topology.Build(clusters)
	return &TopologyView{Nodes: t.Nodes(), Count: t.Count()}, nil
}
