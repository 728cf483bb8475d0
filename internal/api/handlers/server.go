// Package handlers implements the /api/v1 endpoints described by the embedded
// OpenAPI contract. Route registration lives in internal/app; handlers do not
// register their own routes.
//
// Import Path: kc-steward.io/steward/internal/api/handlers
package handlers

import (
	"context"

	"kc-steward.io/steward/internal/provider"
	"kc-steward.io/steward/internal/service"
)

// ReadinessCheck reports whether one dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// Server implements all API handlers.
type Server struct {
	topology   *service.TopologyService
	comparison *service.ComparisonService
	sync       *service.SyncService
	tags       *service.TagService
	health     *provider.ClusterHealthChecker
	readiness  map[string]ReadinessCheck
}

// ServerDeps holds all dependencies for creating a Server.
// Manual DI, no container.
type ServerDeps struct {
	Topology   *service.TopologyService
	Comparison *service.ComparisonService
	Sync       *service.SyncService
	Tags       *service.TagService
	// Health is optional; without it every cluster reports UNKNOWN.
	Health *provider.ClusterHealthChecker
	// Readiness maps a dependency name to its probe.
	Readiness map[string]ReadinessCheck
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		topology:   deps.Topology,
		comparison: deps.Comparison,
		sync:       deps.Sync,
		tags:       deps.Tags,
		health:     deps.Health,
		readiness:  deps.Readiness,
	}
}
