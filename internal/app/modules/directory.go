package modules

import (
	"context"

	"kc-steward.io/steward/internal/api/handlers"
	"kc-steward.io/steward/internal/service"
)

// DirectoryModule wires cluster listing, topology and tag management.
type DirectoryModule struct {
	topology *service.TopologyService
	tags     *service.TagService
}

// NewDirectoryModule creates a directory module with explicit constructor wiring.
func NewDirectoryModule(infra *Infrastructure) *DirectoryModule {
	return &DirectoryModule{
		topology: service.NewTopologyService(infra.Directory),
		tags:     service.NewTagService(infra.Directory, infra.Directory, infra.Pools.General, infra.Dispatcher),
	}
}

func (m *DirectoryModule) Name() string { return "directory" }

func (m *DirectoryModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Topology = m.topology
	deps.Tags = m.tags
}

func (m *DirectoryModule) Shutdown(context.Context) error { return nil }
