package modules

import (
	"context"

	"kc-steward.io/steward/internal/api/handlers"
	"kc-steward.io/steward/internal/service"
)

// ReconcileModule wires realm comparison and entity synchronization.
type ReconcileModule struct {
	comparison *service.ComparisonService
	sync       *service.SyncService
}

// NewReconcileModule creates a reconcile module with explicit constructor wiring.
// Fetches fan out on the general pool; per-user lookups inside the Keycloak
// provider use the IdP pool, so the two never wait on each other.
func NewReconcileModule(infra *Infrastructure) *ReconcileModule {
	cmp := service.NewComparisonService(infra.Directory, infra.Realms, infra.Pools.General)
	return &ReconcileModule{
		comparison: cmp,
		sync:       service.NewSyncService(infra.Realms, cmp, infra.Dispatcher),
	}
}

func (m *ReconcileModule) Name() string { return "reconcile" }

func (m *ReconcileModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Comparison = m.comparison
	deps.Sync = m.sync
}

func (m *ReconcileModule) Shutdown(context.Context) error { return nil }
