package modules

import (
	"context"

	"kc-steward.io/steward/internal/api/handlers"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(infra *Infrastructure, mods []Module) handlers.ServerDeps {
	deps := handlers.ServerDeps{
		Health:    infra.HealthCheck,
		Readiness: map[string]handlers.ReadinessCheck{},
	}
	if infra.DB != nil {
		deps.Readiness["database"] = infra.DB.Ping
	} else {
		deps.Readiness["directory"] = func(ctx context.Context) error {
			_, err := infra.Directory.ListClusters(ctx)
			return err
		}
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}
