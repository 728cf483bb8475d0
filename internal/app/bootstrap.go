// Package app is the composition root. Bootstrap only wires; it holds no domain logic.
//
// Import Path: kc-steward.io/steward/internal/app
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"kc-steward.io/steward/internal/api/handlers"
	"kc-steward.io/steward/internal/app/modules"
	"kc-steward.io/steward/internal/config"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	Infra   *modules.Infrastructure
	Modules []modules.Module
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	allModules := []modules.Module{
		modules.NewDirectoryModule(infra),
		modules.NewReconcileModule(infra),
	}
	serverDeps := modules.NewServerDeps(infra, allModules)
	server := handlers.NewServer(serverDeps)

	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, server),
		Infra:   infra,
		Modules: allModules,
	}, nil
}
