package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"kc-steward.io/steward/internal/app/modules"
	"kc-steward.io/steward/internal/pkg/logger"
)

const defaultShutdownTimeout = 30 * time.Second

// Start starts background services. The health checker stops when ctx is done.
func (a *Application) Start(ctx context.Context) error {
	if a == nil {
		return nil
	}
	if a.Infra != nil && a.Infra.HealthCheck != nil {
		a.Infra.HealthCheck.Start(ctx)
		logger.Info("Realm health checker started",
			zap.Duration("interval", a.Config.Health.Interval),
		)
	}
	return nil
}

// Shutdown stops modules, then the shared infrastructure. It is bounded by
// server.shutdown_timeout so a stuck module cannot hold the process.
func (a *Application) Shutdown() {
	timeout := defaultShutdownTimeout
	if a.Config != nil && a.Config.Server.ShutdownTimeout > 0 {
		timeout = a.Config.Server.ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := modules.ShutdownAll(ctx, a.Modules); err != nil {
		logger.Warn("module shutdown returned error", zap.Error(err))
	}
	a.Infra.Close()
	logger.Info("Application stopped", zap.Int("modules", len(a.Modules)))
}
