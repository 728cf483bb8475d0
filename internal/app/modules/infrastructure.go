package modules

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"kc-steward.io/steward/internal/config"
	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/infrastructure"
	"kc-steward.io/steward/internal/pkg/logger"
	"kc-steward.io/steward/internal/pkg/worker"
	"kc-steward.io/steward/internal/provider"
	"kc-steward.io/steward/internal/repository"
)

// realmBackend is what the composition root needs from a realm provider.
type realmBackend interface {
	provider.RealmProvider
	provider.RealmPinger
}

// directoryBackend is what the composition root needs from a cluster directory.
type directoryBackend interface {
	provider.ClusterDirectory
	provider.TagMutator
}

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config      *config.Config
	DB          *infrastructure.DatabaseClients // nil with the file directory
	Pools       *worker.Pools
	Directory   directoryBackend
	Realms      realmBackend
	HealthCheck *provider.ClusterHealthChecker
	Dispatcher  *domain.EventDispatcher

	poolCollector prometheus.Collector
}

// NewInfrastructure initializes the directory, worker pools and realm provider.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	infra := &Infrastructure{
		Config:     cfg,
		Dispatcher: domain.NewEventDispatcher(),
	}

	if err := infra.initDirectory(ctx); err != nil {
		infra.Close()
		return nil, err
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		IdPPoolSize:     cfg.Worker.IdPPoolSize,
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}
	infra.Pools = pools
	infra.registerPoolCollector()

	switch cfg.Keycloak.Provider {
	case config.ProviderMock:
		infra.Realms = provider.NewMockRealms()
	default:
		infra.Realms = provider.NewKeycloakProvider(infra.Directory, provider.KeycloakCredentials{
			TokenRealm:   cfg.Keycloak.TokenRealm,
			ClientID:     cfg.Keycloak.ClientID,
			ClientSecret: cfg.Keycloak.ClientSecret,
			PageSize:     cfg.Keycloak.PageSize,
			Timeout:      cfg.Keycloak.Timeout,
		}, pools.IdP)
	}
	infra.HealthCheck = provider.NewClusterHealthChecker(infra.Realms, infra.Directory, cfg.Health.Interval).
		UsePool(pools.General)

	var store auditStore
	if infra.DB != nil {
		store = repository.NewAuditRepository(infra.DB.Pool)
	}
	registerAuditObservers(infra.Dispatcher, store)

	logger.Info("Infrastructure initialized",
		zap.String("directory", cfg.Directory.Source),
		zap.String("provider", infra.Realms.Name()),
	)
	return infra, nil
}

func (i *Infrastructure) initDirectory(ctx context.Context) error {
	cfg := i.Config
	if cfg.Directory.Source == config.DirectorySourceFile {
		dir, err := repository.LoadFileDirectory(cfg.Directory.File)
		if err != nil {
			return fmt.Errorf("load directory file: %w", err)
		}
		i.Directory = dir
		return nil
	}

	if cfg.Database.AutoMigrate {
		if err := infrastructure.Migrate(cfg.Database); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	i.DB = db
	i.Directory = repository.NewClusterRepository(db.Pool)
	return nil
}

// registerPoolCollector exposes pool gauges on the default registry. A second
// Infrastructure in the same process keeps the first one's collector.
func (i *Infrastructure) registerPoolCollector() {
	c := i.Pools.Collector()
	if err := prometheus.Register(c); err != nil {
		logger.Debug("worker pool collector not registered", zap.Error(err))
		return
	}
	i.poolCollector = c
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.HealthCheck != nil {
		i.HealthCheck.Stop()
	}
	if i.poolCollector != nil {
		prometheus.Unregister(i.poolCollector)
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.DB != nil {
		i.DB.Close()
	}
}
