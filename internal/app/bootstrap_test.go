package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kc-steward.io/steward/internal/config"
	"kc-steward.io/steward/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

const directoryYAML = `
tags:
  - {id: prod, name: Production}
clusters:
  - {id: a, name: Alpha, base_url: "https://sso-1.example.com", realm: customers, tags: [prod]}
  - {id: b, name: Beta, base_url: "https://sso-2.example.com", realm: customers}
`

func fileConfig(t *testing.T, authEnabled bool) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "directory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(directoryYAML), 0o600))

	return &config.Config{
		Server:    config.ServerConfig{Port: 8080},
		Directory: config.DirectoryConfig{Source: config.DirectorySourceFile, File: path},
		Keycloak:  config.KeycloakConfig{Provider: config.ProviderMock},
		Log:       config.LogConfig{Level: "error", Format: "json"},
		Security: config.SecurityConfig{
			AuthEnabled:   authEnabled,
			SessionSecret: strings.Repeat("k", 32),
			JWTIssuer:     "realm-steward",
			TokenLifetime: time.Hour,
		},
		Worker:  config.WorkerConfig{GeneralPoolSize: 4, IdPPoolSize: 2},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
		Health:  config.HealthConfig{Interval: time.Minute},
	}
}

func newFileApplication(t *testing.T, authEnabled bool) *Application {
	t.Helper()
	application, err := Bootstrap(context.Background(), fileConfig(t, authEnabled))
	require.NoError(t, err)
	t.Cleanup(application.Shutdown)
	return application
}

func TestBootstrap_NoDB(t *testing.T) {
	// Bootstrap with the postgres directory and no reachable database fails at connect.
	cfg := &config.Config{
		Directory: config.DirectoryConfig{Source: config.DirectorySourcePostgres},
		Keycloak:  config.KeycloakConfig{Provider: config.ProviderMock},
		Database: config.DatabaseConfig{
			Host:     "localhost",
			Port:     65432, // Non-existent port
			User:     "test",
			Password: "test",
			Database: "test",
			SSLMode:  "disable",
			MaxConns: 5,
			MinConns: 1,
		},
		Worker: config.WorkerConfig{
			GeneralPoolSize: 10,
			IdPPoolSize:     5,
		},
	}

	app, err := Bootstrap(context.Background(), cfg)
	require.Error(t, err, "Bootstrap should fail without database")
	assert.Nil(t, app, "Application should be nil on bootstrap failure")
}

func TestBootstrap_FileDirectory(t *testing.T) {
	application := newFileApplication(t, false)

	assert.Nil(t, application.Infra.DB)
	require.Len(t, application.Modules, 2)
	assert.Equal(t, "directory", application.Modules[0].Name())
	assert.Equal(t, "reconcile", application.Modules[1].Name())

	require.NoError(t, application.Start(context.Background()))

	w := httptest.NewRecorder()
	application.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "directory")

	w = httptest.NewRecorder()
	application.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/topology", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sso-1.example.com")
}

func TestBootstrap_MissingDirectoryFile(t *testing.T) {
	cfg := fileConfig(t, false)
	cfg.Directory.File = filepath.Join(t.TempDir(), "missing.yaml")

	app, err := Bootstrap(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, app)
}

func TestApplication_Shutdown_Nil(t *testing.T) {
	// Shutdown on empty application should not panic.
	app := &Application{}

	assert.NotPanics(t, func() {
		app.Shutdown()
	}, "Shutdown on empty Application should not panic")
}
