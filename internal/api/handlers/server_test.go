package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kc-steward.io/steward/internal/api/middleware"
	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/pkg/logger"
	"kc-steward.io/steward/internal/pkg/worker"
	"kc-steward.io/steward/internal/provider"
	"kc-steward.io/steward/internal/repository"
	"kc-steward.io/steward/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

const handlerDirectory = `
tags:
  - {id: prod, name: Production}
  - {id: eu, name: Europe}
clusters:
  - {id: a, name: Alpha, base_url: "https://sso.example.com", realm: customers, tags: [prod]}
  - {id: b, name: Beta, base_url: "https://sso.example.com", realm: staff, tags: [prod, eu]}
`

type testEnv struct {
	router *gin.Engine
	realms *provider.MockRealms
	dir    *repository.FileDirectory
}

func newTestEnv(t *testing.T, readiness map[string]ReadinessCheck) *testEnv {
	t.Helper()
	dir, err := repository.ParseFileDirectory(strings.NewReader(handlerDirectory))
	require.NoError(t, err)
	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{GeneralPoolSize: 4, IdPPoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(pools.Shutdown)

	realms := provider.NewMockRealms()
	dispatcher := domain.NewEventDispatcher()
	cmp := service.NewComparisonService(dir, realms, pools.General)
	health := provider.NewClusterHealthChecker(realms, dir, time.Minute)
	health.CheckAll(context.Background())

	srv := NewServer(ServerDeps{
		Topology:   service.NewTopologyService(dir),
		Comparison: cmp,
		Sync:       service.NewSyncService(realms, cmp, dispatcher),
		Tags:       service.NewTagService(dir, dir, pools.General, dispatcher),
		Health:     health,
		Readiness:  readiness,
	})

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.ErrorHandler())
	router.GET("/health/live", srv.GetLiveness)
	router.GET("/health/ready", srv.GetReadiness)
	v1 := router.Group("/api/v1", middleware.MustOpenAPIValidator("/api/v1"))
	v1.GET("/clusters", srv.ListClusters)
	v1.GET("/topology", srv.GetTopology)
	v1.GET("/tags", srv.ListTags)
	v1.POST("/comparisons", srv.CompareRealms)
	v1.POST("/comparisons/sync", srv.SyncEntities)
	v1.POST("/tags/plan", srv.PlanTags)
	v1.POST("/tags/apply", srv.ApplyTags)

	return &testEnv{router: router, realms: realms, dir: dir}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func TestHealthProbes(t *testing.T) {
	env := newTestEnv(t, map[string]ReadinessCheck{
		"directory": func(context.Context) error { return nil },
	})
	w, body := env.do(t, http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, HealthStatusOK, body["status"])

	w, body = env.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"directory": "ok"}, body["checks"])

	down := newTestEnv(t, map[string]ReadinessCheck{
		"database": func(context.Context) error { return errors.New("refused") },
	})
	w, body = down.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, HealthStatusDegraded, body["status"])
}

func TestListClustersTopologyTags(t *testing.T) {
	env := newTestEnv(t, nil)

	w, body := env.do(t, http.MethodGet, "/api/v1/clusters", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	clusters := body["clusters"].([]any)
	require.Len(t, clusters, 2)
	first := clusters[0].(map[string]any)
	assert.Equal(t, "a", first["id"])
	assert.Equal(t, string(provider.ClusterStatusHealthy), first["status"])

	w, body = env.do(t, http.MethodGet, "/api/v1/topology", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, body["count"])
	nodes := body["nodes"].([]any)
	require.Len(t, nodes, 1)
	assert.Equal(t, "instance", nodes[0].(map[string]any)["kind"])

	w, body = env.do(t, http.MethodGet, "/api/v1/tags", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, body["tags"], 2)
}

func TestCompareRealms(t *testing.T) {
	env := newTestEnv(t, nil)
	env.realms.Seed("a", domain.Role{Name: "admin"}, domain.Role{Name: "viewer"})
	env.realms.Seed("b", domain.Role{Name: "admin"})

	w, body := env.do(t, http.MethodPost, "/api/v1/comparisons",
		`{"source_cluster_id":"a","destination_cluster_id":"b","categories":["roles"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	roles := body["categories"].(map[string]any)["roles"].(map[string]any)
	summary := roles["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["match"])
	assert.EqualValues(t, 1, summary["missing_in_destination"])
	assert.Equal(t, false, roles["degraded"])
}

func TestCompareRealms_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"same cluster", `{"source_cluster_id":"a","destination_cluster_id":"a"}`, http.StatusBadRequest, "SAME_CLUSTER_COMPARISON"},
		{"unknown cluster", `{"source_cluster_id":"a","destination_cluster_id":"zz"}`, http.StatusNotFound, "CLUSTER_NOT_FOUND"},
		{"contract violation", `{"source_cluster_id":"a"}`, http.StatusBadRequest, "VALIDATION_FAILED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w, body := env.do(t, http.MethodPost, "/api/v1/comparisons", tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, body["code"])
		})
	}
}

func TestSyncEntities(t *testing.T) {
	env := newTestEnv(t, nil)
	env.realms.Seed("a", domain.Role{Name: "admin"}, domain.Role{Name: "viewer"})

	w, body := env.do(t, http.MethodPost, "/api/v1/comparisons/sync",
		`{"source_cluster_id":"a","destination_cluster_id":"b","category":"roles","selection":{"admin":true,"viewer":true}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []any{"admin", "viewer"}, body["synced"])
	require.Contains(t, body, "comparison")

	env.realms.FailSync("viewer", errors.New("conflict"))
	w, body = env.do(t, http.MethodPost, "/api/v1/comparisons/sync",
		`{"source_cluster_id":"a","destination_cluster_id":"b","category":"roles","selection":{"admin":true,"viewer":true}}`)
	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())
	failed := body["failed"].([]any)
	require.Len(t, failed, 1)
	assert.Equal(t, "viewer", failed[0].(map[string]any)["key"])

	w, body = env.do(t, http.MethodPost, "/api/v1/comparisons/sync",
		`{"source_cluster_id":"a","destination_cluster_id":"b","category":"roles","selection":{"admin":false}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EMPTY_SELECTION", body["code"])
}

func TestPlanAndApplyTags(t *testing.T) {
	env := newTestEnv(t, nil)

	w, body := env.do(t, http.MethodPost, "/api/v1/tags/plan", `{"cluster_ids":["a","b"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	states := body["states"].(map[string]any)
	assert.Equal(t, "checked", states["prod"])
	assert.Equal(t, "indeterminate", states["eu"])

	w, body = env.do(t, http.MethodPost, "/api/v1/tags/apply", `{"cluster_ids":["a","b"],"checked":{"eu":true}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	batches := body["batches"].([]any)
	require.Len(t, batches, 1)
	assert.Equal(t, []any{"a"}, batches[0].(map[string]any)["cluster_ids"])

	a, err := env.dir.GetCluster(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"eu", "prod"}, a.TagIDs)

	w, body = env.do(t, http.MethodPost, "/api/v1/tags/plan", `{"cluster_ids":["a"],"checked":{"ghost":true}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "TAG_NOT_FOUND", body["code"])
}
