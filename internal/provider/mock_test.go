package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/pkg/worker"
)

func TestMockRealms_FetchAndSync(t *testing.T) {
	m := NewMockRealms()
	m.Seed("a", domain.Role{Name: "admin", Description: domain.Ptr("x")}, domain.User{Username: "bob"})

	roles, err := m.FetchEntities(context.Background(), "a", domain.CategoryRoles)
	require.NoError(t, err)
	require.Len(t, roles, 1)

	empty, err := m.FetchEntities(context.Background(), "b", domain.CategoryRoles)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, m.SyncEntity(context.Background(), "a", "b", domain.CategoryRoles, "admin"))
	synced, err := m.FetchEntities(context.Background(), "b", domain.CategoryRoles)
	require.NoError(t, err)
	assert.Equal(t, roles, synced)

	err = m.SyncEntity(context.Background(), "a", "b", domain.CategoryRoles, "ghost")
	assert.ErrorIs(t, err, ErrEntityNotFound)
	assert.Len(t, m.SyncCalls(), 2)
}

func TestMockRealms_FailureInjection(t *testing.T) {
	m := NewMockRealms()
	boom := errors.New("boom")

	m.FailFetch("a", boom)
	_, err := m.FetchEntities(context.Background(), "a", domain.CategoryUsers)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, m.Ping(context.Background(), domain.Cluster{ID: "a"}), boom)

	m.FailFetch("a", nil)
	_, err = m.FetchEntities(context.Background(), "a", domain.CategoryUsers)
	assert.NoError(t, err)

	m.FailSync("k", boom)
	assert.ErrorIs(t, m.SyncEntity(context.Background(), "a", "b", domain.CategoryUsers, "k"), boom)

	m.Reset()
	assert.Empty(t, m.SyncCalls())
}

func TestMapper_FlattenGroupsBuildsMissingPaths(t *testing.T) {
	groups := NewKeycloakMapper().FlattenGroups([]GroupRepresentation{{
		Name: "ops",
		SubGroups: []GroupRepresentation{
			{Name: "oncall", SubGroups: []GroupRepresentation{{Name: "night"}}},
		},
	}})

	require.Len(t, groups, 3)
	assert.Equal(t, "/ops", groups[0].Path)
	assert.Equal(t, "/ops/oncall", groups[1].Path)
	assert.Equal(t, "/ops/oncall/night", groups[2].Path)
	assert.Equal(t, []string{"night"}, groups[1].SubGroups)
}

func TestMapper_RejectsMissingKeys(t *testing.T) {
	m := NewKeycloakMapper()
	_, err := m.MapRole(RoleRepresentation{}, nil)
	assert.Error(t, err)
	_, err = m.MapClient(ClientRepresentation{}, nil)
	assert.Error(t, err)
	_, err = m.MapUser(UserRepresentation{}, nil, nil)
	assert.Error(t, err)
}

func TestMapper_UnknownScopeYieldsEmptyMapperField(t *testing.T) {
	client, err := NewKeycloakMapper().MapClient(ClientRepresentation{
		ClientID:             "portal",
		OptionalClientScopes: []string{"missing"},
	}, nil)
	require.NoError(t, err)

	mappers, ok := client.Fields().Sets[domain.MapperField("missing")]
	require.True(t, ok)
	assert.Empty(t, mappers)
	_, dedicated := client.ScopeMappers[DedicatedScope]
	assert.False(t, dedicated)
}

func TestHealthChecker_CheckAll(t *testing.T) {
	m := NewMockRealms()
	m.FailFetch("down", errors.New("connection refused"))
	dir := staticDirectory{{ID: "up", Name: "Up"}, {ID: "down", Name: "Down"}}

	hc := NewClusterHealthChecker(m, dir, time.Minute)
	assert.Equal(t, ClusterStatusUnknown, hc.GetHealth("up").Status)

	hc.CheckAll(context.Background())
	assert.Equal(t, ClusterStatusHealthy, hc.GetHealth("up").Status)
	down := hc.GetHealth("down")
	assert.Equal(t, ClusterStatusUnreachable, down.Status)
	assert.Contains(t, down.Error, "connection refused")

	snap := hc.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "down", snap[0].ClusterID)

	hc2 := NewClusterHealthChecker(m, staticDirectory{{ID: "up"}}, time.Minute)
	hc2.results = hc.results
	hc2.CheckAll(context.Background())
	assert.Len(t, hc2.Snapshot(), 1, "clusters that left the directory are dropped")

	hc.Stop()
	hc.Stop()
}

func TestHealthChecker_CheckAllOnPool(t *testing.T) {
	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{GeneralPoolSize: 2, IdPPoolSize: 1})
	require.NoError(t, err)
	defer pools.Shutdown()

	m := NewMockRealms()
	m.FailFetch("c", errors.New("timeout"))
	dir := staticDirectory{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	hc := NewClusterHealthChecker(m, dir, time.Minute).UsePool(pools.General)
	hc.CheckAll(context.Background())

	assert.Equal(t, ClusterStatusHealthy, hc.GetHealth("a").Status)
	assert.Equal(t, ClusterStatusHealthy, hc.GetHealth("b").Status)
	assert.Equal(t, ClusterStatusUnreachable, hc.GetHealth("c").Status)
}
