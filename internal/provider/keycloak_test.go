package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/pkg/logger"
	"kc-steward.io/steward/internal/pkg/worker"
)

func init() {
	_ = logger.Init("error", "json")
}

// fakeKeycloak serves a token endpoint for realm "master" and a small admin API
// for realm "prod".
type fakeKeycloak struct {
	t             *testing.T
	tokenRequests atomic.Int32
	mu            sync.Mutex
	imports       []map[string]any
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeKeycloak) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/realms/master/protocol/openid-connect/token" {
		f.tokenRequests.Add(1)
		if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Form.Get("client_secret") != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
			return
		}
		writeJSON(w, TokenResponse{AccessToken: "tok", TokenType: "Bearer", ExpiresIn: 300})
		return
	}
	if r.Header.Get("Authorization") != "Bearer tok" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/admin/realms/prod")
	switch {
	case path == "":
		writeJSON(w, RealmRepresentation{Realm: "prod", Enabled: true})
	case path == "/roles":
		if r.URL.Query().Get("first") != "0" {
			writeJSON(w, []RoleRepresentation{})
			return
		}
		writeJSON(w, []RoleRepresentation{
			{ID: "r1", Name: "admin", Composite: domain.Ptr(true), Description: domain.Ptr("Admins")},
			{ID: "r2", Name: "viewer", Composite: domain.Ptr(false)},
		})
	case path == "/roles/admin/composites":
		writeJSON(w, []RoleRepresentation{
			{Name: "viewer", ContainerID: "prod"},
			{Name: "portal-admin", ClientRole: domain.Ptr(true), ContainerID: "c1"},
		})
	case path == "/roles/admin":
		writeJSON(w, map[string]any{"id": "r1", "name": "admin", "containerId": "prod", "description": "Admins", "composite": true})
	case path == "/roles/ghost":
		w.WriteHeader(http.StatusNotFound)
	case path == "/clients":
		if id := r.URL.Query().Get("clientId"); id != "" {
			writeJSON(w, []map[string]any{{
				"id": "c1", "clientId": id,
				"protocolMappers": []any{map[string]any{"id": "pm1", "name": "aud"}},
			}})
			return
		}
		writeJSON(w, []ClientRepresentation{{
			ID: "c1", ClientID: "portal", Protocol: domain.Ptr("openid-connect"),
			DefaultClientScopes: []string{"profile"},
			ProtocolMappers:     []ProtocolMapperRepresentation{{Name: "aud"}},
		}})
	case path == "/client-scopes":
		writeJSON(w, []ClientScopeRepresentation{{
			Name:            "profile",
			ProtocolMappers: []ProtocolMapperRepresentation{{Name: "given name"}, {Name: "family name"}},
		}})
	case path == "/groups":
		writeJSON(w, []GroupRepresentation{{ID: "g1", Name: "ops", Path: "/ops", SubGroupCount: 1}})
	case path == "/groups/g1/children":
		writeJSON(w, []GroupRepresentation{{ID: "g2", Name: "oncall", Path: "/ops/oncall"}})
	case path == "/users":
		if name := r.URL.Query().Get("username"); name != "" {
			writeJSON(w, []map[string]any{{
				"id": "u1", "username": name, "createdTimestamp": 1700000000000,
				"access": map[string]any{"manage": true},
			}})
			return
		}
		writeJSON(w, []UserRepresentation{{ID: "u1", Username: "alice", Enabled: domain.Ptr(true)}})
	case path == "/users/u1/groups":
		writeJSON(w, []GroupRepresentation{{Name: "oncall", Path: "/ops/oncall"}})
	case path == "/users/u1/role-mappings/realm":
		writeJSON(w, []RoleRepresentation{{Name: "viewer"}})
	case path == "/partialImport" && r.Method == http.MethodPost:
		var body map[string]any
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.imports = append(f.imports, body)
		f.mu.Unlock()
		writeJSON(w, PartialImportResponse{Added: 1})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFakeKeycloak(t *testing.T) (*fakeKeycloak, *httptest.Server) {
	t.Helper()
	fk := &fakeKeycloak{t: t}
	srv := httptest.NewServer(fk)
	t.Cleanup(srv.Close)
	return fk, srv
}

// staticDirectory is a fixed ClusterDirectory.
type staticDirectory []domain.Cluster

func (d staticDirectory) ListClusters(context.Context) ([]domain.Cluster, error) { return d, nil }
func (d staticDirectory) ListTags(context.Context) ([]domain.Tag, error)         { return nil, nil }
func (d staticDirectory) GetCluster(_ context.Context, id string) (*domain.Cluster, error) {
	for i := range d {
		if d[i].ID == id {
			return &d[i], nil
		}
	}
	return nil, ErrClusterNotFound
}

func newTestProvider(t *testing.T, srv *httptest.Server, lookups *worker.Pool) *KeycloakProvider {
	t.Helper()
	dir := staticDirectory{
		{ID: "src", Name: "source", BaseURL: srv.URL, Realm: "prod"},
		{ID: "dst", Name: "destination", BaseURL: srv.URL + "/", Realm: "prod"},
	}
	return NewKeycloakProvider(dir, KeycloakCredentials{
		TokenRealm:   "master",
		ClientID:     "steward",
		ClientSecret: "s3cret",
	}, lookups)
}

func TestKeycloakClient_TokenCaching(t *testing.T) {
	fk, srv := newFakeKeycloak(t)
	c := NewKeycloakClient(KeycloakClientConfig{
		BaseURL: srv.URL, Realm: "prod", TokenRealm: "master", ClientID: "steward", ClientSecret: "s3cret",
	}, srv.Client())

	_, err := c.RealmInfo(context.Background())
	require.NoError(t, err)
	_, err = c.RealmInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fk.tokenRequests.Load())

	// Within the refresh skew the token is replaced.
	c.tokenExpiry = time.Now().Add(10 * time.Second)
	_, err = c.RealmInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), fk.tokenRequests.Load())
}

func TestKeycloakClient_TokenError(t *testing.T) {
	_, srv := newFakeKeycloak(t)
	c := NewKeycloakClient(KeycloakClientConfig{
		BaseURL: srv.URL, Realm: "prod", TokenRealm: "master", ClientID: "steward", ClientSecret: "wrong",
	}, srv.Client())

	_, err := c.RealmInfo(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestKeycloakClient_StatusError(t *testing.T) {
	_, srv := newFakeKeycloak(t)
	c := NewKeycloakClient(KeycloakClientConfig{
		BaseURL: srv.URL, Realm: "prod", TokenRealm: "master", ClientID: "steward", ClientSecret: "s3cret",
	}, srv.Client())

	_, err := c.GetRoleRaw(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, isNotFound(err))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestKeycloakProvider_FetchRoles(t *testing.T) {
	_, srv := newFakeKeycloak(t)
	p := newTestProvider(t, srv, nil)

	entities, err := p.FetchEntities(context.Background(), "src", domain.CategoryRoles)
	require.NoError(t, err)
	require.Len(t, entities, 2)

	admin := entities[0].(domain.Role)
	assert.Equal(t, "admin", admin.Name)
	assert.Equal(t, []string{"viewer", "portal-admin"}, admin.CompositeRoles)
	assert.Nil(t, entities[1].(domain.Role).CompositeRoles)
}

func TestKeycloakProvider_FetchClientsResolvesScopeMappers(t *testing.T) {
	_, srv := newFakeKeycloak(t)
	p := newTestProvider(t, srv, nil)

	entities, err := p.FetchEntities(context.Background(), "src", domain.CategoryClients)
	require.NoError(t, err)
	require.Len(t, entities, 1)

	fields := entities[0].Fields()
	assert.Equal(t, []string{"family name", "given name"}, fields.Sets[domain.MapperField("profile")])
	assert.Equal(t, []string{"aud"}, fields.Sets[domain.MapperField(DedicatedScope)])
}

func TestKeycloakProvider_FetchGroupsFollowsChildren(t *testing.T) {
	_, srv := newFakeKeycloak(t)
	p := newTestProvider(t, srv, nil)

	entities, err := p.FetchEntities(context.Background(), "src", domain.CategoryGroups)
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "/ops", entities[0].Key())
	assert.Equal(t, []string{"oncall"}, entities[0].(domain.Group).SubGroups)
	assert.Equal(t, "/ops/oncall", entities[1].Key())
}

func TestKeycloakProvider_FetchUsersThroughPool(t *testing.T) {
	_, srv := newFakeKeycloak(t)
	pools, err := worker.NewPools(context.Background(), worker.PoolConfig{GeneralPoolSize: 2, IdPPoolSize: 2})
	require.NoError(t, err)
	defer pools.Shutdown()
	p := newTestProvider(t, srv, pools.IdP)

	entities, err := p.FetchEntities(context.Background(), "src", domain.CategoryUsers)
	require.NoError(t, err)
	require.Len(t, entities, 1)

	alice := entities[0].(domain.User)
	assert.Equal(t, []string{"/ops/oncall"}, alice.Groups)
	assert.Equal(t, []string{"viewer"}, alice.RealmRoles)
}

func TestKeycloakProvider_UnknownCluster(t *testing.T) {
	_, srv := newFakeKeycloak(t)
	p := newTestProvider(t, srv, nil)

	_, err := p.FetchEntities(context.Background(), "nope", domain.CategoryRoles)
	assert.ErrorIs(t, err, ErrClusterNotFound)
}

func TestKeycloakProvider_SyncRoleUsesPartialImport(t *testing.T) {
	fk, srv := newFakeKeycloak(t)
	p := newTestProvider(t, srv, nil)

	require.NoError(t, p.SyncEntity(context.Background(), "src", "dst", domain.CategoryRoles, "admin"))

	require.Len(t, fk.imports, 1)
	body := fk.imports[0]
	assert.Equal(t, "OVERWRITE", body["ifResourceExists"])
	realm := body["roles"].(map[string]any)["realm"].([]any)
	role := realm[0].(map[string]any)
	assert.Equal(t, "admin", role["name"])
	assert.NotContains(t, role, "id")
	assert.NotContains(t, role, "containerId")

	composites := role["composites"].(map[string]any)
	assert.Equal(t, []any{"viewer"}, composites["realm"])
	assert.Equal(t, map[string]any{"portal": []any{"portal-admin"}}, composites["client"])
}

func TestKeycloakProvider_SyncClientStripsNestedIDs(t *testing.T) {
	fk, srv := newFakeKeycloak(t)
	p := newTestProvider(t, srv, nil)

	require.NoError(t, p.SyncEntity(context.Background(), "src", "dst", domain.CategoryClients, "portal"))

	client := fk.imports[0]["clients"].([]any)[0].(map[string]any)
	mapper := client["protocolMappers"].([]any)[0].(map[string]any)
	assert.NotContains(t, client, "id")
	assert.NotContains(t, mapper, "id")
	assert.Equal(t, "aud", mapper["name"])
}

func TestKeycloakProvider_SyncUserCarriesMemberships(t *testing.T) {
	fk, srv := newFakeKeycloak(t)
	p := newTestProvider(t, srv, nil)

	require.NoError(t, p.SyncEntity(context.Background(), "src", "dst", domain.CategoryUsers, "alice"))

	user := fk.imports[0]["users"].([]any)[0].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, []any{"/ops/oncall"}, user["groups"])
	assert.Equal(t, []any{"viewer"}, user["realmRoles"])
	assert.NotContains(t, user, "id")
	assert.NotContains(t, user, "createdTimestamp")
	assert.NotContains(t, user, "access")
}

func TestKeycloakProvider_SyncMissingEntity(t *testing.T) {
	_, srv := newFakeKeycloak(t)
	p := newTestProvider(t, srv, nil)

	err := p.SyncEntity(context.Background(), "src", "dst", domain.CategoryRoles, "ghost")
	assert.ErrorIs(t, err, ErrEntityNotFound)
}

func TestKeycloakProvider_SyncNestedGroupRejected(t *testing.T) {
	_, srv := newFakeKeycloak(t)
	p := newTestProvider(t, srv, nil)

	err := p.SyncEntity(context.Background(), "src", "dst", domain.CategoryGroups, "/ops/oncall")
	assert.ErrorIs(t, err, ErrNestedGroupSync)
}

func TestKeycloakProvider_Ping(t *testing.T) {
	_, srv := newFakeKeycloak(t)
	p := newTestProvider(t, srv, nil)

	assert.NoError(t, p.Ping(context.Background(), domain.Cluster{ID: "src", BaseURL: srv.URL, Realm: "prod"}))
	assert.Error(t, p.Ping(context.Background(), domain.Cluster{ID: "x", BaseURL: srv.URL, Realm: "other"}))
}
