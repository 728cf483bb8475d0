package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"kc-steward.io/steward/internal/domain"
	"kc-steward.io/steward/internal/pkg/logger"
	"kc-steward.io/steward/internal/pkg/worker"
)

// ErrNestedGroupSync is returned when asked to sync a group below the top level.
// Partial import only places groups at the root, so the top-level ancestor must be
// synced instead.
var ErrNestedGroupSync = errors.New("nested groups are synced through their top-level group")

// ifResourceExistsOverwrite is the partial import policy used for every sync.
const ifResourceExistsOverwrite = "OVERWRITE"

// KeycloakCredentials is the service account shared by every managed instance.
type KeycloakCredentials struct {
	TokenRealm   string
	ClientID     string
	ClientSecret string
	PageSize     int
	Timeout      time.Duration
}

// KeycloakProvider reads and writes realms through the Keycloak Admin REST API.
// Clusters are resolved through the directory; one client is cached per cluster.
type KeycloakProvider struct {
	directory  ClusterDirectory
	creds      KeycloakCredentials
	httpClient *http.Client
	mapper     *KeycloakMapper
	// lookups fans out per-user membership calls; nil runs them sequentially.
	lookups *worker.Pool

	mu      sync.Mutex
	clients map[string]*KeycloakClient
}

// NewKeycloakProvider creates a provider. lookups may be nil.
func NewKeycloakProvider(directory ClusterDirectory, creds KeycloakCredentials, lookups *worker.Pool) *KeycloakProvider {
	timeout := creds.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &KeycloakProvider{
		directory:  directory,
		creds:      creds,
		httpClient: &http.Client{Timeout: timeout},
		mapper:     NewKeycloakMapper(),
		lookups:    lookups,
		clients:    make(map[string]*KeycloakClient),
	}
}

func (p *KeycloakProvider) Name() string { return "keycloak" }

// clientFor returns the cached client of a cluster, creating it on first use.
// A cluster whose URL or realm changed gets a fresh client.
func (p *KeycloakProvider) clientFor(ctx context.Context, clusterID string) (*KeycloakClient, error) {
	cluster, err := p.directory.GetCluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	return p.clientForCluster(*cluster), nil
}

func (p *KeycloakProvider) clientForCluster(cluster domain.Cluster) *KeycloakClient {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[cluster.ID]; ok &&
		c.baseURL == strings.TrimRight(cluster.BaseURL, "/") && c.realm == cluster.Realm {
		return c
	}
	c := NewKeycloakClient(KeycloakClientConfig{
		BaseURL:      cluster.BaseURL,
		Realm:        cluster.Realm,
		TokenRealm:   p.creds.TokenRealm,
		ClientID:     p.creds.ClientID,
		ClientSecret: p.creds.ClientSecret,
		PageSize:     p.creds.PageSize,
	}, p.httpClient)
	p.clients[cluster.ID] = c
	return c
}

// Ping implements RealmPinger.
func (p *KeycloakProvider) Ping(ctx context.Context, cluster domain.Cluster) error {
	_, err := p.clientForCluster(cluster).RealmInfo(ctx)
	return err
}

// FetchEntities implements EntitySource.
func (p *KeycloakProvider) FetchEntities(ctx context.Context, clusterID string, category domain.Category) ([]domain.Entity, error) {
	c, err := p.clientFor(ctx, clusterID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var entities []domain.Entity
	switch category {
	case domain.CategoryRoles:
		entities, err = p.fetchRoles(ctx, c)
	case domain.CategoryClients:
		entities, err = p.fetchClients(ctx, c)
	case domain.CategoryGroups:
		entities, err = p.fetchGroups(ctx, c)
	case domain.CategoryUsers:
		entities, err = p.fetchUsers(ctx, c)
	default:
		return nil, fmt.Errorf("unknown category %q", category)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s from cluster %s: %w", category, clusterID, err)
	}

	logger.Debug("Fetched realm entities",
		zap.String("cluster_id", clusterID),
		zap.String("category", string(category)),
		zap.Int("count", len(entities)),
		zap.Duration("duration", time.Since(start)),
	)
	return entities, nil
}

func (p *KeycloakProvider) fetchRoles(ctx context.Context, c *KeycloakClient) ([]domain.Entity, error) {
	reps, err := c.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Entity, 0, len(reps))
	for _, rep := range reps {
		var composites []RoleRepresentation
		if rep.Composite != nil && *rep.Composite {
			if composites, err = c.ListRoleComposites(ctx, rep.Name); err != nil {
				return nil, err
			}
		}
		role, err := p.mapper.MapRole(rep, composites)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}

func (p *KeycloakProvider) fetchClients(ctx context.Context, c *KeycloakClient) ([]domain.Entity, error) {
	reps, err := c.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	scopeList, err := c.ListClientScopes(ctx)
	if err != nil {
		return nil, err
	}
	scopes := make(map[string]ClientScopeRepresentation, len(scopeList))
	for _, s := range scopeList {
		scopes[s.Name] = s
	}

	out := make([]domain.Entity, 0, len(reps))
	for _, rep := range reps {
		client, err := p.mapper.MapClient(rep, scopes)
		if err != nil {
			return nil, err
		}
		out = append(out, client)
	}
	return out, nil
}

func (p *KeycloakProvider) fetchGroups(ctx context.Context, c *KeycloakClient) ([]domain.Entity, error) {
	roots, err := c.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	groups := p.mapper.FlattenGroups(roots)
	out := make([]domain.Entity, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	return out, nil
}

func (p *KeycloakProvider) fetchUsers(ctx context.Context, c *KeycloakClient) ([]domain.Entity, error) {
	reps, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, len(reps))
	errs := make([]error, len(reps))
	load := func(i int) worker.Task {
		return func(ctx context.Context) {
			rep := reps[i]
			groups, err := c.GetUserGroups(ctx, rep.ID)
			if err != nil {
				errs[i] = err
				return
			}
			roles, err := c.GetUserRealmRoles(ctx, rep.ID)
			if err != nil {
				errs[i] = err
				return
			}
			users[i], errs[i] = p.mapper.MapUser(rep, groups, roles)
		}
	}

	if p.lookups != nil {
		tasks := make([]worker.Task, len(reps))
		for i := range reps {
			tasks[i] = load(i)
		}
		if err := p.lookups.RunAll(ctx, tasks...); err != nil {
			return nil, err
		}
	} else {
		for i := range reps {
			load(i)(ctx)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	out := make([]domain.Entity, 0, len(users))
	for i, u := range users {
		if u.Username == "" {
			return nil, fmt.Errorf("user %s: lookup did not complete", reps[i].ID)
		}
		out = append(out, u)
	}
	return out, nil
}

// SyncEntity implements EntitySyncer. The source definition is copied with a
// partial import that overwrites an existing entity of the same key.
func (p *KeycloakProvider) SyncEntity(ctx context.Context, sourceClusterID, destinationClusterID string, category domain.Category, key string) error {
	src, err := p.clientFor(ctx, sourceClusterID)
	if err != nil {
		return err
	}
	dst, err := p.clientFor(ctx, destinationClusterID)
	if err != nil {
		return err
	}

	req, err := p.importRequest(ctx, src, category, key)
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s %q: %w", category, key, ErrEntityNotFound)
		}
		return err
	}

	res, err := dst.PartialImport(ctx, *req)
	if err != nil {
		return err
	}
	logger.Info("Entity synced",
		zap.String("source_cluster_id", sourceClusterID),
		zap.String("destination_cluster_id", destinationClusterID),
		zap.String("category", string(category)),
		zap.String("key", key),
		zap.Int("added", res.Added),
		zap.Int("overwritten", res.Overwritten),
	)
	return nil
}

func (p *KeycloakProvider) importRequest(ctx context.Context, src *KeycloakClient, category domain.Category, key string) (*PartialImportRequest, error) {
	req := &PartialImportRequest{IfResourceExists: ifResourceExistsOverwrite}

	switch category {
	case domain.CategoryRoles:
		raw, err := src.GetRoleRaw(ctx, key)
		if err != nil {
			return nil, err
		}
		if composite, _ := raw["composite"].(bool); composite {
			if raw["composites"], err = roleComposites(ctx, src, key); err != nil {
				return nil, err
			}
		}
		req.Roles = &PartialImportRoles{Realm: []map[string]any{stripIDs(raw)}}

	case domain.CategoryClients:
		raw, err := src.GetClientRaw(ctx, key)
		if err != nil {
			return nil, err
		}
		req.Clients = []map[string]any{stripIDs(raw)}

	case domain.CategoryGroups:
		if strings.Count(strings.Trim(key, "/"), "/") > 0 {
			return nil, fmt.Errorf("group %q: %w", key, ErrNestedGroupSync)
		}
		raw, err := src.GetGroupRaw(ctx, key)
		if err != nil {
			return nil, err
		}
		req.Groups = []map[string]any{stripIDs(raw)}

	case domain.CategoryUsers:
		raw, err := src.GetUserRaw(ctx, key)
		if err != nil {
			return nil, err
		}
		id, _ := raw["id"].(string)
		groups, err := src.GetUserGroups(ctx, id)
		if err != nil {
			return nil, err
		}
		roles, err := src.GetUserRealmRoles(ctx, id)
		if err != nil {
			return nil, err
		}
		user := stripIDs(raw)
		delete(user, "createdTimestamp")
		delete(user, "access")
		paths := make([]string, 0, len(groups))
		for _, g := range groups {
			paths = append(paths, g.Path)
		}
		names := make([]string, 0, len(roles))
		for _, r := range roles {
			names = append(names, r.Name)
		}
		user["groups"] = paths
		user["realmRoles"] = names
		req.Users = []map[string]any{user}

	default:
		return nil, fmt.Errorf("unknown category %q", category)
	}
	return req, nil
}

// stripIDs removes server-assigned identifiers at every level of a representation.
// roleComposites builds the composites tree partialImport expects. GET
// /roles/{name} omits it. Client roles are keyed by clientId, which the
// composites listing only gives as the client's internal ID.
func roleComposites(ctx context.Context, src *KeycloakClient, roleName string) (map[string]any, error) {
	members, err := src.ListRoleComposites(ctx, roleName)
	if err != nil {
		return nil, err
	}
	realm := []string{}
	byContainer := map[string][]string{}
	for _, m := range members {
		if m.ClientRole != nil && *m.ClientRole {
			byContainer[m.ContainerID] = append(byContainer[m.ContainerID], m.Name)
			continue
		}
		realm = append(realm, m.Name)
	}
	out := map[string]any{"realm": realm}
	if len(byContainer) == 0 {
		return out, nil
	}

	clients, err := src.ListClients(ctx)
	if err != nil {
		return nil, err
	}
	clientIDs := make(map[string]string, len(clients))
	for _, c := range clients {
		clientIDs[c.ID] = c.ClientID
	}
	client := make(map[string]any, len(byContainer))
	for container, names := range byContainer {
		clientID, ok := clientIDs[container]
		if !ok {
			return nil, fmt.Errorf("composite of role %q: unknown client %q", roleName, container)
		}
		client[clientID] = names
	}
	out["client"] = client
	return out, nil
}

func stripIDs(raw map[string]any) map[string]any {
	delete(raw, "id")
	delete(raw, "containerId")
	for _, v := range raw {
		switch t := v.(type) {
		case map[string]any:
			stripIDs(t)
		case []any:
			for _, item := range t {
				if m, ok := item.(map[string]any); ok {
					stripIDs(m)
				}
			}
		}
	}
	return raw
}
