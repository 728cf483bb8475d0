package provider

import (
	"fmt"
	"sort"

	"kc-steward.io/steward/internal/domain"
)

// DedicatedScope names the mapper field holding a client's own protocol mappers.
const DedicatedScope = "dedicated"

// KeycloakMapper maps Admin REST representations to domain entities.
// Anti-Corruption Layer: isolates reconciliation from Keycloak API changes.
type KeycloakMapper struct{}

// NewKeycloakMapper creates a new KeycloakMapper.
func NewKeycloakMapper() *KeycloakMapper {
	return &KeycloakMapper{}
}

// MapRole maps a role and the names of the roles it is composed of.
func (m *KeycloakMapper) MapRole(rep RoleRepresentation, composites []RoleRepresentation) (domain.Role, error) {
	if rep.Name == "" {
		return domain.Role{}, fmt.Errorf("mapper: role name is empty")
	}
	role := domain.Role{
		Name:        rep.Name,
		Description: rep.Description,
		Composite:   rep.Composite,
		ClientRole:  rep.ClientRole,
		Attributes:  rep.Attributes,
	}
	for _, c := range composites {
		role.CompositeRoles = append(role.CompositeRoles, c.Name)
	}
	return role, nil
}

// MapClient maps a client. scopes is the realm's client-scope catalog keyed by name;
// assigned scopes missing from the catalog yield an empty mapper field.
func (m *KeycloakMapper) MapClient(rep ClientRepresentation, scopes map[string]ClientScopeRepresentation) (domain.Client, error) {
	if rep.ClientID == "" {
		return domain.Client{}, fmt.Errorf("mapper: clientId is empty")
	}
	client := domain.Client{
		ClientID:               rep.ClientID,
		Name:                   rep.Name,
		Protocol:               rep.Protocol,
		Enabled:                rep.Enabled,
		PublicClient:           rep.PublicClient,
		BearerOnly:             rep.BearerOnly,
		ServiceAccountsEnabled: rep.ServiceAccountsEnabled,
		DefaultClientScopes:    rep.DefaultClientScopes,
		OptionalClientScopes:   rep.OptionalClientScopes,
		ScopeMappers:           make(map[string][]string),
	}

	assigned := append(append([]string{}, rep.DefaultClientScopes...), rep.OptionalClientScopes...)
	for _, name := range assigned {
		client.ScopeMappers[name] = mapperNames(scopes[name].ProtocolMappers)
	}
	if len(rep.ProtocolMappers) > 0 {
		client.ScopeMappers[DedicatedScope] = mapperNames(rep.ProtocolMappers)
	}
	return client, nil
}

func mapperNames(mappers []ProtocolMapperRepresentation) []string {
	names := make([]string, 0, len(mappers))
	for _, pm := range mappers {
		names = append(names, pm.Name)
	}
	sort.Strings(names)
	return names
}

// FlattenGroups walks a group tree depth-first and returns every group once.
// A group without a path gets one built from its ancestors.
func (m *KeycloakMapper) FlattenGroups(roots []GroupRepresentation) []domain.Group {
	var out []domain.Group
	var walk func(parent string, g GroupRepresentation)
	walk = func(parent string, g GroupRepresentation) {
		path := g.Path
		if path == "" {
			path = parent + "/" + g.Name
		}
		group := domain.Group{
			Path:        path,
			Name:        g.Name,
			RealmRoles:  g.RealmRoles,
			ClientRoles: g.ClientRoles,
			Attributes:  g.Attributes,
		}
		for _, sub := range g.SubGroups {
			group.SubGroups = append(group.SubGroups, sub.Name)
		}
		out = append(out, group)
		for _, sub := range g.SubGroups {
			walk(path, sub)
		}
	}
	for _, r := range roots {
		walk("", r)
	}
	return out
}

// MapUser maps a user with its direct group memberships and realm role mappings.
func (m *KeycloakMapper) MapUser(rep UserRepresentation, groups []GroupRepresentation, roles []RoleRepresentation) (domain.User, error) {
	if rep.Username == "" {
		return domain.User{}, fmt.Errorf("mapper: username is empty")
	}
	user := domain.User{
		Username:        rep.Username,
		Enabled:         rep.Enabled,
		Email:           rep.Email,
		EmailVerified:   rep.EmailVerified,
		FirstName:       rep.FirstName,
		LastName:        rep.LastName,
		RequiredActions: rep.RequiredActions,
	}
	for _, g := range groups {
		user.Groups = append(user.Groups, g.Path)
	}
	for _, r := range roles {
		user.RealmRoles = append(user.RealmRoles, r.Name)
	}
	return user, nil
}
