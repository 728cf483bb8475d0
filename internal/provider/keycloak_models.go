package provider

// Wire representations of the Keycloak Admin REST API. Optional values are
// pointers so an omitted attribute stays distinguishable from a zero value.

// TokenResponse is the client-credentials token response.
type TokenResponse struct {
	AccessToken string `json:"access_token"` //nolint:gosec // OAuth2 token struct
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// RealmRepresentation is the short realm info.
type RealmRepresentation struct {
	Realm   string `json:"realm"`
	Enabled bool   `json:"enabled"`
}

// RoleRepresentation is a realm role.
type RoleRepresentation struct {
	ID          string              `json:"id,omitempty"`
	Name        string              `json:"name"`
	Description *string             `json:"description,omitempty"`
	Composite   *bool               `json:"composite,omitempty"`
	ClientRole  *bool               `json:"clientRole,omitempty"`
	ContainerID string              `json:"containerId,omitempty"`
	Attributes  map[string][]string `json:"attributes,omitempty"`
}

// ProtocolMapperRepresentation is a protocol mapper of a client or client scope.
type ProtocolMapperRepresentation struct {
	Name           string `json:"name"`
	Protocol       string `json:"protocol,omitempty"`
	ProtocolMapper string `json:"protocolMapper,omitempty"`
}

// ClientRepresentation is a realm client.
type ClientRepresentation struct {
	ID                     string                         `json:"id,omitempty"`
	ClientID               string                         `json:"clientId"`
	Name                   string                         `json:"name,omitempty"`
	Protocol               *string                        `json:"protocol,omitempty"`
	Enabled                *bool                          `json:"enabled,omitempty"`
	PublicClient           *bool                          `json:"publicClient,omitempty"`
	BearerOnly             *bool                          `json:"bearerOnly,omitempty"`
	ServiceAccountsEnabled *bool                          `json:"serviceAccountsEnabled,omitempty"`
	DefaultClientScopes    []string                       `json:"defaultClientScopes,omitempty"`
	OptionalClientScopes   []string                       `json:"optionalClientScopes,omitempty"`
	ProtocolMappers        []ProtocolMapperRepresentation `json:"protocolMappers,omitempty"`
}

// ClientScopeRepresentation is a realm client scope.
type ClientScopeRepresentation struct {
	ID              string                         `json:"id,omitempty"`
	Name            string                         `json:"name"`
	Protocol        string                         `json:"protocol,omitempty"`
	ProtocolMappers []ProtocolMapperRepresentation `json:"protocolMappers,omitempty"`
}

// GroupRepresentation is a realm group, possibly with nested sub-groups.
type GroupRepresentation struct {
	ID            string                `json:"id,omitempty"`
	Name          string                `json:"name"`
	Path          string                `json:"path"`
	SubGroupCount int                   `json:"subGroupCount,omitempty"`
	SubGroups     []GroupRepresentation `json:"subGroups,omitempty"`
	RealmRoles    []string              `json:"realmRoles,omitempty"`
	ClientRoles   map[string][]string   `json:"clientRoles,omitempty"`
	Attributes    map[string][]string   `json:"attributes,omitempty"`
}

// UserRepresentation is a realm user.
type UserRepresentation struct {
	ID              string   `json:"id,omitempty"`
	Username        string   `json:"username"`
	Enabled         *bool    `json:"enabled,omitempty"`
	Email           *string  `json:"email,omitempty"`
	EmailVerified   *bool    `json:"emailVerified,omitempty"`
	FirstName       *string  `json:"firstName,omitempty"`
	LastName        *string  `json:"lastName,omitempty"`
	RequiredActions []string `json:"requiredActions,omitempty"`
}

// PartialImportRequest is the body of POST /admin/realms/{realm}/partialImport.
// Entities are passed through as raw representations.
type PartialImportRequest struct {
	IfResourceExists string              `json:"ifResourceExists"`
	Roles            *PartialImportRoles `json:"roles,omitempty"`
	Clients          []map[string]any    `json:"clients,omitempty"`
	Groups           []map[string]any    `json:"groups,omitempty"`
	Users            []map[string]any    `json:"users,omitempty"`
}

// PartialImportRoles carries realm roles for a partial import.
type PartialImportRoles struct {
	Realm []map[string]any `json:"realm,omitempty"`
}

// PartialImportResponse summarizes a partial import.
type PartialImportResponse struct {
	Overwritten int `json:"overwritten"`
	Added       int `json:"added"`
	Skipped     int `json:"skipped"`
}
