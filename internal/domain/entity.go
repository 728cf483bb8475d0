// Package domain provides domain models for Realm Steward.
//
// Entities are immutable snapshots of identity-provider objects fetched once per
// comparison run. Adapters in internal/provider translate wire representations
// into these types.
//
// Import Path: kc-steward.io/steward/internal/domain
package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Category identifies an entity kind inside a realm.
type Category string

const (
	CategoryRoles   Category = "roles"
	CategoryClients Category = "clients"
	CategoryGroups  Category = "groups"
	CategoryUsers   Category = "users"
)

// AllCategories lists every category in display order.
var AllCategories = []Category{CategoryRoles, CategoryClients, CategoryGroups, CategoryUsers}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryRoles, CategoryClients, CategoryGroups, CategoryUsers:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Comparison field names.
const (
	FieldDescription            = "description"
	FieldComposite              = "composite"
	FieldClientRole             = "clientRole"
	FieldAttributes             = "attributes"
	FieldCompositeRoles         = "compositeRoles"
	FieldProtocol               = "protocol"
	FieldEnabled                = "enabled"
	FieldPublicClient           = "publicClient"
	FieldBearerOnly             = "bearerOnly"
	FieldServiceAccountsEnabled = "serviceAccountsEnabled"
	FieldDefaultClientScopes    = "defaultClientScopes"
	FieldOptionalClientScopes   = "optionalClientScopes"
	FieldRealmRoles             = "realmRoles"
	FieldClientRoles            = "clientRoles"
	FieldSubGroups              = "subGroups"
	FieldEmail                  = "email"
	FieldEmailVerified          = "emailVerified"
	FieldFirstName              = "firstName"
	FieldLastName               = "lastName"
	FieldGroups                 = "groups"
	FieldRequiredActions        = "requiredActions"

	// MapperFieldPrefix prefixes the dynamic per-scope protocol mapper fields of clients.
	MapperFieldPrefix = "mappers:"
)

// MapperField returns the dynamic field name holding the mappers of a client scope.
func MapperField(scope string) string {
	return MapperFieldPrefix + scope
}

// Entity is a realm object identified by its natural key.
type Entity interface {
	Category() Category
	// Key returns the natural key: role name, clientId, group path or username.
	Key() string
	// Fields returns the comparison-relevant values of the entity.
	Fields() FieldSet
}

// FieldSet is the bag of comparison values of an entity.
// A scalar missing from Scalars is absent, which is distinct from a zero value.
type FieldSet struct {
	Scalars map[string]any
	Sets    map[string][]string
}

// NewFieldSet creates an empty FieldSet.
func NewFieldSet() FieldSet {
	return FieldSet{
		Scalars: make(map[string]any),
		Sets:    make(map[string][]string),
	}
}

func (fs FieldSet) putString(name string, v *string) {
	if v != nil {
		fs.Scalars[name] = *v
	}
}

func (fs FieldSet) putBool(name string, v *bool) {
	if v != nil {
		fs.Scalars[name] = *v
	}
}

func (fs FieldSet) putSet(name string, v []string) {
	if v != nil {
		fs.Sets[name] = v
	}
}

// flattenMulti turns attribute-style maps into "key=value" set members.
func flattenMulti(m map[string][]string, sep string) []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m))
	for k, values := range m {
		if len(values) == 0 {
			out = append(out, k+sep)
			continue
		}
		for _, v := range values {
			out = append(out, k+sep+v)
		}
	}
	sort.Strings(out)
	return out
}

// Role is a realm or client role.
type Role struct {
	Name           string              `json:"name"`
	Description    *string             `json:"description,omitempty"`
	Composite      *bool               `json:"composite,omitempty"`
	ClientRole     *bool               `json:"clientRole,omitempty"`
	Attributes     map[string][]string `json:"attributes,omitempty"`
	CompositeRoles []string            `json:"compositeRoles,omitempty"`
}

func (r Role) Category() Category { return CategoryRoles }
func (r Role) Key() string        { return r.Name }

func (r Role) Fields() FieldSet {
	fs := NewFieldSet()
	fs.putString(FieldDescription, r.Description)
	fs.putBool(FieldComposite, r.Composite)
	fs.putBool(FieldClientRole, r.ClientRole)
	fs.putSet(FieldAttributes, flattenMulti(r.Attributes, "="))
	fs.putSet(FieldCompositeRoles, r.CompositeRoles)
	return fs
}

// Client is an OIDC/SAML client of a realm.
type Client struct {
	ClientID               string   `json:"clientId"`
	Name                   string   `json:"name,omitempty"`
	Protocol               *string  `json:"protocol,omitempty"`
	Enabled                *bool    `json:"enabled,omitempty"`
	PublicClient           *bool    `json:"publicClient,omitempty"`
	BearerOnly             *bool    `json:"bearerOnly,omitempty"`
	ServiceAccountsEnabled *bool    `json:"serviceAccountsEnabled,omitempty"`
	DefaultClientScopes    []string `json:"defaultClientScopes,omitempty"`
	OptionalClientScopes   []string `json:"optionalClientScopes,omitempty"`
	// ScopeMappers maps a client scope name to the protocol mapper names it carries.
	ScopeMappers map[string][]string `json:"scopeMappers,omitempty"`
}

func (c Client) Category() Category { return CategoryClients }
func (c Client) Key() string        { return c.ClientID }

func (c Client) Fields() FieldSet {
	fs := NewFieldSet()
	fs.putString(FieldProtocol, c.Protocol)
	fs.putBool(FieldEnabled, c.Enabled)
	fs.putBool(FieldPublicClient, c.PublicClient)
	fs.putBool(FieldBearerOnly, c.BearerOnly)
	fs.putBool(FieldServiceAccountsEnabled, c.ServiceAccountsEnabled)
	fs.putSet(FieldDefaultClientScopes, c.DefaultClientScopes)
	fs.putSet(FieldOptionalClientScopes, c.OptionalClientScopes)
	for scope, mappers := range c.ScopeMappers {
		if mappers == nil {
			mappers = []string{}
		}
		fs.putSet(MapperField(scope), mappers)
	}
	return fs
}

// Group is a realm group addressed by its full path (e.g. "/ops/oncall").
type Group struct {
	Path        string              `json:"path"`
	Name        string              `json:"name,omitempty"`
	RealmRoles  []string            `json:"realmRoles,omitempty"`
	ClientRoles map[string][]string `json:"clientRoles,omitempty"`
	Attributes  map[string][]string `json:"attributes,omitempty"`
	SubGroups   []string            `json:"subGroups,omitempty"`
}

func (g Group) Category() Category { return CategoryGroups }
func (g Group) Key() string        { return g.Path }

func (g Group) Fields() FieldSet {
	fs := NewFieldSet()
	fs.putSet(FieldRealmRoles, g.RealmRoles)
	fs.putSet(FieldClientRoles, flattenMulti(g.ClientRoles, ":"))
	fs.putSet(FieldAttributes, flattenMulti(g.Attributes, "="))
	fs.putSet(FieldSubGroups, g.SubGroups)
	return fs
}

// User is a realm user.
type User struct {
	Username        string   `json:"username"`
	Enabled         *bool    `json:"enabled,omitempty"`
	Email           *string  `json:"email,omitempty"`
	EmailVerified   *bool    `json:"emailVerified,omitempty"`
	FirstName       *string  `json:"firstName,omitempty"`
	LastName        *string  `json:"lastName,omitempty"`
	RealmRoles      []string `json:"realmRoles,omitempty"`
	Groups          []string `json:"groups,omitempty"`
	RequiredActions []string `json:"requiredActions,omitempty"`
}

func (u User) Category() Category { return CategoryUsers }
func (u User) Key() string        { return u.Username }

func (u User) Fields() FieldSet {
	fs := NewFieldSet()
	fs.putBool(FieldEnabled, u.Enabled)
	fs.putString(FieldEmail, u.Email)
	fs.putBool(FieldEmailVerified, u.EmailVerified)
	fs.putString(FieldFirstName, u.FirstName)
	fs.putString(FieldLastName, u.LastName)
	fs.putSet(FieldRealmRoles, u.RealmRoles)
	fs.putSet(FieldGroups, u.Groups)
	fs.putSet(FieldRequiredActions, u.RequiredActions)
	return fs
}

// Ptr returns a pointer to v. Handy for building optional entity fields.
func Ptr[T any](v T) *T {
	return &v
}
