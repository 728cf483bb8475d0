package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"kc-steward.io/steward/internal/pkg/logger"
)

// tokenRefreshSkew is how long before expiry a cached token is replaced.
const tokenRefreshSkew = 30 * time.Second

// KeycloakClientConfig identifies one realm on one Keycloak instance and the
// service account used to administer it.
type KeycloakClientConfig struct {
	BaseURL      string
	Realm        string
	TokenRealm   string // realm holding the service account; defaults to Realm
	ClientID     string
	ClientSecret string
	PageSize     int
}

// KeycloakClient is an HTTP client for the Keycloak Admin REST API of one realm.
// The client-credentials token is cached and refreshed shortly before it expires.
type KeycloakClient struct {
	baseURL      string
	realm        string
	tokenRealm   string
	clientID     string
	clientSecret string
	pageSize     int

	httpClient *http.Client
	log        *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewKeycloakClient creates a client. A nil httpClient gets a 30s timeout default.
func NewKeycloakClient(cfg KeycloakClientConfig, httpClient *http.Client) *KeycloakClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	tokenRealm := cfg.TokenRealm
	if tokenRealm == "" {
		tokenRealm = cfg.Realm
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &KeycloakClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		realm:        cfg.Realm,
		tokenRealm:   tokenRealm,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		pageSize:     pageSize,
		httpClient:   httpClient,
		log: logger.Named("keycloak").With(
			zap.String("base_url", cfg.BaseURL),
			zap.String("realm", cfg.Realm),
		),
	}
}

func (c *KeycloakClient) tokenEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, url.PathEscape(c.tokenRealm))
}

func (c *KeycloakClient) adminBaseURL() string {
	return fmt.Sprintf("%s/admin/realms/%s", c.baseURL, url.PathEscape(c.realm))
}

// getToken returns a valid access token, requesting a new one when needed.
func (c *KeycloakClient) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Add(tokenRefreshSkew).Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	token, err := c.requestToken(ctx)
	if err != nil {
		return "", err
	}
	c.accessToken = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	c.log.Debug("Keycloak token refreshed", zap.Time("expires_at", c.tokenExpiry))
	return c.accessToken, nil
}

func (c *KeycloakClient) requestToken(ctx context.Context) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request keycloak token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("keycloak token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode keycloak token: %w", err)
	}
	return &token, nil
}

func (c *KeycloakClient) doAuthorized(ctx context.Context, method, path string, body any) (*http.Response, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("get token: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.adminBaseURL()+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// getJSON performs an authorized GET and decodes the response into target.
func (c *KeycloakClient) getJSON(ctx context.Context, op, path string, target any) error {
	resp, err := c.doAuthorized(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := decodeResponse(resp, target); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// StatusError is a non-2xx answer from the Admin REST API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("keycloak api returned %d: %s", e.StatusCode, e.Body)
}

func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode keycloak response: %w", err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// --- Realm ---

// RealmInfo returns the realm summary. Used as a liveness probe.
func (c *KeycloakClient) RealmInfo(ctx context.Context) (*RealmRepresentation, error) {
	var realm RealmRepresentation
	if err := c.getJSON(ctx, "RealmInfo", "", &realm); err != nil {
		return nil, err
	}
	return &realm, nil
}

// --- Roles ---

// ListRoles returns every realm role with its attributes.
func (c *KeycloakClient) ListRoles(ctx context.Context) ([]RoleRepresentation, error) {
	var out []RoleRepresentation
	for first := 0; ; first += c.pageSize {
		var page []RoleRepresentation
		path := fmt.Sprintf("/roles?briefRepresentation=false&first=%d&max=%d", first, c.pageSize)
		if err := c.getJSON(ctx, "ListRoles", path, &page); err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < c.pageSize {
			return out, nil
		}
	}
}

// ListRoleComposites returns the roles a composite role is made of.
func (c *KeycloakClient) ListRoleComposites(ctx context.Context, roleName string) ([]RoleRepresentation, error) {
	var out []RoleRepresentation
	path := "/roles/" + url.PathEscape(roleName) + "/composites"
	if err := c.getJSON(ctx, "ListRoleComposites", path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRoleRaw returns the full representation of a realm role.
func (c *KeycloakClient) GetRoleRaw(ctx context.Context, roleName string) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "GetRole", "/roles/"+url.PathEscape(roleName), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Clients ---

// ListClients returns every client of the realm.
func (c *KeycloakClient) ListClients(ctx context.Context) ([]ClientRepresentation, error) {
	var out []ClientRepresentation
	for first := 0; ; first += c.pageSize {
		var page []ClientRepresentation
		path := fmt.Sprintf("/clients?first=%d&max=%d", first, c.pageSize)
		if err := c.getJSON(ctx, "ListClients", path, &page); err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < c.pageSize {
			return out, nil
		}
	}
}

// ListClientScopes returns every client scope of the realm with its mappers.
func (c *KeycloakClient) ListClientScopes(ctx context.Context) ([]ClientScopeRepresentation, error) {
	var out []ClientScopeRepresentation
	if err := c.getJSON(ctx, "ListClientScopes", "/client-scopes", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetClientRaw returns the full representation of a client by its clientId.
func (c *KeycloakClient) GetClientRaw(ctx context.Context, clientID string) (map[string]any, error) {
	var matches []map[string]any
	path := "/clients?clientId=" + url.QueryEscape(clientID)
	if err := c.getJSON(ctx, "GetClient", path, &matches); err != nil {
		return nil, err
	}
	for _, m := range matches {
		if m["clientId"] == clientID {
			return m, nil
		}
	}
	return nil, ErrEntityNotFound
}

// --- Groups ---

// ListGroups returns the full group tree. Sub-groups that newer servers omit
// from the listing are fetched from the children endpoint.
func (c *KeycloakClient) ListGroups(ctx context.Context) ([]GroupRepresentation, error) {
	var roots []GroupRepresentation
	for first := 0; ; first += c.pageSize {
		var page []GroupRepresentation
		path := fmt.Sprintf("/groups?briefRepresentation=false&first=%d&max=%d", first, c.pageSize)
		if err := c.getJSON(ctx, "ListGroups", path, &page); err != nil {
			return nil, err
		}
		roots = append(roots, page...)
		if len(page) < c.pageSize {
			break
		}
	}
	for i := range roots {
		if err := c.fillSubGroups(ctx, &roots[i]); err != nil {
			return nil, err
		}
	}
	return roots, nil
}

func (c *KeycloakClient) fillSubGroups(ctx context.Context, g *GroupRepresentation) error {
	if len(g.SubGroups) == 0 && g.SubGroupCount > 0 && g.ID != "" {
		var children []GroupRepresentation
		path := fmt.Sprintf("/groups/%s/children?briefRepresentation=false&max=%d", url.PathEscape(g.ID), g.SubGroupCount)
		if err := c.getJSON(ctx, "ListGroupChildren", path, &children); err != nil {
			return err
		}
		g.SubGroups = children
	}
	for i := range g.SubGroups {
		if err := c.fillSubGroups(ctx, &g.SubGroups[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetGroupRaw returns the full representation of a group by its path.
func (c *KeycloakClient) GetGroupRaw(ctx context.Context, path string) (map[string]any, error) {
	var out map[string]any
	escaped := url.PathEscape(strings.TrimPrefix(path, "/"))
	if err := c.getJSON(ctx, "GetGroup", "/group-by-path/"+escaped, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Users ---

// ListUsers returns every user of the realm.
func (c *KeycloakClient) ListUsers(ctx context.Context) ([]UserRepresentation, error) {
	var out []UserRepresentation
	for first := 0; ; first += c.pageSize {
		var page []UserRepresentation
		path := fmt.Sprintf("/users?briefRepresentation=false&first=%d&max=%d", first, c.pageSize)
		if err := c.getJSON(ctx, "ListUsers", path, &page); err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < c.pageSize {
			return out, nil
		}
	}
}

// GetUserGroups returns the groups a user is a direct member of.
func (c *KeycloakClient) GetUserGroups(ctx context.Context, userID string) ([]GroupRepresentation, error) {
	var out []GroupRepresentation
	if err := c.getJSON(ctx, "GetUserGroups", "/users/"+url.PathEscape(userID)+"/groups", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserRealmRoles returns the realm roles mapped directly to a user.
func (c *KeycloakClient) GetUserRealmRoles(ctx context.Context, userID string) ([]RoleRepresentation, error) {
	var out []RoleRepresentation
	path := "/users/" + url.PathEscape(userID) + "/role-mappings/realm"
	if err := c.getJSON(ctx, "GetUserRealmRoles", path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserRaw returns the full representation of a user by exact username.
func (c *KeycloakClient) GetUserRaw(ctx context.Context, username string) (map[string]any, error) {
	var matches []map[string]any
	path := "/users?exact=true&briefRepresentation=false&username=" + url.QueryEscape(username)
	if err := c.getJSON(ctx, "GetUser", path, &matches); err != nil {
		return nil, err
	}
	for _, m := range matches {
		if name, _ := m["username"].(string); strings.EqualFold(name, username) {
			return m, nil
		}
	}
	return nil, ErrEntityNotFound
}

// --- Import ---

// PartialImport posts a partial realm import.
func (c *KeycloakClient) PartialImport(ctx context.Context, body PartialImportRequest) (*PartialImportResponse, error) {
	resp, err := c.doAuthorized(ctx, http.MethodPost, "/partialImport", body)
	if err != nil {
		return nil, fmt.Errorf("PartialImport: %w", err)
	}
	var out PartialImportResponse
	if err := decodeResponse(resp, &out); err != nil {
		return nil, fmt.Errorf("PartialImport: %w", err)
	}
	return &out, nil
}
