// Jellyfin implementation of [Client]
//
// Jellyfin API response types based on https://api.jellyfin.org/
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	jellyfinTimeout = 15 * time.Second

	// Jellyfin applies no documented rate limit; stay polite anyway.
	jellyfinRequestsPerSecond = 10
)

// JellyfinUser represents a Jellyfin user account.
type JellyfinUser struct {
	ID     string          `json:"Id"`
	Name   string          `json:"Name"`
	Policy *JellyfinPolicy `json:"Policy,omitempty"`
}

// JellyfinPolicy is the per-user policy document controlling permissions,
// library access, and the disabled flag. Jellyfin replaces the whole document
// on update, so writes are read-modify-write.
type JellyfinPolicy struct {
	IsAdministrator          bool     `json:"IsAdministrator"`
	IsDisabled               bool     `json:"IsDisabled"`
	EnableAllFolders         bool     `json:"EnableAllFolders"`
	EnabledFolders           []string `json:"EnabledFolders"`
	EnableContentDownloading bool     `json:"EnableContentDownloading"`
	EnableMediaPlayback      bool     `json:"EnableMediaPlayback"`
	EnableSyncTranscoding    bool     `json:"EnableSyncTranscoding"`
	EnableMediaConversion    bool     `json:"EnableMediaConversion"`
}

// JellyfinFolder represents a media folder (library) on the server.
type JellyfinFolder struct {
	ID             string `json:"ItemId"`
	Name           string `json:"Name"`
	CollectionType string `json:"CollectionType"`
}

// JellyfinClient implements [Client] for Jellyfin servers.
//
// Jellyfin has a single local-account user model and supports the full
// capability set including per-account enable/disable.
type JellyfinClient struct {
	name       string
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	opened     bool
}

func jellyfinCapabilities() CapabilitySet {
	return NewCapabilitySet(CapCreateUser, CapDeleteUser, CapLibraryAccess, CapEnableDisableUser, CapDownloadPermission)
}

func init() {
	Register("jellyfin", func(params ConnectionParams) (Client, error) {
		return NewJellyfinClient(params)
	}, jellyfinCapabilities())
}

// NewJellyfinClient creates a client for one Jellyfin server.
func NewJellyfinClient(params ConnectionParams) (*JellyfinClient, error) {
	if params.URL == "" {
		return nil, fmt.Errorf("missing url in connection params")
	}
	if params.Token == "" {
		return nil, fmt.Errorf("missing token in connection params")
	}
	name := params.ServerName
	if name == "" {
		name = "jellyfin"
	}

	return &JellyfinClient{
		name:       name,
		baseURL:    strings.TrimRight(params.URL, "/"),
		token:      params.Token,
		httpClient: &http.Client{Timeout: jellyfinTimeout},
		limiter:    rate.NewLimiter(rate.Limit(jellyfinRequestsPerSecond), 1),
	}, nil
}

// Name returns the configured server name.
func (j *JellyfinClient) Name() string { return j.name }

// Capabilities returns the fixed Jellyfin capability set.
func (j *JellyfinClient) Capabilities() CapabilitySet { return jellyfinCapabilities() }

// Open marks the session acquired. The underlying transport is stateless HTTP,
// but callers still pair Open with Close to keep the scoped-resource contract.
func (j *JellyfinClient) Open(ctx context.Context) error {
	j.opened = true
	return nil
}

// Close releases the session.
func (j *JellyfinClient) Close() error {
	j.opened = false
	j.httpClient.CloseIdleConnections()
	return nil
}

// TestConnection probes /System/Info with the configured token.
// Any failure, including timeout, reports false rather than an error.
func (j *JellyfinClient) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, jellyfinTimeout)
	defer cancel()

	var info struct {
		ID string `json:"Id"`
	}
	err := j.doRequest(ctx, http.MethodGet, "/System/Info", nil, &info)
	return err == nil
}

// doRequest performs an authenticated HTTP request against the Jellyfin API.
func (j *JellyfinClient) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if !j.opened && endpoint != "/System/Info" {
		return ErrNotOpened
	}

	if err := j.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	apiURL := j.baseURL + endpoint

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf(`MediaBrowser Token="%s"`, j.token))
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errStatusNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("jellyfin API error: status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// errStatusNotFound marks a 404 so callers can map it to the boolean
// not-found outcome instead of a provider error.
var errStatusNotFound = fmt.Errorf("not found")

// Libraries retrieves the server's media folders.
func (j *JellyfinClient) Libraries(ctx context.Context) ([]Library, error) {
	ctx, cancel := context.WithTimeout(ctx, jellyfinTimeout)
	defer cancel()

	var folders []JellyfinFolder
	if err := j.doRequest(ctx, http.MethodGet, "/Library/MediaFolders", nil, &folders); err != nil {
		return nil, NewError("get_libraries", j.name, err)
	}

	libraries := make([]Library, len(folders))
	for i, f := range folders {
		libraries[i] = Library{
			ExternalID: f.ID,
			Name:       f.Name,
			Type:       f.CollectionType,
		}
	}
	return libraries, nil
}

// CreateUser provisions a local Jellyfin account. A name collision surfaces
// [ErrUsernameTaken].
func (j *JellyfinClient) CreateUser(ctx context.Context, spec UserSpec) (*ExternalUser, error) {
	if strings.TrimSpace(spec.Username) == "" {
		return nil, NewError("create_user", j.name, fmt.Errorf("username is required"))
	}

	ctx, cancel := context.WithTimeout(ctx, jellyfinTimeout)
	defer cancel()

	existing, err := j.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range existing {
		if strings.EqualFold(u.Username, spec.Username) {
			return nil, ErrUsernameTaken
		}
	}

	payload := map[string]string{
		"Name":     spec.Username,
		"Password": spec.Password,
	}

	var created JellyfinUser
	if err := j.doRequest(ctx, http.MethodPost, "/Users/New", payload, &created); err != nil {
		return nil, NewError("create_user", j.name, err)
	}

	return &ExternalUser{
		ExternalID: created.ID,
		Username:   created.Name,
		Email:      spec.Email,
	}, nil
}

// DeleteUser removes the account. A missing account is a false return, not an error.
func (j *JellyfinClient) DeleteUser(ctx context.Context, externalID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, jellyfinTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("/Users/%s", url.PathEscape(externalID))
	err := j.doRequest(ctx, http.MethodDelete, endpoint, nil, nil)
	if err == errStatusNotFound {
		return false, nil
	}
	if err != nil {
		return false, NewError("delete_user", j.name, err)
	}
	return true, nil
}

// getUser fetches one user including its policy document.
func (j *JellyfinClient) getUser(ctx context.Context, externalID string) (*JellyfinUser, error) {
	endpoint := fmt.Sprintf("/Users/%s", url.PathEscape(externalID))

	var user JellyfinUser
	if err := j.doRequest(ctx, http.MethodGet, endpoint, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// updatePolicy applies fn to the user's current policy and writes it back.
func (j *JellyfinClient) updatePolicy(ctx context.Context, op, externalID string, fn func(*JellyfinPolicy)) (bool, error) {
	user, err := j.getUser(ctx, externalID)
	if err != nil {
		if err == errStatusNotFound {
			return false, nil
		}
		return false, NewError(op, j.name, err)
	}

	policy := user.Policy
	if policy == nil {
		policy = &JellyfinPolicy{EnableMediaPlayback: true}
	}
	fn(policy)

	endpoint := fmt.Sprintf("/Users/%s/Policy", url.PathEscape(externalID))
	if err := j.doRequest(ctx, http.MethodPost, endpoint, policy, nil); err != nil {
		if err == errStatusNotFound {
			return false, nil
		}
		return false, NewError(op, j.name, err)
	}
	return true, nil
}

// SetLibraryAccess restricts the account to the given folders. An empty slice
// revokes access to every library, which is distinct from "no change".
func (j *JellyfinClient) SetLibraryAccess(ctx context.Context, externalID string, libraryIDs []string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, jellyfinTimeout)
	defer cancel()

	return j.updatePolicy(ctx, "set_library_access", externalID, func(p *JellyfinPolicy) {
		p.EnableAllFolders = false
		if libraryIDs == nil {
			libraryIDs = []string{}
		}
		p.EnabledFolders = libraryIDs
	})
}

// SetUserEnabled toggles the account's disabled flag.
func (j *JellyfinClient) SetUserEnabled(ctx context.Context, externalID string, enabled bool) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, jellyfinTimeout)
	defer cancel()

	return j.updatePolicy(ctx, "set_user_enabled", externalID, func(p *JellyfinPolicy) {
		p.IsDisabled = !enabled
	})
}

// UpdatePermissions maps the universal flags onto the policy document.
func (j *JellyfinClient) UpdatePermissions(ctx context.Context, externalID string, perms Permissions) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, jellyfinTimeout)
	defer cancel()

	return j.updatePolicy(ctx, "update_permissions", externalID, func(p *JellyfinPolicy) {
		p.EnableContentDownloading = perms.AllowDownload
		p.EnableMediaPlayback = perms.AllowStream
		p.EnableMediaConversion = perms.AllowSync
		p.EnableSyncTranscoding = perms.AllowTranscode
	})
}

// ListUsers retrieves every account on the server.
func (j *JellyfinClient) ListUsers(ctx context.Context) ([]ExternalUser, error) {
	ctx, cancel := context.WithTimeout(ctx, jellyfinTimeout)
	defer cancel()

	var jfUsers []JellyfinUser
	if err := j.doRequest(ctx, http.MethodGet, "/Users", nil, &jfUsers); err != nil {
		return nil, NewError("list_users", j.name, err)
	}

	users := make([]ExternalUser, len(jfUsers))
	for i, u := range jfUsers {
		users[i] = ExternalUser{
			ExternalID: u.ID,
			Username:   u.Name,
		}
	}
	return users, nil
}
