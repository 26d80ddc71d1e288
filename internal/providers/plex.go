// Plex implementation of [Client]
//
// Account management goes through the plex.tv v2 API; library metadata comes
// from the media server itself. Plex has two disjoint user kinds: friends
// (externally-owned accounts invited by email) and home users (locally-managed
// accounts created by username). The two use disjoint identifier formats, so
// operations taking an external identifier resolve the kind from its shape.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/desertthunder/usher/internal/shared"
)

const (
	plexTVBaseURL = "https://plex.tv/api/v2"
	plexTimeout   = 15 * time.Second

	// plex.tv throttles aggressively compared to a local PMS.
	plexRequestsPerSecond = 5
)

// PlexFriend represents an externally-owned account shared with this server.
type PlexFriend struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// PlexHomeUser represents a locally-managed Plex Home account.
type PlexHomeUser struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	UUID  string `json:"uuid"`
}

// PlexSection represents a library section on the media server.
type PlexSection struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

type plexSectionContainer struct {
	MediaContainer struct {
		Directory []PlexSection `json:"Directory"`
	} `json:"MediaContainer"`
}

type plexIdentityContainer struct {
	MediaContainer struct {
		MachineIdentifier string `json:"machineIdentifier"`
	} `json:"MediaContainer"`
}

type plexShareSettings struct {
	AllowSync bool `json:"allowSync"`
}

// plexShareRequest creates or updates a shared-server entry. Section ids and
// settings are pointers so an omitted field means "no change" while a present
// empty list means "revoke all".
type plexShareRequest struct {
	MachineIdentifier string             `json:"machineIdentifier"`
	InvitedEmail      string             `json:"invitedEmail,omitempty"`
	InvitedID         int64              `json:"invitedId,omitempty"`
	LibrarySectionIDs *[]string          `json:"librarySectionIds,omitempty"`
	Settings          *plexShareSettings `json:"settings,omitempty"`
}

// PlexClient implements [Client] for Plex servers.
//
// Plex cannot disable accounts at all, so the capability set omits
// EnableDisableUser. It also omits DownloadPermission: UpdatePermissions only
// maps the download flag onto the share's allowSync setting and callers must
// not expect anything beyond that single mapping.
type PlexClient struct {
	name       string
	serverURL  string
	tvURL      string
	machineID  string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
	opened     bool
}

func plexCapabilities() CapabilitySet {
	return NewCapabilitySet(CapCreateUser, CapDeleteUser, CapLibraryAccess)
}

func init() {
	Register("plex", func(params ConnectionParams) (Client, error) {
		return NewPlexClient(params)
	}, plexCapabilities())
}

// NewPlexClient creates a client for one Plex server. The token authorizes
// both the plex.tv API and the media server.
func NewPlexClient(params ConnectionParams) (*PlexClient, error) {
	if params.URL == "" {
		return nil, fmt.Errorf("missing url in connection params")
	}
	if params.Token == "" {
		return nil, fmt.Errorf("missing token in connection params")
	}
	name := params.ServerName
	if name == "" {
		name = "plex"
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: params.Token})
	httpClient := oauth2.NewClient(context.Background(), src)
	httpClient.Timeout = plexTimeout

	return &PlexClient{
		name:       name,
		serverURL:  strings.TrimRight(params.URL, "/"),
		tvURL:      plexTVBaseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(plexRequestsPerSecond), 1),
		logger:     shared.NewLogger(nil),
	}, nil
}

// Name returns the configured server name.
func (p *PlexClient) Name() string { return p.name }

// Capabilities returns the fixed Plex capability set.
func (p *PlexClient) Capabilities() CapabilitySet { return plexCapabilities() }

// Open resolves the server's machine identifier, which every plex.tv share
// call needs to address this server.
func (p *PlexClient) Open(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, plexTimeout)
	defer cancel()

	var identity plexIdentityContainer
	if err := p.doRequest(ctx, http.MethodGet, p.serverURL+"/identity", nil, &identity); err != nil {
		return NewError("open", p.name, err)
	}
	if identity.MediaContainer.MachineIdentifier == "" {
		return NewError("open", p.name, fmt.Errorf("server returned no machine identifier"))
	}

	p.machineID = identity.MediaContainer.MachineIdentifier
	p.opened = true
	return nil
}

// Close releases the session.
func (p *PlexClient) Close() error {
	p.opened = false
	p.httpClient.CloseIdleConnections()
	return nil
}

// TestConnection probes the media server's identity endpoint.
func (p *PlexClient) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, plexTimeout)
	defer cancel()

	var identity plexIdentityContainer
	err := p.doRequest(ctx, http.MethodGet, p.serverURL+"/identity", nil, &identity)
	return err == nil
}

// resolveKind determines which identity kind an external identifier belongs
// to. Friend identifiers are emails; home identifiers are numeric.
func resolveKind(externalID string) UserKind {
	if strings.Contains(externalID, "@") {
		return KindFriend
	}
	if _, err := strconv.ParseInt(externalID, 10, 64); err == nil {
		return KindHome
	}
	return KindFriend
}

var errStatusConflict = fmt.Errorf("conflict")

// doRequest performs an authenticated request against either plex.tv or the
// media server. Conflict and not-found statuses map to sentinels so callers
// can produce distinguishable outcomes.
func (p *PlexClient) doRequest(ctx context.Context, method, fullURL string, body, result any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

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

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errStatusNotFound
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return errStatusConflict
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("plex API error: status %d", resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (p *PlexClient) requireOpen(op string) error {
	if !p.opened {
		return NewError(op, p.name, ErrNotOpened)
	}
	return nil
}

// Libraries retrieves the media server's library sections.
func (p *PlexClient) Libraries(ctx context.Context) ([]Library, error) {
	if err := p.requireOpen("get_libraries"); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, plexTimeout)
	defer cancel()

	var container plexSectionContainer
	if err := p.doRequest(ctx, http.MethodGet, p.serverURL+"/library/sections", nil, &container); err != nil {
		return nil, NewError("get_libraries", p.name, err)
	}

	libraries := make([]Library, len(container.MediaContainer.Directory))
	for i, section := range container.MediaContainer.Directory {
		libraries[i] = Library{
			ExternalID: section.Key,
			Name:       section.Title,
			Type:       section.Type,
		}
	}
	return libraries, nil
}

// sectionKeys returns the keys of every library section on the media server.
// New shares are seeded with this full list: sending an empty librarySectionIds
// would be a revoke-all, not "everything".
func (p *PlexClient) sectionKeys(ctx context.Context) ([]string, error) {
	var container plexSectionContainer
	if err := p.doRequest(ctx, http.MethodGet, p.serverURL+"/library/sections", nil, &container); err != nil {
		return nil, err
	}

	keys := make([]string, len(container.MediaContainer.Directory))
	for i, section := range container.MediaContainer.Directory {
		keys[i] = section.Key
	}
	return keys, nil
}

// friends retrieves the accounts this server is shared with.
func (p *PlexClient) friends(ctx context.Context) ([]PlexFriend, error) {
	var friends []PlexFriend
	if err := p.doRequest(ctx, http.MethodGet, p.tvURL+"/friends", nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

// homeUsers retrieves the locally-managed home accounts.
func (p *PlexClient) homeUsers(ctx context.Context) ([]PlexHomeUser, error) {
	var container struct {
		Users []PlexHomeUser `json:"users"`
	}
	if err := p.doRequest(ctx, http.MethodGet, p.tvURL+"/home/users", nil, &container); err != nil {
		return nil, err
	}
	return container.Users, nil
}

// CreateUser provisions either a friend share or a home account, selected by
// spec.Kind (friend by default).
//
// Friend creation without an email fails client-side with [ErrEmailRequired]
// before any remote call. An already-invited email surfaces
// [ErrAlreadyExists]; a duplicate home username surfaces [ErrUsernameTaken].
func (p *PlexClient) CreateUser(ctx context.Context, spec UserSpec) (*ExternalUser, error) {
	if spec.Kind == KindFriend && strings.TrimSpace(spec.Email) == "" {
		return nil, ErrEmailRequired
	}

	if err := p.requireOpen("create_user"); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, plexTimeout)
	defer cancel()

	if spec.Kind == KindHome {
		return p.createHomeUser(ctx, spec)
	}
	return p.inviteFriend(ctx, spec)
}

func (p *PlexClient) inviteFriend(ctx context.Context, spec UserSpec) (*ExternalUser, error) {
	existing, err := p.friends(ctx)
	if err != nil {
		return nil, NewError("create_user", p.name, err)
	}
	for _, f := range existing {
		if strings.EqualFold(f.Email, spec.Email) {
			return nil, ErrAlreadyExists
		}
	}

	// A fresh invitation grants every section; SetLibraryAccess narrows it
	// afterwards when the invitation carries a restriction.
	sections, err := p.sectionKeys(ctx)
	if err != nil {
		return nil, NewError("create_user", p.name, err)
	}
	payload := plexShareRequest{
		MachineIdentifier: p.machineID,
		InvitedEmail:      spec.Email,
		LibrarySectionIDs: &sections,
	}

	var invited PlexFriend
	err = p.doRequest(ctx, http.MethodPost, p.tvURL+"/shared_servers", payload, &invited)
	if err == errStatusConflict {
		return nil, ErrAlreadyExists
	}
	if err != nil {
		return nil, NewError("create_user", p.name, err)
	}

	username := invited.Username
	if username == "" {
		username = spec.Email
	}

	// Friends are addressed by email from here on; the numeric plex.tv id is
	// resolved again at deletion time.
	return &ExternalUser{
		ExternalID: spec.Email,
		Username:   username,
		Email:      spec.Email,
	}, nil
}

func (p *PlexClient) createHomeUser(ctx context.Context, spec UserSpec) (*ExternalUser, error) {
	if strings.TrimSpace(spec.Username) == "" {
		return nil, NewError("create_user", p.name, fmt.Errorf("username is required for home account"))
	}

	existing, err := p.homeUsers(ctx)
	if err != nil {
		return nil, NewError("create_user", p.name, err)
	}
	for _, u := range existing {
		if strings.EqualFold(u.Title, spec.Username) {
			return nil, ErrUsernameTaken
		}
	}

	payload := map[string]string{"title": spec.Username}

	var created PlexHomeUser
	err = p.doRequest(ctx, http.MethodPost, p.tvURL+"/home/users", payload, &created)
	if err == errStatusConflict {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, NewError("create_user", p.name, err)
	}

	// Home accounts are created with no server access at all; seed a share
	// covering every section so an unrestricted invitation means everything.
	externalID := strconv.FormatInt(created.ID, 10)
	if err := p.grantAllSections(ctx, externalID); err != nil {
		// The account exists but can see nothing. Remove it so the caller
		// never records a dark account; the removal itself is best-effort.
		if derr := p.doRequest(ctx, http.MethodDelete, fmt.Sprintf("%s/home/users/%s", p.tvURL, externalID), nil, nil); derr != nil {
			p.logger.Warn("failed to remove home user after share failure", "server", p.name, "external_id", externalID, "error", derr)
		}
		return nil, err
	}

	return &ExternalUser{
		ExternalID: externalID,
		Username:   created.Title,
	}, nil
}

// grantAllSections shares every library section with the given account.
func (p *PlexClient) grantAllSections(ctx context.Context, externalID string) error {
	sections, err := p.sectionKeys(ctx)
	if err != nil {
		return NewError("create_user", p.name, err)
	}
	_, err = p.share(ctx, "create_user", externalID, &sections, nil)
	return err
}

// DeleteUser resolves the identifier's kind and issues the matching removal
// call. A missing account is a false return, not an error.
func (p *PlexClient) DeleteUser(ctx context.Context, externalID string) (bool, error) {
	if err := p.requireOpen("delete_user"); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, plexTimeout)
	defer cancel()

	switch resolveKind(externalID) {
	case KindHome:
		err := p.doRequest(ctx, http.MethodDelete, fmt.Sprintf("%s/home/users/%s", p.tvURL, externalID), nil, nil)
		if err == errStatusNotFound {
			return false, nil
		}
		if err != nil {
			return false, NewError("delete_user", p.name, err)
		}
		return true, nil
	default:
		friends, err := p.friends(ctx)
		if err != nil {
			return false, NewError("delete_user", p.name, err)
		}
		for _, f := range friends {
			if strings.EqualFold(f.Email, externalID) {
				err := p.doRequest(ctx, http.MethodDelete, fmt.Sprintf("%s/friends/%d", p.tvURL, f.ID), nil, nil)
				if err == errStatusNotFound {
					return false, nil
				}
				if err != nil {
					return false, NewError("delete_user", p.name, err)
				}
				return true, nil
			}
		}
		return false, nil
	}
}

// share updates the shared-server entry for the given identifier. Nil
// libraryIDs or settings leave the corresponding part of the share untouched.
func (p *PlexClient) share(ctx context.Context, op, externalID string, libraryIDs *[]string, settings *plexShareSettings) (bool, error) {
	payload := plexShareRequest{
		MachineIdentifier: p.machineID,
		LibrarySectionIDs: libraryIDs,
		Settings:          settings,
	}

	switch resolveKind(externalID) {
	case KindHome:
		id, err := strconv.ParseInt(externalID, 10, 64)
		if err != nil {
			return false, NewError(op, p.name, fmt.Errorf("invalid home user id: %s", externalID))
		}
		payload.InvitedID = id
	default:
		payload.InvitedEmail = externalID
	}

	err := p.doRequest(ctx, http.MethodPost, p.tvURL+"/shared_servers", payload, nil)
	if err == errStatusNotFound {
		return false, nil
	}
	if err != nil && err != errStatusConflict {
		// An existing share answering conflict means the update was applied to
		// the current entry; anything else is a real failure.
		return false, NewError(op, p.name, err)
	}
	return true, nil
}

// SetLibraryAccess restricts the share to the given sections. An empty slice
// revokes access to every library, which is distinct from "no change".
func (p *PlexClient) SetLibraryAccess(ctx context.Context, externalID string, libraryIDs []string) (bool, error) {
	if err := p.requireOpen("set_library_access"); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, plexTimeout)
	defer cancel()

	if libraryIDs == nil {
		libraryIDs = []string{}
	}
	return p.share(ctx, "set_library_access", externalID, &libraryIDs, nil)
}

// SetUserEnabled always returns false: Plex supports neither account disabling
// nor per-account enable/disable. Callers must not treat the false return as
// an error.
func (p *PlexClient) SetUserEnabled(ctx context.Context, externalID string, enabled bool) (bool, error) {
	p.logger.Warn("enable/disable is not supported on plex", "server", p.name, "external_id", externalID)
	return false, nil
}

// UpdatePermissions maps the universal download flag onto the share's
// allowSync setting. All other flags are silently ignored; the capability set
// deliberately omits DownloadPermission to signal that.
func (p *PlexClient) UpdatePermissions(ctx context.Context, externalID string, perms Permissions) (bool, error) {
	if err := p.requireOpen("update_permissions"); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, plexTimeout)
	defer cancel()

	return p.share(ctx, "update_permissions", externalID, nil, &plexShareSettings{AllowSync: perms.AllowDownload})
}

// ListUsers retrieves both identity kinds: friends addressed by email and home
// users addressed by numeric id.
func (p *PlexClient) ListUsers(ctx context.Context) ([]ExternalUser, error) {
	if err := p.requireOpen("list_users"); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, plexTimeout)
	defer cancel()

	friends, err := p.friends(ctx)
	if err != nil {
		return nil, NewError("list_users", p.name, err)
	}

	home, err := p.homeUsers(ctx)
	if err != nil {
		return nil, NewError("list_users", p.name, err)
	}

	users := make([]ExternalUser, 0, len(friends)+len(home))
	for _, f := range friends {
		users = append(users, ExternalUser{
			ExternalID: f.Email,
			Username:   f.Username,
			Email:      f.Email,
		})
	}
	for _, u := range home {
		users = append(users, ExternalUser{
			ExternalID: strconv.FormatInt(u.ID, 10),
			Username:   u.Title,
		})
	}
	return users, nil
}
