package providers

import (
	"context"
	"errors"
	"fmt"
)

// Capability is a named operation a provider may or may not support.
// Callers query [Client.Capabilities] before invoking an operation; invoking an
// unsupported operation is a no-op false return, never an error.
type Capability int

const (
	CapCreateUser Capability = iota
	CapDeleteUser
	CapLibraryAccess
	CapEnableDisableUser
	CapDownloadPermission
)

func (c Capability) String() string {
	switch c {
	case CapCreateUser:
		return "create_user"
	case CapDeleteUser:
		return "delete_user"
	case CapLibraryAccess:
		return "library_access"
	case CapEnableDisableUser:
		return "enable_disable_user"
	case CapDownloadPermission:
		return "download_permission"
	default:
		return ""
	}
}

// CapabilitySet is the fixed set of capabilities a client declares at construction.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the capability.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// UserKind selects which identity kind a creation request targets on providers
// with more than one (Plex friend vs home accounts). Providers with a single
// user model ignore it.
type UserKind int

const (
	// KindFriend is an externally-owned account invited by email reference.
	KindFriend UserKind = iota
	// KindHome is a locally-managed account created by username only.
	KindHome
)

func (k UserKind) String() string {
	if k == KindHome {
		return "home"
	}
	return "friend"
}

// ExternalUser is a provider-side account normalized across providers.
// ExternalID is the provider's own key (an email for Plex friends, an opaque
// id elsewhere) and is only unique within one provider.
type ExternalUser struct {
	ExternalID string `json:"external_id"`
	Username   string `json:"username"`
	Email      string `json:"email,omitempty"`
}

// Library describes one content library/section on a provider.
type Library struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Type       string `json:"library_type"`
}

// Permissions are the universal permission flags a client maps onto its
// provider's own settings. Flags a provider cannot express are ignored.
type Permissions struct {
	AllowDownload  bool
	AllowStream    bool
	AllowSync      bool
	AllowTranscode bool
}

// UserSpec describes the account to create.
type UserSpec struct {
	Username string
	Email    string
	Password string
	Kind     UserKind
}

// Client defines the interface for media server providers (Plex, Jellyfin) that
// can provision and manage end-user accounts.
//
// A client is a scoped resource: Open acquires its session, Close releases it,
// and one instance must not be shared across concurrent operation sequences.
type Client interface {
	// Open acquires the client's connection/session.
	Open(ctx context.Context) error

	// Close releases the client's connection/session. Safe to call on all exit paths.
	Close() error

	// TestConnection reports whether the server is reachable and credentials are
	// accepted. Connectivity failure is a normal outcome, never an error.
	TestConnection(ctx context.Context) bool

	// Capabilities returns the fixed capability set declared at construction.
	Capabilities() CapabilitySet

	// Libraries retrieves the provider's content libraries.
	Libraries(ctx context.Context) ([]Library, error)

	// CreateUser provisions an account described by spec.
	CreateUser(ctx context.Context, spec UserSpec) (*ExternalUser, error)

	// DeleteUser removes the account with the given external identifier.
	// Returns false with a nil error when the account does not exist.
	DeleteUser(ctx context.Context, externalID string) (bool, error)

	// SetLibraryAccess restricts the account to the given library ids.
	// An empty slice revokes access to every library.
	SetLibraryAccess(ctx context.Context, externalID string, libraryIDs []string) (bool, error)

	// SetUserEnabled enables or disables the account. Providers without the
	// EnableDisableUser capability return false and log, never an error.
	SetUserEnabled(ctx context.Context, externalID string, enabled bool) (bool, error)

	// UpdatePermissions maps the universal flags onto provider settings.
	UpdatePermissions(ctx context.Context, externalID string, perms Permissions) (bool, error)

	// ListUsers retrieves every account visible on the provider.
	ListUsers(ctx context.Context) ([]ExternalUser, error)

	// Name returns the configured display name of the server this client talks to.
	Name() string
}

// Conflict and client-side validation outcomes, distinguishable from the
// generic provider error.
var (
	// ErrAlreadyExists indicates the email is already invited on the provider.
	ErrAlreadyExists = errors.New("user already exists")
	// ErrUsernameTaken indicates the username is already in use on the provider.
	ErrUsernameTaken = errors.New("username taken")
	// ErrEmailRequired indicates friend creation was requested without an email.
	// Raised client-side; no remote call is attempted.
	ErrEmailRequired = errors.New("email required for friend invite")
	// ErrNotOpened indicates an operation was invoked before Open.
	ErrNotOpened = errors.New("client not opened")
)

// Error is the single generic failure kind for provider operations. It carries
// the operation name and the server identifier but never credentials.
type Error struct {
	Op     string // operation that failed, e.g. "create_user"
	Server string // configured server name
	Err    error  // underlying cause
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Server, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps cause as a provider [Error].
func NewError(op, server string, cause error) *Error {
	return &Error{Op: op, Server: server, Err: cause}
}

// IsConflict reports whether err is one of the distinguishable conflict outcomes.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) || errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailRequired)
}
