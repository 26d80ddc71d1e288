// Package providers defines the [Client] interface for media server account management and implements it for Plex and Jellyfin.
//
// # Client Interface
//
// All media servers implement a common abstraction, enabling account provisioning to work uniformly across server types.
//
// Callers check [Client.Capabilities] before invoking optional operations.
// Unsupported operations return (false, nil) rather than an error, so partial
// support never aborts a multi-server workflow.
//
// # Plex Implementation
//
// [PlexClient] manages accounts through the plex.tv v2 API using a static
// token via [oauth2.StaticTokenSource]; library metadata comes from the media
// server itself.
//
// Plex has two disjoint user kinds: friends (invited by email, externally
// owned) and home users (locally managed, addressed by numeric id). The kind
// is resolved from the shape of the external identifier.
//
// # Jellyfin Implementation
//
// [JellyfinClient] talks directly to the server's REST API with an API key.
// User permissions live in a single policy document, so permission updates
// are a read-modify-write of the full policy.
//
// # Registry
//
// Implementations register themselves in an init function via [Register],
// keyed by server type. [StaticCapabilities] answers capability queries
// without a connection.
//
// # Error Handling
//
// Remote failures are wrapped in [Error] with the operation and server name.
// Conflict conditions use sentinel errors so callers can branch on them:
//   - [ErrAlreadyExists] : account already present on the server
//   - [ErrUsernameTaken] : requested username collides with an existing one
//   - [ErrEmailRequired] : the server requires an email for this user kind
package providers
