// Package server provides HTTP routing, middleware, and the JSON API for invitation redemption.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # API Handlers
//
// Each endpoint is its own [Handler] implementation:
//
//   - [RedeemHandler]: POST /api/redeem runs a full redemption through the
//     orchestrator and maps its error codes onto HTTP statuses. Validation
//     failures are 404/410, username conflicts are 409, provider failures are 502.
//   - [SyncHandler]: GET /api/sync?server={id} returns a read-only drift report.
//   - [PinHandler]: POST /api/pins and GET /api/pins/check?id={pin_id} expose the
//     Plex PIN flow for browser-driven sign-in. The server holds no polling loop;
//     clients poll check themselves.
//   - [HealthHandler]: GET /health reports liveness and database reachability.
//
// [New] assembles all of them behind a [BasicRouter] with request logging.
//
// # Current Usage
//
// The serve command starts this router as a long-running HTTP server using the
// host and port from the [server] config section. The same handlers back the
// CLI's web-facing flows, so redemption semantics are identical whichever
// surface a user comes in through.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
