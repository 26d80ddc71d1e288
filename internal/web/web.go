// Package web implements an HTMX-based admin dashboard mirroring the TUI functionality.
//
// # HTMX Dashboard Implementation Plan
//
// # Architecture
//
// The dashboard replicates the five-view TUI workflow using server-side rendering
// with HTMX for dynamic updates. Each view corresponds to a template and handler:
//
//  1. Invitation List: Server-rendered table with hx-get for detail preview
//  2. Invitation Detail: HTMX partial swap showing servers, libraries, uses
//  3. Redemption Form: Username/email form with hx-post trigger
//  4. Progress Monitor: SSE (Server-Sent Events) streaming provisioning updates
//  5. Results Display: Created accounts or rollback breakdown per server
//
// Core Components
//
//   - HTTP Server: reuses internal/server's Router and the JSON API handlers
//   - Engine Integration: Uses the same tasks.Orchestrator as the TUI and CLI
//   - Session Management: Cookie-based admin sessions gated on Plex PIN identity
//   - SSE Handler: Streams the tasks progress channel during redemptions
//
// Routes
//
//	GET  /                       → Invitation list view (requires admin auth)
//	GET  /auth/plex              → PIN creation, renders the claim code
//	GET  /auth/plex/poll         → HTMX polling partial until the PIN resolves
//	GET  /invitations/{code}     → HTMX partial: invitation detail
//	POST /redeem                 → Start redemption, return SSE endpoint
//	GET  /redeem/{id}/stream     → SSE progress stream
//	GET  /redeem/{id}/result     → Final result view
//	GET  /servers/{id}/sync      → Drift report view
//
// Templates
//
//   - base.html: Layout with navigation, auth status
//   - invitations.html: Table with hx-get on rows
//   - detail.html: Partial template for invitation detail
//   - progress.html: SSE consumer with per-server progress rows
//   - results.html: Created accounts / rollback breakdown
//
// # State Management
//
// Unlike the TUI's in-memory state, the dashboard persists state in:
//   - Session cookies: Admin identity from the PIN flow
//   - Identity and User records: redemption outcomes across requests
//   - In-memory channels: SSE connections for active redemptions
//
// # Progress Streaming
//
// Redemption progress uses Server-Sent Events:
//  1. POST /redeem starts the orchestrator, returns a redemption ID
//  2. Client opens SSE connection to /redeem/{id}/stream
//  3. Handler launches goroutine running Engine.Redeem with a progress channel
//  4. Progress channel updates stream as SSE events, one row per server
//  5. On completion, send "done" event with redirect URL
//
// Authentication Flow
//
//  1. Admin visits /, redirected to /auth/plex if not authenticated
//  2. PIN claim resolves a verified email, stored in the session
//  3. Session middleware validates the email against the admin allowlist
//  4. Expired sessions trigger a fresh PIN flow
//
// Dependencies
//
//   - html/template: Server-side rendering
//   - net/http: HTTP server and SSE
//   - gorilla/sessions or similar: Cookie management
//
// Implementation Tasks
//
//  1. Route registration on the existing BasicRouter
//  2. Template structure with HTMX integration
//  3. Session middleware for admin state
//  4. Invitation list handler backed by repositories
//  5. Invitation detail handler (HTMX partial)
//  6. Redemption endpoint wrapping Engine.Redeem
//  7. SSE handler streaming ProgressUpdate values
//  8. Result handler displaying the RedeemResult
//  9. PIN auth handlers wrapping the existing pin.Service
//  10. Error handling and validation
//
// # Testing Strategy
//
// Use httptest:
//   - Mock tasks.Orchestrator for redemption and sync flows
//   - Stub pin.Service state for auth transitions
//   - Validate HTMX headers and response structure
//   - Test SSE stream formatting
package web
