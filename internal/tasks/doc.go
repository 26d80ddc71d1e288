// Package tasks orchestrates account provisioning and drift detection across media servers with real-time progress reporting.
//
// # Core Operations
//
// The [Orchestrator] interface defines three operations:
//
//  1. [Engine.Redeem] : Invitation redemption across N target servers
//     - Validates the invitation (read-only, most specific failure reason)
//     - Creates and configures the account on every target server concurrently
//     - Commits identity, user rows, and the use count in one transaction when all succeed
//     - Rolls back created accounts with best-effort compensating deletes when any fail
//
//  2. [Engine.Sync] : Drift detection for one server
//     - Fetches the server's live account list and local records
//     - Partitions accounts into orphaned, stale, and matched
//     - Reports only; never mutates the server or local state
//
//  3. [Engine.Audit] : Full state dump across all registered servers
//     - Snapshots users and libraries per server with a rate-limited worker pool
//     - Writes per-server JSON files plus a manifest
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Rollback Semantics
//
// Compensation is best-effort: the target systems are independent and cannot
// participate in one transaction. A deletion that fails during rollback is
// logged distinctly from the triggering failure and reported in
// [RedeemResult.RollbackErrors] so a partially created account is never
// silently hidden.
//
// # Implementation
//
// [Engine] implements [Orchestrator] with dependencies on:
//   - [providers.Registry] : scoped provider client construction
//   - [repositories] : invitation, user, and media server persistence
//   - [shared.Config] : per-server credentials
package tasks
