// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [InvitationRepository] : Invitation persistence with code-based lookups
//   - [IdentityRepository] : Redemption-time identity grouping
//   - [UserRepository] : Per-server account records with server and identity filters
//   - [MediaServerRepository] : Registered media servers with name-based lookups
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42, invitation #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
//
// [FinalizeRedemption] is the one multi-entity write: a successful redemption
// commits its identity, all of its per-server users, and the invitation's use
// count increment in a single transaction.
package repositories
