// Package models defines domain entities and persistence interfaces for the usher provisioning service.
//
// All entities are database-backed models with full lifecycle management:
//   - [Invitation] : Code-based grant with target servers, use limits, expiry, and permission flags
//   - [Identity] : Grouping of one redemption's per-server accounts belonging to one person
//   - [User] : Local mirror of one provider-side account on one media server
//   - [MediaServer] : Registered media server selectable as an invitation target
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
//
// Provider-side data (external users, libraries) is intentionally NOT modeled here; those
// normalized shapes live in the providers package and are only persisted as User mirrors.
package models
