package models

import (
	"fmt"
	"strings"
	"time"
)

// PermissionFlags are the universal permission toggles an invitation grants.
// Each provider client maps the subset it understands onto its own settings.
type PermissionFlags struct {
	AllowDownload  bool
	AllowStream    bool
	AllowSync      bool
	AllowTranscode bool
}

// Invitation is a code-based grant allowing one or more redemptions against a
// set of target media servers.
//
// The orchestrator only ever mutates an invitation by incrementing its use
// count, and only after a fully successful redemption.
type Invitation struct {
	base
	code         string
	serverIDs    []string
	enabled      bool
	expiresAt    *time.Time
	maxUses      *int
	useCount     int
	durationDays *int
	libraryIDs   []string
	permissions  PermissionFlags
}

// NewInvitation creates an enabled invitation targeting the given servers.
func NewInvitation(sequence int, code string, serverIDs []string) *Invitation {
	return &Invitation{
		base:      newBase(sequence),
		code:      code,
		serverIDs: serverIDs,
		enabled:   true,
		permissions: PermissionFlags{
			AllowStream:    true,
			AllowTranscode: true,
		},
	}
}

func (i *Invitation) Code() string { return i.code }
func (i *Invitation) ServerIDs() []string { return i.serverIDs }
func (i *Invitation) Enabled() bool { return i.enabled }
func (i *Invitation) ExpiresAt() *time.Time { return i.expiresAt }
func (i *Invitation) MaxUses() *int { return i.maxUses }
func (i *Invitation) UseCount() int { return i.useCount }
func (i *Invitation) DurationDays() *int { return i.durationDays }
func (i *Invitation) LibraryIDs() []string { return i.libraryIDs }
func (i *Invitation) Permissions() PermissionFlags { return i.permissions }

func (i *Invitation) SetEnabled(enabled bool) { i.enabled = enabled }
func (i *Invitation) SetExpiresAt(t *time.Time) { i.expiresAt = t }
func (i *Invitation) SetMaxUses(n *int) { i.maxUses = n }
func (i *Invitation) SetUseCount(n int) { i.useCount = n }
func (i *Invitation) SetDurationDays(n *int) { i.durationDays = n }
func (i *Invitation) SetLibraryIDs(ids []string) { i.libraryIDs = ids }
func (i *Invitation) SetPermissions(p PermissionFlags) { i.permissions = p }

// Expired reports whether the invitation's expiry timestamp has passed.
func (i *Invitation) Expired(now time.Time) bool {
	return i.expiresAt != nil && now.After(*i.expiresAt)
}

// UsesRemaining reports whether the invitation can still be redeemed.
func (i *Invitation) UsesRemaining() bool {
	return i.maxUses == nil || i.useCount < *i.maxUses
}

// Validate checks if the invitation's data is valid.
func (i *Invitation) Validate() error {
	if strings.TrimSpace(i.code) == "" {
		return fmt.Errorf("invitation code is required")
	}
	if len(i.serverIDs) == 0 {
		return fmt.Errorf("invitation must target at least one server")
	}
	if i.maxUses != nil && *i.maxUses <= 0 {
		return fmt.Errorf("max_uses must be positive, got %d", *i.maxUses)
	}
	if i.durationDays != nil && *i.durationDays <= 0 {
		return fmt.Errorf("duration_days must be positive, got %d", *i.durationDays)
	}
	if i.useCount < 0 {
		return fmt.Errorf("use_count cannot be negative")
	}
	return nil
}
