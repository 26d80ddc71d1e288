package models

import (
	"fmt"
	"strings"
	"time"
)

// Identity groups the per-server User records created by one redemption,
// representing a single real person across providers.
type Identity struct {
	base
	displayName  string
	invitationID string
	expiresAt    *time.Time
}

// NewIdentity creates an identity for a redeemed guest.
func NewIdentity(sequence int, displayName, invitationID string) *Identity {
	return &Identity{
		base:         newBase(sequence),
		displayName:  displayName,
		invitationID: invitationID,
	}
}

func (i *Identity) DisplayName() string { return i.displayName }
func (i *Identity) InvitationID() string { return i.invitationID }
func (i *Identity) ExpiresAt() *time.Time { return i.expiresAt }

func (i *Identity) SetDisplayName(name string) { i.displayName = name }
func (i *Identity) SetExpiresAt(t *time.Time) { i.expiresAt = t }

// Validate checks if the identity's data is valid.
func (i *Identity) Validate() error {
	if strings.TrimSpace(i.displayName) == "" {
		return fmt.Errorf("identity display name is required")
	}
	return nil
}
