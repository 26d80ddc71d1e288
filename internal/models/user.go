package models

import (
	"fmt"
	"strings"
	"time"
)

// User mirrors one provider-side account on one media server.
//
// A row exists locally iff the orchestrator believes the corresponding account
// exists on the provider; the sync reconciler reports drift from that
// invariant but never repairs it.
type User struct {
	base
	identityID   string
	invitationID string
	serverID     string
	externalID   string
	username     string
	email        string
	expiresAt    *time.Time
}

// NewUser creates a local record for a provisioned provider account.
func NewUser(sequence int, identityID, serverID, externalID, username string) *User {
	return &User{
		base:       newBase(sequence),
		identityID: identityID,
		serverID:   serverID,
		externalID: externalID,
		username:   username,
	}
}

func (u *User) IdentityID() string { return u.identityID }
func (u *User) InvitationID() string { return u.invitationID }
func (u *User) ServerID() string { return u.serverID }
func (u *User) ExternalID() string { return u.externalID }
func (u *User) Username() string { return u.username }
func (u *User) Email() string { return u.email }
func (u *User) ExpiresAt() *time.Time { return u.expiresAt }

func (u *User) SetIdentityID(id string) { u.identityID = id }
func (u *User) SetInvitationID(id string) { u.invitationID = id }
func (u *User) SetExternalID(id string) { u.externalID = id }
func (u *User) SetEmail(email string) { u.email = email }
func (u *User) SetExpiresAt(t *time.Time) { u.expiresAt = t }

// Validate checks if the user's data is valid.
func (u *User) Validate() error {
	if strings.TrimSpace(u.identityID) == "" {
		return fmt.Errorf("user identity_id is required")
	}
	if strings.TrimSpace(u.serverID) == "" {
		return fmt.Errorf("user server_id is required")
	}
	if strings.TrimSpace(u.externalID) == "" {
		return fmt.Errorf("user external_id is required")
	}
	if strings.TrimSpace(u.username) == "" {
		return fmt.Errorf("user username is required")
	}
	return nil
}
