package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/usher/internal/models"
	"github.com/desertthunder/usher/internal/shared"
)

// FinalizeRedemption commits the local side of a fully successful redemption
// in one transaction: the identity, every per-server user record, and the
// invitation's use count increment. Nothing is written unless account creation
// succeeded on every target server, so local state never records an account
// that was rolled back.
//
// The use count increment re-checks max_uses inside the transaction; a
// concurrent redemption that exhausted the invitation first surfaces as
// [shared.ErrInviteMaxUses].
func FinalizeRedemption(db *sql.DB, invitation *models.Invitation, identity *models.Identity, users []*models.User) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	identitySeq, err := nextSequenceTx(tx, "identities")
	if err != nil {
		return err
	}

	identityID := shared.GenerateID()
	identity.SetID(identityID)
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("identity validation failed: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO identities (id, sequence, display_name, invitation_id, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, identityID, identitySeq, identity.DisplayName(), invitation.ID(),
		identity.ExpiresAt(), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	for _, user := range users {
		userSeq, err := nextSequenceTx(tx, "users")
		if err != nil {
			return err
		}

		userID := shared.GenerateID()
		user.SetID(userID)
		user.SetIdentityID(identityID)
		user.SetInvitationID(invitation.ID())
		if err := user.Validate(); err != nil {
			return fmt.Errorf("user validation failed: %w", err)
		}

		_, err = tx.Exec(`
			INSERT INTO users (
				id, sequence, identity_id, invitation_id, server_id, external_id,
				username, email, expires_at, created_at, updated_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, userID, userSeq, identityID, invitation.ID(), user.ServerID(),
			user.ExternalID(), user.Username(), user.Email(), user.ExpiresAt(), now, now)
		if err != nil {
			return fmt.Errorf("failed to insert user for server %s: %w", user.ServerID(), err)
		}
	}

	result, err := tx.Exec(`
		UPDATE invitations
		SET use_count = use_count + 1, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
			AND (max_uses IS NULL OR use_count < max_uses)
	`, now, invitation.ID())
	if err != nil {
		return fmt.Errorf("failed to increment use count: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrInviteMaxUses, invitation.Code())
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit redemption: %w", err)
	}

	invitation.SetUseCount(invitation.UseCount() + 1)
	return nil
}
