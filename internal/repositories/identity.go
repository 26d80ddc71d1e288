package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/usher/internal/models"
	"github.com/desertthunder/usher/internal/shared"
)

// IdentityRepository implements [models.Repository] for [models.Identity] persistence.
type IdentityRepository struct {
	db *sql.DB
}

// NewIdentityRepository creates a new [IdentityRepository] with the given database connection
func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// Create inserts a new identity into the database with generated ID and sequence
func (r *IdentityRepository) Create(identity *models.Identity) error {
	sequence, err := NextSequence(r.db, "identities")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	identity.SetID(id)

	if err := identity.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO identities (id, sequence, display_name, invitation_id, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, identity.DisplayName(), identity.InvitationID(),
		identity.ExpiresAt(), identity.CreatedAt(), identity.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert identity: %w", err)
	}

	return nil
}

// Get retrieves an identity by ID, excluding soft-deleted identities
func (r *IdentityRepository) Get(id string) (*models.Identity, error) {
	query := `
		SELECT id, sequence, display_name, invitation_id, expires_at, created_at, updated_at, deleted_at
		FROM identities
		WHERE id = ? AND deleted_at IS NULL
	`

	var (
		identityID   string
		sequence     int
		displayName  string
		invitationID sql.NullString
		expiresAt    sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := r.db.QueryRow(query, id).Scan(&identityID, &sequence, &displayName,
		&invitationID, &expiresAt, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("identity not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query identity: %w", err)
	}

	identity := models.NewIdentity(sequence, displayName, invitationID.String)
	identity.SetID(identityID)
	identity.SetCreatedAt(createdAt)
	identity.SetUpdatedAt(updatedAt)
	if expiresAt.Valid {
		identity.SetExpiresAt(&expiresAt.Time)
	}
	if deletedAt.Valid {
		identity.SetDeletedAt(&deletedAt.Time)
	}

	return identity, nil
}

// Update modifies an existing identity in the database
func (r *IdentityRepository) Update(identity *models.Identity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	identity.SetUpdatedAt(now)

	query := `
		UPDATE identities
		SET display_name = ?, expires_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, identity.DisplayName(), identity.ExpiresAt(), now, identity.ID())
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("identity not found or already deleted: %s", identity.ID())
	}

	return nil
}

// Delete soft-deletes an identity by ID
func (r *IdentityRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE identities
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("identity not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all identities matching the given criteria, excluding soft-deleted identities
func (r *IdentityRepository) List(criteria map[string]any) ([]*models.Identity, error) {
	query := `
		SELECT id, sequence, display_name, invitation_id, expires_at, created_at, updated_at, deleted_at
		FROM identities
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if invitationID, ok := criteria["invitation_id"].(string); ok && invitationID != "" {
		query += " AND invitation_id = ?"
		args = append(args, invitationID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var identities []*models.Identity
	for rows.Next() {
		var (
			identityID   string
			sequence     int
			displayName  string
			invitationID sql.NullString
			expiresAt    sql.NullTime
			createdAt    time.Time
			updatedAt    time.Time
			deletedAt    sql.NullTime
		)

		err := rows.Scan(&identityID, &sequence, &displayName, &invitationID,
			&expiresAt, &createdAt, &updatedAt, &deletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}

		identity := models.NewIdentity(sequence, displayName, invitationID.String)
		identity.SetID(identityID)
		identity.SetCreatedAt(createdAt)
		identity.SetUpdatedAt(updatedAt)
		if expiresAt.Valid {
			identity.SetExpiresAt(&expiresAt.Time)
		}
		if deletedAt.Valid {
			identity.SetDeletedAt(&deletedAt.Time)
		}

		identities = append(identities, identity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return identities, nil
}
