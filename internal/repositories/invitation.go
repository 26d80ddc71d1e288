package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/usher/internal/models"
	"github.com/desertthunder/usher/internal/shared"
)

// InvitationRepository implements [models.Repository] for [models.Invitation] persistence.
type InvitationRepository struct {
	db *sql.DB
}

// NewInvitationRepository creates a new [InvitationRepository] with the given database connection
func NewInvitationRepository(db *sql.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// Create inserts a new invitation into the database with generated ID and sequence
func (r *InvitationRepository) Create(invitation *models.Invitation) error {
	sequence, err := NextSequence(r.db, "invitations")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	invitation.SetID(id)

	if err := invitation.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO invitations (
			id, sequence, code, server_ids, enabled, expires_at, max_uses,
			use_count, duration_days, library_ids, allow_download, allow_stream,
			allow_sync, allow_transcode, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	perms := invitation.Permissions()
	_, err = r.db.Exec(query,
		id,
		sequence,
		invitation.Code(),
		joinIDs(invitation.ServerIDs()),
		invitation.Enabled(),
		invitation.ExpiresAt(),
		invitation.MaxUses(),
		invitation.UseCount(),
		invitation.DurationDays(),
		joinIDs(invitation.LibraryIDs()),
		perms.AllowDownload,
		perms.AllowStream,
		perms.AllowSync,
		perms.AllowTranscode,
		invitation.CreatedAt(),
		invitation.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert invitation: %w", err)
	}

	return nil
}

const invitationColumns = `
	id, sequence, code, server_ids, enabled, expires_at, max_uses,
	use_count, duration_days, library_ids, allow_download, allow_stream,
	allow_sync, allow_transcode, created_at, updated_at, deleted_at
`

type invitationScanner interface {
	Scan(dest ...any) error
}

func scanInvitation(row invitationScanner) (*models.Invitation, error) {
	var (
		id            string
		sequence      int
		code          string
		serverIDs     string
		enabled       bool
		expiresAt     sql.NullTime
		maxUses       sql.NullInt64
		useCount      int
		durationDays  sql.NullInt64
		libraryIDs    sql.NullString
		allowDownload bool
		allowStream   bool
		allowSync     bool
		allowTrans    bool
		createdAt     time.Time
		updatedAt     time.Time
		deletedAt     sql.NullTime
	)

	err := row.Scan(&id, &sequence, &code, &serverIDs, &enabled, &expiresAt,
		&maxUses, &useCount, &durationDays, &libraryIDs, &allowDownload,
		&allowStream, &allowSync, &allowTrans, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	invitation := models.NewInvitation(sequence, code, splitIDs(serverIDs))
	invitation.SetID(id)
	invitation.SetEnabled(enabled)
	invitation.SetUseCount(useCount)
	invitation.SetCreatedAt(createdAt)
	invitation.SetUpdatedAt(updatedAt)
	invitation.SetPermissions(models.PermissionFlags{
		AllowDownload:  allowDownload,
		AllowStream:    allowStream,
		AllowSync:      allowSync,
		AllowTranscode: allowTrans,
	})

	if expiresAt.Valid {
		invitation.SetExpiresAt(&expiresAt.Time)
	}
	if maxUses.Valid {
		n := int(maxUses.Int64)
		invitation.SetMaxUses(&n)
	}
	if durationDays.Valid {
		n := int(durationDays.Int64)
		invitation.SetDurationDays(&n)
	}
	if libraryIDs.Valid {
		invitation.SetLibraryIDs(splitIDs(libraryIDs.String))
	}
	if deletedAt.Valid {
		invitation.SetDeletedAt(&deletedAt.Time)
	}

	return invitation, nil
}

// Get retrieves an invitation by ID, excluding soft-deleted invitations
func (r *InvitationRepository) Get(id string) (*models.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE id = ? AND deleted_at IS NULL"

	invitation, err := scanInvitation(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrInviteNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query invitation: %w", err)
	}
	return invitation, nil
}

// GetByCode retrieves an invitation by its unique redemption code
func (r *InvitationRepository) GetByCode(code string) (*models.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE code = ? AND deleted_at IS NULL"

	invitation, err := scanInvitation(r.db.QueryRow(query, code))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrInviteNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query invitation: %w", err)
	}
	return invitation, nil
}

// Update modifies an existing invitation in the database
func (r *InvitationRepository) Update(invitation *models.Invitation) error {
	if err := invitation.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	invitation.SetUpdatedAt(now)

	query := `
		UPDATE invitations
		SET server_ids = ?, enabled = ?, expires_at = ?, max_uses = ?,
			use_count = ?, duration_days = ?, library_ids = ?,
			allow_download = ?, allow_stream = ?, allow_sync = ?,
			allow_transcode = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	perms := invitation.Permissions()
	result, err := r.db.Exec(query,
		joinIDs(invitation.ServerIDs()),
		invitation.Enabled(),
		invitation.ExpiresAt(),
		invitation.MaxUses(),
		invitation.UseCount(),
		invitation.DurationDays(),
		joinIDs(invitation.LibraryIDs()),
		perms.AllowDownload,
		perms.AllowStream,
		perms.AllowSync,
		perms.AllowTranscode,
		now,
		invitation.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("invitation not found or already deleted: %s", invitation.ID())
	}

	return nil
}

// Delete soft-deletes an invitation by ID
func (r *InvitationRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE invitations
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("invitation not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all invitations matching the given criteria, excluding soft-deleted invitations
func (r *InvitationRepository) List(criteria map[string]any) ([]*models.Invitation, error) {
	query := "SELECT " + invitationColumns + " FROM invitations WHERE deleted_at IS NULL"

	args := []any{}

	if enabled, ok := criteria["enabled"].(bool); ok {
		query += " AND enabled = ?"
		args = append(args, enabled)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*models.Invitation
	for rows.Next() {
		invitation, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, invitation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return invitations, nil
}
