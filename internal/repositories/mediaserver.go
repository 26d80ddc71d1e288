package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/usher/internal/models"
	"github.com/desertthunder/usher/internal/shared"
)

// MediaServerRepository implements [models.Repository] for [models.MediaServer] persistence.
type MediaServerRepository struct {
	db *sql.DB
}

// NewMediaServerRepository creates a new [MediaServerRepository] with the given database connection
func NewMediaServerRepository(db *sql.DB) *MediaServerRepository {
	return &MediaServerRepository{db: db}
}

// Create inserts a new media server into the database with generated ID and sequence
func (r *MediaServerRepository) Create(server *models.MediaServer) error {
	sequence, err := NextSequence(r.db, "media_servers")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	server.SetID(id)

	if err := server.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO media_servers (id, sequence, name, server_type, url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, id, sequence, server.Name(), server.ServerType(), server.URL(), server.CreatedAt(), server.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert media server: %w", err)
	}

	return nil
}

func (r *MediaServerRepository) scanOne(row *sql.Row) (*models.MediaServer, error) {
	var (
		id         string
		sequence   int
		name       string
		serverType string
		serverURL  string
		createdAt  time.Time
		updatedAt  time.Time
		deletedAt  sql.NullTime
	)

	err := row.Scan(&id, &sequence, &name, &serverType, &serverURL, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	server := models.NewMediaServer(sequence, name, serverType, serverURL)
	server.SetID(id)
	server.SetCreatedAt(createdAt)
	server.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		server.SetDeletedAt(&deletedAt.Time)
	}

	return server, nil
}

// Get retrieves a media server by ID, excluding soft-deleted servers
func (r *MediaServerRepository) Get(id string) (*models.MediaServer, error) {
	query := `
		SELECT id, sequence, name, server_type, url, created_at, updated_at, deleted_at
		FROM media_servers
		WHERE id = ? AND deleted_at IS NULL
	`

	server, err := r.scanOne(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrServerNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query media server: %w", err)
	}
	return server, nil
}

// GetByName retrieves a media server by its unique name
func (r *MediaServerRepository) GetByName(name string) (*models.MediaServer, error) {
	query := `
		SELECT id, sequence, name, server_type, url, created_at, updated_at, deleted_at
		FROM media_servers
		WHERE name = ? AND deleted_at IS NULL
	`

	server, err := r.scanOne(r.db.QueryRow(query, name))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrServerNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query media server: %w", err)
	}
	return server, nil
}

// Update modifies an existing media server in the database
func (r *MediaServerRepository) Update(server *models.MediaServer) error {
	if err := server.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	server.SetUpdatedAt(now)

	query := `
		UPDATE media_servers
		SET name = ?, server_type = ?, url = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, server.Name(), server.ServerType(), server.URL(), now, server.ID())
	if err != nil {
		return fmt.Errorf("failed to update media server: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("media server not found or already deleted: %s", server.ID())
	}

	return nil
}

// Delete soft-deletes a media server by ID
func (r *MediaServerRepository) Delete(id string) error {
	now := time.Now()

	query := `
		UPDATE media_servers
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete media server: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("media server not found or already deleted: %s", id)
	}

	return nil
}

// List retrieves all media servers matching the given criteria, excluding soft-deleted servers
func (r *MediaServerRepository) List(criteria map[string]any) ([]*models.MediaServer, error) {
	query := `
		SELECT id, sequence, name, server_type, url, created_at, updated_at, deleted_at
		FROM media_servers
		WHERE deleted_at IS NULL
	`

	args := []any{}

	if serverType, ok := criteria["server_type"].(string); ok && serverType != "" {
		query += " AND server_type = ?"
		args = append(args, serverType)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query media servers: %w", err)
	}
	defer rows.Close()

	var servers []*models.MediaServer
	for rows.Next() {
		var (
			id         string
			sequence   int
			name       string
			serverType string
			serverURL  string
			createdAt  time.Time
			updatedAt  time.Time
			deletedAt  sql.NullTime
		)

		err := rows.Scan(&id, &sequence, &name, &serverType, &serverURL, &createdAt, &updatedAt, &deletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media server: %w", err)
		}

		server := models.NewMediaServer(sequence, name, serverType, serverURL)
		server.SetID(id)
		server.SetCreatedAt(createdAt)
		server.SetUpdatedAt(updatedAt)
		if deletedAt.Valid {
			server.SetDeletedAt(&deletedAt.Time)
		}

		servers = append(servers, server)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return servers, nil
}
