package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vhenrik/postbox/internal/models"
)

const folderColumns = `id, user_id, folder_type, name, created_at`

func scanFolder(row pgx.Row) (*models.Folder, error) {
	var folder models.Folder
	err := row.Scan(
		&folder.ID,
		&folder.UserID,
		&folder.Type,
		&folder.Name,
		&folder.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan folder: %w", mapStorageErr(err))
	}
	return &folder, nil
}

// EnsureSystemFolders creates the five fixed folders for a user if they do
// not exist yet. It is safe to call on every login.
func (s *Store) EnsureSystemFolders(ctx context.Context, userID string) error {
	for _, folderType := range models.SystemFolderTypes {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO folders (user_id, folder_type, name)
			VALUES ($1, $2, $2)
			ON CONFLICT DO NOTHING
		`, userID, string(folderType))
		if err != nil {
			return fmt.Errorf("failed to ensure %s folder: %w", folderType, mapStorageErr(err))
		}
	}
	return nil
}

// GetFolder returns a folder by id, scoped to the owning user.
func (s *Store) GetFolder(ctx context.Context, userID, folderID string) (*models.Folder, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+folderColumns+`
		FROM folders
		WHERE user_id = $1 AND id::text = $2
	`, userID, folderID)
	return scanFolder(row)
}

// GetFolderByType returns the user's system folder of the given type.
func (s *Store) GetFolderByType(ctx context.Context, userID string, folderType models.FolderType) (*models.Folder, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+folderColumns+`
		FROM folders
		WHERE user_id = $1 AND folder_type = $2 AND folder_type <> 'custom'
	`, userID, string(folderType))
	return scanFolder(row)
}

// GetFolderByName resolves a folder by its name. System folders are named
// after their type, so "inbox", "trash" etc. resolve here too.
func (s *Store) GetFolderByName(ctx context.Context, userID, name string) (*models.Folder, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+folderColumns+`
		FROM folders
		WHERE user_id = $1 AND lower(name) = lower($2)
	`, userID, name)
	return scanFolder(row)
}

// ListFolders returns all folders of a user, system folders first.
func (s *Store) ListFolders(ctx context.Context, userID string) ([]*models.Folder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+folderColumns+`
		FROM folders
		WHERE user_id = $1
		ORDER BY folder_type <> 'custom' DESC, name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", mapStorageErr(err))
	}
	defer rows.Close()

	var folders []*models.Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", mapStorageErr(err))
	}
	return folders, nil
}

// CreateCustomFolder creates a user-named folder. Names are unique per
// user; a duplicate returns ErrDuplicateFolder.
func (s *Store) CreateCustomFolder(ctx context.Context, userID, name string) (*models.Folder, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO folders (user_id, folder_type, name)
		VALUES ($1, 'custom', $2)
		RETURNING `+folderColumns+`
	`, userID, name)

	folder, err := scanFolder(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateFolder
		}
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return folder, nil
}

// DeleteCustomFolder removes a custom folder and files its messages back
// into the user's inbox. System folders cannot be deleted.
func (s *Store) DeleteCustomFolder(ctx context.Context, userID, folderID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapStorageErr(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	folder, err := scanFolder(tx.QueryRow(ctx, `
		SELECT `+folderColumns+`
		FROM folders
		WHERE user_id = $1 AND id::text = $2
	`, userID, folderID))
	if err != nil {
		return err
	}
	if folder.IsSystem() {
		return ErrSystemFolder
	}

	var inboxID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM folders WHERE user_id = $1 AND folder_type = 'inbox'
	`, userID).Scan(&inboxID)
	if err != nil {
		return fmt.Errorf("failed to find inbox for reassignment: %w", mapStorageErr(err))
	}

	_, err = tx.Exec(ctx, `
		UPDATE messages SET folder_id = $1, updated_at = now()
		WHERE user_id = $2 AND folder_id = $3
	`, inboxID, userID, folder.ID)
	if err != nil {
		return fmt.Errorf("failed to reassign messages: %w", mapStorageErr(err))
	}

	_, err = tx.Exec(ctx, `DELETE FROM folders WHERE id = $1`, folder.ID)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", mapStorageErr(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit folder deletion: %w", mapStorageErr(err))
	}
	return nil
}
