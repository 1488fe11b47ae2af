package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vhenrik/postbox/internal/models"
)

const labelColumns = `id, user_id, name, color, created_at`

func scanLabel(row pgx.Row) (*models.Label, error) {
	var label models.Label
	err := row.Scan(
		&label.ID,
		&label.UserID,
		&label.Name,
		&label.Color,
		&label.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLabelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan label: %w", mapStorageErr(err))
	}
	return &label, nil
}

// CreateLabel creates a label. Names are unique per user; a duplicate
// returns ErrDuplicateLabel.
func (s *Store) CreateLabel(ctx context.Context, userID, name, color string) (*models.Label, error) {
	if color == "" {
		row := s.pool.QueryRow(ctx, `
			INSERT INTO labels (user_id, name)
			VALUES ($1, $2)
			RETURNING `+labelColumns+`
		`, userID, name)
		return createLabelResult(row)
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO labels (user_id, name, color)
		VALUES ($1, $2, $3)
		RETURNING `+labelColumns+`
	`, userID, name, color)
	return createLabelResult(row)
}

func createLabelResult(row pgx.Row) (*models.Label, error) {
	label, err := scanLabel(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateLabel
		}
		return nil, fmt.Errorf("failed to create label: %w", err)
	}
	return label, nil
}

// GetLabel returns a label by id, scoped to the owning user.
func (s *Store) GetLabel(ctx context.Context, userID, labelID string) (*models.Label, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+labelColumns+`
		FROM labels
		WHERE user_id = $1 AND id::text = $2
	`, userID, labelID)
	return scanLabel(row)
}

// ListLabels returns all labels of a user, sorted by name.
func (s *Store) ListLabels(ctx context.Context, userID string) ([]*models.Label, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+labelColumns+`
		FROM labels
		WHERE user_id = $1
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", mapStorageErr(err))
	}
	defer rows.Close()

	var labels []*models.Label
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating labels: %w", mapStorageErr(err))
	}
	return labels, nil
}

// DeleteLabel removes a label and all its message associations. The
// messages themselves are untouched.
func (s *Store) DeleteLabel(ctx context.Context, userID, labelID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM labels WHERE user_id = $1 AND id::text = $2
	`, userID, labelID)
	if err != nil {
		return fmt.Errorf("failed to delete label: %w", mapStorageErr(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrLabelNotFound
	}
	return nil
}

// AttachLabel associates a label with a message. Attaching an
// already-attached label is a no-op. Both the message and the label must
// belong to the user.
func (s *Store) AttachLabel(ctx context.Context, userID, messageID, labelID string) error {
	if err := s.checkLabelPair(ctx, userID, messageID, labelID); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_labels (message_id, label_id)
		SELECT m.id, l.id
		FROM messages m, labels l
		WHERE m.user_id = $1 AND m.id::text = $2
		  AND l.user_id = $1 AND l.id::text = $3
		ON CONFLICT DO NOTHING
	`, userID, messageID, labelID)
	if err != nil {
		return fmt.Errorf("failed to attach label: %w", mapStorageErr(err))
	}
	return nil
}

// DetachLabel removes a label from a message. Detaching a label that is
// not attached is a no-op.
func (s *Store) DetachLabel(ctx context.Context, userID, messageID, labelID string) error {
	if err := s.checkLabelPair(ctx, userID, messageID, labelID); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		DELETE FROM message_labels ml
		USING messages m, labels l
		WHERE ml.message_id = m.id AND ml.label_id = l.id
		  AND m.user_id = $1 AND m.id::text = $2
		  AND l.user_id = $1 AND l.id::text = $3
	`, userID, messageID, labelID)
	if err != nil {
		return fmt.Errorf("failed to detach label: %w", mapStorageErr(err))
	}
	return nil
}

// checkLabelPair verifies that both the message and the label exist for
// this user, so idempotent attach/detach still distinguish "no-op" from
// "no such message/label".
func (s *Store) checkLabelPair(ctx context.Context, userID, messageID, labelID string) error {
	var messageOK, labelOK bool
	err := s.pool.QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM messages WHERE user_id = $1 AND id::text = $2),
			EXISTS (SELECT 1 FROM labels WHERE user_id = $1 AND id::text = $3)
	`, userID, messageID, labelID).Scan(&messageOK, &labelOK)
	if err != nil {
		return fmt.Errorf("failed to check label association: %w", mapStorageErr(err))
	}
	if !messageOK {
		return ErrMessageNotFound
	}
	if !labelOK {
		return ErrLabelNotFound
	}
	return nil
}

// LabelsOfMessage returns the labels attached to a message.
func (s *Store) LabelsOfMessage(ctx context.Context, userID, messageID string) ([]*models.Label, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.id, l.user_id, l.name, l.color, l.created_at
		FROM labels l
		JOIN message_labels ml ON ml.label_id = l.id
		JOIN messages m ON m.id = ml.message_id
		WHERE m.user_id = $1 AND m.id::text = $2
		ORDER BY l.name
	`, userID, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get labels: %w", mapStorageErr(err))
	}
	defer rows.Close()

	var labels []*models.Label
	for rows.Next() {
		label, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating labels: %w", mapStorageErr(err))
	}
	return labels, nil
}
