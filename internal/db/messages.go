package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vhenrik/postbox/internal/models"
)

const messageColumns = `id, user_id, folder_id, thread_id, in_reply_to, message_id_header,
		from_address, from_name, to_addrs, cc_addrs, bcc_addrs,
		subject, body_text, body_html, snippet,
		state, is_read, is_starred, is_important, is_archived,
		has_attachments, size_bytes,
		created_at, updated_at, scheduled_at, snoozed_until, auto_delete_at`

// messageColumnsPrefixed qualifies every column with alias "m" for queries
// that join other tables.
const messageColumnsPrefixed = `m.id, m.user_id, m.folder_id, m.thread_id, m.in_reply_to, m.message_id_header,
		m.from_address, m.from_name, m.to_addrs, m.cc_addrs, m.bcc_addrs,
		m.subject, m.body_text, m.body_html, m.snippet,
		m.state, m.is_read, m.is_starred, m.is_important, m.is_archived,
		m.has_attachments, m.size_bytes,
		m.created_at, m.updated_at, m.scheduled_at, m.snoozed_until, m.auto_delete_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	var inReplyTo, bodyHTML *string
	var toJSON, ccJSON, bccJSON []byte

	err := row.Scan(
		&msg.ID,
		&msg.UserID,
		&msg.FolderID,
		&msg.ThreadID,
		&inReplyTo,
		&msg.MessageIDHeader,
		&msg.From.Email,
		&msg.From.Name,
		&toJSON,
		&ccJSON,
		&bccJSON,
		&msg.Subject,
		&msg.BodyText,
		&bodyHTML,
		&msg.Snippet,
		&msg.State,
		&msg.IsRead,
		&msg.IsStarred,
		&msg.IsImportant,
		&msg.IsArchived,
		&msg.HasAttachments,
		&msg.SizeBytes,
		&msg.CreatedAt,
		&msg.UpdatedAt,
		&msg.ScheduledAt,
		&msg.SnoozedUntil,
		&msg.AutoDeleteAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", mapStorageErr(err))
	}

	if inReplyTo != nil {
		msg.InReplyTo = *inReplyTo
	}
	if bodyHTML != nil {
		msg.BodyHTML = *bodyHTML
	}
	for _, pair := range []struct {
		data []byte
		dst  *[]models.Address
	}{{toJSON, &msg.To}, {ccJSON, &msg.Cc}, {bccJSON, &msg.Bcc}} {
		if len(pair.data) > 0 {
			if err := json.Unmarshal(pair.data, pair.dst); err != nil {
				return nil, fmt.Errorf("failed to decode address list: %w", err)
			}
		}
	}

	return &msg, nil
}

func marshalAddrs(addrs []models.Address) ([]byte, error) {
	if addrs == nil {
		addrs = []models.Address{}
	}
	data, err := json.Marshal(addrs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode address list: %w", err)
	}
	return data, nil
}

// CreateMessage stores a new message. It validates folder ownership,
// resolves the thread (joining the thread of the message named by
// InReplyTo when that resolves, starting a fresh one otherwise) and
// derives snippet, size and attachment flags. The assigned id, thread id
// and timestamps are written back into msg.
func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.UserID == "" || msg.FolderID == "" {
		return fmt.Errorf("user and folder are required: %w", ErrFolderNotFound)
	}
	if !models.ValidState(msg.State) {
		return fmt.Errorf("invalid message state %q", msg.State)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapStorageErr(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Ownership check on the target folder: a folder id belonging to
	// another user must look like a missing folder.
	var folderType models.FolderType
	err = tx.QueryRow(ctx, `
		SELECT folder_type FROM folders WHERE user_id = $1 AND id::text = $2
	`, msg.UserID, msg.FolderID).Scan(&folderType)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrFolderNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check folder: %w", mapStorageErr(err))
	}

	// Resolve the thread. InReplyTo may name a stored message id or an
	// external Message-ID header.
	var threadID *string
	if msg.ThreadID != "" {
		threadID = &msg.ThreadID
	} else if msg.InReplyTo != "" {
		var resolved string
		err := tx.QueryRow(ctx, `
			SELECT thread_id FROM messages
			WHERE user_id = $1 AND (id::text = $2 OR message_id_header = $2)
			LIMIT 1
		`, msg.UserID, msg.InReplyTo).Scan(&resolved)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to resolve thread: %w", mapStorageErr(err))
		}
		if err == nil {
			threadID = &resolved
		}
	}

	if msg.Snippet == "" {
		msg.Snippet = models.MakeSnippet(msg.BodyText)
	}
	msg.HasAttachments = len(msg.Attachments) > 0
	msg.SizeBytes = int64(len(msg.BodyText) + len(msg.BodyHTML))
	for _, att := range msg.Attachments {
		msg.SizeBytes += att.SizeBytes
	}

	toJSON, err := marshalAddrs(msg.To)
	if err != nil {
		return err
	}
	ccJSON, err := marshalAddrs(msg.Cc)
	if err != nil {
		return err
	}
	bccJSON, err := marshalAddrs(msg.Bcc)
	if err != nil {
		return err
	}

	var inReplyTo, bodyHTML *string
	if msg.InReplyTo != "" {
		inReplyTo = &msg.InReplyTo
	}
	if msg.BodyHTML != "" {
		bodyHTML = &msg.BodyHTML
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (
			user_id, folder_id, thread_id, in_reply_to, message_id_header,
			from_address, from_name, to_addrs, cc_addrs, bcc_addrs,
			subject, body_text, body_html, snippet,
			state, is_read, is_starred, is_important, is_archived,
			has_attachments, size_bytes,
			scheduled_at, snoozed_until, auto_delete_at
		) VALUES (
			$1, $2, COALESCE($3::uuid, gen_random_uuid()), $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18, $19,
			$20, $21,
			$22, $23, $24
		)
		RETURNING id, thread_id, created_at, updated_at
	`,
		msg.UserID,
		msg.FolderID,
		threadID,
		inReplyTo,
		msg.MessageIDHeader,
		msg.From.Email,
		msg.From.Name,
		toJSON,
		ccJSON,
		bccJSON,
		msg.Subject,
		msg.BodyText,
		bodyHTML,
		msg.Snippet,
		string(msg.State),
		msg.IsRead,
		msg.IsStarred,
		msg.IsImportant,
		msg.IsArchived,
		msg.HasAttachments,
		msg.SizeBytes,
		msg.ScheduledAt,
		msg.SnoozedUntil,
		msg.AutoDeleteAt,
	).Scan(&msg.ID, &msg.ThreadID, &msg.CreatedAt, &msg.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateMessage
		}
		return fmt.Errorf("failed to save message: %w", mapStorageErr(err))
	}

	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		att.MessageID = msg.ID
		err := tx.QueryRow(ctx, `
			INSERT INTO attachments (message_id, filename, original_name, mime_type, size_bytes, is_inline, content_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, att.MessageID, att.Filename, att.OriginalName, att.MimeType, att.SizeBytes, att.IsInline, att.ContentID).Scan(&att.ID)
		if err != nil {
			return fmt.Errorf("failed to save attachment: %w", mapStorageErr(err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit message: %w", mapStorageErr(err))
	}
	return nil
}

// GetMessage returns a message with its attachments and labels, scoped to
// the owning user.
func (s *Store) GetMessage(ctx context.Context, userID, messageID string) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE user_id = $1 AND id::text = $2
	`, userID, messageID)

	msg, err := scanMessage(row)
	if err != nil {
		return nil, err
	}

	attachments, err := s.GetAttachmentsForMessage(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	for _, att := range attachments {
		msg.Attachments = append(msg.Attachments, *att)
	}

	labels, err := s.LabelsOfMessage(ctx, userID, msg.ID)
	if err != nil {
		return nil, err
	}
	for _, label := range labels {
		msg.Labels = append(msg.Labels, *label)
	}

	return msg, nil
}

// UpdateFlags applies a partial flag mutation in a single row update;
// fields left nil in update are untouched. Returns the updated message.
func (s *Store) UpdateFlags(ctx context.Context, userID, messageID string, update models.FlagUpdate) (*models.Message, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE messages SET
			is_read = COALESCE($3, is_read),
			is_starred = COALESCE($4, is_starred),
			is_important = COALESCE($5, is_important),
			is_archived = COALESCE($6, is_archived),
			updated_at = now()
		WHERE user_id = $1 AND id::text = $2
		RETURNING `+messageColumns+`
	`, userID, messageID, update.IsRead, update.IsStarred, update.IsImportant, update.IsArchived)

	return scanMessage(row)
}

// moveState determines the lifecycle state a message takes on when moved
// into a folder. The physical system folders imply a state; custom folders
// keep the current one, except that leaving trash or spam restores the
// message to regular received mail.
func moveState(current models.MessageState, folderType models.FolderType) models.MessageState {
	if folderType == models.FolderTypeCustom {
		if current == models.StateTrashed || current == models.StateSpam {
			return models.StateReceived
		}
		return current
	}
	return models.StateForFolder(folderType)
}

// MoveMessage is the only operation that changes a message's folder. The
// lifecycle state follows the target folder; attribute flags (read,
// starred, important) are never touched.
func (s *Store) MoveMessage(ctx context.Context, userID, messageID, targetFolderID string) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", mapStorageErr(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var folderType models.FolderType
	err = tx.QueryRow(ctx, `
		SELECT folder_type FROM folders WHERE user_id = $1 AND id::text = $2
	`, userID, targetFolderID).Scan(&folderType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check target folder: %w", mapStorageErr(err))
	}

	var currentState models.MessageState
	err = tx.QueryRow(ctx, `
		SELECT state FROM messages WHERE user_id = $1 AND id::text = $2 FOR UPDATE
	`, userID, messageID).Scan(&currentState)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock message: %w", mapStorageErr(err))
	}

	// Trashed and spam messages pick up an expiry for the retention sweep;
	// moving back out clears it.
	row := tx.QueryRow(ctx, `
		UPDATE messages SET
			folder_id = $3,
			state = $4,
			auto_delete_at = CASE
				WHEN $4 IN ('trashed', 'spam') THEN now() + make_interval(days => $5)
				ELSE NULL
			END,
			updated_at = now()
		WHERE user_id = $1 AND id::text = $2
		RETURNING `+messageColumns+`
	`, userID, messageID, targetFolderID, string(moveState(currentState, folderType)), s.retentionDays)

	msg, err := scanMessage(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit move: %w", mapStorageErr(err))
	}
	return msg, nil
}

// SoftDeleteMessage moves a message to the user's trash folder.
func (s *Store) SoftDeleteMessage(ctx context.Context, userID, messageID string) (*models.Message, error) {
	trash, err := s.GetFolderByType(ctx, userID, models.FolderTypeTrash)
	if err != nil {
		return nil, err
	}
	return s.MoveMessage(ctx, userID, messageID, trash.ID)
}

// PurgeMessage removes a message permanently. Attachment rows and label
// associations go with it via ON DELETE CASCADE.
func (s *Store) PurgeMessage(ctx context.Context, userID, messageID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM messages WHERE user_id = $1 AND id::text = $2
	`, userID, messageID)
	if err != nil {
		return fmt.Errorf("failed to purge message: %w", mapStorageErr(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// BulkUpdateFlags applies the same flag mutation to several messages. The
// batch is not atomic as a whole; each id either fully succeeds or is
// reported in Failed.
func (s *Store) BulkUpdateFlags(ctx context.Context, userID string, messageIDs []string, update models.FlagUpdate) models.BulkResult {
	result := models.BulkResult{Failed: make(map[string]error)}
	for _, id := range messageIDs {
		if _, err := s.UpdateFlags(ctx, userID, id, update); err != nil {
			result.Failed[id] = err
			continue
		}
		result.Done = append(result.Done, id)
	}
	return result
}

// BulkSoftDelete moves several messages to trash, reporting per-id outcomes.
func (s *Store) BulkSoftDelete(ctx context.Context, userID string, messageIDs []string) models.BulkResult {
	result := models.BulkResult{Failed: make(map[string]error)}
	for _, id := range messageIDs {
		if _, err := s.SoftDeleteMessage(ctx, userID, id); err != nil {
			result.Failed[id] = err
			continue
		}
		result.Done = append(result.Done, id)
	}
	return result
}

// GetAttachmentsForMessage returns all attachment metadata for a message.
func (s *Store) GetAttachmentsForMessage(ctx context.Context, messageID string) ([]*models.Attachment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, message_id, filename, original_name, mime_type, size_bytes, is_inline, content_id
		FROM attachments
		WHERE message_id = $1
		ORDER BY id
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get attachments: %w", mapStorageErr(err))
	}
	defer rows.Close()

	var attachments []*models.Attachment
	for rows.Next() {
		var att models.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.MessageID,
			&att.Filename,
			&att.OriginalName,
			&att.MimeType,
			&att.SizeBytes,
			&att.IsInline,
			&att.ContentID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		attachments = append(attachments, &att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", mapStorageErr(err))
	}
	return attachments, nil
}
