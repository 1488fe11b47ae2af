package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/vhenrik/postbox/internal/models"
)

// GetThread builds the conversation aggregate for a thread: member
// messages ordered oldest first, participants deduplicated by address
// (case-insensitively), read state folded with AND and starred/important
// with OR.
func (s *Store) GetThread(ctx context.Context, userID, threadID string) (*models.Thread, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE user_id = $1 AND thread_id::text = $2
		ORDER BY created_at ASC, id ASC
	`, userID, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread messages: %w", mapStorageErr(err))
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thread messages: %w", mapStorageErr(err))
	}

	if len(messages) == 0 {
		return nil, ErrThreadNotFound
	}

	return buildThread(userID, messages), nil
}

// buildThread folds member messages into the Thread aggregate. Messages
// must be ordered oldest first.
func buildThread(userID string, messages []models.Message) *models.Thread {
	first := messages[0]
	last := messages[len(messages)-1]

	thread := &models.Thread{
		ID:            first.ThreadID,
		UserID:        userID,
		Subject:       first.Subject,
		Messages:      messages,
		MessageCount:  len(messages),
		IsRead:        true,
		LastMessageID: last.ID,
		LastCreatedAt: last.CreatedAt,
	}

	seen := make(map[string]bool)
	addParticipant := func(addr models.Address) {
		key := strings.ToLower(addr.Email)
		if addr.Email == "" || seen[key] {
			return
		}
		seen[key] = true
		thread.Participants = append(thread.Participants, addr)
	}

	for _, msg := range messages {
		thread.IsRead = thread.IsRead && msg.IsRead
		thread.IsStarred = thread.IsStarred || msg.IsStarred
		thread.IsImportant = thread.IsImportant || msg.IsImportant

		addParticipant(msg.From)
		for _, addr := range msg.To {
			addParticipant(addr)
		}
		for _, addr := range msg.Cc {
			addParticipant(addr)
		}
	}

	return thread
}

// ListThreadsForView groups a virtual folder's messages into conversations
// and paginates over those, so page counts mean threads rather than raw
// messages. Total is the number of matching threads.
func (s *Store) ListThreadsForView(ctx context.Context, userID string, view View, filters models.ListFilters, page, pageSize int) ([]*models.ThreadSummary, int, error) {
	if page < 1 {
		page = 1
	}
	pageSize = s.clampPageSize(pageSize)

	var args queryArgs
	userArg := args.add(userID)
	conds := []string{fmt.Sprintf("m.user_id = %s", userArg)}
	conds = append(conds, s.viewConds(view, &args, userArg)...)
	conds = append(conds, filterConds(filters, &args)...)
	where := strings.Join(conds, " AND ")

	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT count(DISTINCT m.thread_id) FROM messages m WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count threads: %w", mapStorageErr(err))
	}

	limitArg := args.add(pageSize)
	offsetArg := args.add((page - 1) * pageSize)
	rows, err := s.pool.Query(ctx, `
		SELECT m.thread_id
		FROM messages m
		WHERE `+where+`
		GROUP BY m.thread_id
		ORDER BY max(m.created_at) DESC, m.thread_id DESC
		LIMIT `+limitArg+` OFFSET `+offsetArg,
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list threads: %w", mapStorageErr(err))
	}
	defer rows.Close()

	var threadIDs []string
	for rows.Next() {
		var threadID string
		if err := rows.Scan(&threadID); err != nil {
			return nil, 0, fmt.Errorf("failed to scan thread id: %w", err)
		}
		threadIDs = append(threadIDs, threadID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating thread ids: %w", mapStorageErr(err))
	}

	if len(threadIDs) == 0 {
		return nil, total, nil
	}

	summaries, err := s.threadSummaries(ctx, userID, threadIDs)
	if err != nil {
		return nil, 0, err
	}
	return summaries, total, nil
}

// threadSummaries loads list-view projections for the given thread ids,
// preserving the ids' order.
func (s *Store) threadSummaries(ctx context.Context, userID string, threadIDs []string) ([]*models.ThreadSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (ts.thread_id)
			ts.thread_id,
			m.subject,
			m.from_address,
			m.from_name,
			m.snippet,
			ts.message_count,
			ts.is_read,
			ts.is_starred,
			ts.is_important,
			ts.last_created_at
		FROM thread_summaries ts
		JOIN messages m ON m.user_id = ts.user_id AND m.thread_id = ts.thread_id
		WHERE ts.user_id = $1 AND ts.thread_id = ANY($2::uuid[])
		ORDER BY ts.thread_id, m.created_at DESC, m.id DESC
	`, userID, threadIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get thread summaries: %w", mapStorageErr(err))
	}
	defer rows.Close()

	byID := make(map[string]*models.ThreadSummary, len(threadIDs))
	for rows.Next() {
		var summary models.ThreadSummary
		if err := rows.Scan(
			&summary.ThreadID,
			&summary.Subject,
			&summary.FromAddress.Email,
			&summary.FromAddress.Name,
			&summary.Snippet,
			&summary.MessageCount,
			&summary.IsRead,
			&summary.IsStarred,
			&summary.IsImportant,
			&summary.LastCreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan thread summary: %w", err)
		}
		byID[summary.ThreadID] = &summary
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating thread summaries: %w", mapStorageErr(err))
	}

	summaries := make([]*models.ThreadSummary, 0, len(threadIDs))
	for _, threadID := range threadIDs {
		if summary, ok := byID[threadID]; ok {
			summaries = append(summaries, summary)
		}
	}
	return summaries, nil
}
