package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/vhenrik/postbox/internal/models"
	"github.com/vhenrik/postbox/internal/search"
)

// likeEscaper protects user input used inside ILIKE patterns.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}

// clauseCond translates one parsed search clause into a SQL condition over
// messages aliased "m".
func clauseCond(clause search.Clause, args *queryArgs, userArg string) string {
	var cond string

	switch clause.Field {
	case search.FieldFrom:
		// An address-shaped value matches the sender address exactly
		// (case-insensitively); anything else searches address and
		// display name as a substring.
		if strings.Contains(clause.Value, "@") {
			cond = fmt.Sprintf("lower(m.from_address) = lower(%s)", args.add(clause.Value))
		} else {
			pattern := args.add(likePattern(clause.Value))
			cond = fmt.Sprintf("(m.from_address ILIKE %s OR m.from_name ILIKE %s)", pattern, pattern)
		}
	case search.FieldTo:
		if strings.Contains(clause.Value, "@") {
			cond = fmt.Sprintf(
				"EXISTS (SELECT 1 FROM jsonb_array_elements(m.to_addrs) a WHERE lower(a->>'email') = lower(%s))",
				args.add(clause.Value),
			)
		} else {
			pattern := args.add(likePattern(clause.Value))
			cond = fmt.Sprintf(
				"EXISTS (SELECT 1 FROM jsonb_array_elements(m.to_addrs) a WHERE a->>'email' ILIKE %s OR a->>'name' ILIKE %s)",
				pattern, pattern,
			)
		}
	case search.FieldSubject:
		cond = fmt.Sprintf("m.subject ILIKE %s", args.add(likePattern(clause.Value)))
	case search.FieldHasAttachment:
		cond = "m.has_attachments"
	case search.FieldIs:
		switch clause.Value {
		case "starred":
			cond = "m.is_starred"
		case "unread":
			cond = "NOT m.is_read"
		case "read":
			cond = "m.is_read"
		case "important":
			cond = "m.is_important"
		case "draft":
			cond = "m.state = 'draft'"
		default:
			cond = "TRUE"
		}
	case search.FieldLabel:
		cond = fmt.Sprintf(
			"EXISTS (SELECT 1 FROM message_labels ml JOIN labels l ON l.id = ml.label_id "+
				"WHERE ml.message_id = m.id AND l.user_id = %s AND lower(l.name) = lower(%s))",
			userArg, args.add(clause.Value),
		)
	default: // free text
		pattern := args.add(likePattern(clause.Value))
		cond = fmt.Sprintf("(m.subject ILIKE %s OR m.body_text ILIKE %s)", pattern, pattern)
	}

	if clause.Negated {
		return "NOT (" + cond + ")"
	}
	return cond
}

// SearchMessages executes a parsed query, optionally scoped to a virtual
// folder, returning one page of matches (most recent first, id as the
// stable tiebreak) and the total match count from a separate count query.
// An empty query with no scope short-circuits to zero results without
// touching the message table.
func (s *Store) SearchMessages(ctx context.Context, userID string, query *search.Query, scope *View, page, pageSize int) ([]*models.Message, int, error) {
	if (query == nil || query.IsEmpty()) && scope == nil {
		return nil, 0, nil
	}
	if page < 1 {
		page = 1
	}
	pageSize = s.clampPageSize(pageSize)

	var args queryArgs
	userArg := args.add(userID)
	conds := []string{fmt.Sprintf("m.user_id = %s", userArg)}
	if scope != nil {
		conds = append(conds, s.viewConds(*scope, &args, userArg)...)
	}
	if query != nil {
		for _, clause := range query.Clauses {
			conds = append(conds, clauseCond(clause, &args, userArg))
		}
	}
	where := strings.Join(conds, " AND ")

	// Total before pagination; the page below is bounded by pageSize, so
	// its length says nothing about the full match count.
	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM messages m WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", mapStorageErr(err))
	}

	limitArg := args.add(pageSize)
	offsetArg := args.add((page - 1) * pageSize)
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumnsPrefixed+`
		FROM messages m
		WHERE `+where+`
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT `+limitArg+` OFFSET `+offsetArg,
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search messages: %w", mapStorageErr(err))
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating search results: %w", mapStorageErr(err))
	}

	return messages, total, nil
}
