package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vhenrik/postbox/internal/models"
)

// ErrUnknownView indicates a folder name outside the known virtual-folder set.
var ErrUnknownView = errors.New("unknown folder view")

// Virtual folder names. Several of these are flag-based projections rather
// than physical folders: a message can be starred and live in Sent, so
// "folder" in the list-view sense is a named predicate over the message
// table, not a column value.
const (
	ViewInbox     = "inbox"
	ViewStarred   = "starred"
	ViewImportant = "important"
	ViewSent      = "sent"
	ViewDrafts    = "drafts"
	ViewSpam      = "spam"
	ViewTrash     = "trash"
	ViewAll       = "all"

	viewLabel  = "label"
	viewFolder = "folder"
)

// View selects one virtual folder. Exactly one of the identifying fields
// beyond Name is set for label and custom-folder views.
type View struct {
	Name     string
	LabelID  string
	FolderID string
}

// ParseView resolves a view name. "label:<id>" addresses the set of
// messages carrying that label; everything else must be one of the named
// virtual folders.
func ParseView(name string) (View, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if rest, ok := strings.CutPrefix(name, "label:"); ok && rest != "" {
		return View{Name: viewLabel, LabelID: rest}, nil
	}
	switch name {
	case ViewInbox, ViewStarred, ViewImportant, ViewSent, ViewDrafts, ViewSpam, ViewTrash, ViewAll:
		return View{Name: name}, nil
	}
	return View{}, fmt.Errorf("%w: %q", ErrUnknownView, name)
}

// FolderView addresses the contents of one physical folder, used for
// custom folders that are not part of the virtual-folder set.
func FolderView(folderID string) View {
	return View{Name: viewFolder, FolderID: folderID}
}

// queryArgs collects positional query arguments, handing out the matching
// placeholder for each.
type queryArgs []any

func (a *queryArgs) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// viewConds translates a view into WHERE conditions over messages aliased
// "m". The predicates are fixed so that, for example, a spam message never
// surfaces under inbox even while its folder_id still points there.
func (s *Store) viewConds(view View, args *queryArgs, userArg string) []string {
	folderScope := func(folderType models.FolderType) string {
		return fmt.Sprintf(
			"m.folder_id IN (SELECT id FROM folders WHERE user_id = %s AND folder_type = '%s')",
			userArg, folderType,
		)
	}

	switch view.Name {
	case ViewInbox:
		return []string{folderScope(models.FolderTypeInbox), "m.state = 'received'"}
	case ViewStarred:
		return []string{"m.is_starred", "m.state <> 'trashed'"}
	case ViewImportant:
		return []string{"m.is_important", "m.state <> 'trashed'"}
	case ViewSent:
		return []string{folderScope(models.FolderTypeSent)}
	case ViewDrafts:
		return []string{folderScope(models.FolderTypeDrafts), "m.state = 'draft'"}
	case ViewSpam:
		return []string{"m.state = 'spam'"}
	case ViewTrash:
		return []string{"m.state = 'trashed'"}
	case ViewAll:
		if s.allIncludesSpamTrash {
			return nil
		}
		return []string{"m.state NOT IN ('trashed', 'spam')"}
	case viewLabel:
		return []string{fmt.Sprintf(
			"EXISTS (SELECT 1 FROM message_labels ml WHERE ml.message_id = m.id AND ml.label_id::text = %s)",
			args.add(view.LabelID),
		)}
	case viewFolder:
		return []string{fmt.Sprintf("m.folder_id::text = %s", args.add(view.FolderID))}
	}
	// Unreachable when the view came from ParseView/FolderView.
	return []string{"FALSE"}
}

// filterConds appends the tri-state listing filters.
func filterConds(filters models.ListFilters, args *queryArgs) []string {
	var conds []string
	if filters.Starred != nil {
		conds = append(conds, fmt.Sprintf("m.is_starred = %s", args.add(*filters.Starred)))
	}
	if filters.Important != nil {
		conds = append(conds, fmt.Sprintf("m.is_important = %s", args.add(*filters.Important)))
	}
	if filters.Unread != nil {
		conds = append(conds, fmt.Sprintf("m.is_read = %s", args.add(!*filters.Unread)))
	}
	if filters.HasAttachment != nil {
		conds = append(conds, fmt.Sprintf("m.has_attachments = %s", args.add(*filters.HasAttachment)))
	}
	return conds
}

// clampPageSize bounds pageSize to [1, MaxPageSize].
func (s *Store) clampPageSize(pageSize int) int {
	if pageSize < 1 {
		return 1
	}
	if pageSize > s.maxPageSize {
		return s.maxPageSize
	}
	return pageSize
}

// ListView returns one page of messages from a virtual folder, most recent
// first, plus the total match count before pagination.
func (s *Store) ListView(ctx context.Context, userID string, view View, filters models.ListFilters, page, pageSize int) ([]*models.Message, int, error) {
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
		`SELECT count(*) FROM messages m WHERE `+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count view %s: %w", view.Name, mapStorageErr(err))
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
		return nil, 0, fmt.Errorf("failed to list view %s: %w", view.Name, mapStorageErr(err))
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
		return nil, 0, fmt.Errorf("error iterating view %s: %w", view.Name, mapStorageErr(err))
	}

	return messages, total, nil
}

// ViewCounts returns the total and unread message counts of a view,
// computed from the live rows so they are never stale.
func (s *Store) ViewCounts(ctx context.Context, userID string, view View) (total, unread int, err error) {
	var args queryArgs
	userArg := args.add(userID)
	conds := []string{fmt.Sprintf("m.user_id = %s", userArg)}
	conds = append(conds, s.viewConds(view, &args, userArg)...)

	err = s.pool.QueryRow(ctx, `
		SELECT count(*), count(*) FILTER (WHERE NOT m.is_read)
		FROM messages m
		WHERE `+strings.Join(conds, " AND "),
		args...,
	).Scan(&total, &unread)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count view %s: %w", view.Name, mapStorageErr(err))
	}
	return total, unread, nil
}
