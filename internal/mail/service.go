// Package mail is the engine's service façade: folder listings, search,
// flag mutations, labels, threads and the compose/ingest paths. Callers
// arrive already authenticated; the userID they supply is trusted and
// scopes every storage lookup.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vhenrik/postbox/internal/config"
	"github.com/vhenrik/postbox/internal/db"
	"github.com/vhenrik/postbox/internal/models"
	"github.com/vhenrik/postbox/internal/search"
)

// Sender delivers outgoing messages. Delivery failure never rolls back the
// local write.
type Sender interface {
	Send(ctx context.Context, msg *models.Message) error
}

// Service wires the store, the query parser and the outbound transport
// into the operations the API layer calls.
type Service struct {
	store    *db.Store
	sender   Sender
	threaded bool
}

// NewService creates the service. sender may be nil when no outbound relay
// is configured; Send then only stores the message.
func NewService(store *db.Store, sender Sender, cfg *config.Config) *Service {
	return &Service{
		store:    store,
		sender:   sender,
		threaded: cfg.ThreadedListing,
	}
}

// ListOptions tunes a folder listing beyond the filters.
type ListOptions struct {
	Filters models.ListFilters
	// Threaded overrides the configured default for conversation grouping.
	Threaded *bool
}

// FolderListing is one page of a folder view: threads when conversation
// grouping is on, flat messages otherwise. Total counts threads or
// messages accordingly, before pagination.
type FolderListing struct {
	Threads  []*models.ThreadSummary
	Messages []*models.Message
	Total    int
	Page     int
	PageSize int
	Threaded bool
}

// ListFolder returns one page of the named virtual folder.
func (s *Service) ListFolder(ctx context.Context, userID, folderName string, page, pageSize int, opts ListOptions) (*FolderListing, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be at least 1", ErrInvalidArgument)
	}

	view, err := s.resolveView(ctx, userID, folderName)
	if err != nil {
		return nil, err
	}

	threaded := s.threaded
	if opts.Threaded != nil {
		threaded = *opts.Threaded
	}

	listing := &FolderListing{Page: page, PageSize: pageSize, Threaded: threaded}
	if threaded {
		listing.Threads, listing.Total, err = s.store.ListThreadsForView(ctx, userID, view, opts.Filters, page, pageSize)
	} else {
		listing.Messages, listing.Total, err = s.store.ListView(ctx, userID, view, opts.Filters, page, pageSize)
	}
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// FolderCounts returns the total and unread counts of a view for sidebar
// display.
func (s *Service) FolderCounts(ctx context.Context, userID, folderName string) (total, unread int, err error) {
	view, err := s.resolveView(ctx, userID, folderName)
	if err != nil {
		return 0, 0, err
	}
	return s.store.ViewCounts(ctx, userID, view)
}

// resolveView maps a folder name to a projection. Besides the fixed
// virtual folders and label views, a user's custom folder names resolve to
// their physical folder.
func (s *Service) resolveView(ctx context.Context, userID, folderName string) (db.View, error) {
	view, err := db.ParseView(folderName)
	if err == nil {
		if view.LabelID != "" {
			// Surface a missing label as NotFound rather than an empty view.
			if _, lerr := s.store.GetLabel(ctx, userID, view.LabelID); lerr != nil {
				return db.View{}, lerr
			}
		}
		return view, nil
	}

	folder, ferr := s.store.GetFolderByName(ctx, userID, folderName)
	if errors.Is(ferr, db.ErrFolderNotFound) {
		return db.View{}, fmt.Errorf("%w: unknown folder %q", ErrInvalidArgument, folderName)
	}
	if ferr != nil {
		return db.View{}, ferr
	}
	return db.FolderView(folder.ID), nil
}

// Search parses and executes a query across all of the user's mail. A
// blank query returns an empty page with total zero rather than everything.
func (s *Service) Search(ctx context.Context, userID, queryString string, page, pageSize int) ([]*models.Message, int, error) {
	if page < 1 {
		return nil, 0, fmt.Errorf("%w: page must be at least 1", ErrInvalidArgument)
	}
	if strings.TrimSpace(queryString) == "" {
		return nil, 0, nil
	}
	query := search.Parse(queryString)
	return s.store.SearchMessages(ctx, userID, query, nil, page, pageSize)
}

// SearchInFolder runs a query scoped to one virtual folder.
func (s *Service) SearchInFolder(ctx context.Context, userID, queryString, folderName string, page, pageSize int) ([]*models.Message, int, error) {
	if page < 1 {
		return nil, 0, fmt.Errorf("%w: page must be at least 1", ErrInvalidArgument)
	}
	view, err := s.resolveView(ctx, userID, folderName)
	if err != nil {
		return nil, 0, err
	}
	query := search.Parse(queryString)
	return s.store.SearchMessages(ctx, userID, query, &view, page, pageSize)
}

// GetMessage returns a message and marks it read, the way opening it in
// the UI does.
func (s *Service) GetMessage(ctx context.Context, userID, messageID string) (*models.Message, error) {
	msg, err := s.store.GetMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsRead {
		read := true
		updated, err := s.store.UpdateFlags(ctx, userID, messageID, models.FlagUpdate{IsRead: &read})
		if err != nil {
			return nil, err
		}
		msg.IsRead = true
		msg.UpdatedAt = updated.UpdatedAt
	}
	return msg, nil
}

// PeekMessage returns a message without touching its read state.
func (s *Service) PeekMessage(ctx context.Context, userID, messageID string) (*models.Message, error) {
	return s.store.GetMessage(ctx, userID, messageID)
}

// UpdateFlags applies a partial flag change. An empty update is a no-op
// that returns the current message.
func (s *Service) UpdateFlags(ctx context.Context, userID, messageID string, update models.FlagUpdate) (*models.Message, error) {
	if update.IsEmpty() {
		return s.store.GetMessage(ctx, userID, messageID)
	}
	return s.store.UpdateFlags(ctx, userID, messageID, update)
}

// MoveToFolder moves a message into the named physical folder.
func (s *Service) MoveToFolder(ctx context.Context, userID, messageID, folderName string) (*models.Message, error) {
	folder, err := s.store.GetFolderByName(ctx, userID, folderName)
	if err != nil {
		return nil, err
	}
	return s.store.MoveMessage(ctx, userID, messageID, folder.ID)
}

// Delete moves a message to trash.
func (s *Service) Delete(ctx context.Context, userID, messageID string) (*models.Message, error) {
	return s.store.SoftDeleteMessage(ctx, userID, messageID)
}

// Purge removes a message permanently, with its attachments and label
// associations.
func (s *Service) Purge(ctx context.Context, userID, messageID string) error {
	return s.store.PurgeMessage(ctx, userID, messageID)
}

// BulkUpdateFlags applies the same flag change to several messages,
// reporting per-id outcomes.
func (s *Service) BulkUpdateFlags(ctx context.Context, userID string, messageIDs []string, update models.FlagUpdate) models.BulkResult {
	return s.store.BulkUpdateFlags(ctx, userID, messageIDs, update)
}

// BulkDelete moves several messages to trash, reporting per-id outcomes.
func (s *Service) BulkDelete(ctx context.Context, userID string, messageIDs []string) models.BulkResult {
	return s.store.BulkSoftDelete(ctx, userID, messageIDs)
}

// GetThread returns the conversation aggregate for a thread.
func (s *Service) GetThread(ctx context.Context, userID, threadID string) (*models.Thread, error) {
	return s.store.GetThread(ctx, userID, threadID)
}

// CreateLabel creates a user label.
func (s *Service) CreateLabel(ctx context.Context, userID, name, color string) (*models.Label, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: label name is required", ErrInvalidArgument)
	}
	return s.store.CreateLabel(ctx, userID, name, color)
}

// DeleteLabel deletes a label and detaches it everywhere.
func (s *Service) DeleteLabel(ctx context.Context, userID, labelID string) error {
	return s.store.DeleteLabel(ctx, userID, labelID)
}

// ListLabels returns the user's labels.
func (s *Service) ListLabels(ctx context.Context, userID string) ([]*models.Label, error) {
	return s.store.ListLabels(ctx, userID)
}

// AttachLabel tags a message; attaching twice is a no-op.
func (s *Service) AttachLabel(ctx context.Context, userID, messageID, labelID string) error {
	return s.store.AttachLabel(ctx, userID, messageID, labelID)
}

// DetachLabel removes a tag; detaching an absent tag is a no-op.
func (s *Service) DetachLabel(ctx context.Context, userID, messageID, labelID string) error {
	return s.store.DetachLabel(ctx, userID, messageID, labelID)
}

// CreateFolder creates a custom folder.
func (s *Service) CreateFolder(ctx context.Context, userID, name string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", ErrInvalidArgument)
	}
	if _, err := db.ParseView(name); err == nil {
		return nil, fmt.Errorf("%w: %q is a reserved folder name", ErrInvalidArgument, name)
	}
	return s.store.CreateCustomFolder(ctx, userID, name)
}

// DeleteFolder removes a custom folder, filing its messages back into the
// inbox.
func (s *Service) DeleteFolder(ctx context.Context, userID, folderID string) error {
	return s.store.DeleteCustomFolder(ctx, userID, folderID)
}

// ListFolders returns the user's folders.
func (s *Service) ListFolders(ctx context.Context, userID string) ([]*models.Folder, error) {
	return s.store.ListFolders(ctx, userID)
}

// EnsureMailbox creates the user's system folders. The auth layer calls
// this when an account first appears.
func (s *Service) EnsureMailbox(ctx context.Context, userID string) error {
	return s.store.EnsureSystemFolders(ctx, userID)
}
