package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/vhenrik/postbox/internal/config"
	"github.com/vhenrik/postbox/internal/db"
	"github.com/vhenrik/postbox/internal/models"
	"github.com/vhenrik/postbox/internal/testutil"
)

func newTestStore(t *testing.T) (*db.Store, context.Context) {
	t.Helper()

	pool := testutil.NewTestDB(t)
	t.Cleanup(pool.Close)

	cfg := &config.Config{
		MaxPageSize:   100,
		RetentionDays: 30,
	}
	return db.NewStore(pool, cfg), context.Background()
}

// systemFolders provisions the fixed folders for a user and returns them
// keyed by type.
func systemFolders(t *testing.T, ctx context.Context, store *db.Store, userID string) map[models.FolderType]*models.Folder {
	t.Helper()

	if err := store.EnsureSystemFolders(ctx, userID); err != nil {
		t.Fatalf("EnsureSystemFolders failed: %v", err)
	}

	folders := make(map[models.FolderType]*models.Folder, len(models.SystemFolderTypes))
	for _, folderType := range models.SystemFolderTypes {
		folder, err := store.GetFolderByType(ctx, userID, folderType)
		if err != nil {
			t.Fatalf("GetFolderByType(%s) failed: %v", folderType, err)
		}
		folders[folderType] = folder
	}
	return folders
}

func newMessage(userID, folderID string, opts ...func(*models.Message)) *models.Message {
	msg := &models.Message{
		UserID:   userID,
		FolderID: folderID,
		From:     models.Address{Name: "Alice", Email: "alice@example.com"},
		To:       []models.Address{{Email: "me@example.com"}},
		Subject:  "Test Subject",
		BodyText: "Hello from the mailbox",
		State:    models.StateReceived,
	}
	for _, opt := range opts {
		opt(msg)
	}
	return msg
}

func createMessage(t *testing.T, ctx context.Context, store *db.Store, msg *models.Message) *models.Message {
	t.Helper()

	if err := store.CreateMessage(ctx, msg); err != nil {
		t.Fatalf("CreateMessage failed: %v", err)
	}
	return msg
}

// setCreatedAt backdates a message so ordering-sensitive tests don't depend
// on insert timing.
func setCreatedAt(t *testing.T, ctx context.Context, store *db.Store, messageID string, at time.Time) {
	t.Helper()

	_, err := store.Pool().Exec(ctx, `
		UPDATE messages SET created_at = $2 WHERE id = $1
	`, messageID, at)
	if err != nil {
		t.Fatalf("failed to set created_at: %v", err)
	}
}
