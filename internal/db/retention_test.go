package db_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vhenrik/postbox/internal/db"
	"github.com/vhenrik/postbox/internal/models"
)

func TestPurgeExpired(t *testing.T) {
	store, ctx := newTestStore(t)
	folders := systemFolders(t, ctx, store, "user-1")
	inbox := folders[models.FolderTypeInbox]

	expired := createMessage(t, ctx, store, newMessage("user-1", inbox.ID))
	fresh := createMessage(t, ctx, store, newMessage("user-1", inbox.ID))
	kept := createMessage(t, ctx, store, newMessage("user-1", inbox.ID))

	for _, id := range []string{expired.ID, fresh.ID} {
		_, err := store.SoftDeleteMessage(ctx, "user-1", id)
		assert.NoError(t, err)
	}

	// Backdate one expiry past its window.
	_, err := store.Pool().Exec(ctx, `
		UPDATE messages SET auto_delete_at = now() - interval '1 hour' WHERE id = $1
	`, expired.ID)
	assert.NoError(t, err)

	purged, err := store.PurgeExpired(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = store.GetMessage(ctx, "user-1", expired.ID)
	assert.ErrorIs(t, err, db.ErrMessageNotFound)

	// The recently trashed message and the untouched one survive.
	_, err = store.GetMessage(ctx, "user-1", fresh.ID)
	assert.NoError(t, err)
	_, err = store.GetMessage(ctx, "user-1", kept.ID)
	assert.NoError(t, err)

	// Nothing left to purge.
	purged, err = store.PurgeExpired(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), purged)
}

func TestRetentionExpiryFollowsMoves(t *testing.T) {
	store, ctx := newTestStore(t)
	folders := systemFolders(t, ctx, store, "user-1")

	msg := createMessage(t, ctx, store, newMessage("user-1", folders[models.FolderTypeInbox].ID))
	assert.Nil(t, msg.AutoDeleteAt)

	trashed, err := store.SoftDeleteMessage(ctx, "user-1", msg.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, trashed.AutoDeleteAt) {
		remaining := time.Until(*trashed.AutoDeleteAt)
		assert.Greater(t, remaining, 29*24*time.Hour)
		assert.LessOrEqual(t, remaining, 30*24*time.Hour)
	}

	spam, err := store.MoveMessage(ctx, "user-1", msg.ID, folders[models.FolderTypeSpam].ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StateSpam, spam.State)
	assert.NotNil(t, spam.AutoDeleteAt)

	restored, err := store.MoveMessage(ctx, "user-1", msg.ID, folders[models.FolderTypeInbox].ID)
	assert.NoError(t, err)
	assert.Nil(t, restored.AutoDeleteAt)
}
