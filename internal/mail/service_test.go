package mail

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vhenrik/postbox/internal/config"
	"github.com/vhenrik/postbox/internal/db"
	"github.com/vhenrik/postbox/internal/models"
	"github.com/vhenrik/postbox/internal/testutil"
)

// recordingSender captures delivered messages in memory; a non-nil err
// makes every delivery fail.
type recordingSender struct {
	mu   sync.Mutex
	sent []*models.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func newTestService(t *testing.T) (*Service, context.Context, *recordingSender) {
	t.Helper()

	pool := testutil.NewTestDB(t)
	t.Cleanup(pool.Close)

	cfg := &config.Config{
		MaxPageSize:   100,
		RetentionDays: 30,
		// Flat listings by default; threading is exercised explicitly.
		ThreadedListing: false,
	}
	sender := &recordingSender{}
	service := NewService(db.NewStore(pool, cfg), sender, cfg)
	ctx := context.Background()

	if err := service.EnsureMailbox(ctx, "user-1"); err != nil {
		t.Fatalf("EnsureMailbox failed: %v", err)
	}
	return service, ctx, sender
}

func receiveRaw(t *testing.T, ctx context.Context, service *Service, userID, raw string) *models.Message {
	t.Helper()

	msg, err := service.Receive(ctx, userID, []byte(raw))
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	return msg
}

const rawHello = "From: Alice <alice@example.com>\r\n" +
	"To: me@example.com\r\n" +
	"Subject: Hello\r\n" +
	"Message-Id: <hello-1@example.com>\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Hello there, this is the body.\r\n"

func TestEnsureMailbox(t *testing.T) {
	service, ctx, _ := newTestService(t)

	// Calling again is harmless.
	assert.NoError(t, service.EnsureMailbox(ctx, "user-1"))

	folders, err := service.ListFolders(ctx, "user-1")
	assert.NoError(t, err)
	assert.Len(t, folders, len(models.SystemFolderTypes))
}

func TestListFolderValidation(t *testing.T) {
	service, ctx, _ := newTestService(t)

	_, err := service.ListFolder(ctx, "user-1", "inbox", 0, 50, ListOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = service.ListFolder(ctx, "user-1", "no-such-folder", 1, 50, ListOptions{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestListFolderFlatAndThreaded(t *testing.T) {
	service, ctx, _ := newTestService(t)

	root := receiveRaw(t, ctx, service, "user-1", rawHello)
	receiveRaw(t, ctx, service, "user-1",
		"From: me@example.com\r\n"+
			"To: alice@example.com\r\n"+
			"Subject: Re: Hello\r\n"+
			"In-Reply-To: <hello-1@example.com>\r\n"+
			"Content-Type: text/plain\r\n"+
			"\r\n"+
			"A reply.\r\n")

	flat, err := service.ListFolder(ctx, "user-1", "inbox", 1, 50, ListOptions{})
	assert.NoError(t, err)
	assert.False(t, flat.Threaded)
	assert.Equal(t, 2, flat.Total)
	assert.Len(t, flat.Messages, 2)
	assert.Empty(t, flat.Threads)

	threaded := true
	grouped, err := service.ListFolder(ctx, "user-1", "inbox", 1, 50, ListOptions{Threaded: &threaded})
	assert.NoError(t, err)
	assert.True(t, grouped.Threaded)
	assert.Equal(t, 1, grouped.Total, "both messages share one conversation")
	assert.Len(t, grouped.Threads, 1)
	assert.Equal(t, root.ThreadID, grouped.Threads[0].ThreadID)
	assert.Equal(t, 2, grouped.Threads[0].MessageCount)
}

func TestListFolderCustomByName(t *testing.T) {
	service, ctx, _ := newTestService(t)

	folder, err := service.CreateFolder(ctx, "user-1", "Receipts")
	assert.NoError(t, err)

	msg := receiveRaw(t, ctx, service, "user-1", rawHello)
	_, err = service.MoveToFolder(ctx, "user-1", msg.ID, "Receipts")
	assert.NoError(t, err)

	listing, err := service.ListFolder(ctx, "user-1", "Receipts", 1, 50, ListOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 1, listing.Total)
	assert.Equal(t, folder.ID, listing.Messages[0].FolderID)
}

func TestFolderCounts(t *testing.T) {
	service, ctx, _ := newTestService(t)

	receiveRaw(t, ctx, service, "user-1", rawHello)

	total, unread, err := service.FolderCounts(ctx, "user-1", "inbox")
	assert.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, unread)

	_, _, err = service.FolderCounts(ctx, "user-1", "label:no-such-label")
	assert.ErrorIs(t, err, db.ErrLabelNotFound)
}

func TestGetMessageMarksRead(t *testing.T) {
	service, ctx, _ := newTestService(t)
	msg := receiveRaw(t, ctx, service, "user-1", rawHello)
	assert.False(t, msg.IsRead)

	opened, err := service.GetMessage(ctx, "user-1", msg.ID)
	assert.NoError(t, err)
	assert.True(t, opened.IsRead)

	// Opening again is idempotent.
	again, err := service.GetMessage(ctx, "user-1", msg.ID)
	assert.NoError(t, err)
	assert.True(t, again.IsRead)

	total, unread, err := service.FolderCounts(ctx, "user-1", "inbox")
	assert.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, unread)
}

func TestPeekMessageLeavesReadState(t *testing.T) {
	service, ctx, _ := newTestService(t)
	msg := receiveRaw(t, ctx, service, "user-1", rawHello)

	peeked, err := service.PeekMessage(ctx, "user-1", msg.ID)
	assert.NoError(t, err)
	assert.False(t, peeked.IsRead)

	_, unread, err := service.FolderCounts(ctx, "user-1", "inbox")
	assert.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestUpdateFlagsEmptyIsNoop(t *testing.T) {
	service, ctx, _ := newTestService(t)
	msg := receiveRaw(t, ctx, service, "user-1", rawHello)

	current, err := service.UpdateFlags(ctx, "user-1", msg.ID, models.FlagUpdate{})
	assert.NoError(t, err)
	assert.False(t, current.IsRead)
	assert.False(t, current.IsStarred)
}

func TestSearchBlankQuery(t *testing.T) {
	service, ctx, _ := newTestService(t)
	receiveRaw(t, ctx, service, "user-1", rawHello)

	messages, total, err := service.Search(ctx, "user-1", "   ", 1, 50)
	assert.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, messages)

	_, _, err = service.Search(ctx, "user-1", "hello", 0, 50)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSearchInFolder(t *testing.T) {
	service, ctx, _ := newTestService(t)

	inInbox := receiveRaw(t, ctx, service, "user-1", rawHello)
	_, err := service.Send(ctx, "user-1", &models.Message{
		From:     models.Address{Email: "me@example.com"},
		To:       []models.Address{{Email: "alice@example.com"}},
		Subject:  "Hello back",
		BodyText: "And hello to you",
	})
	assert.NoError(t, err)

	messages, total, err := service.SearchInFolder(ctx, "user-1", "hello", "inbox", 1, 50)
	assert.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, inInbox.ID, messages[0].ID)

	_, total, err = service.Search(ctx, "user-1", "hello", 1, 50)
	assert.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestCreateFolderValidation(t *testing.T) {
	service, ctx, _ := newTestService(t)

	_, err := service.CreateFolder(ctx, "user-1", "  ")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	// Virtual folder names stay reserved for projections.
	for _, name := range []string{"inbox", "Starred", "ALL", "label:x"} {
		_, err := service.CreateFolder(ctx, "user-1", name)
		assert.ErrorIs(t, err, ErrInvalidArgument, name)
	}

	folder, err := service.CreateFolder(ctx, "user-1", "Projects")
	assert.NoError(t, err)
	assert.Equal(t, models.FolderTypeCustom, folder.Type)
}

func TestCreateLabelValidation(t *testing.T) {
	service, ctx, _ := newTestService(t)

	_, err := service.CreateLabel(ctx, "user-1", "  ", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	label, err := service.CreateLabel(ctx, "user-1", "work", "#aa0000")
	assert.NoError(t, err)

	_, err = service.CreateLabel(ctx, "user-1", "work", "")
	assert.ErrorIs(t, err, db.ErrDuplicateLabel)

	assert.NoError(t, service.DeleteLabel(ctx, "user-1", label.ID))
}

func TestDeleteMovesToTrash(t *testing.T) {
	service, ctx, _ := newTestService(t)
	msg := receiveRaw(t, ctx, service, "user-1", rawHello)

	deleted, err := service.Delete(ctx, "user-1", msg.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StateTrashed, deleted.State)

	listing, err := service.ListFolder(ctx, "user-1", "trash", 1, 50, ListOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 1, listing.Total)

	assert.NoError(t, service.Purge(ctx, "user-1", msg.ID))
	_, err = service.PeekMessage(ctx, "user-1", msg.ID)
	assert.ErrorIs(t, err, db.ErrMessageNotFound)
}
