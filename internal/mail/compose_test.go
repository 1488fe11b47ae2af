package mail

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vhenrik/postbox/internal/db"
	"github.com/vhenrik/postbox/internal/models"
)

func outgoing() *models.Message {
	return &models.Message{
		From:     models.Address{Name: "Me", Email: "me@example.com"},
		To:       []models.Address{{Email: "alice@example.com"}},
		Subject:  "Meeting notes",
		BodyText: "Notes from today's meeting.",
	}
}

func TestCreateDraft(t *testing.T) {
	service, ctx, sender := newTestService(t)

	draft, err := service.CreateDraft(ctx, "user-1", &models.Message{
		From:    models.Address{Email: "me@example.com"},
		Subject: "unfinished",
	})
	assert.NoError(t, err)
	assert.Equal(t, models.StateDraft, draft.State)
	assert.True(t, draft.IsRead, "own drafts are never unread")
	assert.Equal(t, 0, sender.count(), "drafts are not delivered")

	listing, err := service.ListFolder(ctx, "user-1", "drafts", 1, 50, ListOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 1, listing.Total)
}

func TestSendStoresAndDelivers(t *testing.T) {
	service, ctx, sender := newTestService(t)

	msg, err := service.Send(ctx, "user-1", outgoing())
	assert.NoError(t, err)
	assert.Equal(t, models.StateSent, msg.State)
	assert.True(t, msg.IsRead)
	assert.Equal(t, 1, sender.count())

	listing, err := service.ListFolder(ctx, "user-1", "sent", 1, 50, ListOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 1, listing.Total)
}

func TestSendValidation(t *testing.T) {
	service, ctx, sender := newTestService(t)

	noSender := outgoing()
	noSender.From = models.Address{}
	_, err := service.Send(ctx, "user-1", noSender)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	noRecipients := outgoing()
	noRecipients.To = nil
	_, err = service.Send(ctx, "user-1", noRecipients)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	assert.Equal(t, 0, sender.count())
}

func TestSendDeliveryFailureKeepsMessage(t *testing.T) {
	service, ctx, sender := newTestService(t)
	sender.err = errors.New("relay unreachable")

	msg, err := service.Send(ctx, "user-1", outgoing())
	assert.ErrorIs(t, err, ErrDelivery)
	assert.NotNil(t, msg, "the stored message is returned alongside the delivery error")

	// The local write is not rolled back.
	listing, lerr := service.ListFolder(ctx, "user-1", "sent", 1, 50, ListOptions{})
	assert.NoError(t, lerr)
	assert.Equal(t, 1, listing.Total)
}

func TestSendWithoutRelay(t *testing.T) {
	service, ctx, _ := newTestService(t)
	service.sender = nil

	msg, err := service.Send(ctx, "user-1", outgoing())
	assert.NoError(t, err)
	assert.Equal(t, models.StateSent, msg.State)
}

func TestSendDraft(t *testing.T) {
	service, ctx, sender := newTestService(t)

	draft, err := service.CreateDraft(ctx, "user-1", outgoing())
	assert.NoError(t, err)

	sent, err := service.SendDraft(ctx, "user-1", draft.ID)
	assert.NoError(t, err)
	assert.Equal(t, draft.ID, sent.ID, "the draft row is promoted, not copied")
	assert.Equal(t, models.StateSent, sent.State)
	assert.Equal(t, 1, sender.count())

	drafts, err := service.ListFolder(ctx, "user-1", "drafts", 1, 50, ListOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 0, drafts.Total)

	// Only drafts can be sent this way.
	_, err = service.SendDraft(ctx, "user-1", draft.ID)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSendDraftIncomplete(t *testing.T) {
	service, ctx, sender := newTestService(t)

	draft, err := service.CreateDraft(ctx, "user-1", &models.Message{
		From:    models.Address{Email: "me@example.com"},
		Subject: "no recipients yet",
	})
	assert.NoError(t, err)

	_, err = service.SendDraft(ctx, "user-1", draft.ID)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 0, sender.count())

	// Still a draft.
	kept, err := service.PeekMessage(ctx, "user-1", draft.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.StateDraft, kept.State)
}

func TestReceive(t *testing.T) {
	service, ctx, _ := newTestService(t)

	msg := receiveRaw(t, ctx, service, "user-1", rawHello)
	assert.Equal(t, models.StateReceived, msg.State)
	assert.False(t, msg.IsRead)
	assert.Equal(t, "Hello", msg.Subject)
	assert.Equal(t, "alice@example.com", msg.From.Email)
	assert.Equal(t, "Alice", msg.From.Name)
	assert.Equal(t, "hello-1@example.com", msg.MessageIDHeader)
	assert.NotEmpty(t, msg.Snippet)

	listing, err := service.ListFolder(ctx, "user-1", "inbox", 1, 50, ListOptions{})
	assert.NoError(t, err)
	assert.Equal(t, 1, listing.Total)
}

func TestReceiveReplyJoinsThread(t *testing.T) {
	service, ctx, _ := newTestService(t)

	root := receiveRaw(t, ctx, service, "user-1", rawHello)
	reply := receiveRaw(t, ctx, service, "user-1",
		"From: me@example.com\r\n"+
			"To: alice@example.com\r\n"+
			"Subject: Re: Hello\r\n"+
			"Message-Id: <hello-2@example.com>\r\n"+
			"In-Reply-To: <hello-1@example.com>\r\n"+
			"Content-Type: text/plain\r\n"+
			"\r\n"+
			"A reply.\r\n")

	assert.Equal(t, root.ThreadID, reply.ThreadID)

	thread, err := service.GetThread(ctx, "user-1", root.ThreadID)
	assert.NoError(t, err)
	assert.Equal(t, 2, thread.MessageCount)
}

func TestReceiveDuplicate(t *testing.T) {
	service, ctx, _ := newTestService(t)

	receiveRaw(t, ctx, service, "user-1", rawHello)
	_, err := service.Receive(ctx, "user-1", []byte(rawHello))
	assert.ErrorIs(t, err, db.ErrDuplicateMessage)
}
