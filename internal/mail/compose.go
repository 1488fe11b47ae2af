package mail

import (
	"context"
	"fmt"
	"log"

	"github.com/vhenrik/postbox/internal/mime"
	"github.com/vhenrik/postbox/internal/models"
)

// CreateDraft stores a message in Drafts. Recipients and body may still be
// empty at this point.
func (s *Service) CreateDraft(ctx context.Context, userID string, msg *models.Message) (*models.Message, error) {
	drafts, err := s.store.GetFolderByType(ctx, userID, models.FolderTypeDrafts)
	if err != nil {
		return nil, err
	}

	msg.UserID = userID
	msg.FolderID = drafts.ID
	msg.State = models.StateDraft
	msg.IsRead = true

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Send stores an outgoing message in Sent and hands it to the outbound
// transport. The local write always wins: a transport failure is reported
// as ErrDelivery but the message stays in Sent.
func (s *Service) Send(ctx context.Context, userID string, msg *models.Message) (*models.Message, error) {
	if err := validateOutgoing(msg); err != nil {
		return nil, err
	}

	sent, err := s.store.GetFolderByType(ctx, userID, models.FolderTypeSent)
	if err != nil {
		return nil, err
	}

	msg.UserID = userID
	msg.FolderID = sent.ID
	msg.State = models.StateSent
	msg.IsRead = true

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	return s.deliver(ctx, msg)
}

// SendDraft promotes a stored draft to Sent and delivers it.
func (s *Service) SendDraft(ctx context.Context, userID, draftID string) (*models.Message, error) {
	draft, err := s.store.GetMessage(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if !draft.IsDraft() {
		return nil, fmt.Errorf("%w: message %s is not a draft", ErrInvalidArgument, draftID)
	}
	if err := validateOutgoing(draft); err != nil {
		return nil, err
	}

	sent, err := s.store.GetFolderByType(ctx, userID, models.FolderTypeSent)
	if err != nil {
		return nil, err
	}
	msg, err := s.store.MoveMessage(ctx, userID, draftID, sent.ID)
	if err != nil {
		return nil, err
	}

	return s.deliver(ctx, msg)
}

// Receive ingests a raw inbound message into the Inbox. Replies join the
// thread their In-Reply-To header resolves to.
func (s *Service) Receive(ctx context.Context, userID string, raw []byte) (*models.Message, error) {
	msg, err := mime.ParseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	inbox, err := s.store.GetFolderByType(ctx, userID, models.FolderTypeInbox)
	if err != nil {
		return nil, err
	}

	msg.UserID = userID
	msg.FolderID = inbox.ID
	msg.State = models.StateReceived

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) deliver(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if s.sender == nil {
		return msg, nil
	}
	if err := s.sender.Send(ctx, msg); err != nil {
		log.Printf("delivery of message %s failed: %v", msg.ID, err)
		return msg, fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	return msg, nil
}

func validateOutgoing(msg *models.Message) error {
	if msg.From.Email == "" {
		return fmt.Errorf("%w: sender address is required", ErrInvalidArgument)
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidArgument)
	}
	return nil
}
