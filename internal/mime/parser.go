// Package mime converts raw RFC 822 messages into the engine's message
// model. It only reads attachment metadata; file bytes stay with the
// attachment store.
package mime

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/vhenrik/postbox/internal/models"
)

// ParseMessage parses a raw message into a Message ready for the store:
// envelope addresses, text and HTML bodies, snippet, threading headers and
// attachment metadata.
func ParseMessage(raw []byte) (*models.Message, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	msg := &models.Message{
		Subject:         envelope.GetHeader("Subject"),
		BodyText:        envelope.Text,
		BodyHTML:        envelope.HTML,
		Snippet:         models.MakeSnippet(envelope.Text),
		MessageIDHeader: trimMessageID(envelope.GetHeader("Message-Id")),
		InReplyTo:       trimMessageID(envelope.GetHeader("In-Reply-To")),
	}

	if from := addressList(envelope, "From"); len(from) > 0 {
		msg.From = from[0]
	}
	msg.To = addressList(envelope, "To")
	msg.Cc = addressList(envelope, "Cc")
	msg.Bcc = addressList(envelope, "Bcc")

	for _, part := range envelope.Attachments {
		msg.Attachments = append(msg.Attachments, partAttachment(part, false))
	}
	for _, part := range envelope.Inlines {
		// Inline parts without a filename are body fragments, not files.
		if part.FileName == "" {
			continue
		}
		msg.Attachments = append(msg.Attachments, partAttachment(part, true))
	}

	return msg, nil
}

func partAttachment(part *enmime.Part, inline bool) models.Attachment {
	return models.Attachment{
		Filename:     part.FileName,
		OriginalName: part.FileName,
		MimeType:     part.ContentType,
		SizeBytes:    int64(len(part.Content)),
		IsInline:     inline || part.ContentID != "",
		ContentID:    part.ContentID,
	}
}

// addressList reads a header's mailbox list, dropping entries that fail to
// parse rather than rejecting the whole message.
func addressList(envelope *enmime.Envelope, key string) []models.Address {
	parsed, err := envelope.AddressList(key)
	if err != nil {
		return nil
	}
	addrs := make([]models.Address, 0, len(parsed))
	for _, addr := range parsed {
		if addr == nil || addr.Address == "" {
			continue
		}
		addrs = append(addrs, models.Address{Name: addr.Name, Email: addr.Address})
	}
	if len(addrs) == 0 {
		return nil
	}
	return addrs
}

// trimMessageID strips the angle brackets of a Message-ID style header.
func trimMessageID(value string) string {
	return strings.Trim(strings.TrimSpace(value), "<>")
}
