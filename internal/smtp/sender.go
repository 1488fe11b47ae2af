// Package smtp delivers outgoing messages through a configured relay. It
// implements the mail.Sender contract; the engine records delivery
// failures but never rolls back the local write because of one.
package smtp

import (
	"bytes"
	"context"
	"fmt"
	"net"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"

	"github.com/vhenrik/postbox/internal/models"
)

// RelaySender speaks SMTP to a single upstream relay.
type RelaySender struct {
	addr string
}

// NewRelaySender creates a sender for the relay at addr (host:port).
func NewRelaySender(addr string) *RelaySender {
	return &RelaySender{addr: addr}
}

// Send encodes the message as MIME and submits it to the relay for every
// envelope recipient.
func (r *RelaySender) Send(ctx context.Context, msg *models.Message) error {
	raw, err := encodeMessage(msg)
	if err != nil {
		return err
	}

	rcpts := envelopeRecipients(msg)
	if len(rcpts) == 0 {
		return fmt.Errorf("message %s has no recipients", msg.ID)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", r.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP relay: %w", err)
	}
	client := gosmtp.NewClient(conn)
	defer client.Close()

	if err := client.Mail(msg.From.Email, nil); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := client.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := wc.Write(raw); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	// The message is accepted at this point; a failed QUIT is not a
	// delivery failure.
	_ = client.Quit()
	return nil
}

func envelopeRecipients(msg *models.Message) []string {
	var rcpts []string
	for _, list := range [][]models.Address{msg.To, msg.Cc, msg.Bcc} {
		for _, addr := range list {
			if addr.Email != "" {
				rcpts = append(rcpts, addr.Email)
			}
		}
	}
	return rcpts
}

func encodeMessage(msg *models.Message) ([]byte, error) {
	builder := enmime.Builder().
		From(msg.From.Name, msg.From.Email).
		Subject(msg.Subject).
		Text([]byte(msg.BodyText))

	if msg.BodyHTML != "" {
		builder = builder.HTML([]byte(msg.BodyHTML))
	}
	for _, addr := range msg.To {
		builder = builder.To(addr.Name, addr.Email)
	}
	for _, addr := range msg.Cc {
		builder = builder.CC(addr.Name, addr.Email)
	}
	for _, addr := range msg.Bcc {
		builder = builder.BCC(addr.Name, addr.Email)
	}
	if msg.MessageIDHeader != "" {
		builder = builder.Header("Message-Id", "<"+msg.MessageIDHeader+">")
	}
	if msg.InReplyTo != "" {
		builder = builder.Header("In-Reply-To", "<"+msg.InReplyTo+">")
	}

	part, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build MIME message: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode MIME message: %w", err)
	}
	return buf.Bytes(), nil
}
