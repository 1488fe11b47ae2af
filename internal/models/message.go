package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// SnippetMaxLen is the maximum length of a derived message snippet.
const SnippetMaxLen = 150

// MessageState is the lifecycle state of a message. A message is in exactly
// one state at a time; starred/important/read are tracked separately as
// attributes and combine freely with any state.
type MessageState string

const (
	StateDraft    MessageState = "draft"
	StateSent     MessageState = "sent"
	StateReceived MessageState = "received"
	StateTrashed  MessageState = "trashed"
	StateSpam     MessageState = "spam"
)

// ValidState reports whether s is one of the known lifecycle states.
func ValidState(s MessageState) bool {
	switch s {
	case StateDraft, StateSent, StateReceived, StateTrashed, StateSpam:
		return true
	}
	return false
}

// Address is a single mailbox with an optional display name.
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// String renders the address in "Name <email>" form, or just the bare
// address when there is no display name.
func (a Address) String() string {
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Email)
	}
	return a.Email
}

type Message struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	FolderID  string `json:"folder_id"`
	ThreadID  string `json:"thread_id"`
	InReplyTo string `json:"in_reply_to,omitempty"`
	// MessageIDHeader is the RFC 5322 Message-ID, used to resolve replies
	// into existing threads and to reject duplicate ingests.
	MessageIDHeader string `json:"message_id_header,omitempty"`

	From    Address   `json:"from"`
	To      []Address `json:"to"`
	Cc      []Address `json:"cc,omitempty"`
	Bcc     []Address `json:"bcc,omitempty"`
	Subject string    `json:"subject"`

	BodyText string `json:"body_text"`
	BodyHTML string `json:"body_html,omitempty"`
	Snippet  string `json:"snippet"`

	State       MessageState `json:"state"`
	IsRead      bool         `json:"is_read"`
	IsStarred   bool         `json:"is_starred"`
	IsImportant bool         `json:"is_important"`
	IsArchived  bool         `json:"is_archived"`

	HasAttachments bool  `json:"has_attachments"`
	SizeBytes      int64 `json:"size_bytes"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
	SnoozedUntil *time.Time `json:"snoozed_until,omitempty"`
	AutoDeleteAt *time.Time `json:"auto_delete_at,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`
	Labels      []Label      `json:"labels,omitempty"`
}

// Flag accessors over the lifecycle state, kept for callers that think in
// Gmail's flag vocabulary.
func (m *Message) IsDraft() bool   { return m.State == StateDraft }
func (m *Message) IsSent() bool    { return m.State == StateSent }
func (m *Message) IsDeleted() bool { return m.State == StateTrashed }
func (m *Message) IsSpam() bool    { return m.State == StateSpam }

type Attachment struct {
	ID           string `json:"id"`
	MessageID    string `json:"message_id"`
	Filename     string `json:"filename"`
	OriginalName string `json:"original_name,omitempty"`
	MimeType     string `json:"mime_type"`
	SizeBytes    int64  `json:"size_bytes"`
	IsInline     bool   `json:"is_inline"`
	ContentID    string `json:"content_id,omitempty"`
}

// MakeSnippet derives a list-view preview from a plain-text body: whitespace
// collapsed, truncated to SnippetMaxLen runes on a rune boundary.
func MakeSnippet(bodyText string) string {
	collapsed := strings.Join(strings.Fields(bodyText), " ")
	if utf8.RuneCountInString(collapsed) <= SnippetMaxLen {
		return collapsed
	}
	runes := []rune(collapsed)
	return string(runes[:SnippetMaxLen])
}
