package models

import "time"

// Thread is the derived conversation aggregate for the messages sharing a
// thread ID. It is computed from the message rows, never stored as ground
// truth: IsRead holds only when every member is read, IsStarred and
// IsImportant when any member is.
type Thread struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Subject       string    `json:"subject"`
	Participants  []Address `json:"participants"`
	Messages      []Message `json:"messages,omitempty"`
	MessageCount  int       `json:"message_count"`
	IsRead        bool      `json:"is_read"`
	IsStarred     bool      `json:"is_starred"`
	IsImportant   bool      `json:"is_important"`
	LastMessageID string    `json:"last_message_id"`
	LastCreatedAt time.Time `json:"last_created_at"`
}

// ThreadSummary is the list-view projection of a thread: enough to render a
// conversation row without loading member bodies.
type ThreadSummary struct {
	ThreadID      string    `json:"thread_id"`
	Subject       string    `json:"subject"`
	FromAddress   Address   `json:"from"`
	Snippet       string    `json:"snippet"`
	MessageCount  int       `json:"message_count"`
	IsRead        bool      `json:"is_read"`
	IsStarred     bool      `json:"is_starred"`
	IsImportant   bool      `json:"is_important"`
	LastCreatedAt time.Time `json:"last_created_at"`
}
