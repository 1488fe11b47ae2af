package models

import "time"

// Label is a user-defined tag. Labels are orthogonal to folders: a message
// lives in exactly one folder but can carry any number of labels.
type Label struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}
