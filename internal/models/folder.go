package models

import "time"

// FolderType identifies the kind of a physical folder. The five system
// types exist exactly once per user; custom folders are user-created.
type FolderType string

const (
	FolderTypeInbox  FolderType = "inbox"
	FolderTypeSent   FolderType = "sent"
	FolderTypeDrafts FolderType = "drafts"
	FolderTypeSpam   FolderType = "spam"
	FolderTypeTrash  FolderType = "trash"
	FolderTypeCustom FolderType = "custom"
)

// SystemFolderTypes lists the folder types created for every account.
var SystemFolderTypes = []FolderType{
	FolderTypeInbox,
	FolderTypeSent,
	FolderTypeDrafts,
	FolderTypeSpam,
	FolderTypeTrash,
}

type Folder struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Type      FolderType `json:"type"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsSystem reports whether the folder is one of the fixed per-user folders.
func (f *Folder) IsSystem() bool {
	return f.Type != FolderTypeCustom
}

// StateForFolder returns the lifecycle state a message takes on when it is
// moved into a folder of the given type. Custom folders hold regular
// received mail.
func StateForFolder(t FolderType) MessageState {
	switch t {
	case FolderTypeSent:
		return StateSent
	case FolderTypeDrafts:
		return StateDraft
	case FolderTypeSpam:
		return StateSpam
	case FolderTypeTrash:
		return StateTrashed
	default:
		return StateReceived
	}
}
