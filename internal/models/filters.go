package models

// ListFilters narrows a folder listing. Pointer fields are tri-state:
// nil means "don't care", otherwise the message must match the value.
type ListFilters struct {
	Starred       *bool
	Important     *bool
	Unread        *bool
	HasAttachment *bool
}

// FlagUpdate carries a partial flag mutation; nil fields are left untouched.
type FlagUpdate struct {
	IsRead      *bool
	IsStarred   *bool
	IsImportant *bool
	IsArchived  *bool
}

// IsEmpty reports whether the update would change nothing.
func (u FlagUpdate) IsEmpty() bool {
	return u.IsRead == nil && u.IsStarred == nil && u.IsImportant == nil && u.IsArchived == nil
}

// BulkResult reports per-id outcomes of a bulk mutation. The operation as a
// whole is not atomic; each listed id either fully succeeded or failed.
type BulkResult struct {
	Done   []string
	Failed map[string]error
}
