package store

// ChatMessage represents one turn of the scheduling conversation.
type ChatMessage struct {
	ID        int64
	UserID    string
	Role      string // "user" or "assistant"
	Content   string
	CreatedTs int64
}

// FindChatMessage specifies the conditions for finding chat messages.
type FindChatMessage struct {
	UserID *string
	// CreatedTsAfter limits results to messages created at or after the timestamp.
	CreatedTsAfter *int64
	Limit          *int
	// OrderByCreatedTsDesc returns newest messages first.
	OrderByCreatedTsDesc bool
}

// DeleteChatMessage specifies the messages to delete.
type DeleteChatMessage struct {
	UserID string
}
