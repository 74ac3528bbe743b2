package entities

import "time"

type Conversation struct {
	ID       int64
	Title    string
	Username string
	Kind     ConversationKind
	IsForum  bool
}

type ConversationKind string

const (
	ConversationGroup      ConversationKind = "group"
	ConversationSupergroup ConversationKind = "supergroup"
	ConversationChannel    ConversationKind = "channel"
)

// Snapshot is a cached copy of a conversation history.
type Snapshot struct {
	ChatID        int64     `json:"chat_id"`
	ChatTitle     string    `json:"chat_title"`
	TotalMessages int       `json:"total_messages"`
	LastUpdated   int64     `json:"last_updated"` // unix seconds
	Messages      []Message `json:"messages"`
}

func (s *Snapshot) UpdatedAt() time.Time {
	return time.Unix(s.LastUpdated, 0)
}
