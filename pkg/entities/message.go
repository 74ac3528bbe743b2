package entities

import "time"

// Message is a single message of a conversation. IDs grow monotonically inside a
// conversation, so ordering by ID is chronological ordering.
type Message struct {
	ID             int       `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	Date           time.Time `json:"date"`
	Text           string    `json:"text,omitempty"`
	Caption        string    `json:"caption,omitempty"`
	Thread         ThreadRef `json:"thread"`
	Media          *Media    `json:"media,omitempty"` // nil if no attachment

	// TopicCreated is set on the service message that opened a forum topic
	TopicCreated *ForumTopic `json:"topic_created,omitempty"`
}

// ThreadRef holds every place a platform may report thread membership in.
// Different API layers fill different fields, see TopicID for the lookup order.
type ThreadRef struct {
	ThreadID     int         `json:"thread_id,omitempty"`
	ReplyToTopID int         `json:"reply_to_top_id,omitempty"`
	ForumTopic   *ForumTopic `json:"forum_topic,omitempty"`
	TopicID      int         `json:"topic_id,omitempty"`
}

type ForumTopic struct {
	ID    int    `json:"id"`
	Title string `json:"title,omitempty"`
}

func (m *Message) HasMedia() bool {
	return m.Media != nil
}

// TopicID returns the thread the message belongs to. The native thread id wins,
// then the legacy reply chain top id, then the forum topic object, then the
// direct topic id.
func (m *Message) TopicID() (int, bool) {
	t := m.Thread

	switch {
	case t.ThreadID != 0:
		return t.ThreadID, true
	case t.ReplyToTopID != 0:
		return t.ReplyToTopID, true
	case t.ForumTopic != nil && t.ForumTopic.ID != 0:
		return t.ForumTopic.ID, true
	case t.TopicID != 0:
		return t.TopicID, true
	}

	return 0, false
}
