package models

// LastMessage is the denormalized preview kept on a conversation so
// listings do not need to load message records.
type LastMessage struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
	TS      int64  `json:"ts"`
}

type Conversation struct {
	ID string `json:"id"`
	// Participants are fixed at creation; there is no add/remove.
	Participants []Party `json:"participants"`
	Subject      string  `json:"subject,omitempty"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	// MessageCount mirrors the number of stored message records for
	// this conversation.
	MessageCount int `json:"message_count"`
	// Unread is keyed by participant ID; keys should equal the
	// participant ID set.
	Unread map[string]int `json:"unread"`
	// Archived is keyed by participant ID so archiving one user's view
	// does not hide the conversation from the others.
	Archived map[string]bool  `json:"archived,omitempty"`
	Tags     []string         `json:"tags,omitempty"`
	Related  *RelatedResource `json:"related,omitempty"`
	// Timestamps (ns), server-assigned
	CreatedTS int64 `json:"created_ts,omitempty"`
	UpdatedTS int64 `json:"updated_ts,omitempty"`
}

// HasParticipant reports whether userID is in the participant set.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// ArchivedFor reports whether the conversation is archived from
// userID's point of view.
func (c *Conversation) ArchivedFor(userID string) bool {
	return c.Archived[userID]
}

// MessageStats is the aggregate view returned by the statistics
// endpoint. Recomputed from scratch on every call.
type MessageStats struct {
	TotalConversations    int            `json:"total_conversations"`
	ArchivedConversations int            `json:"archived_conversations"`
	TotalMessages         int            `json:"total_messages"`
	UnreadMessages        int            `json:"unread_messages"`
	ByType                map[string]int `json:"by_type"`
	ByPriority            map[string]int `json:"by_priority"`
}
