package models

// MessageType classifies a message for filtering and display.
type MessageType string

const (
	TypeMessage      MessageType = "message"
	TypeNotification MessageType = "notification"
	TypeAlert        MessageType = "alert"
	TypeReminder     MessageType = "reminder"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case TypeMessage, TypeNotification, TypeAlert, TypeReminder:
		return true
	}
	return false
}

// Priority ranks a message for inbox ordering and alerting.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Party identifies one side of a message or a conversation participant.
// Role is a free-form tag (e.g. "admin", "tenant", "owner", "system");
// clients manage its meaning.
type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// RelatedResource is an optional pointer from a message or conversation
// to a business object elsewhere in the platform.
type RelatedResource struct {
	Type string `json:"type"` // property|unit|tenant|lease|maintenance|transaction
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Sender       Party  `json:"sender"`
	Recipient    Party  `json:"recipient"`
	Subject      string `json:"subject,omitempty"`
	Content      string `json:"content"`
	// Optional attachment references (opaque storage keys or URLs)
	Attachments []string `json:"attachments,omitempty"`
	// Optional reply-to message ID (single-level reference)
	ReplyTo  string      `json:"reply_to,omitempty"`
	Type     MessageType `json:"type"`
	Priority Priority    `json:"priority"`
	// Read state is tracked per message: each message has exactly one
	// logical reader (the recipient).
	IsRead bool  `json:"is_read"`
	ReadAt int64 `json:"read_at,omitempty"`
	// Deleted flag; soft-delete overwrites content with a placeholder
	Deleted bool             `json:"deleted,omitempty"`
	Related *RelatedResource `json:"related,omitempty"`
	// Timestamps (ns), server-assigned
	CreatedTS int64 `json:"created_ts,omitempty"`
	UpdatedTS int64 `json:"updated_ts,omitempty"`
}

// MessageTemplate is the input shape for system-generated sends.
type MessageTemplate struct {
	Subject  string      `json:"subject"`
	Content  string      `json:"content"`
	Type     MessageType `json:"type"`
	Priority Priority    `json:"priority"`
}
