package utils

import "github.com/google/uuid"

// GenMessageID returns a new unique message ID.
func GenMessageID() string { return "m_" + uuid.NewString() }

// GenConversationID returns a new unique conversation ID.
func GenConversationID() string { return "c_" + uuid.NewString() }
