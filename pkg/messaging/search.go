package messaging

import (
	"sort"
	"strings"
	"time"

	"commsdb/pkg/logger"
	"commsdb/pkg/models"
	"commsdb/pkg/store"
)

// SearchFilters narrow a message search. Zero values mean "no filter";
// all supplied filters must match (AND semantics).
type SearchFilters struct {
	Type     models.MessageType
	Priority models.Priority
	From     time.Time
	To       time.Time
}

// SearchMessages scans the user's conversations (archived included) and
// returns messages matching the term and filters, newest first. The
// term is matched case-insensitively against subject, content and
// sender name; an empty term matches everything.
//
// This walks up to searchPageSize messages per conversation in memory;
// there is no server-side text index. Acceptable only at small scale.
func SearchMessages(userID, term string, f SearchFilters) ([]models.Message, error) {
	convs, err := store.ListUserConversations(userID)
	if err != nil {
		logger.Error("search_list_conversations_failed", "user", userID, "error", err)
		return nil, err
	}
	needle := strings.ToLower(term)
	var out []models.Message
	for _, c := range convs {
		msgs, err := store.ListConversationMessages(c.ID, searchPageSize)
		if err != nil {
			logger.Error("search_list_messages_failed", "conversation", c.ID, "error", err)
			return nil, err
		}
		for _, m := range msgs {
			if matches(m, needle, f) {
				out = append(out, m)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedTS > out[j].CreatedTS })
	return out, nil
}

func matches(m models.Message, needle string, f SearchFilters) bool {
	if needle != "" &&
		!strings.Contains(strings.ToLower(m.Subject), needle) &&
		!strings.Contains(strings.ToLower(m.Content), needle) &&
		!strings.Contains(strings.ToLower(m.Sender.Name), needle) {
		return false
	}
	if f.Type != "" && m.Type != f.Type {
		return false
	}
	if f.Priority != "" && m.Priority != f.Priority {
		return false
	}
	created := time.Unix(0, m.CreatedTS).UTC()
	if !f.From.IsZero() && created.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && created.After(f.To) {
		return false
	}
	return true
}
