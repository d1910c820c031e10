package messaging

import (
	"commsdb/pkg/logger"
	"commsdb/pkg/models"
	"commsdb/pkg/store"
)

// GetMessageStatistics walks every conversation of the user (archived
// included, up to statsPageSize messages each) and tallies totals and
// per-type/per-priority counts. Pure read-side aggregation, recomputed
// from scratch on every call.
func GetMessageStatistics(userID string) (models.MessageStats, error) {
	stats := models.MessageStats{
		ByType:     map[string]int{},
		ByPriority: map[string]int{},
	}
	convs, err := store.ListUserConversations(userID)
	if err != nil {
		logger.Error("stats_list_conversations_failed", "user", userID, "error", err)
		return stats, err
	}
	stats.TotalConversations = len(convs)
	for _, c := range convs {
		if c.ArchivedFor(userID) {
			stats.ArchivedConversations++
		}
		msgs, err := store.ListConversationMessages(c.ID, statsPageSize)
		if err != nil {
			logger.Error("stats_list_messages_failed", "conversation", c.ID, "error", err)
			return stats, err
		}
		stats.TotalMessages += len(msgs)
		for _, m := range msgs {
			stats.ByType[string(m.Type)]++
			stats.ByPriority[string(m.Priority)]++
		}
	}
	unread, err := GetUnreadMessageCount(userID)
	if err != nil {
		return stats, err
	}
	stats.UnreadMessages = unread
	return stats, nil
}
