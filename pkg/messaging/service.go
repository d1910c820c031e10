// Package messaging mediates between the conversation and message
// stores: it creates conversations on first contact, appends messages,
// maintains denormalized previews and unread counters, tracks read
// state and computes aggregate statistics.
package messaging

import (
	"fmt"
	"sort"
	"time"

	"commsdb/pkg/logger"
	"commsdb/pkg/models"
	"commsdb/pkg/store"
	"commsdb/pkg/utils"
)

const (
	// previewMaxLen caps the denormalized last-message preview.
	previewMaxLen = 100
	// defaultPageSize is applied when a caller asks for messages
	// without a limit.
	defaultPageSize = 50
	// searchPageSize caps messages examined per conversation during
	// search; statsPageSize does the same for statistics.
	searchPageSize = 100
	statsPageSize  = 1000

	deletedPlaceholder = "[message deleted]"
)

// systemSender is the synthetic identity used for automated sends.
var systemSender = models.Party{ID: "system", Name: "MMG System", Role: "system"}

// SendOptions carries the optional fields of a send.
type SendOptions struct {
	// ConversationID targets an existing conversation; empty means a
	// new two-participant conversation is created from sender+recipient.
	ConversationID string
	// ReplyTo references a parent message (single-level).
	ReplyTo     string
	Type        models.MessageType
	Priority    models.Priority
	Related     *models.RelatedResource
	Attachments []string
}

// SendMessage delivers content from sender to recipient, creating the
// conversation on first contact, and returns the new message ID.
//
// The message write and the conversation preview/counter update are two
// separate store operations: if the second fails the message stays
// written and the conversation is stale. The counter update itself is
// atomic (store.UpdateConversation).
func SendMessage(sender, recipient models.Party, subject, content string, opts SendOptions) (string, error) {
	if sender.ID == "" || recipient.ID == "" {
		return "", fmt.Errorf("sender and recipient ids are required")
	}
	if opts.Type == "" {
		opts.Type = models.TypeMessage
	}
	if !opts.Type.Valid() {
		return "", fmt.Errorf("invalid message type: %s", opts.Type)
	}
	if opts.Priority == "" {
		opts.Priority = models.PriorityMedium
	}
	if !opts.Priority.Valid() {
		return "", fmt.Errorf("invalid priority: %s", opts.Priority)
	}

	convID := opts.ConversationID
	if convID == "" {
		id, err := CreateConversation([]models.Party{sender, recipient}, subject, opts.Related)
		if err != nil {
			return "", err
		}
		convID = id
	} else if _, err := store.GetConversation(convID); err != nil {
		logger.Error("send_conversation_lookup_failed", "conversation", convID, "error", err)
		return "", err
	}

	now := time.Now().UTC().UnixNano()
	m := models.Message{
		ID:           utils.GenMessageID(),
		Conversation: convID,
		Sender:       sender,
		Recipient:    recipient,
		Subject:      subject,
		Content:      content,
		Attachments:  opts.Attachments,
		ReplyTo:      opts.ReplyTo,
		Type:         opts.Type,
		Priority:     opts.Priority,
		IsRead:       false,
		Related:      opts.Related,
		CreatedTS:    now,
		UpdatedTS:    now,
	}
	if err := store.SaveMessage(m); err != nil {
		logger.Error("send_message_write_failed", "conversation", convID, "error", err)
		return "", err
	}

	_, err := store.UpdateConversation(convID, func(c *models.Conversation) error {
		c.LastMessage = &models.LastMessage{
			Content: truncatePreview(content),
			Sender:  sender.ID,
			TS:      now,
		}
		c.MessageCount++
		if c.Unread == nil {
			c.Unread = map[string]int{}
		}
		c.Unread[recipient.ID]++
		c.UpdatedTS = now
		return nil
	})
	if err != nil {
		logger.Error("send_conversation_update_failed", "conversation", convID, "msg_id", m.ID, "error", err)
		return "", err
	}

	logger.Audit("message_send", sender.ID, sender.Role,
		"recipient", recipient.ID, "type", string(opts.Type), "subject", subject)
	logger.Info("message_sent", "conversation", convID, "msg_id", m.ID, "type", string(opts.Type))
	return m.ID, nil
}

// CreateConversation writes a new conversation with zeroed counters for
// every participant and returns its ID. Participants are fixed for the
// life of the conversation.
func CreateConversation(participants []models.Party, subject string, related *models.RelatedResource) (string, error) {
	if len(participants) == 0 {
		return "", fmt.Errorf("at least one participant is required")
	}
	now := time.Now().UTC().UnixNano()
	c := models.Conversation{
		ID:           utils.GenConversationID(),
		Participants: participants,
		Subject:      subject,
		Unread:       map[string]int{},
		Related:      related,
		CreatedTS:    now,
		UpdatedTS:    now,
	}
	for _, p := range participants {
		c.Unread[p.ID] = 0
	}
	if err := store.SaveConversation(c); err != nil {
		logger.Error("create_conversation_failed", "error", err)
		return "", err
	}
	return c.ID, nil
}

// GetConversationMessages returns up to limit messages for the
// conversation in chronological (oldest-first) order, keeping the
// newest entries when the conversation is longer than the limit. A
// non-positive limit applies the default page size.
func GetConversationMessages(convID string, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	msgs, err := store.ListConversationMessages(convID, limit)
	if err != nil {
		logger.Error("list_messages_failed", "conversation", convID, "error", err)
		return nil, err
	}
	return msgs, nil
}

// GetUserConversations returns the user's conversations ordered most
// recently updated first. Conversations archived for this user are
// filtered out unless includeArchived is set.
func GetUserConversations(userID string, includeArchived bool) ([]models.Conversation, error) {
	convs, err := store.ListUserConversations(userID)
	if err != nil {
		logger.Error("list_conversations_failed", "user", userID, "error", err)
		return nil, err
	}
	out := convs[:0]
	for _, c := range convs {
		if !includeArchived && c.ArchivedFor(userID) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedTS > out[j].UpdatedTS })
	return out, nil
}

// MarkMessageAsRead flags the message read and decrements the owning
// conversation's unread counter for userID, floored at zero. Calling
// it again for an already-read message is a no-op.
func MarkMessageAsRead(messageID, userID string) error {
	changed := false
	m, err := store.UpdateMessage(messageID, func(m *models.Message) error {
		if m.IsRead {
			return nil
		}
		now := time.Now().UTC().UnixNano()
		m.IsRead = true
		m.ReadAt = now
		m.UpdatedTS = now
		changed = true
		return nil
	})
	if err != nil {
		logger.Error("mark_read_failed", "msg_id", messageID, "error", err)
		return err
	}
	if !changed {
		return nil
	}
	_, err = store.UpdateConversation(m.Conversation, func(c *models.Conversation) error {
		if c.Unread == nil {
			return nil
		}
		if c.Unread[userID] > 0 {
			c.Unread[userID]--
		}
		return nil
	})
	if err != nil {
		logger.Error("mark_read_counter_failed", "conversation", m.Conversation, "user", userID, "error", err)
		return err
	}
	return nil
}

// GetUnreadMessageCount sums the user's unread counters across all
// their conversations. Archived conversations still contribute.
func GetUnreadMessageCount(userID string) (int, error) {
	convs, err := store.ListUserConversations(userID)
	if err != nil {
		logger.Error("unread_count_failed", "user", userID, "error", err)
		return 0, err
	}
	total := 0
	for _, c := range convs {
		total += c.Unread[userID]
	}
	return total, nil
}

// ArchiveConversation hides the conversation from userID's default
// listing. Archival is per participant; the other participants' views
// are unaffected. There is no unarchive operation.
func ArchiveConversation(convID, userID string) error {
	_, err := store.UpdateConversation(convID, func(c *models.Conversation) error {
		if c.Archived == nil {
			c.Archived = map[string]bool{}
		}
		c.Archived[userID] = true
		return nil
	})
	if err != nil {
		logger.Error("archive_failed", "conversation", convID, "user", userID, "error", err)
		return err
	}
	logger.Audit("conversation_archive", userID, "", "conversation", convID)
	return nil
}

// DeleteMessage soft-deletes: the record stays but its content is
// replaced with a fixed placeholder and attachments are cleared.
func DeleteMessage(messageID, userID string) error {
	_, err := store.UpdateMessage(messageID, func(m *models.Message) error {
		m.Content = deletedPlaceholder
		m.Attachments = nil
		m.Deleted = true
		m.UpdatedTS = time.Now().UTC().UnixNano()
		return nil
	})
	if err != nil {
		logger.Error("delete_message_failed", "msg_id", messageID, "error", err)
		return err
	}
	logger.Audit("message_delete", userID, "", "msg_id", messageID)
	return nil
}

// SendAutomatedMessage sends a system-generated notice (reminders,
// alerts) to recipient using the fixed system sender identity.
func SendAutomatedMessage(recipient models.Party, tpl models.MessageTemplate, related *models.RelatedResource) (string, error) {
	return SendMessage(systemSender, recipient, tpl.Subject, tpl.Content, SendOptions{
		Type:     tpl.Type,
		Priority: tpl.Priority,
		Related:  related,
	})
}

// truncatePreview shortens content for the conversation preview,
// appending an ellipsis only when something was cut.
func truncatePreview(content string) string {
	r := []rune(content)
	if len(r) <= previewMaxLen {
		return content
	}
	return string(r[:previewMaxLen]) + "..."
}
