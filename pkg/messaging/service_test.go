package messaging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"commsdb/pkg/logger"
	"commsdb/pkg/models"
	"commsdb/pkg/store"
)

var (
	alice = models.Party{ID: "u_alice", Name: "Alice", Role: "tenant"}
	bob   = models.Party{ID: "u_bob", Name: "Bob", Role: "admin"}
	carol = models.Party{ID: "u_carol", Name: "Carol", Role: "owner"}
)

func openTestStore(t *testing.T) {
	t.Helper()
	logger.InitWithLevel("error")
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })
}

func TestSendMessageRoundTrip(t *testing.T) {
	openTestStore(t)

	id, err := SendMessage(alice, bob, "greeting", "hello bob", SendOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	m, err := store.GetMessage(id)
	require.NoError(t, err)
	require.NotEmpty(t, m.Conversation)

	msgs, err := GetConversationMessages(m.Conversation, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	got := msgs[0]
	require.Equal(t, "greeting", got.Subject)
	require.Equal(t, "hello bob", got.Content)
	require.Equal(t, alice, got.Sender)
	require.Equal(t, bob, got.Recipient)
	require.False(t, got.IsRead)
	require.Equal(t, models.TypeMessage, got.Type)
	require.Equal(t, models.PriorityMedium, got.Priority)
}

func TestSendMessageCreatesConversation(t *testing.T) {
	openTestStore(t)

	id, err := SendMessage(alice, bob, "first contact", "hi", SendOptions{})
	require.NoError(t, err)

	m, err := store.GetMessage(id)
	require.NoError(t, err)
	c, err := store.GetConversation(m.Conversation)
	require.NoError(t, err)
	require.Equal(t, "first contact", c.Subject)
	require.Len(t, c.Participants, 2)
	require.True(t, c.HasParticipant(alice.ID))
	require.True(t, c.HasParticipant(bob.ID))
	require.Equal(t, 1, c.MessageCount)
}

func TestSendMessageRejectsUnknownConversation(t *testing.T) {
	openTestStore(t)
	_, err := SendMessage(alice, bob, "s", "c", SendOptions{ConversationID: "nope"})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSendMessageValidation(t *testing.T) {
	openTestStore(t)

	_, err := SendMessage(models.Party{}, bob, "s", "c", SendOptions{})
	require.Error(t, err)

	_, err = SendMessage(alice, bob, "s", "c", SendOptions{Type: "bogus"})
	require.Error(t, err)

	_, err = SendMessage(alice, bob, "s", "c", SendOptions{Priority: "asap"})
	require.Error(t, err)
}

func TestUnreadAccounting(t *testing.T) {
	openTestStore(t)

	convID, err := CreateConversation([]models.Party{alice, bob}, "thread", nil)
	require.NoError(t, err)

	_, err = SendMessage(alice, bob, "thread", "one for bob", SendOptions{ConversationID: convID})
	require.NoError(t, err)

	c, err := store.GetConversation(convID)
	require.NoError(t, err)
	require.Equal(t, 1, c.Unread[bob.ID])
	require.Equal(t, 0, c.Unread[alice.ID])

	nBob, err := GetUnreadMessageCount(bob.ID)
	require.NoError(t, err)
	require.Equal(t, 1, nBob)
	nAlice, err := GetUnreadMessageCount(alice.ID)
	require.NoError(t, err)
	require.Equal(t, 0, nAlice)
}

func TestMarkReadIdempotent(t *testing.T) {
	openTestStore(t)

	convID, err := CreateConversation([]models.Party{alice, bob}, "thread", nil)
	require.NoError(t, err)
	id, err := SendMessage(alice, bob, "thread", "read me", SendOptions{ConversationID: convID})
	require.NoError(t, err)

	require.NoError(t, MarkMessageAsRead(id, bob.ID))
	m, err := store.GetMessage(id)
	require.NoError(t, err)
	require.True(t, m.IsRead)
	require.NotZero(t, m.ReadAt)

	// second and third calls never drive the counter below zero
	require.NoError(t, MarkMessageAsRead(id, bob.ID))
	require.NoError(t, MarkMessageAsRead(id, bob.ID))

	c, err := store.GetConversation(convID)
	require.NoError(t, err)
	require.Equal(t, 0, c.Unread[bob.ID])
}

func TestPreviewTruncation(t *testing.T) {
	openTestStore(t)

	long := strings.Repeat("x", 150)
	id, err := SendMessage(alice, bob, "long", long, SendOptions{})
	require.NoError(t, err)
	m, err := store.GetMessage(id)
	require.NoError(t, err)

	c, err := store.GetConversation(m.Conversation)
	require.NoError(t, err)
	require.NotNil(t, c.LastMessage)
	require.Equal(t, strings.Repeat("x", 100)+"...", c.LastMessage.Content)
	require.Equal(t, alice.ID, c.LastMessage.Sender)

	short := strings.Repeat("y", 100)
	id2, err := SendMessage(bob, alice, "short", short, SendOptions{ConversationID: m.Conversation})
	require.NoError(t, err)
	require.NotEmpty(t, id2)

	c, err = store.GetConversation(m.Conversation)
	require.NoError(t, err)
	require.Equal(t, short, c.LastMessage.Content)
	require.Equal(t, bob.ID, c.LastMessage.Sender)
}

func TestGetConversationMessagesKeepsNewest(t *testing.T) {
	openTestStore(t)

	convID, err := CreateConversation([]models.Party{alice, bob}, "long thread", nil)
	require.NoError(t, err)
	var last string
	for i := 0; i < 60; i++ {
		last, err = SendMessage(alice, bob, "long thread", "n", SendOptions{ConversationID: convID})
		require.NoError(t, err)
	}

	// default page size keeps the newest 50, oldest first
	msgs, err := GetConversationMessages(convID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 50)
	require.Equal(t, last, msgs[len(msgs)-1].ID)

	all, err := GetConversationMessages(convID, 100)
	require.NoError(t, err)
	require.Len(t, all, 60)
}

func TestArchivedVisibilityPerUser(t *testing.T) {
	openTestStore(t)

	convID, err := CreateConversation([]models.Party{alice, bob}, "to archive", nil)
	require.NoError(t, err)
	_, err = CreateConversation([]models.Party{alice, bob}, "kept", nil)
	require.NoError(t, err)

	require.NoError(t, ArchiveConversation(convID, alice.ID))

	// archived for alice: hidden by default, visible with includeArchived
	convs, err := GetUserConversations(alice.ID, false)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Equal(t, "kept", convs[0].Subject)

	convs, err = GetUserConversations(alice.ID, true)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	// bob's view is unaffected
	convs, err = GetUserConversations(bob.ID, false)
	require.NoError(t, err)
	require.Len(t, convs, 2)
}

func TestConversationOrderingByActivity(t *testing.T) {
	openTestStore(t)

	c1, err := CreateConversation([]models.Party{alice, bob}, "older", nil)
	require.NoError(t, err)
	c2, err := CreateConversation([]models.Party{alice, carol}, "newer", nil)
	require.NoError(t, err)
	require.NotEmpty(t, c2)

	// activity on the older conversation bumps it to the top
	_, err = SendMessage(bob, alice, "older", "ping", SendOptions{ConversationID: c1})
	require.NoError(t, err)

	convs, err := GetUserConversations(alice.ID, false)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.Equal(t, c1, convs[0].ID)
}

func TestDeleteMessageSoftDeletes(t *testing.T) {
	openTestStore(t)

	id, err := SendMessage(alice, bob, "secret", "sensitive content", SendOptions{
		Attachments: []string{"att_1", "att_2"},
	})
	require.NoError(t, err)

	require.NoError(t, DeleteMessage(id, alice.ID))

	m, err := store.GetMessage(id)
	require.NoError(t, err)
	require.True(t, m.Deleted)
	require.Equal(t, deletedPlaceholder, m.Content)
	require.Empty(t, m.Attachments)

	// the record itself stays listed
	msgs, err := GetConversationMessages(m.Conversation, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestSendAutomatedMessage(t *testing.T) {
	openTestStore(t)

	id, err := SendAutomatedMessage(alice, models.MessageTemplate{
		Subject:  "Rent due",
		Content:  "Rent is due on the 1st.",
		Type:     models.TypeReminder,
		Priority: models.PriorityHigh,
	}, &models.RelatedResource{Type: "lease", ID: "lease_1"})
	require.NoError(t, err)

	m, err := store.GetMessage(id)
	require.NoError(t, err)
	require.Equal(t, "system", m.Sender.ID)
	require.Equal(t, "MMG System", m.Sender.Name)
	require.Equal(t, "system", m.Sender.Role)
	require.Equal(t, models.TypeReminder, m.Type)
	require.Equal(t, models.PriorityHigh, m.Priority)
	require.NotNil(t, m.Related)
	require.Equal(t, "lease", m.Related.Type)

	n, err := GetUnreadMessageCount(alice.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestReplyThreading(t *testing.T) {
	openTestStore(t)

	parent, err := SendMessage(alice, bob, "q", "question", SendOptions{})
	require.NoError(t, err)
	pm, err := store.GetMessage(parent)
	require.NoError(t, err)

	reply, err := SendMessage(bob, alice, "q", "answer", SendOptions{
		ConversationID: pm.Conversation,
		ReplyTo:        parent,
	})
	require.NoError(t, err)

	rm, err := store.GetMessage(reply)
	require.NoError(t, err)
	require.Equal(t, parent, rm.ReplyTo)
	require.Equal(t, pm.Conversation, rm.Conversation)
}
