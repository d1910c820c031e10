package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"commsdb/pkg/logger"
	"commsdb/pkg/models"
	"commsdb/pkg/store"
)

func testRouter(t *testing.T) *mux.Router {
	t.Helper()
	logger.InitWithLevel("error")
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })

	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	RegisterMessages(v1)
	RegisterConversations(v1)
	RegisterUsers(v1)
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
}

var (
	hAlice = models.Party{ID: "u_alice", Name: "Alice", Role: "admin"}
	hBob   = models.Party{ID: "u_bob", Name: "Bob", Role: "tenant"}
)

func sendBody(content string) map[string]any {
	return map[string]any{
		"sender":    hAlice,
		"recipient": hBob,
		"subject":   "Hello",
		"content":   content,
	}
}

func TestSendMessageEndpoint(t *testing.T) {
	r := testRouter(t)

	rr := doJSON(t, r, http.MethodPost, "/v1/messages", sendBody("hi bob"))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	decodeBody(t, rr, &resp)
	require.True(t, strings.HasPrefix(resp["id"], "m_"))

	// the message landed in a fresh conversation visible to both parties
	rr = doJSON(t, r, http.MethodGet, "/v1/conversations?user=u_bob", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var convResp struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	decodeBody(t, rr, &convResp)
	require.Len(t, convResp.Conversations, 1)
	require.Equal(t, 1, convResp.Conversations[0].MessageCount)
}

func TestSendMessageEndpointValidation(t *testing.T) {
	r := testRouter(t)

	rr := doJSON(t, r, http.MethodPost, "/v1/messages", map[string]any{"subject": "x"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader("{nope"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown conversation id
	body := sendBody("hi")
	body["conversation"] = "c_missing"
	rr = doJSON(t, r, http.MethodPost, "/v1/messages", body)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSendMessageEndpointContentCap(t *testing.T) {
	r := testRouter(t)
	SetMaxContentBytes(32)
	t.Cleanup(func() { SetMaxContentBytes(64 * 1024) })

	rr := doJSON(t, r, http.MethodPost, "/v1/messages", sendBody(strings.Repeat("x", 64)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestConversationEndpoints(t *testing.T) {
	r := testRouter(t)

	rr := doJSON(t, r, http.MethodPost, "/v1/conversations", map[string]any{
		"participants": []models.Party{hAlice, hBob},
		"subject":      "Lease renewal",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	var created map[string]string
	decodeBody(t, rr, &created)
	convID := created["id"]
	require.True(t, strings.HasPrefix(convID, "c_"))

	// send two messages into it
	for i := 0; i < 2; i++ {
		body := sendBody(fmt.Sprintf("msg %d", i))
		body["conversation"] = convID
		rr = doJSON(t, r, http.MethodPost, "/v1/messages", body)
		require.Equal(t, http.StatusOK, rr.Code)
	}

	rr = doJSON(t, r, http.MethodGet, "/v1/conversations/"+convID+"/messages", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var msgResp struct {
		Conversation string           `json:"conversation"`
		Messages     []models.Message `json:"messages"`
	}
	decodeBody(t, rr, &msgResp)
	require.Equal(t, convID, msgResp.Conversation)
	require.Len(t, msgResp.Messages, 2)
	require.Equal(t, "msg 0", msgResp.Messages[0].Content)

	rr = doJSON(t, r, http.MethodGet, "/v1/conversations/"+convID+"/messages?limit=bad", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// archive for bob and verify the default listing hides it
	rr = doJSON(t, r, http.MethodPost, "/v1/conversations/"+convID+"/archive", map[string]string{"user": "u_bob"})
	require.Equal(t, http.StatusOK, rr.Code)

	var convResp struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	rr = doJSON(t, r, http.MethodGet, "/v1/conversations?user=u_bob", nil)
	decodeBody(t, rr, &convResp)
	require.Empty(t, convResp.Conversations)

	rr = doJSON(t, r, http.MethodGet, "/v1/conversations?user=u_bob&include_archived=true", nil)
	decodeBody(t, rr, &convResp)
	require.Len(t, convResp.Conversations, 1)

	// missing user parameter
	rr = doJSON(t, r, http.MethodGet, "/v1/conversations", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReadAndUnreadEndpoints(t *testing.T) {
	r := testRouter(t)

	rr := doJSON(t, r, http.MethodPost, "/v1/messages", sendBody("unread me"))
	require.Equal(t, http.StatusOK, rr.Code)
	var sent map[string]string
	decodeBody(t, rr, &sent)

	rr = doJSON(t, r, http.MethodGet, "/v1/users/u_bob/unread", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var unread map[string]int
	decodeBody(t, rr, &unread)
	require.Equal(t, 1, unread["unread"])

	rr = doJSON(t, r, http.MethodPost, "/v1/messages/"+sent["id"]+"/read", map[string]string{"user": "u_bob"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, r, http.MethodGet, "/v1/users/u_bob/unread", nil)
	decodeBody(t, rr, &unread)
	require.Equal(t, 0, unread["unread"])

	// unknown message id
	rr = doJSON(t, r, http.MethodPost, "/v1/messages/m_missing/read", map[string]string{"user": "u_bob"})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteMessageEndpoint(t *testing.T) {
	r := testRouter(t)

	rr := doJSON(t, r, http.MethodPost, "/v1/messages", sendBody("remove me"))
	var sent map[string]string
	decodeBody(t, rr, &sent)

	rr = doJSON(t, r, http.MethodDelete, "/v1/messages/"+sent["id"], nil)
	require.Equal(t, http.StatusBadRequest, rr.Code) // user param required

	rr = doJSON(t, r, http.MethodDelete, "/v1/messages/"+sent["id"]+"?user=u_alice", nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestSearchEndpoint(t *testing.T) {
	r := testRouter(t)

	body := sendBody("the heater is broken")
	body["type"] = models.TypeAlert
	body["priority"] = models.PriorityUrgent
	rr := doJSON(t, r, http.MethodPost, "/v1/messages", body)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, r, http.MethodGet, "/v1/messages/search?user=u_bob&q=heater&type=alert", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var res struct {
		Messages []models.Message `json:"messages"`
	}
	decodeBody(t, rr, &res)
	require.Len(t, res.Messages, 1)
	require.Equal(t, models.PriorityUrgent, res.Messages[0].Priority)

	// invalid filters
	rr = doJSON(t, r, http.MethodGet, "/v1/messages/search?user=u_bob&type=carrierpigeon", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = doJSON(t, r, http.MethodGet, "/v1/messages/search?user=u_bob&from=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	rr = doJSON(t, r, http.MethodGet, "/v1/messages/search", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// no matches yields an empty array, not null
	rr = doJSON(t, r, http.MethodGet, "/v1/messages/search?user=u_bob&q=nosuchword", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"messages":[]`)
}

func TestStatsEndpoint(t *testing.T) {
	r := testRouter(t)

	rr := doJSON(t, r, http.MethodPost, "/v1/messages", sendBody("one"))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, r, http.MethodGet, "/v1/users/u_bob/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var stats models.MessageStats
	decodeBody(t, rr, &stats)
	require.Equal(t, 1, stats.TotalConversations)
	require.Equal(t, 1, stats.TotalMessages)
	require.Equal(t, 1, stats.UnreadMessages)
}
