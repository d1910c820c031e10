package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"commsdb/pkg/messaging"
	"commsdb/pkg/models"
	"commsdb/pkg/utils"
)

// RegisterConversations registers HTTP handlers for conversation-level
// endpoints.
func RegisterConversations(r *mux.Router) {
	r.HandleFunc("/conversations", createConversation).Methods(http.MethodPost)
	r.HandleFunc("/conversations", listConversations).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/messages", listConversationMessages).Methods(http.MethodGet)
	r.HandleFunc("/conversations/{id}/archive", archiveConversation).Methods(http.MethodPost)
}

type createConversationRequest struct {
	Participants []models.Party          `json:"participants"`
	Subject      string                  `json:"subject"`
	Related      *models.RelatedResource `json:"related,omitempty"`
}

func createConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if len(req.Participants) == 0 {
		utils.JSONError(w, http.StatusBadRequest, "participants are required")
		return
	}
	id, err := messaging.CreateConversation(req.Participants, req.Subject, req.Related)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"id": id})
}

func listConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := q.Get("user")
	if user == "" {
		utils.JSONError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}
	includeArchived, _ := strconv.ParseBool(q.Get("include_archived"))
	convs, err := messaging.GetUserConversations(user, includeArchived)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Conversations []models.Conversation `json:"conversations"`
	}{Conversations: convs})
}

func listConversationMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	msgs, err := messaging.GetConversationMessages(id, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Conversation string           `json:"conversation"`
		Messages     []models.Message `json:"messages"`
	}{Conversation: id, Messages: msgs})
}

func archiveConversation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.User == "" {
		utils.JSONError(w, http.StatusBadRequest, "user is required")
		return
	}
	if err := messaging.ArchiveConversation(id, body.User); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "archived"})
}
