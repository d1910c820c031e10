package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"commsdb/pkg/messaging"
	"commsdb/pkg/models"
	"commsdb/pkg/utils"
)

// RegisterMessages registers HTTP handlers for message-level endpoints.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/messages", sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/automated", sendAutomatedMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/search", searchMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/read", markMessageRead).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}", deleteMessage).Methods(http.MethodDelete)
}

type sendRequest struct {
	Sender       models.Party            `json:"sender"`
	Recipient    models.Party            `json:"recipient"`
	Subject      string                  `json:"subject"`
	Content      string                  `json:"content"`
	Conversation string                  `json:"conversation,omitempty"`
	ReplyTo      string                  `json:"reply_to,omitempty"`
	Type         models.MessageType      `json:"type,omitempty"`
	Priority     models.Priority         `json:"priority,omitempty"`
	Related      *models.RelatedResource `json:"related,omitempty"`
	Attachments  []string                `json:"attachments,omitempty"`
}

func sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Sender.ID == "" || req.Recipient.ID == "" {
		utils.JSONError(w, http.StatusBadRequest, "sender and recipient ids are required")
		return
	}
	if contentTooLarge(req.Content) {
		utils.JSONError(w, http.StatusRequestEntityTooLarge, "content too large")
		return
	}
	id, err := messaging.SendMessage(req.Sender, req.Recipient, req.Subject, req.Content, messaging.SendOptions{
		ConversationID: req.Conversation,
		ReplyTo:        req.ReplyTo,
		Type:           req.Type,
		Priority:       req.Priority,
		Related:        req.Related,
		Attachments:    req.Attachments,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"id": id})
}

type automatedRequest struct {
	Recipient models.Party            `json:"recipient"`
	Template  models.MessageTemplate  `json:"template"`
	Related   *models.RelatedResource `json:"related,omitempty"`
}

func sendAutomatedMessage(w http.ResponseWriter, r *http.Request) {
	var req automatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Recipient.ID == "" {
		utils.JSONError(w, http.StatusBadRequest, "recipient id is required")
		return
	}
	id, err := messaging.SendAutomatedMessage(req.Recipient, req.Template, req.Related)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"id": id})
}

func markMessageRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.User == "" {
		utils.JSONError(w, http.StatusBadRequest, "user is required")
		return
	}
	if err := messaging.MarkMessageAsRead(id, body.User); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}

func deleteMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	user := r.URL.Query().Get("user")
	if user == "" {
		utils.JSONError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}
	if err := messaging.DeleteMessage(id, user); err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func searchMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := q.Get("user")
	if user == "" {
		utils.JSONError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}
	var f messaging.SearchFilters
	f.Type = models.MessageType(q.Get("type"))
	f.Priority = models.Priority(q.Get("priority"))
	if f.Type != "" && !f.Type.Valid() {
		utils.JSONError(w, http.StatusBadRequest, "invalid type filter")
		return
	}
	if f.Priority != "" && !f.Priority.Valid() {
		utils.JSONError(w, http.StatusBadRequest, "invalid priority filter")
		return
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		f.To = t
	}
	msgs, err := messaging.SearchMessages(user, q.Get("q"), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Messages []models.Message `json:"messages"`
	}{Messages: msgs})
}
