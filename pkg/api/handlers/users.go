package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"commsdb/pkg/messaging"
	"commsdb/pkg/utils"
)

// RegisterUsers registers HTTP handlers for per-user aggregate
// endpoints.
func RegisterUsers(r *mux.Router) {
	r.HandleFunc("/users/{id}/unread", unreadCount).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/stats", messageStats).Methods(http.MethodGet)
}

func unreadCount(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	n, err := messaging.GetUnreadMessageCount(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]int{"unread": n})
}

func messageStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	stats, err := messaging.GetMessageStatistics(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, stats)
}
