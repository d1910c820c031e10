package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"commsdb/pkg/api/handlers"
)

// Handler returns the /v1 API router. Health, readiness and metrics
// endpoints are mounted by the app shell, not here.
func Handler() http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterMessages(v1)
	handlers.RegisterConversations(v1)
	handlers.RegisterUsers(v1)
	return r
}
