package aqm

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// JSONFallbacks makes unmatched routes and methods answer with the service's
// JSON error shape instead of chi's plain text defaults.
func JSONFallbacks(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		RespondError(w, http.StatusNotFound, MsgNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		RespondError(w, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
	})
}
