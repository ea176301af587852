package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatfront/pkg/api/handlers"
)

// Handler returns the chat front-end API handler: auth and chat routes
// wrapped in the viewer-cookie middleware that binds each request to its
// ActiveContext.
func Handler(d handlers.Deps) http.Handler {
	r := mux.NewRouter()
	handlers.RegisterAuth(r, d)
	handlers.RegisterChat(r, d)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})
	return handlers.WithViewer(d, r)
}
