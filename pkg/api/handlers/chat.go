package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"chatfront/pkg/utils"
)

// RegisterChat registers the conversation routes.
func RegisterChat(r *mux.Router, d Deps) {
	r.HandleFunc("/v1/chat", d.chatState).Methods(http.MethodGet)
	r.HandleFunc("/v1/chat/messages", d.sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/v1/chat/sessions", d.listSessions).Methods(http.MethodGet)
	r.HandleFunc("/v1/chat/sessions/{id}/select", d.selectSession).Methods(http.MethodPost)
	r.HandleFunc("/v1/chat/new", d.newChat).Methods(http.MethodPost)
}

// chatState is the render-time view: for a signed-in viewer it also runs
// the once-per-login history bootstrap before answering.
func (d Deps) chatState(w http.ResponseWriter, r *http.Request) {
	ac := viewerContext(r)
	d.Orch.InitialLoad(r.Context(), ac)
	view := ac.View()
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{
		"title":       d.App.Title,
		"description": d.App.Description,
		"user":        view.User,
		"session_id":  view.SessionID,
		"messages":    view.Messages,
	})
}

type sendBody struct {
	Message string `json:"message"`
}

// sendMessage forwards one turn. The response is always 200 with a
// displayable reply; backend failures arrive as in-band assistant text,
// never as an API error.
func (d Deps) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body sendBody
	if err := utils.DecodeJSON(r.Body, &body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		utils.JSONError(w, http.StatusBadRequest, "message is required")
		return
	}
	ac := viewerContext(r)
	res := d.Orch.Send(r.Context(), ac, body.Message)
	view := ac.View()
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{
		"response":   res.Response,
		"session_id": view.SessionID,
		"messages":   view.Messages,
	})
}

func (d Deps) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions := d.Orch.Sessions(r.Context(), viewerContext(r))
	out := make([]map[string]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, map[string]string{"session_id": s.SessionID, "title": s.DisplayTitle()})
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"sessions": out})
}

func (d Deps) selectSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id == "" {
		utils.JSONError(w, http.StatusBadRequest, "session id missing")
		return
	}
	ac := viewerContext(r)
	d.Orch.SelectSession(r.Context(), ac, id)
	view := ac.View()
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{
		"session_id": view.SessionID,
		"messages":   view.Messages,
	})
}

func (d Deps) newChat(w http.ResponseWriter, r *http.Request) {
	ac := viewerContext(r)
	d.Orch.NewChat(ac)
	view := ac.View()
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{
		"session_id": view.SessionID,
		"messages":   view.Messages,
	})
}
