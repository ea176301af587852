package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"chatfront/pkg/identity"
	"chatfront/pkg/utils"
)

// RegisterAuth registers the identity routes.
func RegisterAuth(r *mux.Router, d Deps) {
	r.HandleFunc("/v1/auth/signup", d.signUp).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/signin", d.signIn).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/signout", d.signOut).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/me", d.me).Methods(http.MethodGet)
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (b credentialsBody) validate() string {
	if strings.TrimSpace(b.Email) == "" {
		return "email is required"
	}
	if b.Password == "" {
		return "password is required"
	}
	return ""
}

// writeAuthFailure renders an AuthError as an inline form error: a 4xx/5xx
// status plus {error, kind} so the UI can message per kind.
func writeAuthFailure(w http.ResponseWriter, err error) {
	var ae *identity.AuthError
	if !errors.As(err, &ae) {
		utils.JSONError(w, http.StatusBadGateway, "identity provider error")
		return
	}
	status := http.StatusBadRequest
	switch ae.Kind {
	case identity.KindInvalidCredentials:
		status = http.StatusUnauthorized
	case identity.KindDuplicateEmail:
		status = http.StatusConflict
	case identity.KindUnknown:
		status = http.StatusBadGateway
	}
	_ = utils.JSONWrite(w, status, map[string]string{"error": ae.Message, "kind": ae.Kind.String()})
}

func (d Deps) signUp(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := utils.DecodeJSON(r.Body, &body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if msg := body.validate(); msg != "" {
		utils.JSONError(w, http.StatusBadRequest, msg)
		return
	}
	user, err := d.Orch.SignUp(r.Context(), body.Email, body.Password)
	if err != nil {
		writeAuthFailure(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{
		"user":    user,
		"message": "registration successful, please check your email",
	})
}

func (d Deps) signIn(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := utils.DecodeJSON(r.Body, &body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if msg := body.validate(); msg != "" {
		utils.JSONError(w, http.StatusBadRequest, msg)
		return
	}
	ac := viewerContext(r)
	user, err := d.Orch.SignIn(r.Context(), ac, body.Email, body.Password)
	if err != nil {
		writeAuthFailure(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"user": user})
}

func (d Deps) signOut(w http.ResponseWriter, r *http.Request) {
	d.Orch.SignOut(r.Context(), viewerContext(r))
	w.WriteHeader(http.StatusNoContent)
}

func (d Deps) me(w http.ResponseWriter, r *http.Request) {
	view := viewerContext(r).View()
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"user": view.User})
}
