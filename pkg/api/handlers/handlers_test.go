package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"chatfront/pkg/config"
	"chatfront/pkg/conversation"
	"chatfront/pkg/identity"
	"chatfront/pkg/orchestrator"
	"chatfront/pkg/utils"
)

var anonSessionRe = regexp.MustCompile(`^anon_[0-9a-f]{32}$`)

// fakeProvider is a minimal identity provider with one known account.
func fakeProvider(t *testing.T) *httptest.Server {
	pmux := http.NewServeMux()
	pmux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@example.com" || body["password"] != "secret1" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error_code": "invalid_credentials",
				"msg":        "Invalid login credentials",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at-1",
			"refresh_token": "rt-1",
			"user":          map[string]string{"id": "uid-1", "email": "a@example.com"},
		})
	})
	pmux.HandleFunc("/auth/v1/signup", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] == "a@example.com" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error_code": "user_already_exists",
				"msg":        "User already registered",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]string{"id": "uid-new", "email": body["email"]},
		})
	})
	pmux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "uid-1", "email": "a@example.com"})
	})
	pmux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(pmux)
	t.Cleanup(srv.Close)
	return srv
}

// fakeBackend echoes sends and serves two canned sessions with history.
func fakeBackend(t *testing.T) *httptest.Server {
	bmux := http.NewServeMux()
	bmux.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		msg, _ := body["message"].(string)
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "echo: " + msg})
	})
	bmux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"messages": []map[string]any{
				{"type": "human", "data": map[string]string{"content": "past q in " + body["session_id"]}},
				{"type": "ai", "data": map[string]string{"content": "past a"}},
			},
		})
	})
	bmux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{
			{"session_id": "2025-01-old", "title": "older"},
			{"session_id": "2025-06-new", "title": "newer"},
		})
	})
	srv := httptest.NewServer(bmux)
	t.Cleanup(srv.Close)
	return srv
}

// setupAPI wires real gateway/client/orchestrator against the fakes and
// returns the API server plus a cookie-keeping client.
func setupAPI(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()
	provider := fakeProvider(t)
	backend := fakeBackend(t)

	gateway := identity.New(provider.URL, "test-anon-key")
	client := conversation.New(config.BackendConfig{
		WebhookURL:  backend.URL + "/webhook",
		HistoryURL:  backend.URL + "/history",
		SessionsURL: backend.URL + "/sessions",
	})
	d := Deps{
		Orch:     orchestrator.New(gateway, client),
		Registry: orchestrator.NewRegistry(),
		App:      config.AppConfig{Title: "Support Chat", Description: "ask away"},
	}

	r := mux.NewRouter()
	RegisterAuth(r, d)
	RegisterChat(r, d)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		utils.JSONError(w, http.StatusNotFound, "not found")
	})

	srv := httptest.NewServer(WithViewer(d, r))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return srv, &http.Client{Jar: jar}
}

func doJSON(t *testing.T, c *http.Client, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

func TestViewerCookieMinted(t *testing.T) {
	srv, _ := setupAPI(t)

	res, err := http.Get(srv.URL + "/v1/chat")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()

	var found *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == ViewerCookie {
			found = c
		}
	}
	if found == nil {
		t.Fatalf("first contact must set the viewer cookie")
	}
	if !found.HttpOnly {
		t.Fatalf("viewer cookie must be HttpOnly")
	}
}

func TestAnonymousChatFlow(t *testing.T) {
	srv, c := setupAPI(t)

	status, state := doJSON(t, c, http.MethodGet, srv.URL+"/v1/chat", nil)
	if status != http.StatusOK {
		t.Fatalf("chat state: status %d", status)
	}
	if state["title"] != "Support Chat" {
		t.Fatalf("app title missing: %v", state)
	}
	if state["user"] != nil {
		t.Fatalf("anonymous state must carry no user: %v", state["user"])
	}
	if msgs, ok := state["messages"].([]any); !ok || len(msgs) != 0 {
		t.Fatalf("expected empty message list, got %v", state["messages"])
	}

	status, out := doJSON(t, c, http.MethodPost, srv.URL+"/v1/chat/messages", map[string]string{"message": "hello"})
	if status != http.StatusOK {
		t.Fatalf("send: status %d body %v", status, out)
	}
	if out["response"] != "echo: hello" {
		t.Fatalf("unexpected reply: %v", out["response"])
	}
	sid, _ := out["session_id"].(string)
	if !anonSessionRe.MatchString(sid) {
		t.Fatalf("anon session id %q does not match anon_<32 hex>", sid)
	}
	if msgs, _ := out["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("expected 2 turns after first send, got %v", out["messages"])
	}

	// Same viewer, second send: the session must not change.
	_, out2 := doJSON(t, c, http.MethodPost, srv.URL+"/v1/chat/messages", map[string]string{"message": "again"})
	if out2["session_id"] != sid {
		t.Fatalf("anon session changed between sends: %v -> %v", sid, out2["session_id"])
	}

	// Anonymous viewers have no session list.
	status, sess := doJSON(t, c, http.MethodGet, srv.URL+"/v1/chat/sessions", nil)
	if status != http.StatusOK {
		t.Fatalf("sessions: status %d", status)
	}
	if list, _ := sess["sessions"].([]any); len(list) != 0 {
		t.Fatalf("anonymous session list must be empty, got %v", sess["sessions"])
	}
}

func TestSendValidation(t *testing.T) {
	srv, c := setupAPI(t)

	status, _ := doJSON(t, c, http.MethodPost, srv.URL+"/v1/chat/messages", map[string]string{"message": "   "})
	if status != http.StatusBadRequest {
		t.Fatalf("blank message: status %d, want 400", status)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/chat/messages", strings.NewReader("{not json"))
	res, err := c.Do(req)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid json: status %d, want 400", res.StatusCode)
	}
}

func TestSignUpConflict(t *testing.T) {
	srv, c := setupAPI(t)

	status, out := doJSON(t, c, http.MethodPost, srv.URL+"/v1/auth/signup",
		map[string]string{"email": "a@example.com", "password": "secret1"})
	if status != http.StatusConflict {
		t.Fatalf("duplicate signup: status %d body %v, want 409", status, out)
	}
	if out["kind"] != "duplicate_email" {
		t.Fatalf("expected duplicate_email kind, got %v", out)
	}
}

func TestSignUpFresh(t *testing.T) {
	srv, c := setupAPI(t)

	status, out := doJSON(t, c, http.MethodPost, srv.URL+"/v1/auth/signup",
		map[string]string{"email": "new@example.com", "password": "secret1"})
	if status != http.StatusOK {
		t.Fatalf("signup: status %d body %v", status, out)
	}
	if out["user"] == nil {
		t.Fatalf("signup response missing user: %v", out)
	}
}

func TestSignInValidationAndFailure(t *testing.T) {
	srv, c := setupAPI(t)

	status, _ := doJSON(t, c, http.MethodPost, srv.URL+"/v1/auth/signin", map[string]string{"email": "a@example.com"})
	if status != http.StatusBadRequest {
		t.Fatalf("missing password: status %d, want 400", status)
	}

	status, out := doJSON(t, c, http.MethodPost, srv.URL+"/v1/auth/signin",
		map[string]string{"email": "a@example.com", "password": "wrong"})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad credentials: status %d body %v, want 401", status, out)
	}
	if out["kind"] != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials kind, got %v", out)
	}
}

func TestSignedInLifecycle(t *testing.T) {
	srv, c := setupAPI(t)

	// Sign in, then the first render runs the history bootstrap against the
	// backend's session list.
	status, out := doJSON(t, c, http.MethodPost, srv.URL+"/v1/auth/signin",
		map[string]string{"email": "a@example.com", "password": "secret1"})
	if status != http.StatusOK {
		t.Fatalf("signin: status %d body %v", status, out)
	}

	status, state := doJSON(t, c, http.MethodGet, srv.URL+"/v1/chat", nil)
	if status != http.StatusOK {
		t.Fatalf("chat state: status %d", status)
	}
	if state["session_id"] != "2025-06-new" {
		t.Fatalf("bootstrap must pick the most recent session, got %v", state["session_id"])
	}
	if msgs, _ := state["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("bootstrap history not loaded: %v", state["messages"])
	}

	// /v1/auth/me reflects the login.
	_, me := doJSON(t, c, http.MethodGet, srv.URL+"/v1/auth/me", nil)
	user, _ := me["user"].(map[string]any)
	if user == nil || user["email"] != "a@example.com" {
		t.Fatalf("me: unexpected user %v", me)
	}

	// Session list with titles.
	_, sess := doJSON(t, c, http.MethodGet, srv.URL+"/v1/chat/sessions", nil)
	list, _ := sess["sessions"].([]any)
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %v", sess)
	}

	// Switching sessions replaces the transcript.
	status, sel := doJSON(t, c, http.MethodPost, srv.URL+"/v1/chat/sessions/2025-01-old/select", nil)
	if status != http.StatusOK || sel["session_id"] != "2025-01-old" {
		t.Fatalf("select: status %d body %v", status, sel)
	}
	msgs, _ := sel["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("selected session history missing: %v", sel)
	}
	head, _ := msgs[0].(map[string]any)
	data, _ := head["data"].(map[string]any)
	if got, _ := data["content"].(string); !strings.Contains(got, "2025-01-old") {
		t.Fatalf("history not fetched for the selected session: %v", got)
	}

	// New chat clears the session without a fresh bootstrap.
	status, fresh := doJSON(t, c, http.MethodPost, srv.URL+"/v1/chat/new", nil)
	if status != http.StatusOK {
		t.Fatalf("new chat: status %d", status)
	}
	if sid, _ := fresh["session_id"].(string); sid != "" {
		t.Fatalf("new chat must clear the session, got %q", sid)
	}
	_, state2 := doJSON(t, c, http.MethodGet, srv.URL+"/v1/chat", nil)
	if sid, _ := state2["session_id"].(string); sid != "" {
		t.Fatalf("render after new chat must not re-run the bootstrap, got session %q", sid)
	}

	// Sign out clears everything.
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/auth/signout", nil)
	res, err := c.Do(req)
	if err != nil {
		t.Fatalf("signout: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("signout: status %d, want 204", res.StatusCode)
	}
	_, meAfter := doJSON(t, c, http.MethodGet, srv.URL+"/v1/auth/me", nil)
	if meAfter["user"] != nil {
		t.Fatalf("user survived signout: %v", meAfter)
	}
}
