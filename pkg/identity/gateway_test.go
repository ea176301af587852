package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chatfront/pkg/models"
)

// fakeProvider simulates the hosted identity provider's REST auth surface
// with a fixed set of known accounts. It counts signup calls so tests can
// assert the duplicate-email probe short-circuits registration. Accounts in
// unconfirmed answer password grants with a non-credentials error, the way
// providers treat registered-but-unverified addresses.
type fakeProvider struct {
	t           *testing.T
	known       map[string]string // email -> password
	unconfirmed map[string]bool
	signupCalls int
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", f.token)
	mux.HandleFunc("/auth/v1/signup", f.signup)
	mux.HandleFunc("/auth/v1/user", f.user)
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (f *fakeProvider) token(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") == "" {
		f.t.Errorf("token request missing apikey header")
	}
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	if f.unconfirmed[body["email"]] {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": "Email not confirmed"})
		return
	}
	pw, ok := f.known[body["email"]]
	if !ok || pw != body["password"] {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error_code": "invalid_credentials",
			"msg":        "Invalid login credentials",
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "at-" + body["email"],
		"refresh_token": "rt-" + body["email"],
		"user":          map[string]string{"id": "uid-" + body["email"], "email": body["email"]},
	})
}

func (f *fakeProvider) signup(w http.ResponseWriter, r *http.Request) {
	f.signupCalls++
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)
	if _, taken := f.known[body["email"]]; taken {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error_code": "user_already_exists",
			"msg":        "User already registered",
		})
		return
	}
	if len(body["password"]) < 6 {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error_code": "weak_password",
			"msg":        "Password should be at least 6 characters",
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"user": map[string]string{"id": "uid-new", "email": body["email"]},
	})
}

func (f *fakeProvider) user(w http.ResponseWriter, r *http.Request) {
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !strings.HasPrefix(bearer, "at-") {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"msg": "invalid JWT"})
		return
	}
	email := strings.TrimPrefix(bearer, "at-")
	_ = json.NewEncoder(w).Encode(map[string]string{"id": "uid-" + email, "email": email})
}

func newTestGateway(t *testing.T, fp *fakeProvider) (*Gateway, *httptest.Server) {
	srv := httptest.NewServer(fp.handler())
	t.Cleanup(srv.Close)
	return New(srv.URL, "test-anon-key"), srv
}

func TestSignInSuccess(t *testing.T) {
	fp := &fakeProvider{t: t, known: map[string]string{"a@example.com": "secret1"}}
	g, _ := newTestGateway(t, fp)

	user, tokens, err := g.SignIn(context.Background(), "a@example.com", "secret1")
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if user.Email != "a@example.com" || user.ID == "" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected session tokens, got %+v", tokens)
	}
}

func TestSignInWrongPassword(t *testing.T) {
	fp := &fakeProvider{t: t, known: map[string]string{"a@example.com": "secret1"}}
	g, _ := newTestGateway(t, fp)

	_, _, err := g.SignIn(context.Background(), "a@example.com", "nope")
	if err == nil {
		t.Fatalf("expected sign-in failure")
	}
	var ae *AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
	if ae.Kind != KindInvalidCredentials {
		t.Fatalf("expected invalid_credentials, got %v (%s)", ae.Kind, ae.Message)
	}
}

func TestSignUpNewEmail(t *testing.T) {
	fp := &fakeProvider{t: t, known: map[string]string{}}
	g, _ := newTestGateway(t, fp)

	user, err := g.SignUp(context.Background(), "fresh@example.com", "secret1")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if user.Email != "fresh@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if fp.signupCalls != 1 {
		t.Fatalf("expected exactly one registration call, got %d", fp.signupCalls)
	}
}

func TestSignUpDuplicateEmailShortCircuits(t *testing.T) {
	// The existence probe runs first; a taken address must fail before any
	// registration request reaches the provider. The taken account answers
	// the probe with a non-credentials error ("Email not confirmed"), which
	// is exactly the signal the probe reads as "exists".
	fp := &fakeProvider{t: t, unconfirmed: map[string]bool{"taken@example.com": true}}
	g, _ := newTestGateway(t, fp)

	_, err := g.SignUp(context.Background(), "taken@example.com", "secret1")
	if err == nil {
		t.Fatalf("expected duplicate-email failure")
	}
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Kind != KindDuplicateEmail {
		t.Fatalf("expected duplicate_email, got %v", err)
	}
	if fp.signupCalls != 0 {
		t.Fatalf("registration endpoint was called %d times, want 0", fp.signupCalls)
	}
}

func TestSignUpWeakPassword(t *testing.T) {
	fp := &fakeProvider{t: t, known: map[string]string{}}
	g, _ := newTestGateway(t, fp)

	_, err := g.SignUp(context.Background(), "weak@example.com", "abc")
	var ae *AuthError
	if !errors.As(err, &ae) || ae.Kind != KindWeakPassword {
		t.Fatalf("expected weak_password, got %v", err)
	}
}

func TestEmailExists(t *testing.T) {
	fp := &fakeProvider{
		t:           t,
		known:       map[string]string{"yes@example.com": "secret1"},
		unconfirmed: map[string]bool{"pending@example.com": true},
	}
	g, _ := newTestGateway(t, fp)

	// Unknown addresses fail the probe with invalid credentials.
	if g.EmailExists(context.Background(), "no@example.com") {
		t.Fatalf("unknown address reported as existing")
	}
	// A registered-but-unverified address answers with a non-credentials
	// error, which reads as "exists".
	if !g.EmailExists(context.Background(), "pending@example.com") {
		t.Fatalf("unconfirmed address must read as existing")
	}
}

func TestEmailExistsFailsClosedWhenUnreachable(t *testing.T) {
	fp := &fakeProvider{t: t, known: map[string]string{}}
	g, srv := newTestGateway(t, fp)
	srv.Close()

	// Provider down: the probe must read as "exists" so signups are blocked
	// rather than duplicated.
	if !g.EmailExists(context.Background(), "a@example.com") {
		t.Fatalf("probe must fail closed when the provider is unreachable")
	}
}

func TestCurrentUser(t *testing.T) {
	fp := &fakeProvider{t: t, known: map[string]string{"a@example.com": "secret1"}}
	g, _ := newTestGateway(t, fp)

	u := g.CurrentUser(context.Background(), "at-a@example.com")
	if u == nil || u.Email != "a@example.com" {
		t.Fatalf("expected resolved user, got %+v", u)
	}
	if got := g.CurrentUser(context.Background(), "garbage-token"); got != nil {
		t.Fatalf("dead token must resolve to nil, got %+v", got)
	}
	if got := g.CurrentUser(context.Background(), ""); got != nil {
		t.Fatalf("empty token must resolve to nil, got %+v", got)
	}
}

func TestSignOutIsBestEffort(t *testing.T) {
	fp := &fakeProvider{t: t, known: map[string]string{}}
	g, srv := newTestGateway(t, fp)
	srv.Close()

	// Must not panic or block; failures are swallowed.
	g.SignOut(context.Background(), "at-a@example.com")
	g.SignOut(context.Background(), "")
}

func TestUserModelDecode(t *testing.T) {
	raw := []byte(`{"id":"u1","email":"a@example.com","role":"authenticated"}`)
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.ID != "u1" || u.Email != "a@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
}
