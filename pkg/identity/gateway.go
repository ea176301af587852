package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"chatfront/pkg/logger"
	"chatfront/pkg/models"
)

// Gateway wraps the hosted identity provider's REST auth endpoints and
// normalizes provider-specific failures into the AuthError taxonomy.
// The gateway is stateless; session tokens are held by the caller.
type Gateway struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// Tokens are the provider session tokens returned by a password sign-in.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// New builds a Gateway for the provider at baseURL authenticated with the
// project anon key.
func New(baseURL, anonKey string) *Gateway {
	return &Gateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SetHTTPClient overrides the underlying HTTP client, mainly for tests.
func (g *Gateway) SetHTTPClient(c *http.Client) { g.client = c }

type providerError struct {
	// newer deployments
	ErrorCode string `json:"error_code"`
	Msg       string `json:"msg"`
	// older deployments
	ErrorField  string `json:"error"`
	Description string `json:"error_description"`
	Message     string `json:"message"`
}

func (p providerError) code() string {
	if p.ErrorCode != "" {
		return p.ErrorCode
	}
	return p.ErrorField
}

func (p providerError) message() string {
	for _, m := range []string{p.Msg, p.Description, p.Message} {
		if m != "" {
			return m
		}
	}
	return ""
}

// do issues a JSON request against the provider and returns the raw
// response body. A non-2xx response is returned as *AuthError; transport
// failures come back as KindUnknown.
func (g *Gateway) do(ctx context.Context, method, path, bearer string, body any) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, &AuthError{Kind: KindUnknown, Message: err.Error()}
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, rd)
	if err != nil {
		return nil, &AuthError{Kind: KindUnknown, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.anonKey)
	if bearer == "" {
		bearer = g.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &AuthError{Kind: KindUnknown, Message: fmt.Sprintf("provider unreachable: %v", err)}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pe providerError
		_ = json.Unmarshal(raw, &pe)
		msg := pe.message()
		if msg == "" {
			msg = fmt.Sprintf("provider returned status %d", resp.StatusCode)
		}
		return nil, &AuthError{Kind: classify(pe.code(), msg), Message: msg}
	}
	return raw, nil
}

// signInResponse covers the password-grant response; signup responses carry
// either the same shape or a bare user object depending on whether email
// confirmation is required.
type signInResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *models.User `json:"user"`
}

// SignUp registers a new account. The email-existence probe runs first so a
// taken address fails with KindDuplicateEmail before any registration call
// reaches the provider.
func (g *Gateway) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	if g.EmailExists(ctx, email) {
		return nil, &AuthError{Kind: KindDuplicateEmail, Message: "an account with this email already exists"}
	}
	body := map[string]string{"email": email, "password": password}
	raw, err := g.do(ctx, http.MethodPost, "/auth/v1/signup", "", body)
	if err != nil {
		return nil, err
	}
	var resp signInResponse
	if err := json.Unmarshal(raw, &resp); err == nil && resp.User != nil {
		return resp.User, nil
	}
	// confirmation-required deployments return the user object directly
	var bare models.User
	if err := json.Unmarshal(raw, &bare); err == nil && bare.ID != "" {
		return &bare, nil
	}
	return &models.User{Email: email}, nil
}

// SignIn performs a password grant and returns the user plus session tokens.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (*models.User, Tokens, error) {
	body := map[string]string{"email": email, "password": password}
	raw, err := g.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body)
	if err != nil {
		return nil, Tokens{}, err
	}
	var resp signInResponse
	if err := json.Unmarshal(raw, &resp); err != nil || resp.User == nil {
		return nil, Tokens{}, &AuthError{Kind: KindUnknown, Message: "provider returned no user"}
	}
	return resp.User, Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// SignOut revokes the provider session. Best-effort: failures are logged and
// swallowed so local context clearing is never blocked.
func (g *Gateway) SignOut(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}
	if _, err := g.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil); err != nil {
		logger.Warn("signout_failed", "error", err)
	}
}

// CurrentUser resolves the user behind an access token. Any retrieval
// failure reads as "not logged in" and returns nil; this query never
// propagates an error.
func (g *Gateway) CurrentUser(ctx context.Context, accessToken string) *models.User {
	if accessToken == "" {
		return nil
	}
	raw, err := g.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil)
	if err != nil {
		logger.Debug("current_user_lookup_failed", "error", err)
		return nil
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil || u.ID == "" {
		return nil
	}
	return &u
}

// EmailExists probes whether an account exists by attempting a sign-in with
// a deliberately invalid password; the provider exposes no direct check.
// An invalid-credentials response means the email is unknown. Any other
// provider error (e.g. pending email confirmation) means it exists.
// Unexpected or network errors conservatively read as "exists": blocking an
// occasional legitimate signup is preferred over a duplicate registration.
func (g *Gateway) EmailExists(ctx context.Context, email string) bool {
	probe := "probe-" + uuid.NewString()
	_, _, err := g.SignIn(ctx, email, probe)
	if err == nil {
		// the probe password can never match; treat as existing anyway
		return true
	}
	var ae *AuthError
	if !errors.As(err, &ae) {
		return true
	}
	switch ae.Kind {
	case KindInvalidCredentials:
		return false
	case KindUnknown:
		logger.Warn("email_probe_ambiguous", "email_domain", emailDomain(email), "error", ae.Message)
		return true
	default:
		return true
	}
}

func emailDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[i+1:]
	}
	return ""
}
