package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"chatfront/pkg/config"
	"chatfront/pkg/logger"
	"chatfront/pkg/models"
	"chatfront/pkg/telemetry"
)

// sourceTag identifies this front-end to the workflow backend. The backend
// routes on it, so it stays fixed across front-end rewrites.
const sourceTag = "streamlit"

const (
	defaultSendTimeout  = 90 * time.Second
	defaultQueryTimeout = 30 * time.Second
)

// Client is a stateless HTTP client for the conversation workflow backend.
// Its contract is: never raise to the caller. Transport failures, bad
// statuses and malformed payloads all degrade to an explicit empty or
// fallback value; the orchestrator always gets something displayable.
type Client struct {
	webhookURL  string
	historyURL  string
	sessionsURL string
	apiKey      string

	// separate clients: sends wait on AI generation, queries should not
	sendClient  *http.Client
	queryClient *http.Client
}

// SendResult is the normalized reply to a message send. Response is always
// displayable; SessionID is set only when the backend established or
// switched the session.
type SendResult struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId,omitempty"`
}

// New builds a Client from backend config, applying the default timeout
// budgets when unset.
func New(cfg config.BackendConfig) *Client {
	st := defaultSendTimeout
	if cfg.SendTimeoutS > 0 {
		st = time.Duration(cfg.SendTimeoutS) * time.Second
	}
	qt := defaultQueryTimeout
	if cfg.QueryTimeoutS > 0 {
		qt = time.Duration(cfg.QueryTimeoutS) * time.Second
	}
	return &Client{
		webhookURL:  cfg.WebhookURL,
		historyURL:  cfg.HistoryURL,
		sessionsURL: cfg.SessionsURL,
		apiKey:      cfg.APIKey,
		sendClient:  &http.Client{Timeout: st},
		queryClient: &http.Client{Timeout: qt},
	}
}

type sendPayload struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
}

// SendMessage forwards one human turn to the backend and returns the
// assistant reply. On any failure the reply text is a synthetic in-band
// description of the failure, never an error.
func (c *Client) SendMessage(ctx context.Context, text, sessionID string, user *models.User) SendResult {
	p := sendPayload{
		Message:   text,
		SessionID: sessionID,
		Source:    sourceTag,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if user != nil {
		p.UserID = user.ID
		p.Username = user.Email
	}
	body, _ := json.Marshal(p)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		telemetry.CountSend("transport_error")
		return SendResult{Response: fmt.Sprintf("Connection error: %v", err)}
	}
	c.setHeaders(req)

	resp, err := c.sendClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			telemetry.CountSend("timeout")
			return SendResult{Response: "Request timeout, please try again"}
		}
		telemetry.CountSend("transport_error")
		return SendResult{Response: fmt.Sprintf("Connection error: %v", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		telemetry.CountSend("http_error")
		logger.Warn("webhook_send_failed", "status", resp.StatusCode, "session_id", sessionID)
		return SendResult{Response: fmt.Sprintf("Request failed: %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.CountSend("transport_error")
		return SendResult{Response: fmt.Sprintf("Connection error: %v", err)}
	}
	telemetry.CountSend("ok")
	var out SendResult
	if err := json.Unmarshal(raw, &out); err != nil {
		// non-object payload; wrap it so the reply stays displayable
		return SendResult{Response: "Processing completed"}
	}
	if out.Response == "" {
		out.Response = "Sorry, an error occurred while processing."
	}
	return out
}

// historyEnvelope is the bare-object history response shape.
type historyEnvelope struct {
	Messages []models.Message `json:"messages"`
}

// FetchHistory returns the ordered transcript for a session. The backend
// answers either {"messages":[...]} or [{"messages":[...]}]; both normalize
// to the same sequence. Anything else, or an unconfigured endpoint, yields
// an empty sequence.
func (c *Client) FetchHistory(ctx context.Context, username, sessionID string) []models.Message {
	if c.historyURL == "" {
		logger.Debug("history_endpoint_unconfigured")
		return nil
	}
	payload := map[string]string{"source": sourceTag}
	if username != "" {
		payload["username"] = username
	}
	if sessionID != "" {
		payload["session_id"] = sessionID
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.historyURL, bytes.NewReader(body))
	if err != nil {
		telemetry.CountFetch("history", "transport_error")
		return nil
	}
	c.setHeaders(req)

	resp, err := c.queryClient.Do(req)
	if err != nil {
		telemetry.CountFetch("history", "transport_error")
		logger.Warn("history_fetch_failed", "error", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		telemetry.CountFetch("history", "http_error")
		logger.Warn("history_fetch_failed", "status", resp.StatusCode)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.CountFetch("history", "transport_error")
		return nil
	}
	msgs := normalizeHistory(raw)
	telemetry.CountFetch("history", "ok")
	return msgs
}

// normalizeHistory accepts both history response shapes and returns the
// message sequence, or nil for any other shape.
func normalizeHistory(raw []byte) []models.Message {
	var env historyEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Messages != nil {
		return env.Messages
	}
	var list []historyEnvelope
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 && list[0].Messages != nil {
		return list[0].Messages
	}
	logger.Debug("history_unexpected_shape")
	return nil
}

// sessionsEnvelope is the one-element-list wrapper shape for session lists.
type sessionsEnvelope struct {
	Sessions []models.Session `json:"sessions"`
}

// ListSessions returns the user's sessions. The backend answers either a
// direct list of session records or [{"sessions":[...]}]. Unconfigured
// endpoint or any failure yields an empty list.
func (c *Client) ListSessions(ctx context.Context, username string) []models.Session {
	if c.sessionsURL == "" {
		logger.Debug("sessions_endpoint_unconfigured")
		return nil
	}
	u := c.sessionsURL + "?username=" + url.QueryEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		telemetry.CountFetch("sessions", "transport_error")
		return nil
	}
	c.setHeaders(req)

	resp, err := c.queryClient.Do(req)
	if err != nil {
		telemetry.CountFetch("sessions", "transport_error")
		logger.Warn("session_list_failed", "error", err)
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		telemetry.CountFetch("sessions", "http_error")
		logger.Warn("session_list_failed", "status", resp.StatusCode)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.CountFetch("sessions", "transport_error")
		return nil
	}
	sessions := normalizeSessions(raw)
	telemetry.CountFetch("sessions", "ok")
	return sessions
}

// normalizeSessions accepts both session-list shapes. The wrapped shape is
// tried first: a one-element list holding a "sessions" field wins over
// reading that element as a session record itself.
func normalizeSessions(raw []byte) []models.Session {
	var wrapped []sessionsEnvelope
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped) > 0 && wrapped[0].Sessions != nil {
		return wrapped[0].Sessions
	}
	var direct []models.Session
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}
	logger.Debug("sessions_unexpected_shape")
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
