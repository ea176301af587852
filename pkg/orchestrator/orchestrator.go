package orchestrator

import (
	"context"
	"encoding/hex"
	"errors"
	"sort"

	"github.com/google/uuid"

	"chatfront/pkg/conversation"
	"chatfront/pkg/identity"
	"chatfront/pkg/logger"
	"chatfront/pkg/models"
	"chatfront/pkg/telemetry"
)

// IdentityGateway is the slice of the identity provider the orchestrator
// needs. Satisfied by *identity.Gateway.
type IdentityGateway interface {
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignIn(ctx context.Context, email, password string) (*models.User, identity.Tokens, error)
	SignOut(ctx context.Context, accessToken string)
	CurrentUser(ctx context.Context, accessToken string) *models.User
}

// ConversationClient is the slice of the backend client the orchestrator
// needs. Satisfied by *conversation.Client.
type ConversationClient interface {
	SendMessage(ctx context.Context, text, sessionID string, user *models.User) conversation.SendResult
	FetchHistory(ctx context.Context, username, sessionID string) []models.Message
	ListSessions(ctx context.Context, username string) []models.Session
}

// Orchestrator owns the interactive decision logic: which session is
// active, how history merges with live turns, and how identity changes
// reset the context. All methods serialize on the context's mutex so
// per-viewer actions are single-flight.
type Orchestrator struct {
	ids IdentityGateway
	cc  ConversationClient
}

func New(ids IdentityGateway, cc ConversationClient) *Orchestrator {
	return &Orchestrator{ids: ids, cc: cc}
}

// mintAnonSessionID generates the client-side session token for an
// anonymous viewer's first message: anon_ followed by 32 hex chars.
func mintAnonSessionID() string {
	u := uuid.New()
	return "anon_" + hex.EncodeToString(u[:])
}

// Attach re-establishes the signed-in user on a context restored from the
// store: the stored access token is resolved against the provider. A dead
// token silently demotes the viewer to anonymous.
func (o *Orchestrator) Attach(ctx context.Context, ac *ActiveContext) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.User != nil || ac.Tokens.AccessToken == "" {
		return
	}
	u := o.ids.CurrentUser(ctx, ac.Tokens.AccessToken)
	if u == nil {
		logger.Info("stored_token_rejected", "viewer", ac.ViewerID)
		ac.User = nil
		ac.Tokens = identity.Tokens{}
		ac.SessionID = ""
		ac.HistoryLoaded = false
		ac.persist()
		return
	}
	ac.User = u
}

// InitialLoad runs the once-per-login history bootstrap: pick the most
// recent session (greatest session id; ids sort monotonically) and load its
// transcript. HistoryLoaded is set regardless of outcome so the step runs
// at most once; calling again is a no-op.
func (o *Orchestrator) InitialLoad(ctx context.Context, ac *ActiveContext) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	if ac.User == nil || ac.HistoryLoaded {
		return
	}
	sessions := o.cc.ListSessions(ctx, ac.User.Email)
	if len(sessions) > 0 {
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].SessionID > sessions[j].SessionID
		})
		latest := sessions[0].SessionID
		if latest != "" {
			ac.SessionID = latest
			ac.Messages = o.cc.FetchHistory(ctx, ac.User.Email, latest)
		}
	}
	ac.HistoryLoaded = true
	ac.persist()
}

// SelectSession switches the context to the chosen session and replaces the
// transcript with that session's fetched history, discarding prior turns.
func (o *Orchestrator) SelectSession(ctx context.Context, ac *ActiveContext, sessionID string) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	username := ""
	if ac.User != nil {
		username = ac.User.Email
	}
	ac.SessionID = sessionID
	history := o.cc.FetchHistory(ctx, username, sessionID)
	// the held lock means the id cannot have moved here; this re-check is
	// the compare-and-set a concurrent multi-tab select would need
	if ac.SessionID != sessionID {
		return
	}
	ac.Messages = history
	ac.persist()
}

// Sessions lists the signed-in user's sessions. Anonymous viewers have none.
func (o *Orchestrator) Sessions(ctx context.Context, ac *ActiveContext) []models.Session {
	ac.mu.Lock()
	user := ac.User
	ac.mu.Unlock()
	if user == nil {
		return nil
	}
	return o.cc.ListSessions(ctx, user.Email)
}

// NewChat drops the session reference and transcript. HistoryLoaded stays
// set: a fresh chat must not re-trigger the initial bootstrap.
func (o *Orchestrator) NewChat(ac *ActiveContext) {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.SessionID = ""
	ac.Messages = nil
	ac.persist()
}

// Send appends the human turn optimistically, forwards it to the backend
// and appends the resulting assistant turn. The backend reply is always
// displayable (failures arrive as in-band text). A session id returned by
// the backend is adopted; otherwise the current one stands. No history
// re-fetch happens after a send: the local append is authoritative for the
// rest of the visible session.
func (o *Orchestrator) Send(ctx context.Context, ac *ActiveContext, text string) conversation.SendResult {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.User == nil && ac.SessionID == "" {
		ac.SessionID = mintAnonSessionID()
		logger.Debug("anon_session_minted", "viewer", ac.ViewerID, "session_id", ac.SessionID)
	}

	ac.Messages = append(ac.Messages, models.Human(text))
	res := o.cc.SendMessage(ctx, text, ac.SessionID, ac.User)
	if res.SessionID != "" {
		ac.SessionID = res.SessionID
	}
	ac.Messages = append(ac.Messages, models.AI(res.Response))
	ac.persist()
	return res
}

// SignIn authenticates the viewer and resets the conversational state so
// the next render triggers exactly one initial-history fetch.
func (o *Orchestrator) SignIn(ctx context.Context, ac *ActiveContext, email, password string) (*models.User, error) {
	user, tokens, err := o.ids.SignIn(ctx, email, password)
	if err != nil {
		countAuthFailure(err)
		return nil, err
	}
	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.User = user
	ac.Tokens = tokens
	ac.SessionID = ""
	ac.Messages = nil
	ac.HistoryLoaded = false
	ac.persist()
	logger.Info("signed_in", "viewer", ac.ViewerID, "user", user.ID)
	return user, nil
}

// SignUp registers a new account. The context is untouched: providers
// typically require email confirmation before the first sign-in.
func (o *Orchestrator) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	user, err := o.ids.SignUp(ctx, email, password)
	if err != nil {
		countAuthFailure(err)
		return nil, err
	}
	return user, nil
}

// SignOut revokes the provider session best-effort and unconditionally
// clears the local context.
func (o *Orchestrator) SignOut(ctx context.Context, ac *ActiveContext) {
	ac.mu.Lock()
	token := ac.Tokens.AccessToken
	ac.mu.Unlock()

	o.ids.SignOut(ctx, token)

	ac.mu.Lock()
	defer ac.mu.Unlock()
	ac.User = nil
	ac.Tokens = identity.Tokens{}
	ac.SessionID = ""
	ac.Messages = nil
	ac.HistoryLoaded = false
	ac.persist()
	logger.Info("signed_out", "viewer", ac.ViewerID)
}

func countAuthFailure(err error) {
	var ae *identity.AuthError
	if errors.As(err, &ae) {
		telemetry.CountAuthFailure(ae.Kind.String())
		return
	}
	telemetry.CountAuthFailure(identity.KindUnknown.String())
}
