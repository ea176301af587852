package orchestrator

import (
	"sync"

	"chatfront/pkg/identity"
	"chatfront/pkg/logger"
	"chatfront/pkg/models"
	"chatfront/pkg/store"
)

// ActiveContext is the per-viewer mutable state the orchestrator manages
// across interactions. One instance exists per browser session; the mutex
// serializes actions so at most one operation (including its network calls)
// is in flight per viewer.
type ActiveContext struct {
	mu sync.Mutex

	ViewerID      string
	User          *models.User
	Tokens        identity.Tokens
	SessionID     string
	Messages      []models.Message
	HistoryLoaded bool
}

// ContextView is the read-only rendering handed to the UI layer.
type ContextView struct {
	User      *models.User     `json:"user,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Messages  []models.Message `json:"messages"`
}

// View snapshots the context for rendering. Messages is never nil in the
// view so the UI always receives a list.
func (ac *ActiveContext) View() ContextView {
	ac.mu.Lock()
	defer ac.mu.Unlock()
	msgs := make([]models.Message, len(ac.Messages))
	copy(msgs, ac.Messages)
	return ContextView{User: ac.User, SessionID: ac.SessionID, Messages: msgs}
}

// record converts the context to its durable form. Messages and the
// history-loaded flag are dropped on purpose: transcripts are not persisted
// locally, and a restored login must trigger exactly one history re-fetch.
func (ac *ActiveContext) record() store.ContextRecord {
	rec := store.ContextRecord{
		ViewerID:     ac.ViewerID,
		AccessToken:  ac.Tokens.AccessToken,
		RefreshToken: ac.Tokens.RefreshToken,
		SessionID:    ac.SessionID,
	}
	if ac.User != nil {
		rec.UserID = ac.User.ID
		rec.Email = ac.User.Email
	}
	return rec
}

// persist snapshots the context to the store. Best-effort: a storage
// failure degrades durability across restarts, not the live session.
func (ac *ActiveContext) persist() {
	if !store.Ready() {
		return
	}
	if err := store.SaveContext(ac.record()); err != nil {
		logger.Warn("context_persist_failed", "viewer", ac.ViewerID, "error", err)
	}
}

// Registry tracks live viewer contexts and restores them from the store on
// first contact after a restart.
type Registry struct {
	mu       sync.Mutex
	contexts map[string]*ActiveContext
}

func NewRegistry() *Registry {
	return &Registry{contexts: make(map[string]*ActiveContext)}
}

// Get returns the viewer's context, restoring a stored snapshot or creating
// a fresh context as needed.
func (r *Registry) Get(viewerID string) *ActiveContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ac, ok := r.contexts[viewerID]; ok {
		return ac
	}
	ac := &ActiveContext{ViewerID: viewerID}
	if store.Ready() {
		if rec, err := store.GetContext(viewerID); err == nil && rec != nil {
			// tokens and session pointer only; the user is re-resolved
			// against the provider by Orchestrator.Attach so a revoked
			// token cannot resurrect a login
			ac.Tokens = identity.Tokens{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken}
			ac.SessionID = rec.SessionID
		} else if err != nil {
			logger.Warn("context_restore_failed", "viewer", viewerID, "error", err)
		}
	}
	r.contexts[viewerID] = ac
	return ac
}

// Drop forgets a viewer context and removes its stored snapshot.
func (r *Registry) Drop(viewerID string) {
	r.mu.Lock()
	delete(r.contexts, viewerID)
	r.mu.Unlock()
	if store.Ready() {
		if err := store.DeleteContext(viewerID); err != nil {
			logger.Warn("context_delete_failed", "viewer", viewerID, "error", err)
		}
	}
}
