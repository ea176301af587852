package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"chatfront/pkg/config"
	"chatfront/pkg/orchestrator"
)

// ViewerCookie names the cookie that ties a browser to its ActiveContext.
const ViewerCookie = "chatfront_viewer"

// Deps bundles what the handlers need. One Registry and one Orchestrator
// serve all viewers; state lives in the per-viewer ActiveContext.
type Deps struct {
	Orch     *orchestrator.Orchestrator
	Registry *orchestrator.Registry
	App      config.AppConfig
}

type ctxKey struct{}

// WithViewer ensures the request carries a viewer cookie and resolves it to
// an ActiveContext before the handler runs. First contact mints the cookie
// and, when a stored token survives a restart, re-attaches the login.
func WithViewer(d Deps, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var viewerID string
		if c, err := r.Cookie(ViewerCookie); err == nil && c.Value != "" {
			viewerID = c.Value
		} else {
			viewerID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     ViewerCookie,
				Value:    viewerID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ac := d.Registry.Get(viewerID)
		d.Orch.Attach(r.Context(), ac)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, ac)))
	})
}

// viewerContext returns the request's ActiveContext installed by WithViewer.
func viewerContext(r *http.Request) *orchestrator.ActiveContext {
	ac, _ := r.Context().Value(ctxKey{}).(*orchestrator.ActiveContext)
	return ac
}
