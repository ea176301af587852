package models

// Session is one conversation thread as listed by the backend. SessionID is
// either a backend-assigned opaque id or a client-minted anon_<hex> token.
type Session struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title,omitempty"`
}

// DisplayTitle falls back to the session id when the backend sent no title.
func (s Session) DisplayTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return s.SessionID
}
