package logger

import (
	"net/http"
	"strings"
)

// redactHeaderValue hides secrets carried in request headers. The viewer
// cookie and identity tokens must never reach the logs.
func redactHeaderValue(k, v string) string {
	switch strings.ToLower(k) {
	case "authorization", "x-api-key", "apikey", "cookie", "set-cookie":
		return "REDACTED"
	}
	return v
}

// SafeHeaders returns a compact header rendering safe for logging.
func SafeHeaders(r *http.Request) string {
	var b strings.Builder
	for k, vals := range r.Header {
		for _, v := range vals {
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(redactHeaderValue(k, v))
		}
	}
	return b.String()
}

// LogRequest emits a debug record for an inbound request with redacted headers.
func LogRequest(r *http.Request) {
	Debug("http_request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "headers", SafeHeaders(r))
}
