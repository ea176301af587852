package auth

import (
	"net"
	"net/http"
	"strings"

	"chatfront/pkg/logger"
	"chatfront/pkg/utils"
)

// SecConfig carries the request-level security settings for the public API:
// CORS allow-list, per-IP rate limits and an optional IP whitelist. The
// chat front-end is a public UI backend, so there are no API-key roles;
// abuse control is per-IP.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
}

// identity endpoints answer password guesses; budget them separately and
// far below the general chat rate.
const (
	authRPSDivisor = 10
	authPathPrefix = "/v1/auth/"
)

// RequestMiddleware wires CORS, IP whitelisting and per-IP rate limiting
// around the API. Health probes bypass the limiter so deployment checks
// never brown out.
func RequestMiddleware(cfg SecConfig) func(http.Handler) http.Handler {
	general := newLimiterPool(cfg.RPS, cfg.Burst)
	authRPS := cfg.RPS / authRPSDivisor
	authBurst := cfg.Burst / 2
	authPool := newLimiterPool(authRPS, authBurst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.LogRequest(r)

			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			ip := clientIP(r)
			if len(cfg.IPWhitelist) > 0 && !ipWhitelisted(ip, cfg.IPWhitelist) {
				utils.JSONError(w, http.StatusForbidden, "forbidden")
				logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", r.URL.Path)
				return
			}

			if (r.URL.Path == "/healthz" || r.URL.Path == "/readyz") && r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			pool := general
			if strings.HasPrefix(r.URL.Path, authPathPrefix) {
				pool = authPool
			}
			if !pool.Allow(ip) {
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				logger.Warn("rate_limited", "ip", ip, "path", r.URL.Path)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ipWhitelisted(ip string, list []string) bool {
	for _, w := range list {
		if ip == w {
			return true
		}
	}
	return false
}
