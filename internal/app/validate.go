package app

import (
	"fmt"
	"net/url"
	"os"

	"chatfront/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.EffectiveConfigResult) error {
	cfg := eff.Config

	// The webhook and identity provider are mandatory; history/sessions
	// endpoints may stay unset (their queries then resolve to empty).
	if cfg.Backend.WebhookURL == "" {
		return fmt.Errorf("webhook URL is empty: set CHATFRONT_WEBHOOK_URL or backend.webhook_url in config")
	}
	if err := checkURL("backend.webhook_url", cfg.Backend.WebhookURL); err != nil {
		return err
	}
	if cfg.Identity.URL == "" {
		return fmt.Errorf("identity provider URL is empty: set CHATFRONT_IDENTITY_URL or identity.url in config")
	}
	if err := checkURL("identity.url", cfg.Identity.URL); err != nil {
		return err
	}
	if cfg.Identity.AnonKey == "" {
		return fmt.Errorf("identity anon key is empty: set CHATFRONT_IDENTITY_ANON_KEY or identity.anon_key in config")
	}
	for _, opt := range []struct{ name, val string }{
		{"backend.history_url", cfg.Backend.HistoryURL},
		{"backend.sessions_url", cfg.Backend.SessionsURL},
	} {
		if opt.val != "" {
			if err := checkURL(opt.name, opt.val); err != nil {
				return err
			}
		}
	}

	if eff.DBPath == "" {
		return fmt.Errorf("context DB path is empty: set --db flag, CHATFRONT_DB_PATH env, or server.db_path in config")
	}

	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	return nil
}

func checkURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s is not a valid absolute URL: %q", name, raw)
	}
	return nil
}
