package config

import (
	"flag"
	"net"
	"os"
	"strconv"
	"strings"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// EffectiveConfigResult is the merged view of flags, env and config file
// that the rest of the process runs on.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // comma list of contributing sources: "flags", "env", "config"
}

// ParseConfigFlags parses command-line flags and returns them as a Flags struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.contexts", "viewer context DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// ParseConfigFile resolves the config path and loads the YAML file. It
// returns the parsed config, whether the file was present, and an error for
// fatal parsing problems.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ApplyEnvOverrides applies CHATFRONT_* environment variables onto cfg and
// reports whether any were used.
func ApplyEnvOverrides(cfg *Config) bool {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	if v := os.Getenv("CHATFRONT_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	} else {
		if host := os.Getenv("CHATFRONT_ADDRESS"); host != "" {
			envUsed = true
			cfg.Server.Address = host
		}
		if port := os.Getenv("CHATFRONT_PORT"); port != "" {
			envUsed = true
			if pi, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = pi
			}
		}
	}
	if v := os.Getenv("CHATFRONT_DB_PATH"); v != "" {
		envUsed = true
		cfg.Server.DBPath = v
	}

	if v := os.Getenv("CHATFRONT_WEBHOOK_URL"); v != "" {
		envUsed = true
		cfg.Backend.WebhookURL = v
	}
	if v := os.Getenv("CHATFRONT_HISTORY_URL"); v != "" {
		envUsed = true
		cfg.Backend.HistoryURL = v
	}
	if v := os.Getenv("CHATFRONT_SESSIONS_URL"); v != "" {
		envUsed = true
		cfg.Backend.SessionsURL = v
	}
	if v := os.Getenv("CHATFRONT_BACKEND_API_KEY"); v != "" {
		envUsed = true
		cfg.Backend.APIKey = v
	}

	if v := os.Getenv("CHATFRONT_IDENTITY_URL"); v != "" {
		envUsed = true
		cfg.Identity.URL = v
	}
	if v := os.Getenv("CHATFRONT_IDENTITY_ANON_KEY"); v != "" {
		envUsed = true
		cfg.Identity.AnonKey = v
	}

	if v := os.Getenv("CHATFRONT_APP_TITLE"); v != "" {
		envUsed = true
		cfg.App.Title = v
	}
	if v := os.Getenv("CHATFRONT_APP_DESCRIPTION"); v != "" {
		envUsed = true
		cfg.App.Description = v
	}

	if v := os.Getenv("CHATFRONT_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("CHATFRONT_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("CHATFRONT_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			cfg.Security.RateLimit.Burst = n
		}
	}
	if v := os.Getenv("CHATFRONT_IP_WHITELIST"); v != "" {
		envUsed = true
		cfg.Security.IPWhitelist = parseList(v)
	}
	if c := os.Getenv("CHATFRONT_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("CHATFRONT_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}
	if v := os.Getenv("CHATFRONT_RETENTION_CRON"); v != "" {
		envUsed = true
		cfg.Retention.Enabled = true
		cfg.Retention.Cron = v
	}
	return envUsed
}

// LoadEffective merges config file, env and flags, with flags winning over
// env and env over the file. It returns the merged result and the list of
// sources that contributed.
func LoadEffective(flags Flags) (EffectiveConfigResult, error) {
	cfg, fileExists, err := ParseConfigFile(flags)
	if err != nil {
		return EffectiveConfigResult{}, err
	}
	envUsed := ApplyEnvOverrides(cfg)

	addr := cfg.Addr()
	if flags.Set["addr"] {
		addr = flags.Addr
	}
	dbPath := cfg.Server.DBPath
	if dbPath == "" || flags.Set["db"] {
		dbPath = flags.DB
	}

	srcs := []string{}
	if len(flags.Set) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if fileExists {
		srcs = append(srcs, "config")
	}
	return EffectiveConfigResult{Config: cfg, Addr: addr, DBPath: dbPath, Source: strings.Join(srcs, ", ")}, nil
}
