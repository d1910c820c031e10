package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds derived runtime values that other packages may
// query while the server runs (populated during startup after merging
// env+file+flags).
type RuntimeConfig struct {
	BackendKeys  map[string]struct{}
	FrontendKeys map[string]struct{}
	SigningKeys  map[string]struct{}
}

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the canonical runtime config used by the running server.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

func copyKeys(m map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// GetBackendKeys returns a copy of configured backend API keys.
func GetBackendKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	if runtimeCfg == nil {
		return map[string]struct{}{}
	}
	return copyKeys(runtimeCfg.BackendKeys)
}

// GetFrontendKeys returns a copy of configured frontend API keys.
func GetFrontendKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	if runtimeCfg == nil {
		return map[string]struct{}{}
	}
	return copyKeys(runtimeCfg.FrontendKeys)
}

// GetSigningKeys returns a copy of configured user-signature secrets.
func GetSigningKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	if runtimeCfg == nil {
		return map[string]struct{}{}
	}
	return copyKeys(runtimeCfg.SigningKeys)
}

// EffectiveConfigResult is the merged configuration the server runs
// with, plus where its values came from (for the startup banner).
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags" | "env" | "config" | "defaults"
}

// ParseCommandFlags registers and parses the command line flags shared
// by the server binaries. The returned map records which flags were set
// explicitly so they can win over env and file values.
func ParseCommandFlags() (addr, db, cfg string, set map[string]bool) {
	addrFlag := flag.String("addr", ":8080", "listen address")
	dbFlag := flag.String("db", "./data", "database path")
	cfgFlag := flag.String("config", "", "path to config.yaml")
	flag.Parse()
	set = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return *addrFlag, *dbFlag, *cfgFlag, set
}

// ResolveConfigPath picks the config file path: explicit flag wins,
// then COMMSDB_CONFIG, then ./config.yaml when present.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet && flagVal != "" {
		return flagVal
	}
	if p := os.Getenv("COMMSDB_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

// LoadEffective reads the YAML config file (optional) and applies
// environment overrides. Flags are applied by the caller on top.
func LoadEffective(path string) (EffectiveConfigResult, error) {
	cfg := &Config{}
	source := "defaults"
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return EffectiveConfigResult{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return EffectiveConfigResult{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		source = "config"
	}
	if applyEnv(cfg) {
		source = "env"
	}
	dbPath := cfg.Server.DBPath
	if dbPath == "" {
		dbPath = "./data"
	}
	return EffectiveConfigResult{Config: cfg, Addr: cfg.Addr(), DBPath: dbPath, Source: source}, nil
}

// applyEnv overlays COMMSDB_* environment variables and reports whether
// any were used.
func applyEnv(cfg *Config) bool {
	used := false
	if v := os.Getenv("COMMSDB_ADDRESS"); v != "" {
		cfg.Server.Address = v
		used = true
	}
	if v := os.Getenv("COMMSDB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
			used = true
		}
	}
	if v := os.Getenv("COMMSDB_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
		used = true
	}
	if v := os.Getenv("COMMSDB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
		used = true
	}
	if v := os.Getenv("COMMSDB_AUDIT_DIR"); v != "" {
		cfg.Audit.Dir = v
		used = true
	}
	if v := os.Getenv("COMMSDB_BACKEND_KEYS"); v != "" {
		cfg.Security.APIKeys.Backend = splitList(v)
		used = true
	}
	if v := os.Getenv("COMMSDB_FRONTEND_KEYS"); v != "" {
		cfg.Security.APIKeys.Frontend = splitList(v)
		used = true
	}
	if v := os.Getenv("COMMSDB_SIGNING_KEYS"); v != "" {
		cfg.Security.SigningKeys = splitList(v)
		used = true
	}
	return used
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
