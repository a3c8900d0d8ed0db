// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Config holds the configuration of every binary. Each binary reads the
// sections it needs.
type Config struct {
	App          AppConfig
	Logger       LoggerConfig
	Storage      StorageConfig
	Remote       RemoteConfig
	Connectivity ConnectivityConfig
	Cache        CacheConfig
	Server       ServerConfig
	Backend      BackendConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
	// File is an optional path of a rotating JSON log.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// StorageConfig holds the client's on-disk locations.
type StorageConfig struct {
	DataDir     string
	LocalDBPath string // Local Store database (default: {data}/local)
	CacheDBPath string // HTTP cache database (default: {data}/httpcache)
	SearchPath  string // search index directory (default: {data}/search)
	InMemory    bool   // keep every client database in memory
}

// RemoteConfig holds the backend client settings.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
	RPS     float64
	Burst   int
}

// ConnectivityConfig holds the connectivity prober settings.
type ConnectivityConfig struct {
	ProbeInterval time.Duration
	// StartOnline is the state assumed before the first probe completes.
	StartOnline bool
}

// CacheConfig holds the cache interceptor settings.
type CacheConfig struct {
	Origin      string // absolute URL of the site the interceptor fronts
	Version     string
	AssetsDir   string // local copy of the static assets; watched when set
	SkipWaiting bool
	QuietPeriod time.Duration
}

// ServerConfig holds the client's local HTTP front.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration // zero keeps SSE streams open
	IdleTimeout  time.Duration
}

// BackendConfig holds the backend REST server settings.
type BackendConfig struct {
	Port        string
	DBPath      string // default: {data}/backend.db
	StaticDir   string
	SeedFile    string
	CORSOrigins []string
	RPS         float64
	Burst       int
}

// flagSpec describes one configuration flag.
type flagSpec struct {
	name  string
	usage string
	// boolean flags may be given without a value, meaning "true".
	boolean bool
}

var flagSpecs = []flagSpec{
	{"env", "Environment (development, staging, production)", false},
	{"log-level", "Log level (debug, info, warn, error)", false},
	{"log-file", "Path of a rotating JSON log file", false},
	{"data-dir", "Base directory for local databases", false},
	{"in-memory", "Keep client databases in memory (true/false)", true},
	{"backend-url", "Base URL of the restaurant backend", false},
	{"remote-timeout", "Backend request timeout (default: 15s)", false},
	{"probe-interval", "Connectivity probe interval (default: 10s)", false},
	{"start-online", "Assume the backend is reachable before the first probe (default: true)", true},
	{"origin", "Absolute URL of the site fronted by the cache interceptor", false},
	{"cache-version", "Cache version of the first worker (default: v1)", false},
	{"assets-dir", "Local static asset directory to watch for manifest changes", false},
	{"skip-waiting", "Activate new cache workers immediately (default: true)", true},
	{"port", "Client HTTP port (default: 8000)", false},
	{"api-port", "Backend HTTP port (default: 1337)", false},
	{"api-db", "Backend SQLite database path", false},
	{"static-dir", "Directory the backend serves for unmatched paths", false},
	{"seed-file", "Restaurants JSON document loaded by seed", false},
	{"cors-origins", "Comma-separated origins allowed by the backend (default: any)", false},
}

// RegisterFlags adds the configuration flags to fs. Every flag defaults to
// the empty string so that an unset flag falls through to the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, spec := range flagSpecs {
		fs.String(spec.name, "", spec.usage)
		if spec.boolean {
			fs.Lookup(spec.name).NoOptDefVal = "true"
		}
	}
	fs.String("env-file", ".env", "Path to .env file")
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
//
// fs may be nil, or a flag set that RegisterFlags was applied to.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	flag := func(name string) string {
		if fs == nil {
			return ""
		}
		if f := fs.Lookup(name); f != nil {
			return f.Value.String()
		}
		return ""
	}

	envFile := flag("env-file")
	if envFile == "" {
		envFile = ".env"
	}
	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(flag("env"), "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:      getConfigValue(flag("log-level"), "LOG_LEVEL", "info"),
			File:       getConfigValue(flag("log-file"), "LOG_FILE", ""),
			MaxSizeMB:  getIntConfigValue("", "LOG_MAX_SIZE_MB", 50),
			MaxBackups: getIntConfigValue("", "LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getIntConfigValue("", "LOG_MAX_AGE_DAYS", 28),
		},
		Storage: StorageConfig{
			DataDir:     getConfigValue(flag("data-dir"), "DATA_DIR", ""),
			LocalDBPath: getConfigValue("", "LOCAL_DB_PATH", ""),
			CacheDBPath: getConfigValue("", "CACHE_DB_PATH", ""),
			SearchPath:  getConfigValue("", "SEARCH_PATH", ""),
			InMemory:    getBoolConfigValue(flag("in-memory"), "IN_MEMORY", false),
		},
		Remote: RemoteConfig{
			BaseURL: getConfigValue(flag("backend-url"), "BACKEND_URL", "http://localhost:1337"),
			RPS:     getFloatConfigValue("", "REMOTE_RPS", 20),
			Burst:   getIntConfigValue("", "REMOTE_BURST", 10),
		},
		Connectivity: ConnectivityConfig{
			StartOnline: getBoolConfigValue(flag("start-online"), "START_ONLINE", true),
		},
		Cache: CacheConfig{
			Origin:      getConfigValue(flag("origin"), "CACHE_ORIGIN", "http://localhost:1337"),
			Version:     getConfigValue(flag("cache-version"), "CACHE_VERSION", "v1"),
			AssetsDir:   getConfigValue(flag("assets-dir"), "ASSETS_DIR", ""),
			SkipWaiting: getBoolConfigValue(flag("skip-waiting"), "CACHE_SKIP_WAITING", true),
		},
		Server: ServerConfig{
			Port: getConfigValue(flag("port"), "SERVER_PORT", "8000"),
		},
		Backend: BackendConfig{
			Port:        getConfigValue(flag("api-port"), "API_PORT", "1337"),
			DBPath:      getConfigValue(flag("api-db"), "API_DB_PATH", ""),
			StaticDir:   getConfigValue(flag("static-dir"), "STATIC_DIR", ""),
			SeedFile:    getConfigValue(flag("seed-file"), "SEED_FILE", ""),
			CORSOrigins: getListConfigValue(flag("cors-origins"), "CORS_ORIGINS"),
			RPS:         getFloatConfigValue("", "API_RPS", 50),
			Burst:       getIntConfigValue("", "API_BURST", 100),
		},
	}

	durations := []struct {
		target *time.Duration
		flag   string
		env    string
		def    string
	}{
		{&cfg.Remote.Timeout, flag("remote-timeout"), "REMOTE_TIMEOUT", "15s"},
		{&cfg.Connectivity.ProbeInterval, flag("probe-interval"), "PROBE_INTERVAL", "10s"},
		{&cfg.Cache.QuietPeriod, "", "CACHE_QUIET_PERIOD", "500ms"},
		{&cfg.Server.ReadTimeout, "", "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "", "SERVER_WRITE_TIMEOUT", "0s"},
		{&cfg.Server.IdleTimeout, "", "SERVER_IDLE_TIMEOUT", "60s"},
	}
	for _, d := range durations {
		v, err := getDurationConfigValue(d.flag, d.env, d.def)
		if err != nil {
			return nil, err
		}
		*d.target = v
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DataDir == "" && !c.Storage.InMemory {
		return errors.New("data directory cannot be empty after expansion")
	}

	if err := validateAbsoluteURL("backend url", c.Remote.BaseURL); err != nil {
		return err
	}
	if err := validateAbsoluteURL("cache origin", c.Cache.Origin); err != nil {
		return err
	}

	for name, port := range map[string]string{"port": c.Server.Port, "api port": c.Backend.Port} {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("invalid %s: %q", name, port)
		}
	}

	if c.Remote.RPS < 0 || c.Backend.RPS < 0 {
		return errors.New("rate limits cannot be negative")
	}
	if c.Connectivity.ProbeInterval <= 0 {
		return errors.New("probe interval must be positive")
	}

	return nil
}

func validateAbsoluteURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s %q: must be absolute", name, raw)
	}
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves the data directory (default ~/.mws-restaurant) and
// derives every database path left unset from it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	dataDir, err := expandPath(c.Storage.DataDir, filepath.Join(homeDir, ".mws-restaurant"))
	if err != nil {
		return err
	}
	c.Storage.DataDir = dataDir

	paths := []struct {
		target *string
		def    string
	}{
		{&c.Storage.LocalDBPath, filepath.Join(dataDir, "local")},
		{&c.Storage.CacheDBPath, filepath.Join(dataDir, "httpcache")},
		{&c.Storage.SearchPath, filepath.Join(dataDir, "search")},
		{&c.Backend.DBPath, filepath.Join(dataDir, "backend.db")},
		{&c.Logger.File, ""},
		{&c.Cache.AssetsDir, ""},
		{&c.Backend.StaticDir, ""},
		{&c.Backend.SeedFile, ""},
	}
	for _, p := range paths {
		expanded, err := expandPath(*p.target, p.def)
		if err != nil {
			return err
		}
		*p.target = expanded
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// getDurationConfigValue parses a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
}

// getListConfigValue splits a comma-separated value, dropping empty items.
func getListConfigValue(flagValue, envKey string) []string {
	var out []string
	for item := range strings.SplitSeq(getConfigValue(flagValue, envKey, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
