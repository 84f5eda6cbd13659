package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
	BackendSQLite    = "sqlite"
)

// Config holds service configuration loaded from YAML, secrets and env.
type Config struct {
	ServerPort string

	GeminiAPIKey  string
	GeminiAPIURL  string
	GeminiModel   string
	GeminiTimeout time.Duration // 0 leaves outbound calls bounded by the request context only

	RequestTimeout time.Duration // 0 disables the timeout middleware

	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerTimeout          time.Duration
	CircuitBreakerMaxRequests      int

	VerificationCode string
	SessionTTL       time.Duration
	PendingTTL       time.Duration
	GoogleClientID   string
	GoogleJWKSURL    string
	GoogleKeyRefresh time.Duration

	SessionBackend        string // "in_memory" or "memcached"
	SessionSweepInterval  time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	StorageBackend string // "in_memory" or "sqlite"
	SQLitePath     string

	MaxImageBytes   int64
	SeedSamplePosts bool

	ShutdownTimeout time.Duration

	ReadyDelay           time.Duration
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int

	HealthCheckUpstream bool
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Gemini struct {
		URL     string `yaml:"url"`
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	} `yaml:"gemini"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
		CircuitBreaker struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			Timeout          string `yaml:"timeout"`
			MaxRequests      int    `yaml:"max_requests"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Auth struct {
		VerificationCode string `yaml:"verification_code"`
		SessionTTL       string `yaml:"session_ttl"`
		PendingTTL       string `yaml:"pending_ttl"`
		Google           struct {
			ClientID   string `yaml:"client_id"`
			JWKSURL    string `yaml:"jwks_url"`
			KeyRefresh string `yaml:"key_refresh"`
		} `yaml:"google"`
	} `yaml:"auth"`

	Sessions struct {
		Backend       string `yaml:"backend"`
		SweepInterval string `yaml:"sweep_interval"`
		Memcached     struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"sessions"`

	Storage struct {
		Backend    string `yaml:"backend"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"storage"`

	Detector struct {
		MaxImageBytes int64 `yaml:"max_image_bytes"`
	} `yaml:"detector"`

	Forum struct {
		SeedSamplePosts *bool `yaml:"seed_sample_posts"`
	} `yaml:"forum"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		ReadyDelay           string `yaml:"ready_delay"`
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Health struct {
		CheckUpstream bool `yaml:"check_upstream"`
	} `yaml:"health"`
}

type secretsFile struct {
	GeminiAPIKey   string `yaml:"gemini_api_key"`
	GoogleClientID string `yaml:"google_client_id"`
}

// Load reads .env (if present), then config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml relative to the working directory. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom is Load without .env handling, rooted at dir.
func LoadFrom(dir string) (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := readSecrets(filepath.Join(dir, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.GeminiAPIKey = firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("API_KEY"), sec.GeminiAPIKey)
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY required (set env, API_KEY, or config/secrets.yaml gemini_api_key)")
	}
	cfg.GeminiAPIURL = firstNonEmpty(fc.Gemini.URL, "https://generativelanguage.googleapis.com/v1beta")
	cfg.GeminiModel = firstNonEmpty(os.Getenv("GEMINI_MODEL"), fc.Gemini.Model, "gemini-2.5-flash")
	cfg.GeminiTimeout = parseDurationOrZero(fc.Gemini.Timeout, 0)

	cfg.RequestTimeout = parseDurationOrZero(fc.Request.Timeout, 60*time.Second)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = true
	if cb.Enabled != nil {
		cfg.CircuitBreakerEnabled = *cb.Enabled
	}
	cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, 30*time.Second)
	cfg.CircuitBreakerMaxRequests = cb.MaxRequests
	if cfg.CircuitBreakerMaxRequests <= 0 {
		cfg.CircuitBreakerMaxRequests = 1
	}

	cfg.VerificationCode = firstNonEmpty(strings.TrimSpace(fc.Auth.VerificationCode), "123456")
	cfg.SessionTTL = parseDuration(fc.Auth.SessionTTL, 24*time.Hour)
	cfg.PendingTTL = parseDuration(fc.Auth.PendingTTL, 10*time.Minute)
	cfg.GoogleClientID = firstNonEmpty(os.Getenv("GOOGLE_CLIENT_ID"), sec.GoogleClientID, fc.Auth.Google.ClientID)
	cfg.GoogleJWKSURL = firstNonEmpty(fc.Auth.Google.JWKSURL, "https://www.googleapis.com/oauth2/v3/certs")
	cfg.GoogleKeyRefresh = parseDuration(fc.Auth.Google.KeyRefresh, time.Hour)

	cfg.SessionBackend = normalise(firstNonEmpty(os.Getenv("SESSION_BACKEND"), fc.Sessions.Backend, BackendInMemory))
	cfg.SessionSweepInterval = parseDuration(fc.Sessions.SweepInterval, time.Minute)
	cfg.MemcachedAddrs = firstNonEmpty(strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")), strings.TrimSpace(fc.Sessions.Memcached.Addrs), "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Sessions.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Sessions.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.StorageBackend = normalise(firstNonEmpty(os.Getenv("STORAGE_BACKEND"), fc.Storage.Backend, BackendInMemory))
	cfg.SQLitePath = firstNonEmpty(os.Getenv("SQLITE_PATH"), fc.Storage.SQLitePath, "data/plants-doctor.db")

	cfg.MaxImageBytes = fc.Detector.MaxImageBytes
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = 10 << 20
	}
	cfg.SeedSamplePosts = true
	if fc.Forum.SeedSamplePosts != nil {
		cfg.SeedSamplePosts = *fc.Forum.SeedSamplePosts
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.ReadyDelay = parseDuration(fc.Lifecycle.ReadyDelay, 3*time.Second)
	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 20
	}
	cfg.HealthCheckUpstream = fc.Health.CheckUpstream

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func normalise(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero is returned as-is; it means "disabled" for the timeouts that accept it.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. A request timeout shorter than the
// outbound timeout is raised to outbound + 1s.
func validate(cfg *Config) error {
	if cfg.GeminiTimeout < 0 {
		return fmt.Errorf("gemini.timeout must not be negative")
	}
	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("request.timeout must not be negative")
	}
	if cfg.GeminiTimeout > 0 && cfg.RequestTimeout > 0 && cfg.RequestTimeout <= cfg.GeminiTimeout {
		cfg.RequestTimeout = cfg.GeminiTimeout + time.Second
	}
	if len(cfg.VerificationCode) != 6 || strings.Trim(cfg.VerificationCode, "0123456789") != "" {
		return fmt.Errorf("auth.verification_code must be 6 digits")
	}
	switch cfg.SessionBackend {
	case BackendInMemory, BackendMemcached:
	default:
		return fmt.Errorf("sessions.backend must be in_memory or memcached, got %q", cfg.SessionBackend)
	}
	switch cfg.StorageBackend {
	case BackendInMemory:
	case BackendSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return fmt.Errorf("storage.sqlite_path required for sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend must be in_memory or sqlite, got %q", cfg.StorageBackend)
	}
	return nil
}
