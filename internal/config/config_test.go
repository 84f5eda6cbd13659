package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalEnvYAML = `
server:
  port: "9090"
gemini:
  model: "gemini-2.5-flash"
`

var envKeys = []string{
	"ENV_NAME", "GEMINI_API_KEY", "API_KEY", "GEMINI_MODEL", "GOOGLE_CLIENT_ID",
	"SESSION_BACKEND", "MEMCACHED_ADDRS", "STORAGE_BACKEND", "SQLITE_PATH",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "dev.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func writeSecretsFile(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "secrets.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func loadYAML(t *testing.T, content string) (*Config, error) {
	t.Helper()
	dir := t.TempDir()
	writeEnvFile(t, dir, content)
	return LoadFrom(dir)
}

func TestLoad_FailsWhenNoAPIKey(t *testing.T) {
	clearEnv(t)
	cfg, err := loadYAML(t, minimalEnvYAML)
	if err == nil {
		t.Fatal("LoadFrom() expected error when no GEMINI_API_KEY and no secrets file, got nil")
	}
	if cfg != nil {
		t.Fatalf("LoadFrom() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("LoadFrom() error = %v, want message containing GEMINI_API_KEY", err)
	}
}

func TestLoad_APIKeySources(t *testing.T) {
	tests := []struct {
		name    string
		gemini  string
		apiKey  string
		secrets string
		want    string
	}{
		{"gemini env wins", "from-gemini", "from-api-key", "gemini_api_key: from-file\n", "from-gemini"},
		{"api key fallback", "", "from-api-key", "gemini_api_key: from-file\n", "from-api-key"},
		{"secrets file", "", "", "gemini_api_key: from-file\n", "from-file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("GEMINI_API_KEY", tt.gemini)
			t.Setenv("API_KEY", tt.apiKey)
			dir := t.TempDir()
			writeEnvFile(t, dir, minimalEnvYAML)
			writeSecretsFile(t, dir, tt.secrets)

			cfg, err := LoadFrom(dir)
			if err != nil {
				t.Fatalf("LoadFrom() error = %v", err)
			}
			if cfg.GeminiAPIKey != tt.want {
				t.Errorf("GeminiAPIKey = %q, want %q", cfg.GeminiAPIKey, tt.want)
			}
		})
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_NAME", "nonexistent")
	t.Setenv("GEMINI_API_KEY", "k")

	cfg, err := LoadFrom(t.TempDir())
	if err == nil {
		t.Fatal("LoadFrom() expected error for missing env file, got nil")
	}
	if cfg != nil {
		t.Fatalf("LoadFrom() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("LoadFrom() error = %v, want message about config file not found", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "k")

	cfg, err := loadYAML(t, minimalEnvYAML)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"ServerPort", cfg.ServerPort, "9090"},
		{"GeminiAPIURL", cfg.GeminiAPIURL, "https://generativelanguage.googleapis.com/v1beta"},
		{"GeminiModel", cfg.GeminiModel, "gemini-2.5-flash"},
		{"GeminiTimeout", cfg.GeminiTimeout, time.Duration(0)},
		{"RequestTimeout", cfg.RequestTimeout, 60 * time.Second},
		{"VerificationCode", cfg.VerificationCode, "123456"},
		{"SessionTTL", cfg.SessionTTL, 24 * time.Hour},
		{"PendingTTL", cfg.PendingTTL, 10 * time.Minute},
		{"SessionBackend", cfg.SessionBackend, BackendInMemory},
		{"SessionSweepInterval", cfg.SessionSweepInterval, time.Minute},
		{"StorageBackend", cfg.StorageBackend, BackendInMemory},
		{"CircuitBreakerEnabled", cfg.CircuitBreakerEnabled, true},
		{"CircuitBreakerFailureThreshold", cfg.CircuitBreakerFailureThreshold, 5},
		{"SeedSamplePosts", cfg.SeedSamplePosts, true},
		{"MaxImageBytes", cfg.MaxImageBytes, int64(10 << 20)},
		{"GoogleJWKSURL", cfg.GoogleJWKSURL, "https://www.googleapis.com/oauth2/v3/certs"},
		{"ReadyDelay", cfg.ReadyDelay, 3 * time.Second},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_FullFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "k")

	cfg, err := loadYAML(t, `
server:
  port: "8081"
gemini:
  url: "http://localhost:9999/v1beta"
  model: "gemini-test"
  timeout: "20s"
request:
  timeout: "10s"
reliability:
  rate_limit_rps: 7
  rate_limit_burst: 9
  circuit_breaker:
    enabled: false
    failure_threshold: 3
    timeout: "5s"
auth:
  verification_code: "654321"
  session_ttl: "1h"
  google:
    client_id: "client.apps.googleusercontent.com"
sessions:
  backend: "Memcached"
  memcached:
    addrs: "mc1:11211,mc2:11211"
storage:
  backend: "sqlite"
  sqlite_path: "/tmp/pd.db"
forum:
  seed_sample_posts: false
health:
  check_upstream: true
`)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.GeminiAPIURL != "http://localhost:9999/v1beta" || cfg.GeminiModel != "gemini-test" {
		t.Errorf("gemini = %q %q", cfg.GeminiAPIURL, cfg.GeminiModel)
	}
	if cfg.RequestTimeout != 21*time.Second {
		t.Errorf("RequestTimeout = %v, want raised to gemini timeout + 1s", cfg.RequestTimeout)
	}
	if cfg.CircuitBreakerEnabled {
		t.Error("CircuitBreakerEnabled = true, want false")
	}
	if cfg.VerificationCode != "654321" {
		t.Errorf("VerificationCode = %q", cfg.VerificationCode)
	}
	if cfg.SessionBackend != BackendMemcached || cfg.MemcachedAddrs != "mc1:11211,mc2:11211" {
		t.Errorf("sessions = %q %q", cfg.SessionBackend, cfg.MemcachedAddrs)
	}
	if cfg.StorageBackend != BackendSQLite || cfg.SQLitePath != "/tmp/pd.db" {
		t.Errorf("storage = %q %q", cfg.StorageBackend, cfg.SQLitePath)
	}
	if cfg.SeedSamplePosts {
		t.Error("SeedSamplePosts = true, want false")
	}
	if !cfg.HealthCheckUpstream {
		t.Error("HealthCheckUpstream = false, want true")
	}
	if cfg.GoogleClientID != "client.apps.googleusercontent.com" {
		t.Errorf("GoogleClientID = %q", cfg.GoogleClientID)
	}
}

func TestLoad_EnvOverridesBackends(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("SESSION_BACKEND", "memcached")
	t.Setenv("MEMCACHED_ADDRS", "cache:11211")
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("GOOGLE_CLIENT_ID", "env-client")

	cfg, err := loadYAML(t, minimalEnvYAML)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.SessionBackend != BackendMemcached || cfg.MemcachedAddrs != "cache:11211" {
		t.Errorf("sessions = %q %q", cfg.SessionBackend, cfg.MemcachedAddrs)
	}
	if cfg.StorageBackend != BackendSQLite {
		t.Errorf("StorageBackend = %q", cfg.StorageBackend)
	}
	if cfg.GoogleClientID != "env-client" {
		t.Errorf("GoogleClientID = %q", cfg.GoogleClientID)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "k")

	cfg, err := loadYAML(t, `
gemini:
  timeout: "soon"
auth:
  session_ttl: "forever"
`)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.GeminiTimeout != 0 {
		t.Errorf("GeminiTimeout = %v, want 0", cfg.GeminiTimeout)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %v, want 24h", cfg.SessionTTL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"negative gemini timeout", "gemini:\n  timeout: \"-1s\"\n", "gemini.timeout"},
		{"short code", "auth:\n  verification_code: \"123\"\n", "verification_code"},
		{"letters in code", "auth:\n  verification_code: \"12a456\"\n", "verification_code"},
		{"unknown session backend", "sessions:\n  backend: redis\n", "sessions.backend"},
		{"unknown storage backend", "storage:\n  backend: postgres\n", "storage.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("GEMINI_API_KEY", "k")
			_, err := loadYAML(t, tt.yaml)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadFrom() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoad_InvalidSecretsYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "gemini_api_key: [unclosed\n")

	_, err := LoadFrom(dir)
	if err == nil || !strings.Contains(err.Error(), "parse secrets file") {
		t.Errorf("LoadFrom() error = %v, want parse secrets file", err)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "k")
	_, err := loadYAML(t, "server: [unclosed\n")
	if err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("LoadFrom() error = %v, want parse config file", err)
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("GEMINI_API_KEY")
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("GEMINI_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Chdir(dir)

	cfg, err := Load()
	t.Cleanup(func() { os.Unsetenv("GEMINI_API_KEY") })
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GeminiAPIKey != "from-dotenv" {
		t.Errorf("GeminiAPIKey = %q, want from-dotenv", cfg.GeminiAPIKey)
	}
}
