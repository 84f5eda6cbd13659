//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/plants-doctor/internal/circuitbreaker"
	"github.com/kjstillabower/plants-doctor/internal/client"
	"github.com/kjstillabower/plants-doctor/internal/gateway"
	"github.com/kjstillabower/plants-doctor/internal/session"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey         string
	APIURL         string
	Model          string
	SessionBackend string // "in_memory" or "memcached"
	MemcachedAddr  string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if GEMINI_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("GEMINI_API_URL")
	if apiURL == "" {
		apiURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.5-flash"
	}
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:         apiKey,
		APIURL:         apiURL,
		Model:          model,
		SessionBackend: os.Getenv("INTEGRATION_SESSION_BACKEND"),
		MemcachedAddr:  memcachedAddr,
	}
}

// SetupIntegrationClient creates a live generative client.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.GeminiClient {
	t.Helper()
	c, err := client.NewGeminiClient(cfg.APIKey, cfg.APIURL, cfg.Model, 60*time.Second)
	if err != nil {
		t.Fatalf("NewGeminiClient() error = %v", err)
	}
	return c
}

// SetupIntegrationGateway returns a gateway over the live client, guarded by a
// default circuit breaker.
func SetupIntegrationGateway(t *testing.T, cfg IntegrationTestConfig) (*gateway.Gateway, *client.GeminiClient) {
	t.Helper()
	c := SetupIntegrationClient(t, cfg)
	breaker := circuitbreaker.New(circuitbreaker.Config{Enabled: true, Component: "gemini"})
	return gateway.New(c, breaker, zaptest.NewLogger(t)), c
}

// SetupSessionStore returns the configured session store and a cleanup func.
// A memcached backend that cannot be reached falls back to memory.
func SetupSessionStore(t *testing.T, cfg IntegrationTestConfig) (session.Store, func()) {
	t.Helper()
	if cfg.SessionBackend == "memcached" {
		mc := session.NewMemcachedStore(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		err := mc.Ping()
		if err == nil {
			t.Logf("Using memcached session store at %s", cfg.MemcachedAddr)
			return mc, func() { _ = mc.Close() }
		}
		t.Logf("memcached not available (%v), using in-memory sessions", err)
		_ = mc.Close()
	}
	return session.NewInMemoryStore(), func() {}
}
